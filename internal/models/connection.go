package models

// ConnectionState represents where the upstream feed connection is in its lifecycle.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionSubscribed   ConnectionState = "subscribed"
	ConnectionStreaming    ConnectionState = "streaming"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionStopped      ConnectionState = "stopped"
)

// Live reports whether the connection is currently delivering or about to deliver messages.
func (s ConnectionState) Live() bool {
	return s == ConnectionSubscribed || s == ConnectionStreaming
}

// IngestStatus summarises the ingestion pipeline for host-facing status endpoints.
type IngestStatus struct {
	State               ConnectionState `json:"state"`
	Started             bool            `json:"started"`
	Stopped             bool            `json:"stopped"`
	MessagesReceived    int64           `json:"messagesReceived"`
	ObservationsQueued  int64           `json:"observationsQueued"`
	ObservationsDropped int64           `json:"observationsDropped"`
	ObservationsApplied int64           `json:"observationsApplied"`
	ConnectionAttempts  int64           `json:"connectionAttempts"`
	LastMessageAt       int64           `json:"lastMessageAt,omitempty"` // Unix ms
	VesselCount         int             `json:"vesselCount"`
	LastUpdateAt        int64           `json:"lastUpdateAt,omitempty"` // Unix ms
}
