// Package feed decodes the AIS streaming feed into vessel observations.
//
// The feed delivers JSON envelopes of the form
//
//	{"MessageType": "PositionReport",
//	 "Message":  {"PositionReport": {"Sog": 12.5, "Latitude": 9.0, "Longitude": -79.5, ...}},
//	 "MetaData": {"MMSI": 111, "ShipName": "ALPHA  ", "time_utc": "..."}}
//
// A lower-case variant (messageKind / message / metadata.vesselId) with the position fields
// directly under message is accepted as well.
package feed

import (
	"encoding/json"

	"github.com/vessel-monitor/backend/internal/models"
)

// MessageTypePositionReport is the only message kind that carries an observation.
const MessageTypePositionReport = "PositionReport"

// DefaultStreamURL is the public aisstream.io endpoint.
const DefaultStreamURL = "wss://stream.aisstream.io/v0/stream"

// Subscription is the first message sent after the WebSocket handshake.
type Subscription struct {
	APIKey             string               `json:"APIKey"`
	BoundingBoxes      []models.BoundingBox `json:"BoundingBoxes"`
	FilterMessageTypes []string             `json:"FilterMessageTypes,omitempty"`
}

// envelope is the outer feed message. encoding/json matches keys case-insensitively,
// so "Message"/"message" and "MetaData"/"metadata" land in the same fields.
type envelope struct {
	MessageType string          `json:"MessageType"`
	MessageKind string          `json:"messageKind"`
	Message     json.RawMessage `json:"Message"`
	MetaData    metaData        `json:"MetaData"`
}

func (e *envelope) kind() string {
	if e.MessageType != "" {
		return e.MessageType
	}
	return e.MessageKind
}

type metaData struct {
	MMSI        json.RawMessage `json:"MMSI"`
	VesselID    json.RawMessage `json:"vesselId"`
	ShipName    string          `json:"ShipName"`
	TimeUTC     string          `json:"time_utc"`
	ShipType    string          `json:"ShipType"`
	Destination string          `json:"Destination"`
}

// positionReport holds the fields read from a PositionReport payload.
// Values stay raw so numeric parsing can be lenient.
type positionReport struct {
	Sog       json.RawMessage `json:"Sog"`
	Latitude  json.RawMessage `json:"Latitude"`
	Longitude json.RawMessage `json:"Longitude"`
	UserID    json.RawMessage `json:"UserID"`
}

// nestedMessage is the aisstream shape where the payload sits under its kind name.
type nestedMessage struct {
	PositionReport *positionReport `json:"PositionReport"`
}
