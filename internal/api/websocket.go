package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/models"
)

// WebSocket message types for the vessel push channel
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeSnapshot  = "snapshot"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SnapshotPayload is the payload of a snapshot message
type SnapshotPayload struct {
	VesselsResponse
	State models.ConnectionState `json:"state"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes fleet snapshots to dashboard clients
type WebSocketHandler struct {
	reader   FleetReader
	state    func() models.ConnectionState
	interval time.Duration
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler creates a push handler that sends a snapshot every interval
func NewWebSocketHandler(reader FleetReader, state func() models.ConnectionState, interval time.Duration, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &WebSocketHandler{
		reader:   reader,
		state:    state,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS middleware handles origin policy for the API
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		log: log,
	}
}

// wsConn serialises writes; the read loop answers pings while the push loop sends snapshots
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) send(msg interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.ws.WriteJSON(msg)
}

// HandleWebSocket upgrades the connection and pushes snapshots until the client leaves.
// Query parameters match GET /api/vessels.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	q, err := parseSnapshotQuery(c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	log := wsh.log.With(zap.String("remote", c.RealIP()))
	log.Debug("push client connected")

	if err := conn.send(WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()}); err != nil {
		return nil
	}

	done := make(chan struct{})
	go wsh.readLoop(conn, done, log)

	ticker := time.NewTicker(wsh.interval)
	defer ticker.Stop()

	for {
		if err := wsh.sendSnapshot(conn, q); err != nil {
			log.Debug("push write failed", zap.Error(err))
			return nil
		}
		select {
		case <-done:
			log.Debug("push client disconnected")
			return nil
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// readLoop answers pings and closes done when the client goes away
func (wsh *WebSocketHandler) readLoop(conn *wsConn, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("push connection error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case MsgTypePing:
			// Respond with pong to keep connection alive
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		default:
			conn.send(WSErrorResponse{Type: MsgTypeError, Message: "Unknown message type: " + msg.Type, Code: "INVALID_TYPE"})
		}
	}
}

func (wsh *WebSocketHandler) sendSnapshot(conn *wsConn, q snapshotQuery) error {
	payload := SnapshotPayload{VesselsResponse: snapshot(wsh.reader, q), State: models.ConnectionDisconnected}
	if wsh.state != nil {
		payload.State = wsh.state()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.send(WSMessage{Type: MsgTypeSnapshot, Payload: data, Timestamp: time.Now().UnixMilli()})
}
