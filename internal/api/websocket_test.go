package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vessel-monitor/backend/internal/models"
)

func dialPush(t *testing.T, h *WebSocketHandler, query string) *websocket.Conn {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/api/ws/vessels", h.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/vessels" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestWebSocketPush(t *testing.T) {
	state, reader := seedFleet(t)
	feed := func() models.ConnectionState { return models.ConnectionStreaming }
	h := NewWebSocketHandler(reader, feed, 50*time.Millisecond, nil)

	ws := dialPush(t, h, "")

	msg := readMessage(t, ws)
	assert.Equal(t, MsgTypeConnected, msg.Type)

	msg = readMessage(t, ws)
	require.Equal(t, MsgTypeSnapshot, msg.Type)
	var payload SnapshotPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, models.ConnectionStreaming, payload.State)
	assert.Equal(t, 3, payload.Count)
	require.Len(t, payload.Vessels, 3)
	assert.Equal(t, int64(111), payload.Vessels[0].ID)

	// Later snapshots reflect new observations
	state.Upsert(models.VesselObservation{ID: 444, Name: "DELTA", ObservedAt: time.Now()})
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no snapshot with the new vessel")
		msg := readMessage(t, ws)
		var p SnapshotPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		if p.Count == 4 {
			break
		}
	}
}

func TestWebSocketPush_Ping(t *testing.T) {
	_, reader := seedFleet(t)
	h := NewWebSocketHandler(reader, nil, time.Hour, nil)

	ws := dialPush(t, h, "?maxAgeSeconds=600")
	assert.Equal(t, MsgTypeConnected, readMessage(t, ws).Type)

	snap := readMessage(t, ws)
	require.Equal(t, MsgTypeSnapshot, snap.Type)
	var payload SnapshotPayload
	require.NoError(t, json.Unmarshal(snap.Payload, &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, models.ConnectionDisconnected, payload.State)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypePing, ID: "p1"}))
	pong := readMessage(t, ws)
	assert.Equal(t, MsgTypePong, pong.Type)
	assert.Equal(t, "p1", pong.ID)
}

func TestWebSocketPush_BadQuery(t *testing.T) {
	_, reader := seedFleet(t)
	h := NewWebSocketHandler(reader, nil, time.Second, nil)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/api/ws/vessels", h.HandleWebSocket)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/vessels?sort=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
