package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vessel-monitor/backend/internal/feed"
)

// FakeFeed is an in-process AIS stream endpoint. Every connection must send a
// subscription first; after that the test pushes messages or closes the socket.
type FakeFeed struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	conns         []*websocket.Conn
	subscriptions []feed.Subscription
	greeting      [][]byte
	changed       chan struct{}
}

// NewFakeFeed starts a fake feed that is shut down when the test ends.
func NewFakeFeed(t testing.TB) *FakeFeed {
	f := &FakeFeed{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		changed:  make(chan struct{}),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// URL returns the ws:// address of the feed.
func (f *FakeFeed) URL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

// Greet sets messages sent to every new connection right after it subscribes.
func (f *FakeFeed) Greet(msgs ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.greeting = msgs
}

func (f *FakeFeed) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var sub feed.Subscription
	if err := conn.ReadJSON(&sub); err != nil {
		conn.Close()
		return
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.subscriptions = append(f.subscriptions, sub)
	for _, msg := range f.greeting {
		conn.WriteMessage(websocket.TextMessage, msg)
	}
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()

	// Drain until the client goes away so control frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Connections returns how many clients have subscribed so far.
func (f *FakeFeed) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Subscriptions returns every subscription message received, in order.
func (f *FakeFeed) Subscriptions() []feed.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.Subscription(nil), f.subscriptions...)
}

// WaitConnections blocks until at least n clients have subscribed or timeout elapses.
func (f *FakeFeed) WaitConnections(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		f.mu.Lock()
		count, changed := len(f.conns), f.changed
		f.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

// Send writes a text message to the most recent connection.
func (f *FakeFeed) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, err := f.latest()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// SendJSON marshals v and sends it.
func (f *FakeFeed) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.Send(data)
}

// ForceClose sends a close frame on the most recent connection and drops it.
func (f *FakeFeed) ForceClose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, err := f.latest()
	if err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server restart")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

// Drop closes the most recent connection without a close frame.
func (f *FakeFeed) Drop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, err := f.latest()
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close shuts the server and all connections down.
func (f *FakeFeed) Close() {
	f.mu.Lock()
	for _, c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()
	f.server.CloseClientConnections()
	f.server.Close()
}

func (f *FakeFeed) latest() (*websocket.Conn, error) {
	if len(f.conns) == 0 {
		return nil, errors.New("fake feed: no connection")
	}
	return f.conns[len(f.conns)-1], nil
}
