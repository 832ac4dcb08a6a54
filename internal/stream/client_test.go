package stream

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vessel-monitor/backend/internal/feed"
	"github.com/vessel-monitor/backend/internal/models"
	"github.com/vessel-monitor/backend/internal/testutil"
)

var fastBackoff = Backoff{
	PeerClosedDelay: 10 * time.Millisecond,
	ErrorDelay:      20 * time.Millisecond,
	MaxDelay:        50 * time.Millisecond,
	Multiplier:      2,
}

func positionJSON(t *testing.T, id int64, name string, lat, lon, sog float64) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"MessageType": "PositionReport",
		"Message": map[string]any{"PositionReport": map[string]any{
			"Sog": sog, "Latitude": lat, "Longitude": lon,
		}},
		"MetaData": map[string]any{"MMSI": id, "ShipName": name},
	})
	require.NoError(t, err)
	return data
}

type harness struct {
	client *Client
	out    chan models.VesselObservation
	cancel context.CancelFunc
	done   chan struct{}
}

func startClient(t *testing.T, url string, queue int) *harness {
	t.Helper()
	out := make(chan models.VesselObservation, queue)
	c := NewClient(Config{
		URL: url,
		Subscription: feed.Subscription{
			APIKey:             "test-key",
			BoundingBoxes:      []models.BoundingBox{models.GlobalBoundingBox()},
			FilterMessageTypes: []string{feed.MessageTypePositionReport},
		},
		HandshakeTimeout: time.Second,
		ReadTimeout:      5 * time.Second,
		Backoff:          fastBackoff,
	}, out)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{client: c, out: out, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		c.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) next(t *testing.T) models.VesselObservation {
	t.Helper()
	select {
	case obs := <-h.out:
		return obs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for observation")
		return models.VesselObservation{}
	}
}

func TestClient_SubscribesAndStreams(t *testing.T) {
	fake := testutil.NewFakeFeed(t)
	h := startClient(t, fake.URL(), 16)

	require.True(t, fake.WaitConnections(1, 2*time.Second))
	subs := fake.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "test-key", subs[0].APIKey)
	assert.Equal(t, []models.BoundingBox{models.GlobalBoundingBox()}, subs[0].BoundingBoxes)
	assert.Equal(t, []string{"PositionReport"}, subs[0].FilterMessageTypes)

	require.NoError(t, fake.Send(positionJSON(t, 111, "ALPHA", 9.0, -79.5, 14.0)))
	obs := h.next(t)
	assert.Equal(t, int64(111), obs.ID)
	assert.Equal(t, "ALPHA", obs.Name)
	assert.Equal(t, 14.0, obs.Speed())

	assert.Equal(t, models.ConnectionStreaming, h.client.State())
	require.Eventually(t, func() bool {
		return h.client.Stats().ObservationsQueued == 1
	}, time.Second, 5*time.Millisecond)
	stats := h.client.Stats()
	assert.Equal(t, int64(1), stats.MessagesReceived)
	assert.False(t, stats.LastMessageAt.IsZero())
}

func TestClient_ReconnectsAfterForcedCloses(t *testing.T) {
	fake := testutil.NewFakeFeed(t)
	h := startClient(t, fake.URL(), 16)

	for i := 1; i <= 4; i++ {
		require.True(t, fake.WaitConnections(i, 3*time.Second), "connection %d", i)
		require.NoError(t, fake.Send(positionJSON(t, int64(i), "V", float64(i), 0, 1)))
		assert.Equal(t, int64(i), h.next(t).ID)
		if i < 4 {
			require.NoError(t, fake.ForceClose())
		}
	}

	assert.Len(t, fake.Subscriptions(), 4)
	assert.GreaterOrEqual(t, h.client.Stats().ConnectionAttempts, int64(4))
}

func TestClient_ReconnectsAfterAbruptDrop(t *testing.T) {
	fake := testutil.NewFakeFeed(t)
	startClient(t, fake.URL(), 16)

	require.True(t, fake.WaitConnections(1, 2*time.Second))
	require.NoError(t, fake.Drop())
	assert.True(t, fake.WaitConnections(2, 3*time.Second))
}

func TestClient_MalformedMessagesDoNotStopTheLoop(t *testing.T) {
	fake := testutil.NewFakeFeed(t)
	h := startClient(t, fake.URL(), 16)
	require.True(t, fake.WaitConnections(1, 2*time.Second))

	require.NoError(t, fake.Send([]byte("{{{ not json")))
	require.NoError(t, fake.Send([]byte(`{"MessageType":"ShipStaticData","Message":{}}`)))
	require.NoError(t, fake.Send(positionJSON(t, 5, "OK", 1, 2, 3)))

	assert.Equal(t, int64(5), h.next(t).ID)
	select {
	case extra := <-h.out:
		t.Fatalf("unexpected observation %+v", extra)
	default:
	}
	assert.Equal(t, int64(3), h.client.Stats().MessagesReceived)
	assert.Equal(t, 1, fake.Connections())
}

func TestClient_DropsNewestWhenQueueFull(t *testing.T) {
	fake := testutil.NewFakeFeed(t)
	h := startClient(t, fake.URL(), 1)
	require.True(t, fake.WaitConnections(1, 2*time.Second))

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, fake.Send(positionJSON(t, i, "V", 1, 1, 1)))
	}

	require.Eventually(t, func() bool {
		s := h.client.Stats()
		return s.ObservationsQueued+s.ObservationsDropped == 3
	}, 2*time.Second, 10*time.Millisecond)

	stats := h.client.Stats()
	assert.Equal(t, int64(1), stats.ObservationsQueued)
	assert.Equal(t, int64(2), stats.ObservationsDropped)
	assert.Equal(t, int64(1), h.next(t).ID)
}

func TestClient_StopClosesLiveConnection(t *testing.T) {
	fake := testutil.NewFakeFeed(t)
	h := startClient(t, fake.URL(), 16)
	require.True(t, fake.WaitConnections(1, 2*time.Second))

	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, models.ConnectionStopped, h.client.State())
}

func TestClient_KeepsRetryingUnreachableFeed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	h := startClient(t, "ws://"+addr, 4)

	require.Eventually(t, func() bool {
		return h.client.Stats().ConnectionAttempts >= 3
	}, 3*time.Second, 10*time.Millisecond)

	h.stop()
	assert.Equal(t, models.ConnectionStopped, h.client.State())
}
