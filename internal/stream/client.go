// Package stream maintains the live subscription to the upstream AIS feed.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vessel-monitor/backend/internal/feed"
	"github.com/vessel-monitor/backend/internal/metrics"
	"github.com/vessel-monitor/backend/internal/models"
)

const (
	// DefaultHandshakeTimeout bounds the WebSocket dial and upgrade.
	DefaultHandshakeTimeout = 15 * time.Second
	// DefaultReadTimeout is the longest silence tolerated before the connection is treated as dead.
	DefaultReadTimeout = 90 * time.Second
	// DefaultQueueSize is the capacity of the observation queue.
	DefaultQueueSize = 4096
)

// Config describes the upstream endpoint and connection behaviour.
type Config struct {
	URL              string
	Subscription     feed.Subscription
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	Backoff          Backoff
}

// Stats are the client's running counters.
type Stats struct {
	MessagesReceived    int64
	ObservationsQueued  int64
	ObservationsDropped int64
	ConnectionAttempts  int64
	LastMessageAt       time.Time
}

// Client reads the feed over a WebSocket, reconnecting forever until its context
// is cancelled. Decoded observations go to the output channel without blocking.
type Client struct {
	cfg     Config
	out     chan<- models.VesselObservation
	dialer  *websocket.Dialer
	decoder *feed.Decoder
	log     *zap.Logger
	metrics *metrics.Metrics
	diag    *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) bool

	state         atomic.Value // models.ConnectionState
	received      atomic.Int64
	queued        atomic.Int64
	dropped       atomic.Int64
	attempts      atomic.Int64
	lastMessageAt atomic.Int64 // unix nanos
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithDecoder replaces the default decoder.
func WithDecoder(d *feed.Decoder) Option {
	return func(c *Client) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithDiagnosticsRate limits how often decode failures are logged.
func WithDiagnosticsRate(every time.Duration, burst int) Option {
	return func(c *Client) { c.diag = rate.NewLimiter(rate.Every(every), burst) }
}

// NewClient creates a client that writes observations to out.
func NewClient(cfg Config, out chan<- models.VesselObservation, opts ...Option) *Client {
	if cfg.URL == "" {
		cfg.URL = feed.DefaultStreamURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}

	c := &Client{
		cfg: cfg,
		out: out,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		decoder: feed.NewDecoder(),
		log:     zap.NewNop(),
		diag:    rate.NewLimiter(rate.Every(time.Second), 5),
		sleep:   sleepContext,
	}
	c.state.Store(models.ConnectionDisconnected)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() models.ConnectionState {
	return c.state.Load().(models.ConnectionState)
}

// Stats returns a copy of the running counters.
func (c *Client) Stats() Stats {
	s := Stats{
		MessagesReceived:    c.received.Load(),
		ObservationsQueued:  c.queued.Load(),
		ObservationsDropped: c.dropped.Load(),
		ConnectionAttempts:  c.attempts.Load(),
	}
	if ns := c.lastMessageAt.Load(); ns > 0 {
		s.LastMessageAt = time.Unix(0, ns).UTC()
	}
	return s
}

// Run connects and reads until ctx is cancelled. It never returns an error;
// every failure leads to a backoff and another attempt.
func (c *Client) Run(ctx context.Context) {
	failures := 0
	for {
		if ctx.Err() != nil {
			c.setState(models.ConnectionStopped)
			return
		}

		c.setState(models.ConnectionConnecting)
		streamed, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			c.setState(models.ConnectionStopped)
			c.log.Info("feed client stopped")
			return
		}

		if streamed {
			failures = 0
		}
		failures++

		class := Classify(err)
		delay := c.cfg.Backoff.Next(class, failures)
		c.metrics.Reconnect(string(class))
		c.setState(models.ConnectionReconnecting)
		c.log.Warn("feed connection lost",
			zap.Error(err),
			zap.String("class", string(class)),
			zap.Bool("timeout", isTimeout(err)),
			zap.Int("consecutiveFailures", failures),
			zap.Duration("backoff", delay))

		if !c.sleep(ctx, delay) {
			c.setState(models.ConnectionStopped)
			c.log.Info("feed client stopped")
			return
		}
	}
}

// connectOnce runs a single connection attempt to completion. It reports whether the
// connection reached the streaming state and the error that ended it.
func (c *Client) connectOnce(ctx context.Context) (streamed bool, err error) {
	attemptID := uuid.New().String()[:8]
	log := c.log.With(zap.String("attempt", attemptID))

	c.attempts.Add(1)
	c.metrics.ConnectionAttempt()
	log.Debug("dialing feed", zap.String("url", c.cfg.URL))

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Close the socket on cancellation so a blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := conn.WriteJSON(c.cfg.Subscription); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})
	c.setState(models.ConnectionSubscribed)
	log.Info("subscribed to feed", zap.Int("boxes", len(c.cfg.Subscription.BoundingBoxes)))

	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return streamed, fmt.Errorf("read: %w", err)
		}
		if !streamed {
			streamed = true
			c.setState(models.ConnectionStreaming)
			log.Info("feed streaming")
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	c.received.Add(1)
	c.lastMessageAt.Store(time.Now().UnixNano())
	c.metrics.MessageReceived()

	obs, err := c.decoder.Parse(data)
	if err != nil {
		if errors.Is(err, feed.ErrIgnoredKind) {
			return
		}
		reason := decodeReason(err)
		c.metrics.DecodeFailed(reason)
		if c.diag.Allow() {
			c.log.Debug("dropping feed message", zap.String("reason", reason), zap.Error(err))
		}
		return
	}
	c.metrics.ObservationDecoded()

	select {
	case c.out <- obs:
		c.queued.Add(1)
	default:
		c.dropped.Add(1)
		c.metrics.ObservationDropped()
	}
}

func (c *Client) setState(s models.ConnectionState) {
	prev := c.state.Swap(s).(models.ConnectionState)
	if prev != s {
		c.metrics.SetConnectionState(string(prev), string(s))
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, feed.ErrMalformed):
		return "malformed"
	case errors.Is(err, feed.ErrMissingPosition):
		return "missing_position"
	case errors.Is(err, feed.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, feed.ErrMissingIdentifier):
		return "missing_identifier"
	default:
		return "unknown"
	}
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
