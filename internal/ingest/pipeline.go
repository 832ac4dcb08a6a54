// Package ingest wires the feed client to the fleet state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/feed"
	"github.com/vessel-monitor/backend/internal/fleet"
	"github.com/vessel-monitor/backend/internal/metrics"
	"github.com/vessel-monitor/backend/internal/models"
	"github.com/vessel-monitor/backend/internal/stream"
)

// ErrInvalidConfig is wrapped by Start when Params fail validation.
var ErrInvalidConfig = errors.New("invalid ingestion config")

// Params configure one pipeline run.
type Params struct {
	URL              string               `validate:"omitempty,url"`
	APIKey           string               `validate:"required"`
	BoundingBoxes    []models.BoundingBox `validate:"required,min=1,dive,bbox"`
	MessageTypes     []string             `validate:"omitempty,dive,required"`
	HandshakeTimeout time.Duration        `validate:"gte=0"`
	ReadTimeout      time.Duration        `validate:"gte=0"`
	QueueSize        int                  `validate:"gte=0"`
	Backoff          stream.Backoff
}

// DefaultParams returns params for the public feed with a global box. APIKey is left empty.
func DefaultParams() Params {
	return Params{
		URL:           feed.DefaultStreamURL,
		BoundingBoxes: []models.BoundingBox{models.GlobalBoundingBox()},
		MessageTypes:  []string{feed.MessageTypePositionReport},
		QueueSize:     stream.DefaultQueueSize,
		Backoff:       stream.DefaultBackoff(),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("bbox", func(fl validator.FieldLevel) bool {
		b, ok := fl.Field().Interface().(models.BoundingBox)
		return ok && b.Valid()
	})
	if err != nil {
		panic(fmt.Sprintf("registering bbox validation: %v", err))
	}
	return v
}

// Validate checks p and returns an error wrapping ErrInvalidConfig.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Pipeline runs one stream client and one applier goroutine that is the only
// writer of the fleet state. It can be started once per lifetime.
type Pipeline struct {
	state   *fleet.State
	reader  *fleet.Reader
	log     *zap.Logger
	metrics *metrics.Metrics
	decoder *feed.Decoder

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	client  *stream.Client

	applied atomic.Int64
	done    chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithDecoder replaces the feed decoder.
func WithDecoder(d *feed.Decoder) Option {
	return func(p *Pipeline) { p.decoder = d }
}

// New creates a pipeline writing into state.
func New(state *fleet.State, opts ...Option) *Pipeline {
	p := &Pipeline{
		state:  state,
		reader: fleet.NewReader(state),
		log:    zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start validates params and launches the pipeline. Only the first successful call
// has an effect; later calls return nil without starting anything, also after Stop.
// The pipeline runs until Stop is called or ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.log.Debug("ingestion already started")
		return nil
	}
	p.started = true

	size := params.QueueSize
	if size == 0 {
		size = stream.DefaultQueueSize
	}
	queue := make(chan models.VesselObservation, size)

	p.client = stream.NewClient(stream.Config{
		URL: params.URL,
		Subscription: feed.Subscription{
			APIKey:             params.APIKey,
			BoundingBoxes:      params.BoundingBoxes,
			FilterMessageTypes: params.MessageTypes,
		},
		HandshakeTimeout: params.HandshakeTimeout,
		ReadTimeout:      params.ReadTimeout,
		Backoff:          params.Backoff,
	}, queue,
		stream.WithLogger(p.log.With(zap.String("component", "stream"))),
		stream.WithMetrics(p.metrics),
		stream.WithDecoder(p.decoder),
	)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	client := p.client
	go func() {
		client.Run(runCtx)
		close(queue)
	}()
	go p.apply(queue)

	p.log.Info("ingestion started",
		zap.String("url", params.URL),
		zap.Int("boxes", len(params.BoundingBoxes)),
		zap.Int("queue", size))
	return nil
}

// apply drains the queue into the fleet state in arrival order.
func (p *Pipeline) apply(queue <-chan models.VesselObservation) {
	defer close(p.done)
	for obs := range queue {
		p.state.Upsert(obs)
		p.applied.Add(1)
		p.metrics.ObservationApplied()
		p.metrics.SetFleetSize(p.state.Len())
	}
	p.log.Info("ingestion stopped", zap.Int64("applied", p.applied.Load()))
}

// Stop cancels the run. The live connection is closed and the goroutines exit
// shortly after; use Done or Wait to observe that.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.stopped {
		return
	}
	p.stopped = true
	p.cancel()
}

// Done is closed once the applier has exited. It never closes if Start was not called.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pipeline has exited or ctx ends.
func (p *Pipeline) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current fleet snapshot.
func (p *Pipeline) Snapshot() []models.VesselObservation {
	return p.state.Snapshot()
}

// Reader returns the read-only view of the fleet state.
func (p *Pipeline) Reader() *fleet.Reader {
	return p.reader
}

// State returns the feed connection state.
func (p *Pipeline) State() models.ConnectionState {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return models.ConnectionDisconnected
	}
	return client.State()
}

// Status summarises the pipeline.
func (p *Pipeline) Status() models.IngestStatus {
	p.mu.Lock()
	client, started, stopped := p.client, p.started, p.stopped
	p.mu.Unlock()

	st := models.IngestStatus{
		State:               models.ConnectionDisconnected,
		Started:             started,
		Stopped:             stopped,
		ObservationsApplied: p.applied.Load(),
		VesselCount:         p.reader.Count(),
	}
	if client != nil {
		cs := client.Stats()
		st.State = client.State()
		st.MessagesReceived = cs.MessagesReceived
		st.ObservationsQueued = cs.ObservationsQueued
		st.ObservationsDropped = cs.ObservationsDropped
		st.ConnectionAttempts = cs.ConnectionAttempts
		if !cs.LastMessageAt.IsZero() {
			st.LastMessageAt = cs.LastMessageAt.UnixMilli()
		}
	}
	if t := p.reader.LastUpdate(); !t.IsZero() {
		st.LastUpdateAt = t.UnixMilli()
	}
	return st
}
