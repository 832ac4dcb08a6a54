package export

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/fleet"
	"github.com/vessel-monitor/backend/internal/metrics"
)

// Scheduler periodically hands the current snapshot to every sink.
type Scheduler struct {
	reader   *fleet.Reader
	sinks    []Sink
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewScheduler creates a scheduler that exports every interval.
func NewScheduler(reader *fleet.Reader, interval time.Duration, log *zap.Logger, m *metrics.Metrics, sinks ...Sink) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		reader:   reader,
		sinks:    sinks,
		interval: interval,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Run exports on every tick until ctx is cancelled. Sink failures are logged, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.sinks) == 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce exports one snapshot to all sinks and returns how many succeeded.
// An empty fleet is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	snapshot := s.reader.Read()
	if len(snapshot) == 0 {
		return 0
	}

	at := s.now()
	ok := 0
	for _, sink := range s.sinks {
		err := sink.Export(ctx, snapshot, at)
		s.metrics.ExportRun(sink.Name(), err)
		if err != nil {
			s.log.Warn("export failed", zap.String("sink", sink.Name()), zap.Error(err))
			continue
		}
		ok++
	}
	return ok
}
