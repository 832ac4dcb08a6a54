// Package metrics exposes Prometheus instrumentation for the ingestion engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vessel"

// Metrics groups the engine's collectors on a private registry.
// All methods are safe on a nil receiver so components can run uninstrumented.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived    prometheus.Counter
	observationsDecoded prometheus.Counter
	decodeFailures      *prometheus.CounterVec
	observationsDropped prometheus.Counter
	observationsApplied prometheus.Counter
	connectionAttempts  prometheus.Counter
	reconnects          *prometheus.CounterVec
	connectionState     *prometheus.GaugeVec
	fleetSize           prometheus.Gauge
	exports             *prometheus.CounterVec
}

// New creates the collectors and registers them together with Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "messages_received_total",
			Help: "Raw messages read from the upstream feed.",
		}),
		observationsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "observations_decoded_total",
			Help: "Messages decoded into vessel observations.",
		}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "decode_failures_total",
			Help: "Messages dropped by the decoder, by reason.",
		}, []string{"reason"}),
		observationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "observations_dropped_total",
			Help: "Observations dropped because the apply queue was full.",
		}),
		observationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "observations_applied_total",
			Help: "Observations written to the fleet state.",
		}),
		connectionAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "connection_attempts_total",
			Help: "Dial attempts against the upstream feed.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "reconnects_total",
			Help: "Reconnects scheduled, by failure class.",
		}, []string{"class"}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "connection_state",
			Help: "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		fleetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "fleet", Name: "vessels",
			Help: "Distinct vessels currently held.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "export", Name: "runs_total",
			Help: "Export runs, by sink and result.",
		}, []string{"sink", "result"}),
	}

	m.registry.MustRegister(
		m.messagesReceived,
		m.observationsDecoded,
		m.decodeFailures,
		m.observationsDropped,
		m.observationsApplied,
		m.connectionAttempts,
		m.reconnects,
		m.connectionState,
		m.fleetSize,
		m.exports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageReceived counts one raw feed message.
func (m *Metrics) MessageReceived() {
	if m != nil {
		m.messagesReceived.Inc()
	}
}

// ObservationDecoded counts a message that produced an observation.
func (m *Metrics) ObservationDecoded() {
	if m != nil {
		m.observationsDecoded.Inc()
	}
}

// DecodeFailed counts a rejected message by reason.
func (m *Metrics) DecodeFailed(reason string) {
	if m != nil {
		m.decodeFailures.WithLabelValues(reason).Inc()
	}
}

// ObservationDropped counts an observation discarded because the queue was full.
func (m *Metrics) ObservationDropped() {
	if m != nil {
		m.observationsDropped.Inc()
	}
}

// ObservationApplied counts an observation written to the fleet state.
func (m *Metrics) ObservationApplied() {
	if m != nil {
		m.observationsApplied.Inc()
	}
}

// ConnectionAttempt counts a dial to the feed.
func (m *Metrics) ConnectionAttempt() {
	if m != nil {
		m.connectionAttempts.Inc()
	}
}

// Reconnect counts a reconnect by failure class.
func (m *Metrics) Reconnect(class string) {
	if m != nil {
		m.reconnects.WithLabelValues(class).Inc()
	}
}

// SetConnectionState marks state as current and clears prev.
func (m *Metrics) SetConnectionState(prev, state string) {
	if m == nil {
		return
	}
	if prev != "" {
		m.connectionState.WithLabelValues(prev).Set(0)
	}
	m.connectionState.WithLabelValues(state).Set(1)
}

// SetFleetSize records the number of tracked vessels.
func (m *Metrics) SetFleetSize(n int) {
	if m != nil {
		m.fleetSize.Set(float64(n))
	}
}

// ExportRun counts one export by sink and result.
func (m *Metrics) ExportRun(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exports.WithLabelValues(sink, result).Inc()
}
