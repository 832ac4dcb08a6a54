package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageReceived()
		m.ObservationDecoded()
		m.DecodeFailed("malformed")
		m.ObservationDropped()
		m.ObservationApplied()
		m.ConnectionAttempt()
		m.Reconnect("other")
		m.SetConnectionState("connecting", "streaming")
		m.SetFleetSize(3)
		m.ExportRun("csv", nil)
	})
	assert.Nil(t, m.Registry())
}

func TestMetricsCount(t *testing.T) {
	m := New()
	m.MessageReceived()
	m.MessageReceived()
	m.DecodeFailed("malformed")
	m.Reconnect("peer_closed")
	m.ExportRun("duckdb", errors.New("boom"))
	m.SetFleetSize(12)
	m.SetConnectionState("", "connecting")
	m.SetConnectionState("connecting", "streaming")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeFailures.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects.WithLabelValues("peer_closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("duckdb", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.fleetSize))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionState.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState.WithLabelValues("streaming")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObservationApplied()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "vessel_ingest_observations_applied_total 1"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
