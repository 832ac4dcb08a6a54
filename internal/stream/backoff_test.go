package stream

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"close frame", &websocket.CloseError{Code: websocket.CloseGoingAway}, FailurePeerClosed},
		{"wrapped close frame", fmt.Errorf("read: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}), FailurePeerClosed},
		{"eof", io.EOF, FailurePeerClosed},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), FailurePeerClosed},
		{"dial", errors.New("dial tcp: connection refused"), FailureOther},
		{"nil", nil, FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestBackoff_Next(t *testing.T) {
	b := Backoff{
		PeerClosedDelay: time.Second,
		ErrorDelay:      5 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2,
	}

	assert.Equal(t, time.Second, b.Next(FailurePeerClosed, 1))
	assert.Equal(t, 2*time.Second, b.Next(FailurePeerClosed, 2))
	assert.Equal(t, 4*time.Second, b.Next(FailurePeerClosed, 3))
	assert.Equal(t, 5*time.Second, b.Next(FailureOther, 1))
	assert.Equal(t, 20*time.Second, b.Next(FailureOther, 3))
	assert.Equal(t, 30*time.Second, b.Next(FailureOther, 4))
	assert.Equal(t, 30*time.Second, b.Next(FailureOther, 1000))
}

func TestBackoff_Next_Capped(t *testing.T) {
	tests := []struct {
		name     string
		b        Backoff
		class    FailureClass
		failures int
		want     time.Duration
	}{
		{"unset max uses default cap", Backoff{ErrorDelay: 5 * time.Second, Multiplier: 2}, FailureOther, 100, time.Minute},
		{"unset max early failures grow", Backoff{ErrorDelay: 5 * time.Second, Multiplier: 2}, FailureOther, 3, 20 * time.Second},
		{"huge multiplier", Backoff{ErrorDelay: time.Second, MaxDelay: time.Hour, Multiplier: 1e300}, FailureOther, 5, time.Hour},
		{"zero error delay", Backoff{MaxDelay: time.Minute, Multiplier: 2}, FailureOther, 1, 5 * time.Second},
		{"zero peer closed delay", Backoff{MaxDelay: time.Minute, Multiplier: 2}, FailurePeerClosed, 1, time.Second},
		{"initial above max", Backoff{ErrorDelay: time.Hour, MaxDelay: time.Minute}, FailureOther, 1, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.Next(tt.class, tt.failures))
		})
	}

	b := Backoff{ErrorDelay: 5 * time.Second, Multiplier: 2}
	for n := 1; n <= 200; n++ {
		d := b.Next(FailureOther, n)
		assert.Greater(t, d, time.Duration(0), "failures=%d", n)
		assert.LessOrEqual(t, d, time.Minute, "failures=%d", n)
	}
}

func TestBackoff_FixedWithoutMultiplier(t *testing.T) {
	b := Backoff{PeerClosedDelay: time.Second, ErrorDelay: 3 * time.Second}
	for i := 1; i < 10; i++ {
		assert.Equal(t, 3*time.Second, b.Next(FailureOther, i))
	}
}

func TestBackoff_JitterStaysInBounds(t *testing.T) {
	b := DefaultBackoff()
	for i := 0; i < 200; i++ {
		d := b.Next(FailureOther, 1)
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.LessOrEqual(t, d, 6*time.Second)
	}
}
