package stream

import (
	"errors"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// FailureClass picks the backoff schedule for a failed connection.
type FailureClass string

const (
	// FailurePeerClosed covers a close frame or EOF from the feed.
	FailurePeerClosed FailureClass = "peer_closed"
	// FailureOther covers dial, handshake, subscribe, read and timeout errors.
	FailureOther FailureClass = "other"
)

// Classify maps a connection error to its failure class.
func Classify(err error) FailureClass {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return FailurePeerClosed
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return FailurePeerClosed
	}
	return FailureOther
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Backoff computes reconnect delays. Each failure class has its own initial delay;
// consecutive failures grow it by Multiplier up to MaxDelay. Attempts are unbounded.
type Backoff struct {
	PeerClosedDelay time.Duration
	ErrorDelay      time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	Jitter          float64 // fraction of the delay, 0 disables
}

// DefaultBackoff returns the delays used when none are configured.
func DefaultBackoff() Backoff {
	return Backoff{
		PeerClosedDelay: time.Second,
		ErrorDelay:      5 * time.Second,
		MaxDelay:        time.Minute,
		Multiplier:      2,
		Jitter:          0.2,
	}
}

// Next returns the delay before the next attempt after the given number of
// consecutive failures (1 for the first). Unset delays fall back to DefaultBackoff,
// so the result is always in (0, MaxDelay] before jitter.
func (b Backoff) Next(class FailureClass, failures int) time.Duration {
	def := DefaultBackoff()
	delay, fallback := b.ErrorDelay, def.ErrorDelay
	if class == FailurePeerClosed {
		delay, fallback = b.PeerClosedDelay, def.PeerClosedDelay
	}
	if delay <= 0 {
		delay = fallback
	}
	limit := b.MaxDelay
	if limit <= 0 {
		limit = def.MaxDelay
	}
	if delay > limit {
		delay = limit
	}

	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < failures; i++ {
		delay = time.Duration(float64(delay) * mult)
		// float overflow comes back negative
		if delay <= 0 || delay >= limit {
			delay = limit
			break
		}
	}

	if b.Jitter > 0 {
		spread := float64(delay) * b.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
