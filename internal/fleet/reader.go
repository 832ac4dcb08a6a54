package fleet

import (
	"time"

	"github.com/vessel-monitor/backend/internal/models"
)

// Reader is a read-only view over a State for consumers that must not write.
type Reader struct {
	state *State
	now   func() time.Time
}

// NewReader wraps state.
func NewReader(state *State) *Reader {
	return &Reader{state: state, now: time.Now}
}

// Read returns the current snapshot.
func (r *Reader) Read() []models.VesselObservation {
	return r.state.Snapshot()
}

// ReadFresh returns observations whose ObservedAt is within maxAge of now.
// A non-positive maxAge disables the filter.
func (r *Reader) ReadFresh(maxAge time.Duration) []models.VesselObservation {
	snap := r.state.Snapshot()
	if maxAge <= 0 {
		return snap
	}

	now := r.now()
	fresh := snap[:0]
	for _, obs := range snap {
		if obs.Age(now) <= maxAge {
			fresh = append(fresh, obs)
		}
	}
	return fresh
}

// Get returns one vessel by id.
func (r *Reader) Get(id int64) (models.VesselObservation, bool) {
	return r.state.Get(id)
}

// Count returns the number of distinct vessels.
func (r *Reader) Count() int {
	return r.state.Len()
}

// LastUpdate returns when the state last changed.
func (r *Reader) LastUpdate() time.Time {
	return r.state.UpdatedAt()
}

// LatestObservation returns the observation with the newest ObservedAt.
func (r *Reader) LatestObservation() (models.VesselObservation, bool) {
	var (
		latest models.VesselObservation
		found  bool
	)
	for _, obs := range r.state.Snapshot() {
		if !found || obs.ObservedAt.After(latest.ObservedAt) {
			latest, found = obs, true
		}
	}
	return latest, found
}
