// Package fleet holds the latest known observation for every vessel seen by the feed.
package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/vessel-monitor/backend/internal/models"
)

// State maps vessel id to its most recent observation.
// Upsert is called by a single writer; any number of goroutines may read.
type State struct {
	vessels   map[int64]models.VesselObservation
	mu        sync.RWMutex
	updatedAt time.Time
	now       func() time.Time
}

// New creates an empty fleet state.
func New() *State {
	return &State{
		vessels: make(map[int64]models.VesselObservation),
		now:     time.Now,
	}
}

// Upsert stores obs, replacing any prior observation with the same id.
// Arrival order decides; ObservedAt is not compared.
func (s *State) Upsert(obs models.VesselObservation) {
	s.mu.Lock()
	s.vessels[obs.ID] = obs
	s.updatedAt = s.now()
	s.mu.Unlock()
}

// Snapshot returns a copy of all observations sorted by id.
// The slice is never nil and is not affected by later upserts.
func (s *State) Snapshot() []models.VesselObservation {
	s.mu.RLock()
	out := make([]models.VesselObservation, 0, len(s.vessels))
	for _, obs := range s.vessels {
		out = append(out, obs)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the observation for id.
func (s *State) Get(id int64) (models.VesselObservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.vessels[id]
	return obs, ok
}

// Len returns the number of distinct vessels.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vessels)
}

// UpdatedAt returns the time of the last upsert, zero if none.
func (s *State) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
