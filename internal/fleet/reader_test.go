package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vessel-monitor/backend/internal/models"
)

func TestReader_ReadFresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.Upsert(models.VesselObservation{ID: 1, ObservedAt: now.Add(-30 * time.Second)})
	s.Upsert(models.VesselObservation{ID: 2, ObservedAt: now.Add(-10 * time.Minute)})
	s.Upsert(models.VesselObservation{ID: 3, ObservedAt: now.Add(-59 * time.Second)})

	r := NewReader(s)
	r.now = func() time.Time { return now }

	fresh := r.ReadFresh(time.Minute)
	require.Len(t, fresh, 2)
	assert.Equal(t, int64(1), fresh[0].ID)
	assert.Equal(t, int64(3), fresh[1].ID)

	assert.Len(t, r.ReadFresh(0), 3)
	assert.Len(t, r.Read(), 3)
}

func TestReader_Helpers(t *testing.T) {
	s := New()
	r := NewReader(s)

	_, ok := r.LatestObservation()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	base := time.Now().UTC()
	s.Upsert(models.VesselObservation{ID: 10, Name: "A", ObservedAt: base})
	s.Upsert(models.VesselObservation{ID: 20, Name: "B", ObservedAt: base.Add(time.Minute)})
	s.Upsert(models.VesselObservation{ID: 30, Name: "C", ObservedAt: base.Add(-time.Minute)})

	latest, ok := r.LatestObservation()
	require.True(t, ok)
	assert.Equal(t, "B", latest.Name)

	v, ok := r.Get(30)
	require.True(t, ok)
	assert.Equal(t, "C", v.Name)

	_, ok = r.Get(99)
	assert.False(t, ok)
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, s.UpdatedAt(), r.LastUpdate())
}
