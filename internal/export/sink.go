// Package export writes fleet snapshots to files and databases on a schedule.
package export

import (
	"context"
	"time"

	"github.com/vessel-monitor/backend/internal/models"
)

// Sink receives full fleet snapshots.
type Sink interface {
	Name() string
	Export(ctx context.Context, snapshot []models.VesselObservation, at time.Time) error
}
