// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vessel-monitor/backend/internal/ingest"
	"github.com/vessel-monitor/backend/internal/models"
)

// VesselHandler serves fleet snapshot reads
type VesselHandler interface {
	HandleListVessels(c echo.Context) error
	HandleListVesselsMsgpack(c echo.Context) error
	HandleGetVessel(c echo.Context) error
}

// IngestHandler controls the ingestion pipeline
type IngestHandler interface {
	HandleStart(c echo.Context) error
	HandleStop(c echo.Context) error
	HandleStats(c echo.Context) error
}

// ExportHandler handles snapshot export files
type ExportHandler interface {
	HandleListExports(c echo.Context) error
	HandleCreateExport(c echo.Context) error
	HandleDownloadExport(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// PushHandler streams snapshots over WebSocket
type PushHandler interface {
	HandleWebSocket(c echo.Context) error
}

// FleetReader is the read side of the fleet state.
// This allows mocking in tests
type FleetReader interface {
	Read() []models.VesselObservation
	ReadFresh(maxAge time.Duration) []models.VesselObservation
	Get(id int64) (models.VesselObservation, bool)
	Count() int
	LastUpdate() time.Time
}

// Ingestor is the control surface of the ingestion pipeline.
type Ingestor interface {
	Start(ctx context.Context, params ingest.Params) error
	Stop()
	Status() models.IngestStatus
	State() models.ConnectionState
}

// ParamsFunc resolves the parameters used by POST /api/ingest/start.
type ParamsFunc func() (ingest.Params, error)
