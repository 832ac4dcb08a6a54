// handlers_ingest.go - Ingestion control handlers
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/ingest"
)

// IngestHandlerImpl implements the IngestHandler interface
type IngestHandlerImpl struct {
	pipeline Ingestor
	params   ParamsFunc
	baseCtx  context.Context
	log      *zap.Logger
}

// NewIngestHandler creates a new ingest handler. The pipeline is started with baseCtx,
// not the request context, so it outlives the request.
func NewIngestHandler(baseCtx context.Context, pipeline Ingestor, params ParamsFunc, log *zap.Logger) IngestHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestHandlerImpl{
		pipeline: pipeline,
		params:   params,
		baseCtx:  baseCtx,
		log:      log,
	}
}

// HandleStart starts ingestion with the configured parameters. Repeated calls are no-ops.
func (h *IngestHandlerImpl) HandleStart(c echo.Context) error {
	status := h.pipeline.Status()
	if status.Started && !status.Stopped {
		return c.JSON(http.StatusOK, status)
	}
	if status.Stopped {
		return NewConflictError("ingestion was stopped and cannot be restarted in this process")
	}

	params, err := h.params()
	if err != nil {
		return NewServiceUnavailableError("feed is not configured: " + err.Error())
	}

	if err := h.pipeline.Start(h.baseCtx, params); err != nil {
		if errors.Is(err, ingest.ErrInvalidConfig) {
			return NewBadRequestError("invalid ingestion config", err)
		}
		return NewInternalError("failed to start ingestion", err)
	}

	h.log.Info("ingestion started via API", zap.String("remote", c.RealIP()))
	return c.JSON(http.StatusAccepted, h.pipeline.Status())
}

// HandleStop requests a best-effort stop.
func (h *IngestHandlerImpl) HandleStop(c echo.Context) error {
	h.pipeline.Stop()
	h.log.Info("ingestion stop requested via API", zap.String("remote", c.RealIP()))
	return c.JSON(http.StatusAccepted, h.pipeline.Status())
}

// HandleStats returns pipeline counters and the fleet size.
func (h *IngestHandlerImpl) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pipeline.Status())
}
