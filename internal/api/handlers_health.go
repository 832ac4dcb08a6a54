// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vessel-monitor/backend/internal/models"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	state   func() models.ConnectionState
}

// NewHealthHandler creates a new health handler. state may be nil.
func NewHealthHandler(version string, state func() models.ConnectionState) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		state:   state,
	}
}

// HandleHealth returns server health status and the feed connection state
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	feed := models.ConnectionDisconnected
	if h.state != nil {
		feed = h.state()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"feed":    feed,
		"live":    feed.Live(),
	})
}
