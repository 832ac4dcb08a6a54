// handlers_export.go - Snapshot export handlers
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vessel-monitor/backend/internal/export"
	"github.com/vessel-monitor/backend/internal/storage"
)

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	store  storage.Store
	csv    *export.CSVSink
	reader FleetReader
}

// NewExportHandler creates a new export handler. csv may be nil when CSV export is disabled.
func NewExportHandler(store storage.Store, csv *export.CSVSink, reader FleetReader) ExportHandler {
	return &ExportHandlerImpl{store: store, csv: csv, reader: reader}
}

// HandleListExports returns the most recent export files.
func (h *ExportHandlerImpl) HandleListExports(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list exports", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleCreateExport writes the current snapshot to a new CSV file.
func (h *ExportHandlerImpl) HandleCreateExport(c echo.Context) error {
	if h.csv == nil {
		return NewServiceUnavailableError("csv export is disabled")
	}

	info, err := h.csv.Write(c.Request().Context(), h.reader.Read(), time.Now())
	if err != nil {
		return NewInternalError("failed to write export", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleDownloadExport streams an export file as an attachment.
func (h *ExportHandlerImpl) HandleDownloadExport(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("export", id)
	}

	path, err := h.store.GetFilePath(id)
	if err != nil {
		return NewNotFoundError("export", id)
	}
	return c.Attachment(path, info.Name)
}
