// handlers_vessels.go - Fleet snapshot handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// VesselHandlerImpl implements the VesselHandler interface
type VesselHandlerImpl struct {
	reader FleetReader
}

// NewVesselHandler creates a new vessel handler
func NewVesselHandler(reader FleetReader) VesselHandler {
	return &VesselHandlerImpl{reader: reader}
}

// HandleListVessels returns the current snapshot as JSON.
func (h *VesselHandlerImpl) HandleListVessels(c echo.Context) error {
	q, err := parseSnapshotQuery(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshot(h.reader, q))
}

// HandleListVesselsMsgpack returns the current snapshot as msgpack.
func (h *VesselHandlerImpl) HandleListVesselsMsgpack(c echo.Context) error {
	q, err := parseSnapshotQuery(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(snapshot(h.reader, q))
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetVessel returns one vessel by MMSI.
func (h *VesselHandlerImpl) HandleGetVessel(c echo.Context) error {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return NewValidationError("id")
	}

	v, ok := h.reader.Get(id)
	if !ok {
		return NewNotFoundError("vessel", raw)
	}
	return c.JSON(http.StatusOK, v)
}
