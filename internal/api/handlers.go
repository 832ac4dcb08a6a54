package api

import (
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vessel-monitor/backend/internal/models"
)

// VesselsResponse is the body of GET /api/vessels.
type VesselsResponse struct {
	Vessels   []models.VesselObservation `json:"vessels" msgpack:"vessels"`
	Count     int                        `json:"count" msgpack:"count"`
	Total     int                        `json:"total" msgpack:"total"`
	UpdatedAt int64                      `json:"updatedAt,omitempty" msgpack:"updatedAt,omitempty"` // Unix ms
}

// snapshotQuery holds the common snapshot query parameters.
type snapshotQuery struct {
	maxAge time.Duration
	recent bool
	limit  int
}

// parseSnapshotQuery reads maxAgeSeconds, sort and limit.
func parseSnapshotQuery(c echo.Context) (snapshotQuery, error) {
	var q snapshotQuery

	if v := c.QueryParam("maxAgeSeconds"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return q, NewValidationError("maxAgeSeconds")
		}
		q.maxAge = time.Duration(secs) * time.Second
	}

	switch c.QueryParam("sort") {
	case "", "id":
	case "recent":
		q.recent = true
	default:
		return q, NewValidationError("sort")
	}

	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return q, NewValidationError("limit")
		}
		q.limit = limit
	}

	return q, nil
}

// snapshot applies q to the reader's current state.
func snapshot(reader FleetReader, q snapshotQuery) VesselsResponse {
	vessels := reader.ReadFresh(q.maxAge)
	if q.recent {
		sort.SliceStable(vessels, func(i, j int) bool {
			return vessels[i].ObservedAt.After(vessels[j].ObservedAt)
		})
	}
	total := len(vessels)
	if q.limit > 0 && len(vessels) > q.limit {
		vessels = vessels[:q.limit]
	}

	resp := VesselsResponse{
		Vessels: vessels,
		Count:   len(vessels),
		Total:   total,
	}
	if t := reader.LastUpdate(); !t.IsZero() {
		resp.UpdatedAt = t.UnixMilli()
	}
	return resp
}
