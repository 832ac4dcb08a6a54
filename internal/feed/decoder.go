package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vessel-monitor/backend/internal/models"
)

// Decode outcomes. ErrIgnoredKind is expected traffic, not a fault.
var (
	ErrMalformed         = errors.New("malformed feed message")
	ErrIgnoredKind       = errors.New("message kind not consumed")
	ErrMissingPosition   = errors.New("position report without latitude/longitude")
	ErrOutOfRange        = errors.New("coordinates out of range")
	ErrMissingIdentifier = errors.New("position report without vessel identifier")
)

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// Decoder turns raw feed messages into observations. It holds no mutable state.
type Decoder struct {
	now func() time.Time
}

// NewDecoder creates a decoder that stamps observations lacking a feed time with time.Now.
func NewDecoder() *Decoder {
	return NewDecoderWithClock(time.Now)
}

// NewDecoderWithClock creates a decoder with an injected ingestion clock.
func NewDecoderWithClock(now func() time.Time) *Decoder {
	return &Decoder{now: now}
}

// Decode returns the observation carried by raw, or false when there is none.
func (d *Decoder) Decode(raw []byte) (models.VesselObservation, bool) {
	obs, err := d.Parse(raw)
	return obs, err == nil
}

// Parse is Decode with the reason for rejection. The returned error is one of the
// package sentinels, possibly wrapped.
func (d *Decoder) Parse(raw []byte) (models.VesselObservation, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.VesselObservation{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if env.kind() != MessageTypePositionReport {
		return models.VesselObservation{}, ErrIgnoredKind
	}

	pos, err := positionOf(env.Message)
	if err != nil {
		return models.VesselObservation{}, err
	}

	lat, okLat := parseFloat(pos.Latitude)
	lon, okLon := parseFloat(pos.Longitude)
	if !okLat || !okLon {
		return models.VesselObservation{}, ErrMissingPosition
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.VesselObservation{}, fmt.Errorf("%w: lat=%v lon=%v", ErrOutOfRange, lat, lon)
	}

	id, ok := identifierOf(env.MetaData, pos)
	if !ok {
		return models.VesselObservation{}, ErrMissingIdentifier
	}

	observedAt := d.observedAt(env.MetaData.TimeUTC)
	extra := Enrich(id)
	if kind := strings.TrimSpace(env.MetaData.ShipType); kind != "" {
		extra.VesselKind = kind
	}
	if dest := strings.TrimSpace(env.MetaData.Destination); dest != "" {
		extra.Destination = dest
	}

	obs := models.VesselObservation{
		ID:               id,
		Name:             strings.TrimSpace(env.MetaData.ShipName),
		Latitude:         lat,
		Longitude:        lon,
		ObservedAt:       observedAt,
		VesselKind:       extra.VesselKind,
		Destination:      extra.Destination,
		EstimatedArrival: observedAt.Add(extra.ArrivalOffset),
	}
	if sog, ok := parseFloat(pos.Sog); ok {
		obs.SpeedKnots = &sog
	}

	return obs, nil
}

// positionOf extracts the position payload, nested under "PositionReport" or flat.
func positionOf(msg json.RawMessage) (*positionReport, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return nil, ErrMissingPosition
	}

	var nested nestedMessage
	if err := json.Unmarshal(msg, &nested); err != nil {
		return nil, fmt.Errorf("%w: message body: %v", ErrMalformed, err)
	}
	if nested.PositionReport != nil {
		return nested.PositionReport, nil
	}

	var flat positionReport
	if err := json.Unmarshal(msg, &flat); err != nil {
		return nil, fmt.Errorf("%w: message body: %v", ErrMalformed, err)
	}
	return &flat, nil
}

func identifierOf(meta metaData, pos *positionReport) (int64, bool) {
	for _, raw := range []json.RawMessage{meta.MMSI, meta.VesselID, pos.UserID} {
		if id, ok := parseID(raw); ok {
			return id, true
		}
	}
	return 0, false
}

func (d *Decoder) observedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return d.now().UTC()
}
