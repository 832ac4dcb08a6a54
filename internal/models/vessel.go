// Package models contains domain types for the vessel monitor.
package models

import "time"

// VesselObservation is one reported position of a vessel.
// Values are never mutated after construction; replace, don't edit.
type VesselObservation struct {
	ID               int64     `json:"id" msgpack:"id"`
	Name             string    `json:"name" msgpack:"name"`
	Latitude         float64   `json:"latitude" msgpack:"latitude"`
	Longitude        float64   `json:"longitude" msgpack:"longitude"`
	SpeedKnots       *float64  `json:"speedKnots,omitempty" msgpack:"speedKnots,omitempty"` // nil when the feed omits SOG
	ObservedAt       time.Time `json:"observedAt" msgpack:"observedAt"`
	VesselKind       string    `json:"vesselKind,omitempty" msgpack:"vesselKind,omitempty"`
	Destination      string    `json:"destination,omitempty" msgpack:"destination,omitempty"`
	EstimatedArrival time.Time `json:"estimatedArrival,omitempty" msgpack:"estimatedArrival,omitempty"`
}

// HasSpeed reports whether the feed supplied a speed over ground.
func (o VesselObservation) HasSpeed() bool {
	return o.SpeedKnots != nil
}

// Speed returns the speed over ground in knots, or 0 when unset.
func (o VesselObservation) Speed() float64 {
	if o.SpeedKnots == nil {
		return 0
	}
	return *o.SpeedKnots
}

// Age returns how long ago the observation was made relative to now.
func (o VesselObservation) Age(now time.Time) time.Duration {
	return now.Sub(o.ObservedAt)
}

// BoundingBox is a geographic rectangle as two [lat, lon] corners.
// It marshals to the nested-array form the feed expects: [[latMin, lonMin], [latMax, lonMax]].
type BoundingBox [2][2]float64

// NewBoundingBox builds a box from its south-west and north-east corners.
func NewBoundingBox(latMin, lonMin, latMax, lonMax float64) BoundingBox {
	return BoundingBox{{latMin, lonMin}, {latMax, lonMax}}
}

// GlobalBoundingBox covers the whole world.
func GlobalBoundingBox() BoundingBox {
	return NewBoundingBox(-90, -180, 90, 180)
}

// Valid reports whether both corners are within coordinate ranges and the box is non-empty.
func (b BoundingBox) Valid() bool {
	for _, c := range b {
		if c[0] < -90 || c[0] > 90 || c[1] < -180 || c[1] > 180 {
			return false
		}
	}
	return b[0] != b[1]
}
