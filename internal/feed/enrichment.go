package feed

import (
	"math/rand"
	"time"
)

// VesselKinds and Destinations are the demonstration values drawn during enrichment.
var (
	VesselKinds  = []string{"Cargo", "Tanker", "Passenger", "Tug", "Fishing", "Container Ship"}
	Destinations = []string{"Balboa Port", "Cristobal Port", "Manzanillo Terminal", "Rodman Port", "En route"}
)

// Enrichment holds the attributes the position feed does not carry.
type Enrichment struct {
	VesselKind    string
	Destination   string
	ArrivalOffset time.Duration // added to the observation time to get the ETA
}

// Enrich derives enrichment fields from a vessel id. A fresh generator is seeded from the
// id on every call, so the result depends on nothing else and is safe to call concurrently.
func Enrich(id int64) Enrichment {
	seed := id % (1<<32 - 1)
	if seed < 0 {
		seed = -seed
	}
	r := rand.New(rand.NewSource(seed))

	kind := VesselKinds[r.Intn(len(VesselKinds))]
	dest := Destinations[r.Intn(len(Destinations))]
	hours := 1 + r.Intn(47)

	return Enrichment{
		VesselKind:    kind,
		Destination:   dest,
		ArrivalOffset: time.Duration(hours) * time.Hour,
	}
}
