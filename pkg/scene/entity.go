package scene

import (
	"math"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
)

// Entity is a simulated vehicle.
type Entity struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"` // radians, 0 = north
	Speed   float64 `json:"speed"`   // degrees per frame

	handle Handle
}

// Step advances e by one frame at constant heading. When the new position
// falls outside b the heading is reversed; the move itself is kept.
func Step(e *Entity, b geo.Bounds) (bounced bool) {
	e.Lat += math.Cos(e.Heading) * e.Speed
	e.Lng += math.Sin(e.Heading) * e.Speed

	if !b.Contains(e.Lat, e.Lng) {
		e.Heading += math.Pi
		return true
	}
	return false
}

// Seed places an entity relative to a reference point.
type Seed struct {
	ID      string
	DLat    float64
	DLng    float64
	Heading float64
	Speed   float64
}

// DefaultSeeds is the fixed starting fleet.
var DefaultSeeds = []Seed{
	{ID: "vehicle-1", DLat: 0.002, DLng: -0.003, Heading: 0, Speed: 0.00002},
	{ID: "vehicle-2", DLat: -0.001, DLng: 0.002, Heading: math.Pi / 2, Speed: 0.000015},
	{ID: "vehicle-3", DLat: 0.003, DLng: 0.001, Heading: math.Pi, Speed: 0.000025},
	{ID: "vehicle-4", DLat: -0.002, DLng: -0.002, Heading: 3 * math.Pi / 2, Speed: 0.00001},
	{ID: "vehicle-5", DLat: 0, DLng: 0, Heading: math.Pi / 4, Speed: 0.00003},
}

// SeedEntities builds entities around center.
func SeedEntities(center geo.Location, seeds []Seed) []Entity {
	out := make([]Entity, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, Entity{
			ID:      s.ID,
			Lat:     center.Latitude + s.DLat,
			Lng:     center.Longitude + s.DLng,
			Heading: s.Heading,
			Speed:   s.Speed,
		})
	}
	return out
}
