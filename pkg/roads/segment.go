// Package roads turns Overpass road ways into styled segments for the map.
package roads

import (
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/osm"
)

// UnknownType is the road class of ways without a highway tag.
const UnknownType = "unknown"

// Classes are the highway values fetched from upstream, major roads first.
var Classes = []string{
	"motorway",
	"trunk",
	"primary",
	"secondary",
	"tertiary",
	"unclassified",
	"residential",
	"service",
	"living_street",
}

// Segment is one road way. Coordinates are [lat, lng] pairs in way order.
type Segment struct {
	ID          int64             `json:"id"`
	Type        string            `json:"type"`
	Name        string            `json:"name,omitempty"`
	Coordinates [][2]float64      `json:"coordinates"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Result is the success body shared by the HTTP API and the fetch_roads tool.
type Result struct {
	Success   bool       `json:"success"`
	Bounds    geo.Bounds `json:"bounds"`
	RoadCount int        `json:"roadCount"`
	Roads     []Segment  `json:"roads"`
}

// NewResult wraps the segments fetched for b.
func NewResult(b geo.Bounds, segs []Segment) Result {
	if segs == nil {
		segs = []Segment{}
	}
	return Result{Success: true, Bounds: b, RoadCount: len(segs), Roads: segs}
}

// Normalize converts the ways of an Overpass response into segments.
// Elements that are not ways or carry no geometry are skipped.
func Normalize(resp osm.OverpassResponse) []Segment {
	segments := make([]Segment, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		if el.Type != "way" || len(el.Geometry) == 0 {
			continue
		}

		coords := make([][2]float64, len(el.Geometry))
		for i, p := range el.Geometry {
			coords[i] = [2]float64{p.Lat, p.Lon}
		}

		typ := el.Tags["highway"]
		if typ == "" {
			typ = UnknownType
		}

		segments = append(segments, Segment{
			ID:          el.ID,
			Type:        typ,
			Name:        el.Tags["name"],
			Coordinates: coords,
			Tags:        el.Tags,
		})
	}
	return segments
}
