package roads

import (
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/osm/queries"
)

// BuildQuery returns the Overpass QL query for every road way in b.
func BuildQuery(b geo.Bounds) string {
	return queries.NewOverpassBuilder().
		WithTimeout(queries.DefaultTimeout).
		WithWayInBbox(b.South, b.West, b.North, b.East, queries.Tag("highway", Classes...)).
		WithOutput("geom").
		Build()
}
