package roads

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders segments as GeoJSON LineStrings. Each feature
// carries the road tags plus id, type, name and the line style.
func FeatureCollection(segments []Segment) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range segments {
		line := make(orb.LineString, len(s.Coordinates))
		for i, c := range s.Coordinates {
			// GeoJSON positions are [lng, lat].
			line[i] = orb.Point{c[1], c[0]}
		}

		f := geojson.NewFeature(line)
		f.ID = s.ID
		for k, v := range s.Tags {
			f.Properties[k] = v
		}
		style := StyleFor(s.Type)
		f.Properties["id"] = s.ID
		f.Properties["type"] = s.Type
		if s.Name != "" {
			f.Properties["name"] = s.Name
		}
		f.Properties["stroke"] = style.Color
		f.Properties["stroke-width"] = style.Weight
		f.Properties["stroke-opacity"] = style.Opacity

		fc.Append(f)
	}
	return fc
}
