package osm

// LatLon is a geometry vertex as returned with `out geom`.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OverpassElement represents an element returned from the Overpass API
type OverpassElement struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Nodes    []int64           `json:"nodes,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
}

// OverpassResponse is the top-level Overpass JSON document.
type OverpassResponse struct {
	Version   float64           `json:"version"`
	Generator string            `json:"generator"`
	Remark    string            `json:"remark,omitempty"`
	Elements  []OverpassElement `json:"elements"`
}
