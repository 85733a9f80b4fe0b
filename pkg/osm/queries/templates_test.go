package queries

import "testing"

func TestOverpassBuilder_Simple(t *testing.T) {
	q := NewOverpassBuilder().
		WithWayInBbox(1, 2, 3, 4, Tag("highway", "primary")).
		Build()
	expected := `[out:json][timeout:25];(way(1.000000,2.000000,3.000000,4.000000)["highway"="primary"];);out body;`
	if q != expected {
		t.Errorf("unexpected query: %s", q)
	}
}

func TestOverpassBuilder_GeomOutputNoTimeout(t *testing.T) {
	q := NewOverpassBuilder().
		WithTimeout(0).
		WithWayInBbox(0, 0, 1, 1, Tag("highway")).
		WithOutput("geom").
		Build()
	expected := `[out:json];(way(0.000000,0.000000,1.000000,1.000000)["highway"];);out geom;`
	if q != expected {
		t.Errorf("unexpected query: %s", q)
	}
}

func TestTagFilterRegex(t *testing.T) {
	tests := []struct {
		name   string
		filter TagFilter
		want   string
	}{
		{"presence", Tag("highway"), `["highway"]`},
		{"equality", Tag("highway", "primary"), `["highway"="primary"]`},
		{"alternation", Tag("highway", "primary", "living_street"), `["highway"~"^(primary|living_street)$"]`},
		{"escaped", Tag("ref", "A.1", "B+2"), `["ref"~"^(A\\.1|B\\+2)$"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
