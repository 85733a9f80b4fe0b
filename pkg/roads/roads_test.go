package roads

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/osm"
)

const primaryWay = `{
  "version": 0.6,
  "elements": [
    {"type": "node", "id": 1, "lat": 37.5, "lon": -122.5},
    {
      "type": "way",
      "id": 42,
      "tags": {"highway": "primary", "name": "Main Street"},
      "geometry": [{"lat": 37.40, "lon": -122.10}, {"lat": 37.41, "lon": -122.11}]
    }
  ]
}`

var testBounds = geo.Bounds{North: 37.5, South: 37.3, East: -122.0, West: -122.2}

func newStub(t *testing.T, handler http.HandlerFunc) *osm.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return osm.NewClient(osm.Options{OverpassURL: server.URL, RPS: 1000, Burst: 100})
}

func TestBuildQuery(t *testing.T) {
	want := `[out:json][timeout:25];(way(37.300000,-122.200000,37.500000,-122.000000)` +
		`["highway"~"^(motorway|trunk|primary|secondary|tertiary|unclassified|residential|service|living_street)$"];);out geom;`
	if got := BuildQuery(testBounds); got != want {
		t.Errorf("BuildQuery:\n got %s\nwant %s", got, want)
	}
}

func TestNormalize(t *testing.T) {
	resp := osm.OverpassResponse{Elements: []osm.OverpassElement{
		{ID: 1, Type: "node", Lat: 1, Lon: 1},
		{ID: 2, Type: "way"},
		{ID: 3, Type: "way", Geometry: []osm.LatLon{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}}},
	}}

	segs := Normalize(resp)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	s := segs[0]
	if s.ID != 3 || s.Type != UnknownType || s.Name != "" {
		t.Errorf("unexpected segment %+v", s)
	}
	if s.Coordinates[1] != [2]float64{3, 4} {
		t.Errorf("coordinates should be [lat, lng], got %v", s.Coordinates)
	}
}

func TestStyleFor(t *testing.T) {
	for _, class := range Classes {
		if _, ok := Styles[class]; !ok {
			t.Errorf("no style for %s", class)
		}
	}
	if StyleFor("footway") != Styles[UnknownType] {
		t.Error("unrecognized class should fall back to unknown")
	}
	if StyleFor("primary") == Styles[UnknownType] {
		t.Error("primary should have its own style")
	}
}

func TestFetchRoundTrip(t *testing.T) {
	var gotQuery string
	client := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(body))
		gotQuery = values.Get("data")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(primaryWay))
	})

	svc := NewService(client, Options{})
	segs, err := svc.Fetch(context.Background(), testBounds)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotQuery != BuildQuery(testBounds) {
		t.Errorf("upstream received %q", gotQuery)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	s := segs[0]
	if s.Type != "primary" {
		t.Errorf("type = %s", s.Type)
	}
	if s.Name != "Main Street" {
		t.Errorf("name = %s", s.Name)
	}
	if len(s.Coordinates) != 2 {
		t.Errorf("coordinates = %v", s.Coordinates)
	}
	if got, want := StyleFor(s.Type), Styles["primary"]; got != want {
		t.Errorf("style = %+v, want %+v", got, want)
	}
}

func TestFetchUpstreamFailure(t *testing.T) {
	long := strings.Repeat("x", 2000)
	client := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		w.Write([]byte(long))
	})

	_, err := NewService(client, Options{}).Fetch(context.Background(), testBounds)
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *core.Error, got %v", err)
	}
	if cerr.Code != string(core.ErrServiceTimeout) {
		t.Errorf("code = %s", cerr.Code)
	}
	if cerr.Status != http.StatusGatewayTimeout {
		t.Errorf("status = %d", cerr.Status)
	}
	if strings.Count(cerr.Message, "x") != maxDetailLen {
		t.Errorf("detail not truncated to %d chars: %d", maxDetailLen, strings.Count(cerr.Message, "x"))
	}
	if core.IsValidation(err) {
		t.Error("upstream failure must not be a validation error")
	}
}

func TestTruncateDetail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "status 500", "status 500"},
		{"exact", strings.Repeat("a", maxDetailLen), strings.Repeat("a", maxDetailLen)},
		{"ascii", strings.Repeat("a", maxDetailLen+10), strings.Repeat("a", maxDetailLen) + "..."},
		{"multibyte", strings.Repeat("é", maxDetailLen+1), strings.Repeat("é", maxDetailLen) + "..."},
		{"rune straddles byte limit", "a" + strings.Repeat("日", maxDetailLen), "a" + strings.Repeat("日", maxDetailLen-1) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateDetail(tt.in)
			if got != tt.want {
				t.Errorf("truncateDetail = %d runes, want %d", utf8.RuneCountInString(got), utf8.RuneCountInString(tt.want))
			}
			if !utf8.ValidString(got) {
				t.Error("truncated detail is not valid UTF-8")
			}
		})
	}
}

func TestFetchUpstreamFailureMultibyteDetail(t *testing.T) {
	client := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("ü", 1000)))
	})

	_, err := NewService(client, Options{}).Fetch(context.Background(), testBounds)
	var cerr *core.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *core.Error, got %v", err)
	}
	if !utf8.ValidString(cerr.Message) {
		t.Errorf("message is not valid UTF-8: %q", cerr.Message)
	}
	if got := strings.Count(cerr.Message, "ü"); got != maxDetailLen {
		t.Errorf("detail has %d runes, want %d", got, maxDetailLen)
	}
}

func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client := osm.NewClient(osm.Options{OverpassURL: serverURL, RPS: 1000, Burst: 100})
	_, err := NewService(client, Options{}).Fetch(context.Background(), testBounds)
	var cerr *core.Error
	if !errors.As(err, &cerr) || cerr.Code != string(core.ErrNetworkError) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	client := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	_, err := NewService(client, Options{}).Fetch(context.Background(), testBounds)
	var cerr *core.Error
	if !errors.As(err, &cerr) || cerr.Code != string(core.ErrParseError) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFetchCache(t *testing.T) {
	tests := []struct {
		name      string
		cacheSize int
		wantCalls int32
	}{
		{"disabled", 0, 2},
		{"enabled", 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newStub(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Write([]byte(primaryWay))
			})

			svc := NewService(client, Options{CacheSize: tt.cacheSize})
			for i := 0; i < 2; i++ {
				if _, err := svc.Fetch(context.Background(), testBounds); err != nil {
					t.Fatalf("Fetch %d: %v", i, err)
				}
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFeatureCollection(t *testing.T) {
	segs := []Segment{{
		ID:          7,
		Type:        "residential",
		Name:        "Elm",
		Coordinates: [][2]float64{{37.1, -122.1}, {37.2, -122.2}},
		Tags:        map[string]string{"highway": "residential", "surface": "asphalt"},
	}}

	fc := FeatureCollection(segs)
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	f := fc.Features[0]
	if f.Geometry.GeoJSONType() != "LineString" {
		t.Errorf("geometry type = %s", f.Geometry.GeoJSONType())
	}
	bound := f.Geometry.Bound()
	if bound.Min[0] != -122.2 || bound.Max[1] != 37.2 {
		t.Errorf("positions should be [lng, lat], bound %v", bound)
	}
	if f.Properties["stroke"] != Styles["residential"].Color {
		t.Errorf("stroke = %v", f.Properties["stroke"])
	}
	if f.Properties["surface"] != "asphalt" || f.Properties["name"] != "Elm" {
		t.Errorf("properties = %v", f.Properties)
	}
}
