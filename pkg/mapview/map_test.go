package mapview

import (
	"errors"
	"math"
	"testing"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
)

var sanFrancisco = geo.Location{Latitude: 37.7749, Longitude: -122.4194}

func newTestMap(t *testing.T) *Map {
	t.Helper()
	m, err := New(Options{Center: sanFrancisco, Zoom: 13, Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestNewRejectsZeroLayout(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 600},
		{"zero height", 800, 0},
		{"both zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{Center: sanFrancisco, Zoom: 13, Width: tt.width, Height: tt.height})
			if !errors.Is(err, ErrNoLayout) {
				t.Errorf("expected ErrNoLayout, got %v", err)
			}
		})
	}
}

func TestProjectCenterIsScreenMidpoint(t *testing.T) {
	m := newTestMap(t)
	x, y := m.Project(sanFrancisco.Latitude, sanFrancisco.Longitude)
	if x != 400 || y != 300 {
		t.Errorf("center projected to (%v, %v), want (400, 300)", x, y)
	}
}

func TestProjectUnprojectRoundTrip(t *testing.T) {
	m := newTestMap(t)
	lat, lng := 37.78, -122.41

	x, y := m.Project(lat, lng)
	back := m.Unproject(x, y)

	if math.Abs(back.Latitude-lat) > 1e-9 || math.Abs(back.Longitude-lng) > 1e-9 {
		t.Errorf("round trip gave %+v, want (%v, %v)", back, lat, lng)
	}
}

func TestBoundsContainCenter(t *testing.T) {
	m := newTestMap(t)
	b := m.Bounds()

	if b.North <= b.South || b.East <= b.West {
		t.Fatalf("inverted bounds: %+v", b)
	}
	if !b.Contains(sanFrancisco.Latitude, sanFrancisco.Longitude) {
		t.Errorf("bounds %+v do not contain center", b)
	}
}

func TestPanPublishesMove(t *testing.T) {
	m := newTestMap(t)

	var got []MoveEvent
	unsub := m.OnMove(func(e MoveEvent) { got = append(got, e) })
	defer unsub()

	before := m.Center()
	m.Pan(100, 0)

	if len(got) != 1 {
		t.Fatalf("expected 1 move event, got %d", len(got))
	}
	if m.Center().Longitude <= before.Longitude {
		t.Errorf("panning right should move center east: %v -> %v", before.Longitude, m.Center().Longitude)
	}
	if got[0].Bounds != m.Bounds() {
		t.Errorf("event bounds %+v differ from map bounds %+v", got[0].Bounds, m.Bounds())
	}

	m.Pan(0, 0)
	if len(got) != 1 {
		t.Error("zero pan should not publish")
	}
}

func TestZoomClampsAndPublishes(t *testing.T) {
	m := newTestMap(t)

	var zooms []float64
	m.OnZoom(func(e ZoomEvent) { zooms = append(zooms, e.Zoom) })

	m.ZoomBy(1)
	m.SetZoom(40)
	m.SetZoom(40)

	if len(zooms) != 2 {
		t.Fatalf("expected 2 zoom events, got %v", zooms)
	}
	if zooms[0] != 14 || zooms[1] != MaxZoom {
		t.Errorf("unexpected zoom sequence: %v", zooms)
	}
}

func TestZoomChangesProjection(t *testing.T) {
	m := newTestMap(t)
	lat, lng := 37.78, -122.41

	x1, _ := m.Project(lat, lng)
	m.ZoomBy(1)
	x2, _ := m.Project(lat, lng)

	d1 := x1 - 400
	d2 := x2 - 400
	if math.Abs(d2-2*d1) > 1e-6 {
		t.Errorf("offset from center should double per zoom level: %v -> %v", d1, d2)
	}
}

func TestResize(t *testing.T) {
	m := newTestMap(t)

	if err := m.Resize(0, 10); !errors.Is(err, ErrNoLayout) {
		t.Errorf("expected ErrNoLayout, got %v", err)
	}

	moved := 0
	m.OnMove(func(MoveEvent) { moved++ })
	if err := m.Resize(1024, 768); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if w, h := m.Size(); w != 1024 || h != 768 {
		t.Errorf("size = %vx%v", w, h)
	}
	if moved != 1 {
		t.Errorf("expected resize to publish one move, got %d", moved)
	}
}
