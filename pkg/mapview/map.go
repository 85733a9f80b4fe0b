// Package mapview owns the pannable, zoomable 2D map state.
//
// A Map can only be created with a non-zero pixel size, so any projection
// issued through it happens after layout. Pan and zoom changes are announced
// synchronously on typed event buses.
package mapview

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/NERVsystems/roadoverlay/pkg/events"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
)

// ErrNoLayout is returned when a map is sized with a zero dimension.
var ErrNoLayout = errors.New("map container has no layout size")

// MoveEvent is published after the map center changes.
type MoveEvent struct {
	Center geo.Location
	Bounds geo.Bounds
}

// ZoomEvent is published after the zoom level changes.
type ZoomEvent struct {
	Zoom   float64
	Bounds geo.Bounds
}

// Options configures a new Map.
type Options struct {
	Center geo.Location
	Zoom   float64
	Width  int
	Height int
	Logger *slog.Logger
}

// Map is the map controller.
type Map struct {
	center geo.Location
	zoom   float64
	width  float64
	height float64

	moves  *events.Bus[MoveEvent]
	zooms  *events.Bus[ZoomEvent]
	logger *slog.Logger
}

// New creates a map with a completed layout.
func New(opts Options) (*Map, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrNoLayout, opts.Width, opts.Height)
	}
	if err := geo.ValidateCoords(opts.Center.Latitude, opts.Center.Longitude); err != nil {
		return nil, fmt.Errorf("invalid map center: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Map{
		center: opts.Center,
		zoom:   clampZoom(opts.Zoom),
		width:  float64(opts.Width),
		height: float64(opts.Height),
		moves:  events.NewBus[MoveEvent](),
		zooms:  events.NewBus[ZoomEvent](),
		logger: logger.With("component", "map"),
	}

	m.logger.Debug("map created",
		"center_lat", m.center.Latitude,
		"center_lng", m.center.Longitude,
		"zoom", m.zoom,
		"width", opts.Width,
		"height", opts.Height)

	return m, nil
}

// Project maps a coordinate to screen pixels under the current viewport.
// The map center projects to the screen midpoint.
func (m *Map) Project(lat, lng float64) (x, y float64) {
	wx, wy := toWorld(lat, lng, m.zoom)
	cx, cy := toWorld(m.center.Latitude, m.center.Longitude, m.zoom)
	return wx - cx + m.width/2, wy - cy + m.height/2
}

// Unproject maps screen pixels back to a coordinate.
func (m *Map) Unproject(x, y float64) geo.Location {
	cx, cy := toWorld(m.center.Latitude, m.center.Longitude, m.zoom)
	lat, lng := fromWorld(x-m.width/2+cx, y-m.height/2+cy, m.zoom)
	return geo.Location{Latitude: lat, Longitude: lng}
}

// Size returns the screen size in pixels.
func (m *Map) Size() (w, h float64) {
	return m.width, m.height
}

// Center returns the current map center.
func (m *Map) Center() geo.Location {
	return m.center
}

// Zoom returns the current zoom level.
func (m *Map) Zoom() float64 {
	return m.zoom
}

// Bounds returns the visible rectangle.
func (m *Map) Bounds() geo.Bounds {
	nw := m.Unproject(0, 0)
	se := m.Unproject(m.width, m.height)
	return geo.Bounds{
		North: nw.Latitude,
		South: se.Latitude,
		East:  math.Min(se.Longitude, 180),
		West:  math.Max(nw.Longitude, -180),
	}
}

// Pan moves the view by dx, dy screen pixels.
func (m *Map) Pan(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	next := m.Unproject(m.width/2+dx, m.height/2+dy)
	m.SetCenter(next)
}

// SetCenter recenters the map.
func (m *Map) SetCenter(loc geo.Location) {
	loc.Latitude = math.Max(-MaxLatitude, math.Min(MaxLatitude, loc.Latitude))
	loc.Longitude = wrapLongitude(loc.Longitude)
	if loc == m.center {
		return
	}
	m.center = loc
	m.moves.Publish(MoveEvent{Center: m.center, Bounds: m.Bounds()})
}

// SetZoom changes the zoom level, clamped to [MinZoom, MaxZoom].
func (m *Map) SetZoom(z float64) {
	z = clampZoom(z)
	if z == m.zoom {
		return
	}
	m.zoom = z
	m.logger.Debug("zoom changed", "zoom", z)
	m.zooms.Publish(ZoomEvent{Zoom: m.zoom, Bounds: m.Bounds()})
}

// ZoomBy adjusts the zoom level by delta.
func (m *Map) ZoomBy(delta float64) {
	m.SetZoom(m.zoom + delta)
}

// Resize updates the screen size. A zero dimension is rejected.
func (m *Map) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrNoLayout, width, height)
	}
	if float64(width) == m.width && float64(height) == m.height {
		return nil
	}
	m.width, m.height = float64(width), float64(height)
	m.moves.Publish(MoveEvent{Center: m.center, Bounds: m.Bounds()})
	return nil
}

// OnMove registers a listener for pan events.
func (m *Map) OnMove(fn func(MoveEvent)) func() {
	return m.moves.Subscribe(fn)
}

// OnZoom registers a listener for zoom events.
func (m *Map) OnZoom(fn func(ZoomEvent)) func() {
	return m.zooms.Subscribe(fn)
}

// Close drops all listeners.
func (m *Map) Close() {
	m.moves.Close()
	m.zooms.Close()
	m.logger.Debug("map closed")
}
