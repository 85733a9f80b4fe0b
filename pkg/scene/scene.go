// Package scene holds the overlay's moving entities and keeps their rendered
// positions in step with the map projection.
package scene

import (
	"log/slog"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/mapview"
)

// Handle is a rendering resource owned by one entity.
type Handle interface {
	SetPosition(Vec3)
	SetRotation(radians float64)
	Release()
}

// Renderer allocates entity handles.
type Renderer interface {
	NewHandle(id string) Handle
}

// View is the part of the map the scene depends on.
type View interface {
	Projector
	Bounds() geo.Bounds
	OnMove(func(mapview.MoveEvent)) func()
	OnZoom(func(mapview.ZoomEvent)) func()
}

// Scene owns the entity set. All methods must be called from the goroutine
// that drives the map.
type Scene struct {
	view     View
	entities []*Entity
	unsubs   []func()
	frames   uint64
	bounces  uint64
	closed   bool
	logger   *slog.Logger
}

// New allocates a handle per entity, subscribes to map changes and renders
// the initial positions.
func New(view View, renderer Renderer, entities []Entity, logger *slog.Logger) *Scene {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scene{
		view:   view,
		logger: logger.With("component", "scene"),
	}

	for i := range entities {
		e := entities[i]
		e.handle = renderer.NewHandle(e.ID)
		s.entities = append(s.entities, &e)
	}

	s.unsubs = append(s.unsubs,
		view.OnMove(func(mapview.MoveEvent) { s.Sync() }),
		view.OnZoom(func(mapview.ZoomEvent) { s.Sync() }),
	)

	s.Sync()
	s.logger.Debug("scene created", "entities", len(s.entities))
	return s
}

// Frame advances every entity one step and re-renders it.
func (s *Scene) Frame() {
	if s.closed {
		return
	}
	b := s.view.Bounds()
	for _, e := range s.entities {
		if Step(e, b) {
			s.bounces++
			s.logger.Debug("entity bounced", "id", e.ID, "heading", e.Heading)
		}
		s.render(e)
	}
	s.frames++
}

// Sync re-projects every entity under the current viewport.
func (s *Scene) Sync() {
	if s.closed {
		return
	}
	for _, e := range s.entities {
		s.render(e)
	}
}

func (s *Scene) render(e *Entity) {
	e.handle.SetPosition(ToScene(s.view, e.Lat, e.Lng))
	e.handle.SetRotation(e.Heading)
}

// Entities returns a copy of the current entity state.
func (s *Scene) Entities() []Entity {
	out := make([]Entity, len(s.entities))
	for i, e := range s.entities {
		out[i] = *e
		out[i].handle = nil
	}
	return out
}

// Frames returns the number of frames stepped.
func (s *Scene) Frames() uint64 {
	return s.frames
}

// Bounces returns the number of heading reversals so far.
func (s *Scene) Bounces() uint64 {
	return s.bounces
}

// Close unsubscribes from the map and releases every handle in reverse
// allocation order. It is safe to call more than once.
func (s *Scene) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for i := len(s.unsubs) - 1; i >= 0; i-- {
		s.unsubs[i]()
	}
	s.unsubs = nil

	for i := len(s.entities) - 1; i >= 0; i-- {
		s.entities[i].handle.Release()
	}
	s.logger.Debug("scene closed", "frames", s.frames)
}
