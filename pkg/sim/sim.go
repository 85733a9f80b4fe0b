// Package sim runs the overlay without a display. Each frame produces an
// immutable Snapshot that other goroutines can read or subscribe to.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/NERVsystems/roadoverlay/pkg/events"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/loop"
	"github.com/NERVsystems/roadoverlay/pkg/mapview"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/overlay"
	"github.com/NERVsystems/roadoverlay/pkg/scene"
)

// ErrStopped is returned by Do once Run has returned.
var ErrStopped = errors.New("simulation stopped")

// Vehicle is one entity as of a frame.
type Vehicle struct {
	ID      string     `json:"id"`
	Lat     float64    `json:"lat"`
	Lng     float64    `json:"lng"`
	Heading float64    `json:"heading"`
	Speed   float64    `json:"speed"`
	Scene   scene.Vec3 `json:"scene"`
}

// Snapshot is the simulation state after one frame. It is never mutated
// after publication.
type Snapshot struct {
	Frame    uint64       `json:"frame"`
	Time     time.Time    `json:"time"`
	Center   geo.Location `json:"center"`
	Zoom     float64      `json:"zoom"`
	Bounds   geo.Bounds   `json:"bounds"`
	Vehicles []Vehicle    `json:"vehicles"`
}

// Options configures a Simulation.
type Options struct {
	Map    mapview.Options
	FPS    int
	Seeds  []scene.Seed
	Logger *slog.Logger
}

// Simulation owns a mounted overlay and the loop that drives it.
type Simulation struct {
	overlay  *overlay.Overlay
	loop     *loop.Loop
	recorder *recorder
	current  atomic.Pointer[Snapshot]
	updates  *events.Bus[*Snapshot]
	lastBnc  uint64
	stopped  chan struct{}
	logger   *slog.Logger
}

// New mounts the overlay and publishes the initial snapshot.
func New(opts Options) (*Simulation, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Simulation{
		recorder: newRecorder(),
		updates:  events.NewBus[*Snapshot](),
		stopped:  make(chan struct{}),
		logger:   opts.Logger.With("component", "sim"),
	}

	l, err := loop.New(opts.FPS, s.frame, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating loop: %w", err)
	}
	s.loop = l

	o, err := overlay.Mount(overlay.Options{
		Map:      opts.Map,
		Renderer: s.recorder,
		Seeds:    opts.Seeds,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.overlay = o

	s.publish()
	return s, nil
}

// Run drives the simulation until ctx is done, then unmounts the overlay.
// It must be called at most once.
func (s *Simulation) Run(ctx context.Context) error {
	defer func() {
		close(s.stopped)
		s.overlay.Close()
		s.updates.Close()
	}()
	return s.loop.Run(ctx)
}

// Snapshot returns the latest published snapshot.
func (s *Simulation) Snapshot() *Snapshot {
	return s.current.Load()
}

// Subscribe registers fn for every new snapshot. fn runs on the loop
// goroutine and must not block.
func (s *Simulation) Subscribe(fn func(*Snapshot)) func() {
	return s.updates.Subscribe(fn)
}

// Do runs fn against the overlay on the loop goroutine and waits for it.
// The next snapshot reflects any change fn makes. After Run returns, Do
// fails with ErrStopped without running fn.
func (s *Simulation) Do(ctx context.Context, fn func(*overlay.Overlay)) error {
	done := make(chan struct{})
	s.loop.Post(func() {
		fn(s.overlay)
		s.publish()
		close(done)
	})
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulation) frame() {
	s.overlay.Frame()

	bounces := s.overlay.Scene.Bounces()
	monitoring.RecordFrame(int(bounces - s.lastBnc))
	s.lastBnc = bounces

	s.publish()
}

func (s *Simulation) publish() {
	m := s.overlay.Map
	entities := s.overlay.Scene.Entities()

	snap := &Snapshot{
		Frame:    s.overlay.Scene.Frames(),
		Time:     time.Now().UTC(),
		Center:   m.Center(),
		Zoom:     m.Zoom(),
		Bounds:   m.Bounds(),
		Vehicles: make([]Vehicle, len(entities)),
	}
	for i, e := range entities {
		snap.Vehicles[i] = Vehicle{
			ID:      e.ID,
			Lat:     e.Lat,
			Lng:     e.Lng,
			Heading: e.Heading,
			Speed:   e.Speed,
			Scene:   s.recorder.position(e.ID),
		}
	}

	s.current.Store(snap)
	s.updates.Publish(snap)
}
