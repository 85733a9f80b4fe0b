// Package overlay mounts the map, the vehicle scene and the road layer as
// one unit and tears them down in reverse order.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/NERVsystems/roadoverlay/pkg/mapview"
	"github.com/NERVsystems/roadoverlay/pkg/roadlayer"
	"github.com/NERVsystems/roadoverlay/pkg/scene"
)

// ErrNoRoadLayer is returned by FetchRoads when no road source was mounted.
var ErrNoRoadLayer = errors.New("overlay has no road layer")

// RoadOptions wires the road layer. All fields are required.
type RoadOptions struct {
	Source  roadlayer.Source
	Canvas  roadlayer.Canvas
	Alerter roadlayer.Alerter
	Poster  roadlayer.Poster
}

// Options configures Mount.
type Options struct {
	Map      mapview.Options
	Renderer scene.Renderer
	// Seeds defaults to scene.DefaultSeeds around the map center.
	Seeds []scene.Seed
	// Roads is optional. Without it the overlay has no road layer.
	Roads  *RoadOptions
	Logger *slog.Logger
}

// Overlay is a mounted map with its scene and road layer. Like its parts,
// it must be driven from a single goroutine.
type Overlay struct {
	Map   *mapview.Map
	Scene *scene.Scene
	Roads *roadlayer.Layer

	release []func()
	closed  bool
	logger  *slog.Logger
}

// Mount creates the map first, then the scene against the laid-out map,
// then the road layer. If any step fails, what was already acquired is
// released before returning.
func Mount(opts Options) (*Overlay, error) {
	if opts.Renderer == nil {
		return nil, errors.New("overlay: renderer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Map.Logger == nil {
		opts.Map.Logger = opts.Logger
	}
	if opts.Seeds == nil {
		opts.Seeds = scene.DefaultSeeds
	}

	o := &Overlay{logger: opts.Logger.With("component", "overlay")}

	m, err := mapview.New(opts.Map)
	if err != nil {
		return nil, fmt.Errorf("mounting map: %w", err)
	}
	o.Map = m
	o.release = append(o.release, m.Close)

	o.Scene = scene.New(m, opts.Renderer, scene.SeedEntities(m.Center(), opts.Seeds), opts.Logger)
	o.release = append(o.release, o.Scene.Close)

	if r := opts.Roads; r != nil {
		if r.Source == nil || r.Canvas == nil || r.Alerter == nil || r.Poster == nil {
			o.Close()
			return nil, errors.New("overlay: road options are incomplete")
		}
		o.Roads = roadlayer.New(r.Source, r.Canvas, r.Alerter, r.Poster, opts.Logger)
		o.release = append(o.release, o.Roads.Close)
	}

	o.logger.Info("overlay mounted", "entities", len(opts.Seeds), "roads", o.Roads != nil)
	return o, nil
}

// Frame advances the scene by one frame.
func (o *Overlay) Frame() {
	o.Scene.Frame()
}

// FetchRoads requests the roads under the current viewport.
func (o *Overlay) FetchRoads(ctx context.Context) error {
	if o.Roads == nil {
		return ErrNoRoadLayer
	}
	return o.Roads.Request(ctx, o.Map.Bounds())
}

// Close releases every part in reverse order of acquisition. It is safe to
// call more than once.
func (o *Overlay) Close() {
	if o.closed {
		return
	}
	o.closed = true
	for i := len(o.release) - 1; i >= 0; i-- {
		o.release[i]()
	}
	o.release = nil
	o.logger.Info("overlay unmounted")
}
