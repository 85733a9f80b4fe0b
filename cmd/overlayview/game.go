package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/hajimehoshi/bitmapfont/v4"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/NERVsystems/roadoverlay/pkg/loop"
	"github.com/NERVsystems/roadoverlay/pkg/mapview"
	"github.com/NERVsystems/roadoverlay/pkg/overlay"
	"github.com/NERVsystems/roadoverlay/pkg/roadlayer"
)

const (
	panStep  = 8.0
	gridStep = 64.0
)

// Game hosts a mounted overlay. ebiten calls Update and Draw from one
// goroutine, which is the overlay's logic goroutine; road fetch results
// reach it through queue.
type Game struct {
	ctx     context.Context
	overlay *overlay.Overlay
	queue   *loop.Queue
	sprites *spriteRenderer
	canvas  *roadCanvas
	hud     *hud
	face    text.Face
	logger  *slog.Logger

	outsideW, outsideH atomic.Int64
	unsubscribe        func()
}

func newGame(ctx context.Context, source roadlayer.Source, mapOpts mapview.Options, logger *slog.Logger) (*Game, error) {
	g := &Game{
		ctx:     ctx,
		queue:   &loop.Queue{},
		sprites: &spriteRenderer{},
		canvas:  &roadCanvas{},
		hud:     newHUD(),
		face:    text.NewGoXFace(bitmapfont.Face),
		logger:  logger.With("component", "viewer"),
	}

	o, err := overlay.Mount(overlay.Options{
		Map:      mapOpts,
		Renderer: g.sprites,
		Roads: &overlay.RoadOptions{
			Source:  source,
			Canvas:  g.canvas,
			Alerter: g.hud,
			Poster:  g.queue,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	g.overlay = o
	g.unsubscribe = o.Roads.OnChange(g.hud.setState)
	g.outsideW.Store(int64(mapOpts.Width))
	g.outsideH.Store(int64(mapOpts.Height))
	return g, nil
}

// Update drains finished fetches, applies input and advances the scene.
func (g *Game) Update() error {
	g.queue.Drain()

	if err := g.applyLayout(); err != nil {
		return err
	}
	g.handleInput()
	g.overlay.Frame()
	return nil
}

func (g *Game) applyLayout() error {
	w, h := int(g.outsideW.Load()), int(g.outsideH.Load())
	cw, ch := g.overlay.Map.Size()
	if w == int(cw) && h == int(ch) {
		return nil
	}
	if err := g.overlay.Map.Resize(w, h); err != nil && !errors.Is(err, mapview.ErrNoLayout) {
		return err
	}
	return nil
}

func (g *Game) handleInput() {
	m := g.overlay.Map
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyArrowLeft):
		m.Pan(-panStep, 0)
	case ebiten.IsKeyPressed(ebiten.KeyArrowRight):
		m.Pan(panStep, 0)
	}
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyArrowUp):
		m.Pan(0, -panStep)
	case ebiten.IsKeyPressed(ebiten.KeyArrowDown):
		m.Pan(0, panStep)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		m.ZoomBy(1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		m.ZoomBy(-1)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.overlay.FetchRoads(g.ctx); err != nil {
			g.logger.Warn("road fetch not started", "error", err)
		}
	}
}

// Draw renders the grid, roads, vehicles and HUD.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	m := g.overlay.Map
	w, h := m.Size()

	g.drawGrid(screen, w, h)
	g.canvas.draw(screen, m.Project)
	g.sprites.draw(screen, w, h)
	g.drawHUD(screen, h)
}

// drawGrid draws screen-space lines anchored to the world origin so they
// move with the map.
func (g *Game) drawGrid(screen *ebiten.Image, w, h float64) {
	ox, oy := g.overlay.Map.Project(0, 0)
	for x := math.Mod(ox, gridStep); x < w; x += gridStep {
		if x < 0 {
			continue
		}
		vector.StrokeLine(screen, float32(x), 0, float32(x), float32(h), 1, gridColor, false)
	}
	for y := math.Mod(oy, gridStep); y < h; y += gridStep {
		if y < 0 {
			continue
		}
		vector.StrokeLine(screen, 0, float32(y), float32(w), float32(y), 1, gridColor, false)
	}
}

func (g *Game) drawHUD(screen *ebiten.Image, h float64) {
	m := g.overlay.Map
	c := m.Center()
	lines := []string{
		fmt.Sprintf("roads: %s", g.hud.state),
		fmt.Sprintf("center %.5f, %.5f  zoom %.0f", c.Latitude, c.Longitude, m.Zoom()),
		"arrows: pan  +/-: zoom  R: fetch roads",
	}
	for i, line := range lines {
		g.drawText(screen, line, 10, 10+float64(i)*18, hudTextColor)
	}
	if alert := g.hud.visibleAlert(); alert != "" {
		g.drawText(screen, alert, 10, h-28, alertTextColor)
	}
}

func (g *Game) drawText(screen *ebiten.Image, s string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, g.face, op)
}

// Layout reports the window size as the logical screen size; Update
// resizes the map to match.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.outsideW.Store(int64(outsideWidth))
	g.outsideH.Store(int64(outsideHeight))
	return outsideWidth, outsideHeight
}

// Close unmounts the overlay.
func (g *Game) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
	g.overlay.Close()
}
