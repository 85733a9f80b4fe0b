package main

import (
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/NERVsystems/roadoverlay/pkg/roadlayer"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
	"github.com/NERVsystems/roadoverlay/pkg/scene"
)

// alertDuration is how long an alert stays on the HUD.
const alertDuration = 4 * time.Second

var (
	backgroundColor = color.RGBA{30, 30, 40, 255}
	gridColor       = color.RGBA{55, 55, 70, 255}
	vehicleColor    = color.RGBA{80, 200, 255, 255}
	headingColor    = color.RGBA{255, 255, 255, 255}
	hudTextColor    = color.RGBA{220, 220, 220, 255}
	alertTextColor  = color.RGBA{255, 120, 100, 255}
)

// sprite is the drawable state of one vehicle.
type sprite struct {
	pos      scene.Vec3
	rotation float64
	released bool
}

func (s *sprite) SetPosition(v scene.Vec3)    { s.pos = v }
func (s *sprite) SetRotation(radians float64) { s.rotation = radians }
func (s *sprite) Release()                    { s.released = true }

// spriteRenderer hands out sprites and draws the live ones.
type spriteRenderer struct {
	sprites []*sprite
}

func (r *spriteRenderer) NewHandle(string) scene.Handle {
	s := &sprite{}
	r.sprites = append(r.sprites, s)
	return s
}

// screenPoint undoes the scene transform: scene units back to pixels,
// re-centered on the screen midpoint.
func screenPoint(v scene.Vec3, w, h float64) (x, y float32) {
	return float32(v.X/scene.SceneScale + w/2), float32(v.Z/scene.SceneScale + h/2)
}

func (r *spriteRenderer) draw(screen *ebiten.Image, w, h float64) {
	for _, s := range r.sprites {
		if s.released {
			continue
		}
		x, y := screenPoint(s.pos, w, h)
		vector.DrawFilledCircle(screen, x, y, 6, vehicleColor, true)

		// Rotation is a compass heading: 0 is north, pi/2 is east.
		hx := x + float32(12*math.Sin(s.rotation))
		hy := y - float32(12*math.Cos(s.rotation))
		vector.StrokeLine(screen, x, y, hx, hy, 2, headingColor, true)
	}
}

// polyline is one road drawn on the canvas.
type polyline struct {
	coords  [][2]float64
	color   color.RGBA
	weight  float32
	removed bool
}

func (p *polyline) Remove() { p.removed = true }

// roadCanvas keeps the drawn roads in geographic coordinates and projects
// them on every frame so they follow pan and zoom.
type roadCanvas struct {
	lines []*polyline
}

func (c *roadCanvas) AddPolyline(coords [][2]float64, style roads.Style) roadlayer.Polyline {
	p := &polyline{
		coords: coords,
		color:  styleColor(style),
		weight: float32(style.Weight),
	}
	c.lines = append(c.lines, p)
	return p
}

func (c *roadCanvas) draw(screen *ebiten.Image, project func(lat, lng float64) (float64, float64)) {
	live := c.lines[:0]
	for _, p := range c.lines {
		if p.removed {
			continue
		}
		live = append(live, p)
		for i := 1; i < len(p.coords); i++ {
			x0, y0 := project(p.coords[i-1][0], p.coords[i-1][1])
			x1, y1 := project(p.coords[i][0], p.coords[i][1])
			vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), p.weight, p.color, true)
		}
	}
	clear(c.lines[len(live):])
	c.lines = live
}

// styleColor parses a "#rrggbb" style color and applies its opacity.
// Unparseable colors fall back to grey.
func styleColor(s roads.Style) color.RGBA {
	c := color.RGBA{0x99, 0x99, 0x99, 0xff}
	hex := strings.TrimPrefix(s.Color, "#")
	if v, err := strconv.ParseUint(hex, 16, 32); err == nil && len(hex) == 6 {
		c = color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
	}
	if s.Opacity > 0 && s.Opacity < 1 {
		// color.RGBA is alpha-premultiplied.
		a := s.Opacity
		c = color.RGBA{uint8(float64(c.R) * a), uint8(float64(c.G) * a), uint8(float64(c.B) * a), uint8(255 * a)}
	}
	return c
}

// hud holds the fetch state line and the current alert.
type hud struct {
	state     string
	alert     string
	alertTill time.Time
	now       func() time.Time
}

func newHUD() *hud {
	return &hud{state: roadlayer.Idle.String(), now: time.Now}
}

func (h *hud) Alert(msg string) {
	h.alert = msg
	h.alertTill = h.now().Add(alertDuration)
}

func (h *hud) setState(ev roadlayer.StateEvent) {
	h.state = ev.State.String()
	if ev.State == roadlayer.Displayed {
		h.state += " (" + strconv.Itoa(ev.RoadCount) + " roads)"
	}
}

// visibleAlert returns the alert while it is still on screen.
func (h *hud) visibleAlert() string {
	if h.alert == "" || h.now().After(h.alertTill) {
		return ""
	}
	return h.alert
}
