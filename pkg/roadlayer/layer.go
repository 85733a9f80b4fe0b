// Package roadlayer fetches the roads under the viewport and draws them on
// the map, replacing whatever was drawn before.
package roadlayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/NERVsystems/roadoverlay/pkg/events"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/roadclient"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
)

// State is the display state of the layer.
type State int

const (
	Idle State = iota
	Loading
	Displayed
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Displayed:
		return "displayed"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Source returns the roads inside a bounding box. *roadclient.Client
// satisfies it.
type Source interface {
	FetchRoads(ctx context.Context, b geo.Bounds) ([]roads.Segment, error)
}

// Polyline is a drawn road.
type Polyline interface {
	Remove()
}

// Canvas draws polylines on the map.
type Canvas interface {
	AddPolyline(coords [][2]float64, style roads.Style) Polyline
}

// Alerter shows a message to the user.
type Alerter interface {
	Alert(msg string)
}

// Poster hands a callback to the logic goroutine. *loop.Queue satisfies it.
type Poster interface {
	Post(fn func())
}

// StateEvent is published on every state change.
type StateEvent struct {
	State     State
	RoadCount int
	Err       error
}

// Layer owns the drawn road polylines. Request, Close and the completion
// callbacks all run on the logic goroutine; only the fetch itself runs
// elsewhere.
type Layer struct {
	source  Source
	canvas  Canvas
	alerter Alerter
	poster  Poster
	logger  *slog.Logger

	state  State
	seq    uint64
	lines  []Polyline
	closed bool

	changes *events.Bus[StateEvent]
}

// New creates an idle layer.
func New(source Source, canvas Canvas, alerter Alerter, poster Poster, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		source:  source,
		canvas:  canvas,
		alerter: alerter,
		poster:  poster,
		logger:  logger.With("component", "roadlayer"),
		changes: events.NewBus[StateEvent](),
	}
}

// State returns the current display state.
func (l *Layer) State() State {
	return l.state
}

// Lines returns the number of polylines currently drawn.
func (l *Layer) Lines() int {
	return len(l.lines)
}

// OnChange registers fn for state changes and returns its unsubscribe func.
func (l *Layer) OnChange(fn func(StateEvent)) func() {
	return l.changes.Subscribe(fn)
}

// Request starts a fetch for b. Incomplete bounds are rejected with one
// alert and no network call. A request issued while another is in flight
// supersedes it: the older response is dropped when it arrives.
func (l *Layer) Request(ctx context.Context, b geo.Bounds) error {
	if l.closed {
		return errors.New("road layer closed")
	}
	if !b.Complete() {
		l.alerter.Alert("Map bounds are not available yet")
		return geo.ErrMissingBounds
	}

	l.seq++
	token := l.seq
	l.setState(StateEvent{State: Loading})
	l.logger.Debug("requesting roads", "bounds", b.String(), "seq", token)

	go func() {
		segs, err := l.source.FetchRoads(ctx, b)
		l.poster.Post(func() { l.complete(token, segs, err) })
	}()
	return nil
}

func (l *Layer) complete(token uint64, segs []roads.Segment, err error) {
	if l.closed || token != l.seq {
		l.logger.Debug("dropping stale road response", "seq", token, "current", l.seq)
		monitoring.RecordRoadLayerResult("stale")
		return
	}

	if err != nil {
		l.logger.Warn("road fetch failed", "error", err)
		monitoring.RecordRoadLayerResult("error")
		l.setState(StateEvent{State: Error, Err: err})
		l.alerter.Alert(alertText(err))
		return
	}

	l.clear()
	for _, s := range segs {
		l.lines = append(l.lines, l.canvas.AddPolyline(s.Coordinates, roads.StyleFor(s.Type)))
	}
	monitoring.RecordRoadLayerResult("displayed")
	l.logger.Info("roads displayed", "road_count", len(segs))
	l.setState(StateEvent{State: Displayed, RoadCount: len(segs)})
}

func (l *Layer) clear() {
	for _, p := range l.lines {
		p.Remove()
	}
	l.lines = nil
}

func (l *Layer) setState(ev StateEvent) {
	l.state = ev.State
	l.changes.Publish(ev)
}

// Close removes every drawn polyline and ignores any fetch still in flight.
func (l *Layer) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.clear()
	l.changes.Close()
}

func alertText(err error) string {
	var serr *roadclient.StatusError
	if errors.As(err, &serr) {
		if serr.Details != "" {
			return fmt.Sprintf("%s: %s", serr.Message, serr.Details)
		}
		return serr.Message
	}
	return fmt.Sprintf("Failed to fetch road data: %v", err)
}
