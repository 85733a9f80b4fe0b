package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/roadoverlay/pkg/coords"
	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/mapview"
	"github.com/NERVsystems/roadoverlay/pkg/overlay"
	"github.com/NERVsystems/roadoverlay/pkg/sim"
)

// ViewportInfo is the get_viewport result.
type ViewportInfo struct {
	Frame      uint64        `json:"frame"`
	Center     geo.Location  `json:"center"`
	CenterMGRS string        `json:"center_mgrs,omitempty"`
	Zoom       float64       `json:"zoom"`
	Bounds     geo.Bounds    `json:"bounds"`
	Vehicles   []sim.Vehicle `json:"vehicles,omitempty"`
}

func viewportTool() mcp.Tool {
	return mcp.NewTool("get_viewport",
		mcp.WithDescription("Get the current map center, zoom and visible bounds of the running simulation. The bounds can be passed to fetch_roads."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithBoolean("include_vehicles", mcp.Description("Include the simulated vehicles")),
	)
}

func (r *Registry) handleViewport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := r.viewport.Snapshot()
	if snap == nil {
		return core.NewError(core.ErrServiceUnavailable, "Simulation has not produced a frame yet").
			WithGuidance("Try again in a moment.").ToMCPResult(), nil
	}

	info := ViewportInfo{
		Frame:  snap.Frame,
		Center: snap.Center,
		Zoom:   snap.Zoom,
		Bounds: snap.Bounds,
	}
	if m, err := coords.ToMGRS(snap.Center, 5); err == nil {
		info.CenterMGRS = m
	} else {
		r.logger.Debug("center has no MGRS form", "error", err)
	}
	if req.GetBool("include_vehicles", false) {
		info.Vehicles = snap.Vehicles
	}

	out, err := json.Marshal(info)
	if err != nil {
		return core.NewError(core.ErrInternalError, "Failed to encode viewport").WithCause(err).ToMCPResult(), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

type setViewportInput struct {
	Center string   `json:"center"`
	Zoom   *float64 `json:"zoom"`
}

func setViewportTool() mcp.Tool {
	return mcp.NewTool("set_viewport",
		mcp.WithDescription("Move the running simulation's map. Accepts a new center (decimal degrees, DMS or MGRS), a new zoom, or both, and returns the resulting viewport."),
		mcp.WithString("center", mcp.Description("New map center, e.g. \"37.7749, -122.4194\" or an MGRS string")),
		mcp.WithNumber("zoom", mcp.Description("New zoom level"), mcp.Min(mapview.MinZoom), mcp.Max(mapview.MaxZoom)),
		mcp.WithBoolean("include_vehicles", mcp.Description("Include the simulated vehicles")),
	)
}

func (r *Registry) setViewportHandler(s Steerer) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in setViewportInput
		if err := req.BindArguments(&in); err != nil {
			return core.NewValidationError(core.ErrInvalidInput, "Arguments must be an object with a string center and a numeric zoom").
				WithCause(err).ToMCPResult(), nil
		}
		if in.Center == "" && in.Zoom == nil {
			return core.NewValidationError(core.ErrMissingParameter, "Provide center, zoom or both").ToMCPResult(), nil
		}

		var center *geo.Location
		if in.Center != "" {
			loc, _, err := coords.Parse(in.Center)
			if err != nil {
				return core.NewValidationError(core.ErrInvalidInput, err.Error()).WithCause(err).ToMCPResult(), nil
			}
			center = &loc
		}

		err := s.Do(ctx, func(o *overlay.Overlay) {
			if center != nil {
				o.Map.SetCenter(*center)
			}
			if in.Zoom != nil {
				o.Map.SetZoom(*in.Zoom)
			}
		})
		switch {
		case errors.Is(err, sim.ErrStopped):
			return core.NewError(core.ErrServiceUnavailable, "Simulation is not running").ToMCPResult(), nil
		case err != nil:
			return core.NewError(core.ErrServiceTimeout, "Viewport change did not complete").
				WithCause(err).ToMCPResult(), nil
		}

		return r.handleViewport(ctx, req)
	}
}
