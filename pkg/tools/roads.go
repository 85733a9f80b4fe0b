package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
)

type fetchRoadsInput struct {
	core.BoundsInput
	Format string `json:"format"`
}

func fetchRoadsTool() mcp.Tool {
	return mcp.NewTool("fetch_roads",
		mcp.WithDescription("Fetch the OpenStreetMap roads inside a bounding box. Returns segments with road class, name and [lat, lon] coordinates, or a GeoJSON FeatureCollection when format is geojson."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("north", mcp.Required(), mcp.Description("Northern latitude"), mcp.Min(-90), mcp.Max(90)),
		mcp.WithNumber("south", mcp.Required(), mcp.Description("Southern latitude"), mcp.Min(-90), mcp.Max(90)),
		mcp.WithNumber("east", mcp.Required(), mcp.Description("Eastern longitude"), mcp.Min(-180), mcp.Max(180)),
		mcp.WithNumber("west", mcp.Required(), mcp.Description("Western longitude"), mcp.Min(-180), mcp.Max(180)),
		mcp.WithString("format", mcp.Description("segments (default) or geojson"), mcp.Enum("segments", "geojson")),
	)
}

func (r *Registry) handleFetchRoads(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in fetchRoadsInput
	if err := req.BindArguments(&in); err != nil {
		return core.NewValidationError(core.ErrInvalidInput, "Arguments must be an object with numeric north, south, east and west").
			WithCause(err).ToMCPResult(), nil
	}

	b, err := core.ValidateBounds(in.BoundsInput)
	if err != nil {
		return errorResult(err), nil
	}

	segs, err := r.fetcher.Fetch(ctx, b)
	if err != nil {
		r.logger.Error("road fetch failed", "bounds", b.String(), "error", err)
		return errorResult(err), nil
	}

	var body any = roads.NewResult(b, segs)
	if in.Format == "geojson" {
		body = roads.FeatureCollection(segs)
	}
	out, err := json.Marshal(body)
	if err != nil {
		return core.NewError(core.ErrInternalError, "Failed to encode roads").WithCause(err).ToMCPResult(), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult renders err as an MCP error result, keeping the code and
// guidance of a *core.Error.
func errorResult(err error) *mcp.CallToolResult {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.ToMCPResult()
	}
	return core.NewError(core.ErrInternalError, err.Error()).ToMCPResult()
}
