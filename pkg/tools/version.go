package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/version"
)

func versionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the road overlay service"),
	)
}

func (r *Registry) handleVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(version.Info())
	if err != nil {
		r.logger.Error("failed to marshal version info", "error", err)
		return core.NewError(core.ErrInternalError, "Failed to retrieve version information").ToMCPResult(), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
