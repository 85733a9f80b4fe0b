// Package tools exposes the road overlay to MCP clients.
package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/overlay"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
	"github.com/NERVsystems/roadoverlay/pkg/sim"
	"github.com/NERVsystems/roadoverlay/pkg/tracing"
	"github.com/NERVsystems/roadoverlay/pkg/version"
)

// ServerName is the name reported to MCP clients.
const ServerName = "roadoverlay"

// Fetcher returns the roads inside validated bounds. *roads.Service satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, b geo.Bounds) ([]roads.Segment, error)
}

// Viewport provides the latest simulation snapshot. *sim.Simulation satisfies it.
type Viewport interface {
	Snapshot() *sim.Snapshot
}

// Steerer runs fn on the overlay's logic goroutine. A Viewport that also
// implements it, such as *sim.Simulation, gets the set_viewport tool.
type Steerer interface {
	Do(ctx context.Context, fn func(*overlay.Overlay)) error
}

// Handler is the signature of every tool handler.
type Handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// ToolDefinition pairs a tool with its handler.
type ToolDefinition struct {
	Name    string
	Tool    mcp.Tool
	Handler Handler
}

// Registry holds the tool definitions and their dependencies.
type Registry struct {
	fetcher  Fetcher
	viewport Viewport
	logger   *slog.Logger
}

// NewRegistry creates a registry. viewport may be nil when no simulation runs;
// get_viewport and set_viewport are then omitted.
func NewRegistry(fetcher Fetcher, viewport Viewport, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		fetcher:  fetcher,
		viewport: viewport,
		logger:   logger.With("component", "tools"),
	}
}

// Definitions returns the available tools.
func (r *Registry) Definitions() []ToolDefinition {
	defs := []ToolDefinition{
		{Name: "get_version", Tool: versionTool(), Handler: r.handleVersion},
		{Name: "fetch_roads", Tool: fetchRoadsTool(), Handler: r.handleFetchRoads},
	}
	if r.viewport != nil {
		defs = append(defs, ToolDefinition{Name: "get_viewport", Tool: viewportTool(), Handler: r.handleViewport})
		if s, ok := r.viewport.(Steerer); ok {
			defs = append(defs, ToolDefinition{Name: "set_viewport", Tool: setViewportTool(), Handler: r.setViewportHandler(s)})
		}
	}
	return defs
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Register adds every tool to srv.
func (r *Registry) Register(srv *server.MCPServer) {
	for _, def := range r.Definitions() {
		r.logger.Info("registering tool", "name", def.Name)
		srv.AddTool(def.Tool, server.ToolHandlerFunc(r.instrument(def.Name, def.Handler)))
	}
}

// NewMCPServer creates an MCP server with every tool of r registered.
func NewMCPServer(r *Registry) *server.MCPServer {
	srv := server.NewMCPServer(
		ServerName,
		version.BuildVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	r.Register(srv)
	return srv
}

// instrument wraps a handler with a span, a metric and a debug log line.
func (r *Registry) instrument(name string, h Handler) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+name,
			trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, name)))
		defer span.End()

		start := time.Now()
		result, err := h(ctx, req)
		elapsed := time.Since(start)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(
			attribute.String(tracing.AttrMCPToolStatus, status),
			attribute.Int64(tracing.AttrMCPToolDuration, elapsed.Milliseconds()),
		)
		monitoring.RecordToolCall(name, status == tracing.StatusSuccess)

		r.logger.Debug("tool executed", "tool", name, "status", status, "duration", elapsed)
		return result, err
	}
}
