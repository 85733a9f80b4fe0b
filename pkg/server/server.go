// Package server exposes the roads API, the simulation streams, the MCP
// tools and the health endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
)

// MCPBasePath is where the MCP SSE transport is mounted.
const MCPBasePath = "/mcp"

// Config holds listener and middleware settings.
type Config struct {
	Addr           string
	RateLimit      float64 // requests per second per IP on /api/roads, 0 disables
	RateBurst      int
	MaxRequestSize int64
}

// DefaultConfig returns the defaults used by cmd/roadoverlay.
func DefaultConfig() Config {
	return Config{
		Addr:           ":7082",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
	}
}

// Deps are the handlers the server routes to. Only Roads is required.
type Deps struct {
	Roads  RoadFetcher
	MCP    *mcpserver.MCPServer
	Feed   http.Handler
	Stream http.Handler
	Health *monitoring.HealthChecker
}

// HTTPServer is the public HTTP surface of roadoverlay.
type HTTPServer struct {
	config      Config
	logger      *slog.Logger
	mux         *http.ServeMux
	handler     http.Handler
	sse         *mcpserver.SSEServer
	rateLimiter *RateLimiter
	health      *monitoring.HealthChecker

	httpSrv *http.Server
	mu      sync.Mutex
	started bool
}

// New builds the routes and middleware chain.
func New(config Config, deps Deps, logger *slog.Logger) (*HTTPServer, error) {
	if deps.Roads == nil {
		return nil, errors.New("server: roads fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		config: config,
		logger: logger.With("component", "server"),
		mux:    http.NewServeMux(),
		health: deps.Health,
	}
	// No WriteTimeout: SSE and websocket responses stay open.
	s.httpSrv = &http.Server{
		Addr:              config.Addr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	var roads http.Handler = NewRoadsHandler(deps.Roads, logger)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), burst, logger)
		roads = s.rateLimiter.Middleware(roads)
	}
	s.mux.Handle("/api/roads", roads)

	if deps.Feed != nil {
		s.mux.Handle("/api/vehicles.pb", deps.Feed)
	}
	if deps.Stream != nil {
		s.mux.Handle("/ws", deps.Stream)
	}
	if deps.MCP != nil {
		s.sse = mcpserver.NewSSEServer(deps.MCP,
			mcpserver.WithStaticBasePath(MCPBasePath),
			mcpserver.WithHTTPServer(s.httpSrv),
		)
		s.mux.Handle(MCPBasePath+"/", s.sse)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /live", s.handleLive)
	s.mux.HandleFunc("GET /{$}", s.handleDiscovery)

	var h http.Handler = s.mux
	if config.MaxRequestSize > 0 {
		h = RequestSizeLimiter(config.MaxRequestSize)(h)
	}
	h = SecurityHeaders(h)
	h = LoggingMiddleware(logger)(h)
	h = TracingMiddleware()(h)
	h = RequestID(h)
	s.handler = h
	s.httpSrv.Handler = h

	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"roads":  "/api/roads",
		"health": "/health",
	}
	if s.sse != nil {
		endpoints["mcp_sse"] = s.sse.CompleteSsePath()
		endpoints["mcp_message"] = s.sse.CompleteMessagePath()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "roadoverlay",
		"endpoints": endpoints,
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.HealthHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": monitoring.StatusHealthy})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.ReadinessHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (s *HTTPServer) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.LivenessHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

// ListenAndServe serves on config.Addr until Shutdown.
func (s *HTTPServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *HTTPServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		ln.Close()
		return core.NewError(core.ErrInternalError, "HTTP server already started").
			WithGuidance("Create a new server instead of restarting a stopped one.")
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String(), "mcp", s.sse != nil)
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes MCP sessions, stops accepting requests and waits for
// in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.logger.Info("shutting down HTTP server")
	if s.sse != nil {
		// The SSE server owns httpSrv and shuts it down after its sessions.
		return s.sse.Shutdown(ctx)
	}
	return s.httpSrv.Shutdown(ctx)
}
