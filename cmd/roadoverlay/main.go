// Command roadoverlay serves road geometry from Overpass, runs the headless
// vehicle simulation and exposes both over HTTP, websocket, GTFS-RT and MCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/roadoverlay/pkg/config"
	"github.com/NERVsystems/roadoverlay/pkg/coords"
	"github.com/NERVsystems/roadoverlay/pkg/feed"
	"github.com/NERVsystems/roadoverlay/pkg/mapview"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/osm"
	"github.com/NERVsystems/roadoverlay/pkg/registration"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
	"github.com/NERVsystems/roadoverlay/pkg/scene"
	"github.com/NERVsystems/roadoverlay/pkg/server"
	"github.com/NERVsystems/roadoverlay/pkg/sim"
	"github.com/NERVsystems/roadoverlay/pkg/stream"
	"github.com/NERVsystems/roadoverlay/pkg/tools"
	"github.com/NERVsystems/roadoverlay/pkg/tracing"
	ver "github.com/NERVsystems/roadoverlay/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	configPath      string

	httpAddr         string
	enableMonitoring bool
	monitoringAddr   string
	registryURL      string
	publicURL        string

	userAgent     string
	overpassURL   string
	overpassRPS   float64
	overpassBurst int

	rateLimit float64
	rateBurst int
	cacheSize int
	cacheTTL  time.Duration

	fps    int
	center string
	zoom   float64
	width  int
	height int
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file; command line flags override it")

	flag.StringVar(&httpAddr, "http-addr", ":7082", "HTTP server address")
	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and the Overpass health probe")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
	flag.StringVar(&registryURL, "registry-url", "", "Service registry URL; empty disables registration")
	flag.StringVar(&publicURL, "public-url", "", "URL announced to the registry (default http://localhost<http-addr>)")

	flag.StringVar(&userAgent, "user-agent", osm.DefaultUserAgent, "User-Agent string for Overpass requests")
	flag.StringVar(&overpassURL, "overpass-url", osm.OverpassBaseURL, "Overpass interpreter URL")
	flag.Float64Var(&overpassRPS, "overpass-rps", 1.0, "Overpass rate limit in requests per second")
	flag.IntVar(&overpassBurst, "overpass-burst", 1, "Overpass rate limit burst size")

	flag.Float64Var(&rateLimit, "rate-limit", 10, "Requests per second per client IP on /api/roads; 0 disables")
	flag.IntVar(&rateBurst, "rate-burst", 20, "Per client IP burst on /api/roads")
	flag.IntVar(&cacheSize, "cache-size", 0, "Number of bounds kept in the road response cache; 0 disables")
	flag.DurationVar(&cacheTTL, "cache-ttl", 5*time.Minute, "Road response cache TTL")

	flag.IntVar(&fps, "fps", 30, "Simulation frames per second")
	flag.StringVar(&center, "center", "37.7749, -122.4194", "Simulation map center: decimal, DMS or MGRS")
	flag.Float64Var(&zoom, "zoom", 14, "Simulation map zoom")
	flag.IntVar(&width, "width", 1280, "Simulation viewport width in pixels")
	flag.IntVar(&height, "height", 800, "Simulation viewport height in pixels")
}

func main() {
	flag.Parse()

	if configPath != "" {
		file, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "roadoverlay: %v\n", err)
			os.Exit(2)
		}
		if err := file.Apply(flag.CommandLine); err != nil {
			fmt.Fprintf(os.Stderr, "roadoverlay: %v\n", err)
			os.Exit(2)
		}
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	if err := run(ctx, logger); err != nil {
		logger.Error("roadoverlay stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	loc, format, err := coords.Parse(center)
	if err != nil {
		return fmt.Errorf("--center: %w", err)
	}

	logger.Info("starting roadoverlay",
		"version", ver.BuildVersion,
		"http_addr", httpAddr,
		"overpass_url", overpassURL,
		"overpass_rps", overpassRPS,
		"overpass_burst", overpassBurst,
		"cache_size", cacheSize,
		"center_lat", loc.Latitude,
		"center_lng", loc.Longitude,
		"center_format", format.String(),
		"fps", fps,
		"monitoring_enabled", enableMonitoring)

	var (
		health *monitoring.HealthChecker
		hooks  *osm.MonitoringHooks
	)
	if enableMonitoring {
		health = monitoring.NewHealthChecker(tools.ServerName, ver.BuildVersion)
		defer health.Shutdown()

		hooks = &osm.MonitoringHooks{
			OnResponse: func(service, operation string, duration time.Duration, success bool) {
				monitoring.RecordExternalServiceRequest(service, operation, duration, success)
			},
			OnRateLimit: func(service string, waitTime time.Duration) {
				monitoring.RecordRateLimitWait(service, waitTime)
			},
			OnError: func(service, errorType string) {
				monitoring.RecordError(service, errorType)
			},
		}
	}

	client := osm.NewClient(osm.Options{
		OverpassURL: overpassURL,
		UserAgent:   userAgent,
		RPS:         overpassRPS,
		Burst:       overpassBurst,
		Hooks:       hooks,
		Logger:      logger,
	})
	roadService := roads.NewService(client, roads.Options{
		CacheSize: cacheSize,
		CacheTTL:  cacheTTL,
		Logger:    logger,
	})

	simulation, err := sim.New(sim.Options{
		Map: mapview.Options{
			Center: loc,
			Zoom:   zoom,
			Width:  width,
			Height: height,
			Logger: logger,
		},
		FPS:    fps,
		Seeds:  scene.DefaultSeeds,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("starting simulation: %w", err)
	}

	hub := stream.NewHub(simulation, logger)
	defer hub.Close()
	unsubscribe := simulation.Subscribe(hub.Publish)
	defer unsubscribe()

	registry := tools.NewRegistry(roadService, simulation, logger)

	cfg := server.DefaultConfig()
	cfg.Addr = httpAddr
	cfg.RateLimit = rateLimit
	cfg.RateBurst = rateBurst
	srv, err := server.New(cfg, server.Deps{
		Roads:  roadService,
		MCP:    tools.NewMCPServer(registry),
		Feed:   feed.NewHandler(simulation, fps, logger),
		Stream: hub,
		Health: health,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return simulation.Run(gctx)
	})
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if enableMonitoring {
		monitor := monitoring.NewConnectionMonitor("overpass", health, client.CheckOverpassHealth, 30*time.Second)
		g.Go(func() error {
			monitor.Run(gctx)
			return nil
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:              monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if reg := registration.NewClient(registration.Config{
		RegistryURL: registryURL,
		Name:        tools.ServerName,
		PublicURL:   announcedURL(),
		Version:     ver.BuildVersion,
		Tools:       registry.Names(),
		Endpoints: map[string]string{
			"roads":   "/api/roads",
			"mcp_sse": server.MCPBasePath + "/sse",
			"stream":  "/ws",
			"feed":    "/api/vehicles.pb",
		},
	}, logger); reg != nil {
		g.Go(func() error { return reg.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("roadoverlay shut down")
	return err
}

func announcedURL() string {
	if publicURL != "" {
		return publicURL
	}
	return "http://localhost" + httpAddr
}
