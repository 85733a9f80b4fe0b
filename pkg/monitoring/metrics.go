package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "roadoverlay"
)

var (
	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_api_requests_total",
			Help: "Total number of API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadoverlay_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"route"},
	)

	RoadsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadoverlay_roads_returned",
			Help:    "Number of road segments returned per successful fetch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// MCP tool metrics
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "status"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadoverlay_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"scope"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadoverlay_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for outbound rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadoverlay_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Simulation metrics
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadoverlay_frames_total",
			Help: "Total number of simulation frames rendered",
		},
	)

	BouncesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadoverlay_bounces_total",
			Help: "Total number of entity heading reversals at the viewport edge",
		},
	)

	RoadLayerResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_road_layer_results_total",
			Help: "Road layer fetch completions by outcome",
		},
		[]string{"result"},
	)

	// Stream metrics
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roadoverlay_stream_clients",
			Help: "Number of connected websocket clients",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadoverlay_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadoverlay_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roadoverlay_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roadoverlay_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// ServiceHealth is the body served by the health endpoint.
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time"`
	Connections   map[string]ConnStatus `json:"connections"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
}

// ConnStatus is the last probe result for one upstream.
type ConnStatus struct {
	Status    string `json:"status"` // "connected", "disconnected", "error"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordAPIRequest counts one HTTP request against its route.
func RecordAPIRequest(route string, code int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func RecordRoadsReturned(n int) {
	RoadsReturned.Observe(float64(n))
}

func RecordToolCall(tool string, success bool) {
	ToolCallsTotal.WithLabelValues(tool, outcome(success)).Inc()
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, outcome(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(scope string) {
	RateLimitExceeded.WithLabelValues(scope).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordFrame counts one simulation frame and the bounces it produced.
func RecordFrame(bounces int) {
	FramesTotal.Inc()
	if bounces > 0 {
		BouncesTotal.Add(float64(bounces))
	}
}

// RecordRoadLayerResult counts a road layer completion: displayed, error or stale.
func RecordRoadLayerResult(result string) {
	RoadLayerResults.WithLabelValues(result).Inc()
}

func UpdateStreamClients(n int) {
	StreamClients.Set(float64(n))
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
