package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/roadoverlay/pkg/version"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker tracks upstream connection status and serves the
// health, readiness and liveness endpoints.
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu          sync.RWMutex
	connections map[string]*ConnStatus

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHealthChecker creates a health checker and starts runtime metric
// collection until Shutdown.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	go hc.collectSystemMetrics()

	return hc
}

// UpdateConnection records the latest probe for name.
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs := &ConnStatus{Status: status, Latency: latencyMs}
	if err != nil {
		cs.LastError = err.Error()
	}
	h.connections[name] = cs
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// GetHealth returns the current health status. More than half of the
// connections failing makes the service unhealthy; any failure short of
// that makes it degraded.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := StatusHealthy
	degraded, failed := 0, 0
	connections := make(map[string]ConnStatus, len(h.connections))
	for k, conn := range h.connections {
		switch conn.Status {
		case "error", "disconnected":
			failed++
		case "degraded":
			degraded++
		}
		connections[k] = *conn
	}

	switch {
	case failed > 0 && failed > len(h.connections)/2:
		status = StatusUnhealthy
	case failed > 0 || degraded > 0:
		status = StatusDegraded
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Metrics: map[string]any{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": m.Alloc / 1024 / 1024,
			"gc_runs":         m.NumGC,
			"version_info":    version.Info(),
		},
	}
}

// HealthHandler serves the full health document. Unhealthy maps to 503.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// ReadinessHandler returns a simple readiness check
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		ready := health.Status != StatusUnhealthy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"ready":  ready,
			"status": health.Status,
		})
	}
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).Round(time.Second).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HealthChecker) collectSystemMetrics() {
	h.updateSystemMetrics()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)
}

// Shutdown stops runtime metric collection.
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// ConnectionMonitor probes one upstream on an interval and feeds the
// result into a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	check         func(context.Context) error
	interval      time.Duration
	timeout       time.Duration
}

// NewConnectionMonitor creates a new connection monitor. Each probe gets
// half the interval as its deadline.
func NewConnectionMonitor(name string, hc *HealthChecker, check func(context.Context) error, interval time.Duration) *ConnectionMonitor {
	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		check:         check,
		interval:      interval,
		timeout:       interval / 2,
	}
}

// Run probes immediately and then on every tick until ctx is done.
func (cm *ConnectionMonitor) Run(ctx context.Context) {
	cm.probe(ctx)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.probe(ctx)
		}
	}
}

func (cm *ConnectionMonitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	start := time.Now()
	err := cm.check(ctx)
	latency := time.Since(start).Milliseconds()

	status := "connected"
	if err != nil {
		status = "error"
		RecordError("health", cm.name)
	}
	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
