// Package osm provides a rate-limited client for OpenStreetMap services.
package osm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/roadoverlay/pkg/tracing"
)

const (
	// OverpassBaseURL is the public Overpass API interpreter.
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "roadoverlay/0.1.0"

	// DefaultTimeout bounds a single upstream HTTP exchange.
	DefaultTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	OverpassURL string
	UserAgent   string
	RPS         float64
	Burst       int
	HTTPClient  *http.Client
	Hooks       *MonitoringHooks
	Logger      *slog.Logger
}

// Client performs upstream requests with a per-service rate limit.
type Client struct {
	overpassURL  string
	overpassHost string
	httpClient   *http.Client
	hooks        *MonitoringHooks
	logger       *slog.Logger
	userAgent    string
	limiter      *rate.Limiter
}

// NewClient creates a client. Zero options fall back to defaults: the public
// Overpass endpoint, one request per second, a pooled transport.
func NewClient(opts Options) *Client {
	if opts.OverpassURL == "" {
		opts.OverpassURL = OverpassBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: DefaultTimeout,
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		overpassURL:  opts.OverpassURL,
		overpassHost: hostFromURL(opts.OverpassURL),
		httpClient:   opts.HTTPClient,
		hooks:        opts.Hooks,
		logger:       opts.Logger.With("component", "osm"),
		userAgent:    opts.UserAgent,
		limiter:      rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
	}
}

// OverpassURL returns the configured interpreter endpoint.
func (c *Client) OverpassURL() string {
	return c.overpassURL
}

// hostFromURL extracts the host from a URL string
func hostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

// serviceFor maps a request to the upstream service it targets.
func (c *Client) serviceFor(req *http.Request) (string, *rate.Limiter) {
	if req.URL.Host == c.overpassHost {
		return tracing.ServiceOverpass, c.limiter
	}
	return "unknown", nil
}

// waitForRateLimit blocks until the service limiter admits req.
func (c *Client) waitForRateLimit(ctx context.Context, service string, limiter *rate.Limiter) error {
	if limiter == nil || limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, service),
		),
	)

	err := limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	if c.hooks != nil && c.hooks.OnRateLimit != nil {
		c.hooks.OnRateLimit(service, waitDuration)
	}

	return err
}

// Do performs req with rate limiting and monitoring. It never retries.
func (c *Client) Do(ctx context.Context, req *http.Request, operation string) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	service, limiter := c.serviceFor(req)

	if c.hooks != nil && c.hooks.OnRequest != nil {
		c.hooks.OnRequest(service, operation)
	}

	if err := c.waitForRateLimit(ctx, service, limiter); err != nil {
		if c.hooks != nil && c.hooks.OnError != nil {
			c.hooks.OnError(service, "rate_limit_wait_error")
		}
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	success := err == nil && resp.StatusCode < 400
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	tracing.SetAttributes(ctx, tracing.ServiceAttributes(service, operation, status)...)
	if c.hooks != nil && c.hooks.OnResponse != nil {
		c.hooks.OnResponse(service, operation, duration, success)
	}
	if err != nil {
		if c.hooks != nil && c.hooks.OnError != nil {
			c.hooks.OnError(service, "request_error")
		}
		c.logger.Debug("upstream request failed", "service", service, "operation", operation, "error", err)
		return nil, err
	}

	c.logger.Debug("upstream response",
		"service", service,
		"operation", operation,
		"status", resp.StatusCode,
		"duration", duration)
	return resp, nil
}

// PostOverpass sends an Overpass QL query as form data.
func (c *Client) PostOverpass(ctx context.Context, query, operation string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.overpassURL,
		strings.NewReader("data="+url.QueryEscape(query)))
	if err != nil {
		return nil, fmt.Errorf("failed to create overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, req, operation)
}

// CheckOverpassHealth checks if Overpass API is available
func (c *Client) CheckOverpassHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.overpassURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create overpass health check request: %w", err)
	}
	req.URL.RawQuery = "data=" + url.QueryEscape("[out:json];out meta;")

	resp, err := c.Do(ctx, req, "health")
	if err != nil {
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("overpass health check returned status %d", resp.StatusCode)
	}
	return nil
}
