// Package registration announces a running roadoverlay to a service registry.
// The registry is optional: failures are logged and the server keeps working.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Config describes the service being announced.
type Config struct {
	RegistryURL string
	Name        string
	PublicURL   string
	Version     string
	Tools       []string
	// Endpoints maps a capability ("roads", "mcp_sse", "stream", "feed") to
	// its path on PublicURL.
	Endpoints map[string]string
	Interval  time.Duration
	Timeout   time.Duration
}

// Announcement is the body posted to <registry>/api/register.
type Announcement struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	URL       string            `json:"url"`
	HealthURL string            `json:"health_url"`
	Version   string            `json:"version"`
	Tools     []string          `json:"tools,omitempty"`
	Endpoints map[string]string `json:"endpoints,omitempty"`
}

type ack struct {
	Status     string `json:"status"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Client keeps the announcement fresh until its context ends.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	registered atomic.Bool
}

// NewClient returns nil when cfg has no registry URL; a nil *Client is
// valid and does nothing.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.RegistryURL == "" {
		return nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "registration", "registry", cfg.RegistryURL),
	}
}

// Registered reports whether the last heartbeat was accepted.
func (c *Client) Registered() bool {
	return c != nil && c.registered.Load()
}

// Run announces immediately, then every Interval. When ctx ends it withdraws
// the announcement and returns nil.
func (c *Client) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.heartbeat(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.heartbeat(ctx)
		case <-ctx.Done():
			withdrawCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
			c.withdraw(withdrawCtx)
			cancel()
			return nil
		}
	}
}

func (c *Client) announcement() Announcement {
	base := strings.TrimRight(c.cfg.PublicURL, "/")
	return Announcement{
		Name:      c.cfg.Name,
		Type:      "mcp",
		URL:       base,
		HealthURL: base + "/health",
		Version:   c.cfg.Version,
		Tools:     c.cfg.Tools,
		Endpoints: c.cfg.Endpoints,
	}
}

func (c *Client) heartbeat(ctx context.Context) {
	ttl, err := c.post(ctx, c.announcement())
	if err != nil {
		if c.registered.Swap(false) {
			c.logger.Warn("lost registration", "error", err)
		} else {
			c.logger.Debug("registration failed", "error", err)
		}
		return
	}
	if !c.registered.Swap(true) {
		c.logger.Info("registered", "name", c.cfg.Name, "ttl_seconds", ttl)
	}
}

func (c *Client) post(ctx context.Context, a Announcement) (int, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("encoding announcement: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RegistryURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("registry returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	var reply ack
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return 0, fmt.Errorf("decoding registry reply: %w", err)
	}
	if reply.Status != "" && reply.Status != "ok" && reply.Status != "registered" {
		return 0, errors.New("registry rejected announcement: " + reply.Status)
	}
	return reply.TTLSeconds, nil
}

func (c *Client) withdraw(ctx context.Context) {
	if !c.registered.Swap(false) {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.RegistryURL+"/api/register/"+c.cfg.Name, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("deregistration failed", "error", err)
		return
	}
	resp.Body.Close()
	c.logger.Info("deregistered", "name", c.cfg.Name, "status", resp.StatusCode)
}
