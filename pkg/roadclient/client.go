// Package roadclient calls the roads API of a roadoverlay backend.
package roadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
)

// Response is the success body of /api/roads.
type Response struct {
	Success   bool            `json:"success"`
	Bounds    geo.Bounds      `json:"bounds"`
	RoadCount int             `json:"roadCount"`
	Roads     []roads.Segment `json:"roads"`
}

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("backend returned %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Client posts bounds to a backend and returns the decoded roads.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the backend at baseURL, e.g. http://localhost:7082.
// A nil httpClient uses a client without a timeout; the backend bounds the
// upstream query itself.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{IdleConnTimeout: 90 * time.Second}}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/roads",
		httpClient: httpClient,
		logger:     logger.With("component", "roadclient"),
	}
}

// FetchRoads posts b to /api/roads. Non-2xx replies become *StatusError.
func (c *Client) FetchRoads(ctx context.Context, b geo.Bounds) ([]roads.Segment, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding bounds: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(serr); err != nil || serr.Message == "" {
			serr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, serr
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding roads response: %w", err)
	}
	c.logger.Debug("fetched roads", "road_count", out.RoadCount, "duration", time.Since(start))
	return out.Roads, nil
}
