package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
	"github.com/NERVsystems/roadoverlay/pkg/tools"
)

type stubFetcher struct {
	segs []roads.Segment
	err  error
}

func (f stubFetcher) Fetch(context.Context, geo.Bounds) ([]roads.Segment, error) {
	return f.segs, f.err
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	if deps.Roads == nil {
		deps.Roads = stubFetcher{}
	}
	s, err := New(Config{RateLimit: 100, RateBurst: 100}, deps, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown(context.Background())
	})
	return ts
}

func TestNewRequiresRoads(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{}, nil); err == nil {
		t.Error("expected error without a roads fetcher")
	}
}

func TestRoutes(t *testing.T) {
	feed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	})
	ts := newTestServer(t, Deps{Feed: feed})

	tests := []struct {
		path string
		want int
	}{
		{"/", http.StatusOK},
		{"/health", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/live", http.StatusOK},
		{"/api/vehicles.pb", http.StatusOK},
		{"/api/roads?north=37.5&south=37.3&east=-122.0&west=-122.2", http.StatusOK},
		{"/api/roads?north=37&south=38&east=-122.0&west=-122.2", http.StatusBadRequest},
		{"/ws", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if resp.Header.Get(RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestUpstreamErrorMapsTo500(t *testing.T) {
	ts := newTestServer(t, Deps{Roads: stubFetcher{
		err: core.ServiceError("Overpass", http.StatusTooManyRequests, "status 429"),
	}})

	resp, err := http.Post(ts.URL+"/api/roads", "application/json",
		strings.NewReader(`{"north":37.5,"south":37.3,"east":-122.0,"west":-122.2}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body errorBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Error != fetchFailedMessage || !strings.Contains(body.Details, "429") {
		t.Errorf("body = %+v", body)
	}
}

func TestHealthUsesChecker(t *testing.T) {
	hc := monitoring.NewHealthChecker("roadoverlay", "test")
	hc.UpdateConnection("overpass", "error", 0, errors.New("down"))
	ts := newTestServer(t, Deps{Health: hc})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with a failed connection", resp.StatusCode)
	}
}

func TestMCPTransportMounted(t *testing.T) {
	mcp := tools.NewMCPServer(tools.NewRegistry(stubFetcher{}, nil, nil))
	ts := newTestServer(t, Deps{MCP: mcp})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+MCPBasePath+"/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(line) != "event: endpoint" {
		t.Errorf("first event line = %q", line)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s, err := New(Config{}, Deps{Roads: stubFetcher{}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/live")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	ln2, _ := net.Listen("tcp", "127.0.0.1:0")
	if err := s.Serve(ln2); err == nil {
		t.Error("second Serve should fail")
	}
}
