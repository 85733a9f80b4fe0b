package osm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/NERVsystems/roadoverlay/pkg/tracing"
)

type hookRecorder struct {
	mu        sync.Mutex
	requests  []string
	responses []bool
	rateWaits int
	errors    []string
}

func (r *hookRecorder) hooks() *MonitoringHooks {
	return &MonitoringHooks{
		OnRequest: func(service, operation string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.requests = append(r.requests, service+"/"+operation)
		},
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.responses = append(r.responses, success)
		},
		OnRateLimit: func(service string, waitTime time.Duration) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rateWaits++
		},
		OnError: func(service, errorType string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, errorType)
		},
	}
}

func TestPostOverpassSendsFormQuery(t *testing.T) {
	var gotQuery, gotUA, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(body))
		gotQuery = values.Get("data")
		gotUA = r.UserAgent()
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	rec := &hookRecorder{}
	c := NewClient(Options{OverpassURL: server.URL, UserAgent: "test-agent", RPS: 100, Burst: 10, Hooks: rec.hooks()})

	resp, err := c.PostOverpass(context.Background(), "[out:json];out;", "roads")
	if err != nil {
		t.Fatalf("PostOverpass failed: %v", err)
	}
	resp.Body.Close()

	if gotQuery != "[out:json];out;" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUA != "test-agent" {
		t.Errorf("user agent = %q", gotUA)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotContentType)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.requests) != 1 || rec.requests[0] != "overpass/roads" {
		t.Errorf("unexpected request hooks: %v", rec.requests)
	}
	if len(rec.responses) != 1 || !rec.responses[0] {
		t.Errorf("unexpected response hooks: %v", rec.responses)
	}
}

func TestDoReportsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer server.Close()

	rec := &hookRecorder{}
	c := NewClient(Options{OverpassURL: server.URL, RPS: 100, Burst: 10, Hooks: rec.hooks()})

	resp, err := c.PostOverpass(context.Background(), "x", "roads")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	resp.Body.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.responses) != 1 || rec.responses[0] {
		t.Errorf("expected one failed response, got %v", rec.responses)
	}
}

func TestDoSetsServiceAttributesOnSpan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer server.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "fetch")
	c := NewClient(Options{OverpassURL: server.URL, RPS: 100, Burst: 10})
	resp, err := c.PostOverpass(ctx, "x", "roads")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	resp.Body.Close()
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	got := make(map[string]string)
	for _, kv := range ended[0].Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		tracing.AttrServiceName:      tracing.ServiceOverpass,
		tracing.AttrServiceOperation: "roads",
		tracing.AttrServiceStatus:    "504",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("span attribute %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestDoNetworkErrorCallsOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	rec := &hookRecorder{}
	c := NewClient(Options{OverpassURL: serverURL, RPS: 100, Burst: 10, Hooks: rec.hooks()})

	if _, err := c.PostOverpass(context.Background(), "x", "roads"); err == nil {
		t.Fatal("expected error from closed server")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 1 || rec.errors[0] != "request_error" {
		t.Errorf("unexpected error hooks: %v", rec.errors)
	}
}

func TestRateLimitWaitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := &hookRecorder{}
	c := NewClient(Options{OverpassURL: server.URL, RPS: 0.01, Burst: 1, Hooks: rec.hooks()})

	resp, err := c.PostOverpass(context.Background(), "x", "roads")
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.PostOverpass(ctx, "x", "roads"); err == nil {
		t.Fatal("expected rate limit wait to fail with short deadline")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) == 0 || rec.errors[len(rec.errors)-1] != "rate_limit_wait_error" {
		t.Errorf("expected rate_limit_wait_error, got %v", rec.errors)
	}
}

func TestUnknownHostIsNotLimited(t *testing.T) {
	c := NewClient(Options{OverpassURL: "https://overpass.example/api/interpreter"})
	req, _ := http.NewRequest(http.MethodGet, "https://other.example/", nil)

	service, limiter := c.serviceFor(req)
	if service != "unknown" || limiter != nil {
		t.Errorf("got %s, %v", service, limiter)
	}
}

func TestCheckOverpassHealth(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	c := NewClient(Options{OverpassURL: server.URL, RPS: 100, Burst: 10})
	if err := c.CheckOverpassHealth(context.Background()); err != nil {
		t.Errorf("healthy upstream reported %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if err := c.CheckOverpassHealth(context.Background()); err == nil {
		t.Error("expected error for 503")
	}
}
