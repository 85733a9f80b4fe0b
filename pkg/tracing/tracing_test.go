package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracingWithoutEndpoint(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test")
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if Tracer == nil {
		t.Fatal("Tracer is nil")
	}
}

func TestSpanHelpersOnNoopTracer(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")
	ctx := context.Background()
	shutdown, _ := InitTracing(ctx, "test")
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "roads.fetch",
		trace.WithAttributes(BoundsAttributes(38, 37, -121, -123)...),
	)
	defer span.End()

	if trace.SpanFromContext(ctx) == nil {
		t.Fatal("no span in context")
	}

	// None of these may panic on a non-recording span.
	AddEvent(ctx, "rate_limit_wait")
	SetAttributes(ctx, attribute.Int(AttrRoadsCount, 3))
	RecordError(ctx, errors.New("boom"))
}

func TestSamplerFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "AlwaysOnSampler"},
		{"bogus", "AlwaysOnSampler"},
		{"2", "AlwaysOnSampler"},
		{"0.5", "ParentBased{root:TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("OTLP_SAMPLE_RATIO", tt.raw)
			got := samplerFromEnv().Description()
			if len(got) < len(tt.want) || got[:len(tt.want)] != tt.want {
				t.Errorf("sampler = %s, want prefix %s", got, tt.want)
			}
		})
	}
}

func TestAttributeHelpers(t *testing.T) {
	if attrs := BoundsAttributes(1, 0, 1, 0); len(attrs) != 4 {
		t.Errorf("BoundsAttributes returned %d attributes, expected 4", len(attrs))
	}
	attrs := ServiceAttributes(ServiceOverpass, "roads", 200)
	if len(attrs) != 3 {
		t.Fatalf("ServiceAttributes returned %d attributes, expected 3", len(attrs))
	}
	if attrs[0].Value.AsString() != "overpass" {
		t.Errorf("service attribute = %s", attrs[0].Value.AsString())
	}
}

func TestEnvironmentDetection(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	if env := getEnvironment(); env != "development" {
		t.Errorf("getEnvironment() = %s, expected 'development'", env)
	}

	t.Setenv("ENVIRONMENT", "production")
	if env := getEnvironment(); env != "production" {
		t.Errorf("getEnvironment() = %s, expected 'production'", env)
	}
}
