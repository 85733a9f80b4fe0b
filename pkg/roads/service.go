package roads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/osm"
	"github.com/NERVsystems/roadoverlay/pkg/tracing"
)

const (
	maxDetailLen = 500
	cacheType    = "roads"
	operation    = "roads"
)

// Upstream posts an Overpass query. *osm.Client satisfies it.
type Upstream interface {
	PostOverpass(ctx context.Context, query, operation string) (*http.Response, error)
}

// Options configures a Service.
type Options struct {
	// CacheSize is the number of bounds kept in the response cache.
	// Zero disables caching.
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Service fetches and normalizes the roads inside a bounding box.
type Service struct {
	upstream Upstream
	cache    *expirable.LRU[string, []Segment]
	logger   *slog.Logger
}

// NewService creates a road service on top of upstream.
func NewService(upstream Upstream, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{
		upstream: upstream,
		logger:   opts.Logger.With("component", "roads"),
	}
	if opts.CacheSize > 0 {
		if opts.CacheTTL <= 0 {
			opts.CacheTTL = 5 * time.Minute
		}
		s.cache = expirable.NewLRU[string, []Segment](opts.CacheSize, nil, opts.CacheTTL)
	}
	return s
}

// Fetch returns the road segments inside b. b must already be validated.
// Upstream failures come back as *core.Error and are never retried.
func (s *Service) Fetch(ctx context.Context, b geo.Bounds) ([]Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "roads.fetch",
		trace.WithAttributes(tracing.BoundsAttributes(b.North, b.South, b.East, b.West)...))
	defer span.End()

	key := b.String()
	if s.cache != nil {
		if segs, ok := s.cache.Get(key); ok {
			monitoring.RecordCacheHit(cacheType)
			span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, true))
			return segs, nil
		}
		monitoring.RecordCacheMiss(cacheType)
	}

	query := BuildQuery(b)
	s.logger.Debug("querying overpass", "bounds", key)

	resp, err := s.upstream.PostOverpass(ctx, query, operation)
	if err != nil {
		tracing.RecordError(ctx, err)
		monitoring.RecordError(cacheType, "network")
		return nil, core.ServiceError("Overpass", 0, err.Error()).WithQuery(query).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, utf8.UTFMax*maxDetailLen+1))
		detail := truncateDetail(string(body))
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if detail != "" {
			msg = fmt.Sprintf("status %d: %s", resp.StatusCode, detail)
		}
		s.logger.Error("overpass returned error", "status", resp.StatusCode)
		monitoring.RecordError(cacheType, "upstream_status")
		e := core.ServiceError("Overpass", resp.StatusCode, msg).WithQuery(query)
		tracing.RecordError(ctx, e)
		return nil, e
	}

	var parsed osm.OverpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.logger.Error("failed to decode overpass response", "error", err)
		monitoring.RecordError(cacheType, "decode")
		e := core.NewError(core.ErrParseError, "Failed to parse Overpass API response").
			WithQuery(query).WithCause(err)
		e.Status = http.StatusBadGateway
		tracing.RecordError(ctx, e)
		return nil, e
	}

	segs := Normalize(parsed)
	span.SetAttributes(attribute.Int(tracing.AttrRoadsCount, len(segs)))
	s.logger.Debug("fetched roads", "bounds", key, "road_count", len(segs))

	if s.cache != nil {
		s.cache.Add(key, segs)
		monitoring.UpdateCacheSize(cacheType, s.cache.Len())
	}
	return segs, nil
}

// truncateDetail cuts s to maxDetailLen characters, never inside a rune.
func truncateDetail(s string) string {
	n := 0
	for i := range s {
		if n == maxDetailLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
