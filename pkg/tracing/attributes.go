package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// Road fetch attributes
	AttrRoadsNorth = "roads.bounds.north"
	AttrRoadsSouth = "roads.bounds.south"
	AttrRoadsEast  = "roads.bounds.east"
	AttrRoadsWest  = "roads.bounds.west"
	AttrRoadsCount = "roads.count"

	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"

	// External service attributes
	AttrServiceName      = "osm.service.name"
	AttrServiceOperation = "osm.service.operation"
	AttrServiceStatus    = "osm.service.status"

	// Cache attributes
	AttrCacheHit = "roads.cache.hit"

	// Rate limiting attributes
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPRequestID  = "http.request_id"
)

// Service names
const (
	ServiceOverpass = "overpass"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BoundsAttributes returns the four edges of a bounds request.
func BoundsAttributes(north, south, east, west float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrRoadsNorth, north),
		attribute.Float64(AttrRoadsSouth, south),
		attribute.Float64(AttrRoadsEast, east),
		attribute.Float64(AttrRoadsWest, west),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.Int(AttrServiceStatus, status),
	}
}
