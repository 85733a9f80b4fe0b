package osm

import "time"

// MonitoringHooks defines hooks for monitoring HTTP requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called after waiting on a rate limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)
}
