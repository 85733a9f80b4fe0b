// Package core provides the error taxonomy and input validation shared by the
// HTTP API and the MCP tools.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidBounds    ErrorCode = "INVALID_BOUNDS"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded error with optional guidance for the caller. Status holds
// the upstream HTTP status of a service error; it is 0 when the service was
// unreachable and never reaches the caller.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Query    string `json:"query,omitempty"`
	Guidance string `json:"guidance,omitempty"`
	Status   int    `json:"-"`

	cause    error
	upstream bool
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *Error) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(errorJSON))
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try a smaller map area."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The upstream service rejected the query."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The upstream service encountered an error. Please try again later."
	case 0:
		code = ErrNetworkError
		guidance = "The upstream service could not be reached."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later."
	}

	e := NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
	e.Status = statusCode
	e.upstream = true
	return e
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *Error {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.upstream {
		return false
	}
	switch ErrorCode(e.Code) {
	case ErrInvalidInput, ErrInvalidLatitude, ErrInvalidLongitude, ErrInvalidBounds, ErrMissingParameter:
		return true
	}
	return false
}
