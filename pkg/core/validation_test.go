package core

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
)

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name     string
		input    BoundsInput
		wantCode ErrorCode
		wantErr  error
	}{
		{
			name:  "valid",
			input: BoundsInput{North: 37.8, South: 37.7, East: -122.4, West: -122.5},
		},
		{
			name:     "north below south",
			input:    BoundsInput{North: 37, South: 38, East: -122.4, West: -122.5},
			wantCode: ErrInvalidBounds,
			wantErr:  geo.ErrInvertedBounds,
		},
		{
			name:     "east equals west",
			input:    BoundsInput{North: 38, South: 37, East: -122.5, West: -122.5},
			wantCode: ErrInvalidBounds,
		},
		{
			name:     "missing west",
			input:    BoundsInput{North: 38, South: 37, East: -122.4},
			wantCode: ErrMissingParameter,
			wantErr:  geo.ErrMissingBounds,
		},
		{
			name:     "latitude out of range",
			input:    BoundsInput{North: 95, South: 37, East: -122.4, West: -122.5},
			wantCode: ErrInvalidLatitude,
			wantErr:  geo.ErrLatitudeRange,
		},
		{
			name:     "longitude out of range",
			input:    BoundsInput{North: 38, South: 37, East: 190, West: -122.5},
			wantCode: ErrInvalidLongitude,
			wantErr:  geo.ErrLongitudeRange,
		},
		{
			name:     "south latitude out of range",
			input:    BoundsInput{North: 38, South: -91, East: -122.4, West: -122.5},
			wantCode: ErrInvalidLatitude,
			wantErr:  geo.ErrLatitudeRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ValidateBounds(tt.input)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if b != tt.input.Bounds() {
					t.Errorf("bounds = %+v", b)
				}
				return
			}

			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if e.Code != string(tt.wantCode) {
				t.Errorf("code = %s, want %s", e.Code, tt.wantCode)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain", tt.wantErr)
			}
			if !IsValidation(err) {
				t.Error("IsValidation returned false")
			}
		})
	}
}

func TestValidateBoundsNamesMissingFields(t *testing.T) {
	_, err := ValidateBounds(BoundsInput{North: 38, South: 37})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "east") || !strings.Contains(msg, "west") {
		t.Errorf("message should name missing fields: %s", msg)
	}
}

func TestServiceError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusGatewayTimeout, ErrServiceTimeout},
		{http.StatusBadRequest, ErrInvalidInput},
		{http.StatusInternalServerError, ErrInternalError},
		{http.StatusBadGateway, ErrServiceUnavailable},
		{0, ErrNetworkError},
	}

	for _, tt := range tests {
		e := ServiceError("overpass", tt.status, "boom")
		if e.Code != string(tt.want) {
			t.Errorf("status %d: code %s, want %s", tt.status, e.Code, tt.want)
		}
		if e.Guidance == "" {
			t.Errorf("status %d: missing guidance", tt.status)
		}
		if IsValidation(e) {
			t.Errorf("status %d: service error classified as validation", tt.status)
		}
	}
}
