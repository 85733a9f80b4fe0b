// Package geo provides the geographic primitives shared by the map, the
// overlay scene and the road fetcher.
package geo

import (
	"errors"
	"fmt"
)

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Bounds is the geographic rectangle currently visible on the map.
type Bounds struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	West  float64 `json:"west" yaml:"west"`
}

var (
	// ErrMissingBounds is returned when any edge of a bounds request is absent.
	ErrMissingBounds = errors.New("missing required bounds: north, south, east, west")
	// ErrInvertedBounds is returned when north <= south or east <= west.
	ErrInvertedBounds = errors.New("invalid bounds: north must be greater than south and east greater than west")
	// ErrLatitudeRange is wrapped by ValidateCoords for latitudes outside [-90, 90].
	ErrLatitudeRange = errors.New("latitude must be between -90 and 90")
	// ErrLongitudeRange is wrapped by ValidateCoords for longitudes outside [-180, 180].
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

// Contains reports whether the point lies inside the rectangle, edges included.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat <= b.North && lat >= b.South && lng <= b.East && lng >= b.West
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Location {
	return Location{
		Latitude:  (b.North + b.South) / 2,
		Longitude: (b.East + b.West) / 2,
	}
}

// Complete reports whether all four edges carry a value. Zero counts as absent.
func (b Bounds) Complete() bool {
	return b.North != 0 && b.South != 0 && b.East != 0 && b.West != 0
}

// String formats the bounds as south,west,north,east.
func (b Bounds) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.South, b.West, b.North, b.East)
}

// ValidateCoords validates latitude and longitude values. The error wraps
// ErrLatitudeRange or ErrLongitudeRange.
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w, got %f", ErrLatitudeRange, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w, got %f", ErrLongitudeRange, lon)
	}
	return nil
}
