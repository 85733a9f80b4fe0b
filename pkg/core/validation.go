package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
)

// BoundsInput is the wire form of a bounds request. Zero counts as absent.
type BoundsInput struct {
	North float64 `json:"north" validate:"required"`
	South float64 `json:"south" validate:"required"`
	East  float64 `json:"east" validate:"required"`
	West  float64 `json:"west" validate:"required"`
}

// Bounds converts the input to geo.Bounds.
func (in BoundsInput) Bounds() geo.Bounds {
	return geo.Bounds{North: in.North, South: in.South, East: in.East, West: in.West}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateBounds checks presence, ordering and range of a bounds request.
func ValidateBounds(in BoundsInput) (geo.Bounds, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return geo.Bounds{}, NewValidationError(ErrInvalidInput, err.Error())
		}
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return geo.Bounds{}, NewValidationError(ErrMissingParameter,
			"Missing required bounds: "+strings.Join(missing, ", ")).
			WithCause(geo.ErrMissingBounds)
	}

	b := in.Bounds()
	if b.North <= b.South || b.East <= b.West {
		return geo.Bounds{}, NewValidationError(ErrInvalidBounds,
			"Invalid bounds: north must be greater than south and east must be greater than west").
			WithCause(geo.ErrInvertedBounds)
	}
	for _, corner := range []geo.Location{{Latitude: b.North, Longitude: b.East}, {Latitude: b.South, Longitude: b.West}} {
		if err := geo.ValidateCoords(corner.Latitude, corner.Longitude); err != nil {
			return geo.Bounds{}, coordsError(err)
		}
	}
	return b, nil
}

// coordsError gives a geo range error its validation code.
func coordsError(err error) *Error {
	code := ErrInvalidInput
	switch {
	case errors.Is(err, geo.ErrLatitudeRange):
		code = ErrInvalidLatitude
	case errors.Is(err, geo.ErrLongitudeRange):
		code = ErrInvalidLongitude
	}
	msg := err.Error()
	return NewValidationError(code, strings.ToUpper(msg[:1])+msg[1:]).WithCause(err)
}
