// Package coords parses map centers given as decimal degrees, DMS or MGRS.
package coords

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akhenakh/mgrs"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
)

// Format is a coordinate notation.
type Format int

const (
	FormatUnknown Format = iota
	FormatDecimal
	FormatDMS
	FormatMGRS
)

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatDMS:
		return "dms"
	case FormatMGRS:
		return "mgrs"
	default:
		return "unknown"
	}
}

var (
	// 18SUJ2337506519: zone, latitude band, 100km square, even digit count.
	mgrsRegex = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	// 37°46'30"N 122°25'10"W, 37d46m30sN 122d25m10sW or 37 46 30 N 122 25 10 W
	dmsRegex = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	// 37.7749, -122.4194 or 37.7749 -122.4194
	decimalRegex = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*[,\s]\s*(-?\d+(?:\.\d+)?)$`)
)

var parsers = []struct {
	format Format
	parse  func(string) (geo.Location, error)
}{
	{FormatMGRS, ParseMGRS},
	{FormatDMS, ParseDMS},
	{FormatDecimal, ParseDecimal},
}

// Parse detects the notation of input and converts it to decimal degrees.
func Parse(input string) (geo.Location, Format, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return geo.Location{}, FormatUnknown, fmt.Errorf("empty coordinate string")
	}
	for _, p := range parsers {
		if loc, err := p.parse(input); err == nil {
			return loc, p.format, nil
		}
	}
	return geo.Location{}, FormatUnknown, fmt.Errorf("unrecognized coordinate format: %q", input)
}

// ParseMGRS converts an MGRS grid reference.
func ParseMGRS(input string) (geo.Location, error) {
	input = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))
	if !mgrsRegex.MatchString(input) {
		return geo.Location{}, fmt.Errorf("invalid MGRS format: %q", input)
	}

	lat, lon, err := mgrs.MGRSToLatLng(input)
	if err != nil {
		return geo.Location{}, fmt.Errorf("MGRS conversion failed: %w", err)
	}
	if err := geo.ValidateCoords(lat, lon); err != nil {
		return geo.Location{}, fmt.Errorf("MGRS %q: %w", input, err)
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}

// ParseDMS converts degrees, minutes and seconds with hemisphere letters.
func ParseDMS(input string) (geo.Location, error) {
	m := dmsRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return geo.Location{}, fmt.Errorf("invalid DMS format: %q", input)
	}

	lat, err := dmsPart(m[1], m[2], m[3], 90)
	if err != nil {
		return geo.Location{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := dmsPart(m[5], m[6], m[7], 180)
	if err != nil {
		return geo.Location{}, fmt.Errorf("longitude: %w", err)
	}
	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lon = -lon
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}

func dmsPart(deg, min, sec string, limit float64) (float64, error) {
	d, _ := strconv.ParseFloat(deg, 64)
	mi, _ := strconv.ParseFloat(min, 64)
	s, _ := strconv.ParseFloat(sec, 64)
	if mi >= 60 || s >= 60 {
		return 0, fmt.Errorf("minutes and seconds must be below 60")
	}
	v := d + mi/60 + s/3600
	if v > limit {
		return 0, fmt.Errorf("%f exceeds %.0f", v, limit)
	}
	return v, nil
}

// ParseDecimal converts a "lat, lon" pair.
func ParseDecimal(input string) (geo.Location, error) {
	m := decimalRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return geo.Location{}, fmt.Errorf("invalid decimal format: %q", input)
	}
	lat, _ := strconv.ParseFloat(m[1], 64)
	lon, _ := strconv.ParseFloat(m[2], 64)
	if err := geo.ValidateCoords(lat, lon); err != nil {
		return geo.Location{}, err
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}

// ToMGRS formats a coordinate as MGRS. Precision 1 to 5 selects 10km down
// to 1m; anything else means 1m.
func ToMGRS(loc geo.Location, precision int) (string, error) {
	if precision < 1 || precision > 5 {
		precision = 5
	}
	if err := geo.ValidateCoords(loc.Latitude, loc.Longitude); err != nil {
		return "", err
	}
	s, err := mgrs.LatLngToMGRS(loc.Latitude, loc.Longitude, precision)
	if err != nil {
		return "", fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return s, nil
}
