package mapview

import "math"

const (
	// TileSize is the edge length of a map tile in pixels.
	TileSize = 256

	// MaxLatitude is the Web Mercator latitude limit.
	MaxLatitude = 85.05112878

	// MinZoom and MaxZoom bound the zoom level.
	MinZoom = 1
	MaxZoom = 19
)

// worldSize returns the width of the world in pixels at zoom z.
func worldSize(z float64) float64 {
	return TileSize * math.Pow(2, z)
}

// toWorld converts a coordinate to Web Mercator world pixels at zoom z.
func toWorld(lat, lng, z float64) (x, y float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	size := worldSize(z)

	latRad := lat * math.Pi / 180
	x = (lng + 180) / 360 * size
	y = (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * size
	return x, y
}

// fromWorld is the inverse of toWorld.
func fromWorld(x, y, z float64) (lat, lng float64) {
	size := worldSize(z)
	lng = x/size*360 - 180
	n := math.Pi - 2*math.Pi*y/size
	lat = math.Atan(math.Sinh(n)) * 180 / math.Pi
	return lat, lng
}

// wrapLongitude folds lng into [-180, 180].
func wrapLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

func clampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}
