package geo

import (
	"errors"
	"math"

	"github.com/wroge/wgs84"
)

// EarthRadiusM is the mean Earth radius used by the spherical formulas.
const EarthRadiusM = 6371000.0

// ErrInvalidCoordinates is returned when a sample's coordinates are out
// of range and cannot be recovered by axis-swap correction.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const degToRad = math.Pi / 180.0

// Haversine returns the great-circle distance in meters between two
// WGS84 points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	lat1r := lat1 * degToRad
	lat2r := lat2 * degToRad
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Bearing returns the forward azimuth in degrees [0,360) from the
// first point to the second. 0 is north, 90 is east.
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	lat1r := lat1 * degToRad
	lat2r := lat2 * degToRad
	dLng := (lng2 - lng1) * degToRad

	y := math.Sin(dLng) * math.Cos(lat2r)
	x := math.Cos(lat1r)*math.Sin(lat2r) - math.Sin(lat1r)*math.Cos(lat2r)*math.Cos(dLng)
	bearing := math.Atan2(y, x) / degToRad

	return math.Mod(bearing+360.0, 360.0)
}

// CorrectLatLng validates a latitude/longitude pair. When a sensor or
// gateway has swapped the axes (|lat|>90 while |lon| would be a valid
// latitude), the two values are swapped back; anything else out of
// range is rejected with ErrInvalidCoordinates.
func CorrectLatLng(lat, lng float64) (float64, float64, error) {
	if math.Abs(lat) > 90 && math.Abs(lng) <= 90 {
		lat, lng = lng, lat
	}
	if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return 0, 0, ErrInvalidCoordinates
	}
	return lat, lng, nil
}

// ToWebMercator projects a WGS84 position into EPSG:3857 for the tile
// map widget.
func ToWebMercator(lat, lng float64) (x, y float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(lng, lat, 0)
	return x, y
}
