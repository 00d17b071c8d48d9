// Package geo provides geographic primitives for the discovery engine:
// coordinate validation, great-circle distance, and coarse geohash encoding.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distance.
const EarthRadiusKm = 6371.0

// Validation errors for coordinates.
var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Coordinates represents a geographic point with latitude and longitude in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinates are within valid ranges.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return ErrInvalidLatitude
	}
	if c.Lng < -180 || c.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Distance returns the great-circle distance between two points in kilometers,
// computed with the haversine formula over a sphere of radius EarthRadiusKm.
// The result is non-negative and symmetric: Distance(a, b) == Distance(b, a).
func Distance(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
