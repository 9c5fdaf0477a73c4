package utils

import (
	"math"
)

const (
	EarthRadiusKm = 6371.0
)

// HaversineDistance calculates the distance between two points in kilometers
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Lerp linearly interpolates between a and b. t is clamped to [0, 1] so that
// callers feeding elapsed/total ratios never overshoot an endpoint.
func Lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}

// ChebyshevDeg returns the Chebyshev (max-axis) distance between two lat/lng
// pairs in degrees. Cheap box-style proximity check — no trigonometry, good
// enough at the sub-kilometer scales where it is used.
func ChebyshevDeg(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := math.Abs(lat1 - lat2)
	dLon := math.Abs(lon1 - lon2)
	if dLat > dLon {
		return dLat
	}
	return dLon
}

// RoundCoord rounds a coordinate to the given number of decimal places.
// Used to build coordinate-keyed identities where nearby float noise must
// collapse to the same key.
func RoundCoord(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
