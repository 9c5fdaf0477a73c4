// Package utils provides shared utility functions used across the application.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is intended to be importable by external projects (unlike
// internal/ which is compiler-enforced private). This is a community convention,
// not a Go language feature. Some Go projects avoid pkg/ entirely and put
// importable packages at the module root. Use pkg/ when you want to clearly
// signal "these packages are part of the public API."
package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID creates a new UUID v4 string for use as an entity identifier.
//
// Go Learning Note — "github.com/google/uuid":
// This library generates RFC 4122 UUIDs. uuid.New() creates a v4 (random) UUID
// like "550e8400-e29b-41d4-a716-446655440000". UUIDs are good for distributed
// systems because they can be generated without coordination (no central counter).
// The collision probability is astronomically low (1 in 2^122).
func GenerateID() string {
	return uuid.New().String()
}

// CoordKey builds a coordinate-keyed identity at the given precision, e.g.
// "44.756800:14.768900". Records whose coordinates round to the same key are
// treated as the same physical site.
func CoordKey(lat, lng float64, places int) string {
	format := fmt.Sprintf("%%.%df:%%.%df", places, places)
	return fmt.Sprintf(format, RoundCoord(lat, places), RoundCoord(lng, places))
}

// Marker identity helpers. Every rendered marker carries exactly one of these
// prefixed IDs; the reconciler diffs on them, so they must be deterministic
// for unchanged input.

// ClusterMarkerID identifies a cluster bubble by its index-assigned cluster ID.
func ClusterMarkerID(clusterID uint32) string {
	return fmt.Sprintf("cluster:%d", clusterID)
}

// PointMarkerID identifies an individual (unclustered) feature marker.
func PointMarkerID(layer, featureID string) string {
	return fmt.Sprintf("point:%s:%s", layer, featureID)
}

// GroupMarkerID identifies a stacked-marker group by its shared rounded
// coordinates, six decimal places (about 11 cm, i.e. exact co-location).
func GroupMarkerID(lat, lng float64) string {
	return fmt.Sprintf("group:%s", CoordKey(lat, lng, 6))
}

// SpiderLegID identifies one fanned-out leaf of an expanded cluster.
func SpiderLegID(clusterMarkerID string, idx int) string {
	return fmt.Sprintf("spider:%s:%d", clusterMarkerID, idx)
}
