// Package entities defines the core domain models for the island map service.
// These structs represent the business concepts (PointFeature, MarkerHandle,
// ferry schedule, dataset snapshots) and live in the innermost layer of the
// architecture — they have no dependencies on HTTP, Redis, or the cluster index.
//
// Go Learning Note — "internal/" directory:
// Packages under internal/ cannot be imported by code outside this module. Go
// enforces this at the compiler level. This is how Go provides encapsulation
// at the package level — it prevents external code from depending on your
// internal implementation details.
package entities

import "fmt"

// LayerKind is a typed string enum identifying which overlay a feature
// belongs to. String-based enums are preferred over iota here because the
// values are serialized into marker IDs and JSON responses.
type LayerKind string

const (
	LayerAlert      LayerKind = "alert"
	LayerWeather    LayerKind = "weather"
	LayerCounter    LayerKind = "counter"
	LayerCamera     LayerKind = "camera"
	LayerSeaQuality LayerKind = "seaQuality"
)

// AllLayerKinds lists every overlay in a stable order, used when iterating
// filter selections deterministically (map iteration order is randomized).
var AllLayerKinds = []LayerKind{
	LayerAlert, LayerWeather, LayerCounter, LayerCamera, LayerSeaQuality,
}

// Location represents a geographic coordinate pair.
//
// Go Learning Note — Value Types vs Reference Types:
// Location is a small, immutable data holder returned by value, which is
// idiomatic for 16-byte structs. Larger or mutable structs (MarkerHandle)
// are passed as pointers so all holders share one instance.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewLocation creates a Location value from latitude and longitude.
func NewLocation(lat, lng float64) Location {
	return Location{Lat: lat, Lng: lng}
}

// RenderMeta carries everything the browser needs to draw one feature:
// which icon to use, how big, and the pre-rendered popup HTML.
type RenderMeta struct {
	IconKind  string `json:"iconKind"`
	IconSize  [2]int `json:"iconSize"`
	PopupHTML string `json:"popupHtml"`
}

// PointFeature is the uniform point representation every domain record is
// reduced to before spatial indexing. Instances are immutable once built for
// a given rebuild cycle; the ID is stable across rebuilds as long as the
// underlying source record is unchanged.
type PointFeature struct {
	ID        string     `json:"id"`
	Layer     LayerKind  `json:"layer"`
	Location  Location   `json:"location"`
	Render    RenderMeta `json:"render"`
	SourceRef string     `json:"sourceRef,omitempty"`
}

// FallbackFeatureID derives a feature identity for records whose source did
// not provide one. Keyed by layer and exact coordinates so the same record
// maps to the same ID on every rebuild.
func FallbackFeatureID(layer LayerKind, lng, lat float64) string {
	return fmt.Sprintf("%s:%v:%v", layer, lng, lat)
}

// LayerFilters records which overlays the user has enabled.
type LayerFilters struct {
	Roadwork   bool `json:"roadwork"`
	Weather    bool `json:"weather"`
	Counters   bool `json:"counters"`
	Cameras    bool `json:"cameras"`
	SeaQuality bool `json:"seaQuality"`
}

// AllLayersEnabled is the default filter selection (everything on).
func AllLayersEnabled() LayerFilters {
	return LayerFilters{Roadwork: true, Weather: true, Counters: true, Cameras: true, SeaQuality: true}
}

// Enabled reports whether the given overlay is selected.
func (f LayerFilters) Enabled(kind LayerKind) bool {
	switch kind {
	case LayerAlert:
		return f.Roadwork
	case LayerWeather:
		return f.Weather
	case LayerCounter:
		return f.Counters
	case LayerCamera:
		return f.Cameras
	case LayerSeaQuality:
		return f.SeaQuality
	}
	return false
}

// Scope is the geographic radius filter applied before feature indexing,
// measured as great-circle distance from the island reference point.
type Scope string

const (
	ScopeLocal    Scope = "local"    // <= 20 km
	ScopeRegional Scope = "regional" // <= 75 km
	ScopeFull     Scope = "full"     // unbounded
)

// ParseScope normalizes a user-supplied scope string, defaulting to regional
// the same way the filter UI does when nothing is selected.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeLocal, ScopeRegional, ScopeFull:
		return Scope(s)
	}
	return ScopeRegional
}
