package entities

import "time"

// Alert is one traffic/roadwork notice from the national traffic feed.
type Alert struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Road       string   `json:"road"`
	Details    string   `json:"details"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	ValidFrom  string   `json:"validFrom,omitempty"`
	ValidUntil string   `json:"validUntil,omitempty"`
}

// WeatherStation is one roadside weather station reading.
type WeatherStation struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	TempC           float64  `json:"temp"`
	WindSpeedKmh    float64  `json:"windSpeed"`
	WindGustKmh     float64  `json:"windGust"`
	DistanceFromRab float64  `json:"distanceFromRab,omitempty"`
}

// Counter is one traffic counter lane. Counters sharing rounded coordinates
// are merged into a single feature by the builder.
type Counter struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	FlowPerHour     int      `json:"flow"`
	SpeedKmh        int      `json:"speed"`
	DistanceFromRab float64  `json:"distanceFromRab,omitempty"`
}

// Camera is one live traffic camera.
type Camera struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	DistanceFromRab float64  `json:"distanceFromRab,omitempty"`
}

// SeaQualityPoint is one bathing-water measurement site. Quality codes run
// 1 (excellent) through 4 (poor).
type SeaQualityPoint struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	City    string   `json:"city"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Quality int      `json:"quality"`
	Year    string   `json:"year,omitempty"`
	History []string `json:"history,omitempty"`
}

// Dataset is one fetched bundle of domain records (island, coastal or
// global). The extension datasets only carry the record kinds they have.
type Dataset struct {
	Alerts        []Alert           `json:"alerts"`
	Weather       []WeatherStation  `json:"weather"`
	IslandWeather []WeatherStation  `json:"islandWeather"`
	Counters      []Counter         `json:"counters"`
	Cameras       []Camera          `json:"cameras"`
	SeaQuality    []SeaQualityPoint `json:"seaQuality"`
}

// Snapshot is the full data state the builder reads: the periodically
// refreshed island dataset plus the two lazily loaded extension datasets.
// The builder treats a snapshot as read-only.
type Snapshot struct {
	Island        Dataset
	Coastal       Dataset
	Global        Dataset
	CoastalLoaded bool
	GlobalLoaded  bool
	RefreshedAt   time.Time
}

// Prefs is the persisted user selection: enabled overlays, scope, and the
// collapsed/expanded state of the filter panel. Stored as JSON in the
// key-value store and restored at startup.
type Prefs struct {
	Layers    LayerFilters `json:"layers"`
	Scope     Scope        `json:"scope"`
	Collapsed bool         `json:"collapsed"`
}

// DefaultPrefs mirrors the filter UI defaults: all overlays on, regional
// scope, panel collapsed.
func DefaultPrefs() Prefs {
	return Prefs{Layers: AllLayersEnabled(), Scope: ScopeRegional, Collapsed: true}
}
