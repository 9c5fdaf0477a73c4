// Package config centralizes all application configuration into typed structs.
//
// Go Learning Note — Configuration Management:
// Go projects typically manage configuration in one of these ways:
//  1. Struct literals with defaults (the base layer here)
//  2. Environment variables via os.Getenv() or "github.com/kelseyhightower/envconfig"
//  3. Config files (YAML/TOML) via "github.com/spf13/viper"
//  4. Command-line flags via the standard "flag" package
//
// This service layers 2 over 1: NewDefaultConfig() returns the production
// constants, LoadFromEnv() overrides the deployment-specific ones. Using
// typed structs (not raw strings/maps) gives you compile-time safety and IDE
// autocompletion. This is strongly preferred in Go over untyped config.
package config

import (
	"os"
	"strconv"
	"time"

	"rabmap/internal/domain/entities"
)

// Config is the top-level configuration container. Grouping related settings
// into sub-structs keeps the config organized as the application grows.
type Config struct {
	Server ServerConfig
	Map    MapConfig
	Ferry  FerryConfig
	Data   DataConfig
	AIS    AISConfig
	Redis  RedisConfig
}

// ServerConfig holds HTTP server settings.
//
// Go Learning Note — time.Duration:
// Go uses time.Duration (an int64 of nanoseconds) instead of raw integers for
// timeouts and intervals. This prevents unit confusion — you write
// "10 * time.Second" which is self-documenting, rather than guessing whether
// "10" means seconds, milliseconds, or something else.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MapConfig controls the marker engine: clustering tuning, the spiderfy
// expansion, and the rebuild debounce.
type MapConfig struct {
	EnableClustering     bool
	ClusterRadiusPx      float64 // merge radius in pixels
	TileExtentPx         float64
	MinZoom              int
	MaxZoom              int
	MinClusterSize       int
	SpiderfyMaxLeaves    int     // above this, clicking a cluster zooms instead
	SpiderfyBaseRadius   float64 // degrees
	SpiderfyRadiusStep   float64 // degrees per leaf
	SpiderfyMaxRadius    float64 // degrees
	RebuildDebounce      time.Duration
	LogProximityWarnings bool
}

// FerryConfig holds the crossing geometry, the fixed timetable and the
// exclusion-zone tuning. CreateEpsilonDeg guards marker creation near the
// ferry; SweepEpsilonDeg is the slightly wider integrity-sweep radius, so a
// marker that slipped past the guard is still caught.
type FerryConfig struct {
	MisnjakPort       entities.Location
	StinicaPort       entities.Location
	TripDuration      time.Duration
	Departures        []string
	TickInterval      time.Duration
	CreateEpsilonDeg  float64
	SweepEpsilonDeg   float64
	IntegrityInterval time.Duration
	Suspended         bool
}

// Schedule builds the domain schedule value from the configured timetable.
func (f FerryConfig) Schedule() entities.Schedule {
	return entities.Schedule{Departures: f.Departures, TripDuration: f.TripDuration}
}

// DataConfig holds the upstream feed endpoints, the refresh cadence and the
// geographic scope tuning. ReferencePoint is the island center every
// distance filter measures from.
type DataConfig struct {
	IslandURL        string
	CoastalURL       string
	GlobalURL        string
	SeaQualityURL    string
	RefreshInterval  time.Duration
	FetchTimeout     time.Duration
	ReferencePoint   entities.Location
	LocalRadiusKm    float64
	RegionalRadiusKm float64
}

// AISConfig holds the live vessel feed settings. The bounding box covers
// Croatian coastal waters around the crossing.
type AISConfig struct {
	StreamURL      string
	APIKey         string
	FerryMMSI      string
	BoundingBox    [2]entities.Location // south-west, north-east
	MaxFixAge      time.Duration
	ReconnectDelay time.Duration
}

// RedisConfig holds the preference store connection. An empty Addr disables
// Redis and the service falls back to the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	KeyTTL   time.Duration
}

// NewDefaultConfig returns a Config populated with the production constants.
//
// Go Learning Note — Constructor Functions:
// Go has no constructors. By convention, New<Type>() functions serve the same
// purpose. They return a pointer (*Config) so the caller gets a reference to
// shared, mutable state rather than copies of a large struct.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Map: MapConfig{
			EnableClustering:     true,
			ClusterRadiusPx:      80,
			TileExtentPx:         512,
			MinZoom:              0,
			MaxZoom:              16,
			MinClusterSize:       2,
			SpiderfyMaxLeaves:    60,
			SpiderfyBaseRadius:   0.003,
			SpiderfyRadiusStep:   0.00012,
			SpiderfyMaxRadius:    0.02,
			RebuildDebounce:      250 * time.Millisecond,
			LogProximityWarnings: true,
		},
		Ferry: FerryConfig{
			MisnjakPort:  entities.NewLocation(44.7086, 14.8647),
			StinicaPort:  entities.NewLocation(44.7214, 14.8911),
			TripDuration: 15 * time.Minute,
			Departures: []string{
				"05:30", "07:00", "08:30", "10:00", "11:30", "13:00",
				"14:30", "16:00", "17:30", "19:00", "20:30", "22:00",
			},
			TickInterval:      time.Second,
			CreateEpsilonDeg:  0.0005,
			SweepEpsilonDeg:   0.0006,
			IntegrityInterval: 3 * time.Second,
			Suspended:         false,
		},
		Data: DataConfig{
			IslandURL:        "https://radio-rab.hr/data/traffic.json",
			CoastalURL:       "https://radio-rab.hr/data/traffic-coastal.json",
			GlobalURL:        "https://radio-rab.hr/data/traffic-global.json",
			SeaQualityURL:    "https://radio-rab.hr/data/sea-quality.json",
			RefreshInterval:  5 * time.Minute,
			FetchTimeout:     15 * time.Second,
			ReferencePoint:   entities.NewLocation(44.76, 14.76),
			LocalRadiusKm:    20,
			RegionalRadiusKm: 75,
		},
		AIS: AISConfig{
			StreamURL: "wss://stream.aisstream.io/v0/stream",
			FerryMMSI: "238690000",
			BoundingBox: [2]entities.Location{
				entities.NewLocation(44.5, 14.5),
				entities.NewLocation(45.0, 15.0),
			},
			MaxFixAge:      90 * time.Second,
			ReconnectDelay: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "",
			DB:   0,
		},
	}
}

// LoadFromEnv overlays deployment-specific settings from the environment.
// Only the values that vary between deployments are exposed this way; the
// algorithm tuning stays in code.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = ":" + v
	}
	if v := os.Getenv("AISSTREAM_API_KEY"); v != "" {
		c.AIS.APIKey = v
	}
	if v := os.Getenv("FERRY_MMSI"); v != "" {
		c.AIS.FerryMMSI = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.Data.IslandURL = v + "/traffic.json"
		c.Data.CoastalURL = v + "/traffic-coastal.json"
		c.Data.GlobalURL = v + "/traffic-global.json"
		c.Data.SeaQualityURL = v + "/sea-quality.json"
	}
	if v := os.Getenv("DISABLE_CLUSTERING"); v == "1" || v == "true" {
		c.Map.EnableClustering = false
	}
}
