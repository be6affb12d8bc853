// Package config defines service settings and their layered loading:
// defaults, optional YAML file, then FUSION_-prefixed environment variables.
//
// Nested sections map to env vars with a double underscore between levels:
// FUSION_HTTP_ADDR -> http_addr, FUSION_REMOTE__API_KEY -> remote.api_key.
package config

import (
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/detect"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CycleInterval is the pause between prediction cycles.
	CycleInterval time.Duration `koanf:"cycle_interval"`

	// Horizons lists the forecast horizon IDs evaluated each cycle.
	Horizons []string `koanf:"horizons"`

	// Regions are the monitored locations.
	Regions []RegionConfig `koanf:"regions"`

	Observations ObservationsConfig `koanf:"observations"`
	Remote       RemoteConfig       `koanf:"remote"`
	Uncertainty  UncertaintyConfig  `koanf:"uncertainty"`
	Thresholds   detect.Rules       `koanf:"thresholds"`
	Alerts       AlertsConfig       `koanf:"alerts"`
	Kafka        KafkaConfig        `koanf:"kafka"`
	Store        StoreConfig        `koanf:"store"`
}

// RegionConfig is one monitored location.
type RegionConfig struct {
	Name        string  `koanf:"name"`
	DisplayName string  `koanf:"display_name"`
	Lat         float64 `koanf:"lat"`
	Lon         float64 `koanf:"lon"`
}

// Region converts to the domain representation.
func (r RegionConfig) Region() domain.Region {
	return domain.Region{Name: r.Name, DisplayName: r.DisplayName, Lat: r.Lat, Lon: r.Lon}
}

// ObservationsConfig selects and tunes the observation source.
type ObservationsConfig struct {
	// Mode is "synthetic" (seasonal generator) or "file" (genobs fixtures).
	Mode string `koanf:"mode"`
	// WindowHours is the series length handed to each cycle.
	WindowHours int `koanf:"window_hours"`
	// FixtureDir holds per-region JSON fixtures for file mode.
	FixtureDir string `koanf:"fixture_dir"`
	// Seed drives the synthetic generator.
	Seed int64 `koanf:"seed"`
}

// RemoteConfig describes the chat-completion forecast endpoint.
type RemoteConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	Model        string        `koanf:"model"`
	Timeout      time.Duration `koanf:"timeout"`
	Temperature  float64       `koanf:"temperature"`
	MaxTokens    int           `koanf:"max_tokens"`
	RateInterval time.Duration `koanf:"rate_interval"`
	CacheSize    int           `koanf:"cache_size"`
}

// UncertaintyConfig tunes the resampling estimator.
type UncertaintyConfig struct {
	Samples    int     `koanf:"samples"`
	Confidence float64 `koanf:"confidence"`
	Seed       int64   `koanf:"seed"`
}

// AlertsConfig controls level mapping and sink selection.
type AlertsConfig struct {
	// LevelBoundaries are the ascending severity scores at which an alert
	// reaches yellow, orange, and red. Scores below the first stay blue.
	LevelBoundaries []float64 `koanf:"level_boundaries"`
	Console         bool      `koanf:"console"`
	File            bool      `koanf:"file"`
	FileDir         string    `koanf:"file_dir"`
}

// KafkaConfig enables the forecast/alert record publisher.
type KafkaConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Brokers       []string `koanf:"brokers"`
	ForecastTopic string   `koanf:"forecast_topic"`
	AlertTopic    string   `koanf:"alert_topic"`
}

// StoreConfig locates the SQLite archive. ":memory:" keeps it in-process.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// New returns the configuration defaults.
func New() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		CycleInterval:   time.Hour,
		Horizons:        append([]string(nil), domain.DefaultHorizonIDs...),
		Regions: []RegionConfig{
			{Name: "xuancheng", DisplayName: "Xuancheng", Lat: 30.9, Lon: 118.8},
			{Name: "xuanzhou", DisplayName: "Xuanzhou District", Lat: 30.9, Lon: 118.75},
		},
		Observations: ObservationsConfig{
			Mode:        "synthetic",
			WindowHours: 240,
			Seed:        42,
		},
		Remote: RemoteConfig{
			Enabled:      false,
			Timeout:      30 * time.Second,
			Temperature:  0.7,
			MaxTokens:    2000,
			RateInterval: 750 * time.Millisecond,
			CacheSize:    256,
		},
		Uncertainty: UncertaintyConfig{
			Samples:    100,
			Confidence: 0.95,
			Seed:       42,
		},
		Thresholds: detect.DefaultRules(),
		Alerts: AlertsConfig{
			LevelBoundaries: []float64{2, 3, 4},
			Console:         true,
			File:            true,
			FileDir:         "alerts",
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ForecastTopic: "fusion-forecasts",
			AlertTopic:    "fusion-alerts",
		},
		Store: StoreConfig{
			Path: "forecast-fusion.db",
		},
	}
}
