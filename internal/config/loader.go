package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// ErrInvalid marks configuration that fails validation. Fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

// listKeys are the env-settable fields that hold lists. Their env values
// are comma separated; everything else passes through as a plain string.
var listKeys = map[string]bool{
	"horizons":                true,
	"kafka.brokers":           true,
	"alerts.level_boundaries": true,
}

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. YAML file named by FUSION_CONFIG, if set
//  3. env vars with prefix FUSION_ ("__" separates nested sections)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FUSION_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue("FUSION_", ".", func(key, value string) (string, any) {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, "fusion_")
		key = strings.ReplaceAll(key, "__", ".")
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. Violations wrap ErrInvalid.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty: %w", ErrInvalid)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error: %w", c.LogLevel, ErrInvalid)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format %q is not json or text: %w", c.LogFormat, ErrInvalid)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive: %w", ErrInvalid)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle_interval must be positive: %w", ErrInvalid)
	}

	if len(c.Horizons) == 0 {
		return fmt.Errorf("horizons must not be empty: %w", ErrInvalid)
	}
	if _, err := domain.ParseHorizons(c.Horizons); err != nil {
		return fmt.Errorf("horizons: %v: %w", err, ErrInvalid)
	}

	if len(c.Regions) == 0 {
		return fmt.Errorf("regions must not be empty: %w", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Regions))
	for _, r := range c.Regions {
		if r.Name == "" {
			return fmt.Errorf("region name must not be empty: %w", ErrInvalid)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate region %q: %w", r.Name, ErrInvalid)
		}
		seen[r.Name] = true
	}

	switch c.Observations.Mode {
	case "synthetic":
	case "file":
		if c.Observations.FixtureDir == "" {
			return fmt.Errorf("observations.fixture_dir is required in file mode: %w", ErrInvalid)
		}
	default:
		return fmt.Errorf("observations.mode %q is not synthetic or file: %w", c.Observations.Mode, ErrInvalid)
	}
	if c.Observations.WindowHours <= 0 {
		return fmt.Errorf("observations.window_hours must be positive: %w", ErrInvalid)
	}

	if c.Remote.Enabled {
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required when remote is enabled: %w", ErrInvalid)
		}
		if c.Remote.APIKey == "" {
			return fmt.Errorf("remote.api_key is required when remote is enabled: %w", ErrInvalid)
		}
		if c.Remote.Model == "" {
			return fmt.Errorf("remote.model is required when remote is enabled: %w", ErrInvalid)
		}
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive: %w", ErrInvalid)
	}
	if c.Remote.CacheSize < 0 {
		return fmt.Errorf("remote.cache_size must not be negative: %w", ErrInvalid)
	}

	if c.Uncertainty.Samples < 1 {
		return fmt.Errorf("uncertainty.samples must be at least 1: %w", ErrInvalid)
	}
	if c.Uncertainty.Confidence <= 0 || c.Uncertainty.Confidence >= 1 {
		return fmt.Errorf("uncertainty.confidence must be inside (0, 1): %w", ErrInvalid)
	}

	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %v: %w", err, ErrInvalid)
	}

	if len(c.Alerts.LevelBoundaries) != 3 {
		return fmt.Errorf("alerts.level_boundaries must list exactly three scores: %w", ErrInvalid)
	}
	for i := 1; i < len(c.Alerts.LevelBoundaries); i++ {
		if c.Alerts.LevelBoundaries[i] <= c.Alerts.LevelBoundaries[i-1] {
			return fmt.Errorf("alerts.level_boundaries must be strictly ascending: %w", ErrInvalid)
		}
	}
	if c.Alerts.File && c.Alerts.FileDir == "" {
		return fmt.Errorf("alerts.file_dir is required when the file sink is enabled: %w", ErrInvalid)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must not be empty when kafka is enabled: %w", ErrInvalid)
		}
		if c.Kafka.ForecastTopic == "" || c.Kafka.AlertTopic == "" {
			return fmt.Errorf("kafka topics must not be empty when kafka is enabled: %w", ErrInvalid)
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty: %w", ErrInvalid)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DomainRegions converts the configured regions.
func (c *Config) DomainRegions() []domain.Region {
	out := make([]domain.Region, len(c.Regions))
	for i, r := range c.Regions {
		out[i] = r.Region()
	}
	return out
}
