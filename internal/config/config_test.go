package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.CycleInterval)
	assert.Equal(t, domain.DefaultHorizonIDs, cfg.Horizons)

	require.Len(t, cfg.Regions, 2)
	assert.Equal(t, "xuancheng", cfg.Regions[0].Name)
	assert.Equal(t, 30.9, cfg.Regions[0].Lat)
	assert.Equal(t, 118.8, cfg.Regions[0].Lon)
	assert.Equal(t, "xuanzhou", cfg.Regions[1].Name)
	assert.Equal(t, 118.75, cfg.Regions[1].Lon)

	assert.Equal(t, "synthetic", cfg.Observations.Mode)
	assert.Equal(t, 240, cfg.Observations.WindowHours)

	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 0.7, cfg.Remote.Temperature)
	assert.Equal(t, 2000, cfg.Remote.MaxTokens)
	assert.Equal(t, 750*time.Millisecond, cfg.Remote.RateInterval)
	assert.Equal(t, 256, cfg.Remote.CacheSize)

	assert.Equal(t, 100, cfg.Uncertainty.Samples)
	assert.Equal(t, 0.95, cfg.Uncertainty.Confidence)
	assert.Equal(t, int64(42), cfg.Uncertainty.Seed)

	assert.Equal(t, 32.7, cfg.Thresholds.Typhoon.MinWindSpeed)
	assert.Equal(t, 980.0, cfg.Thresholds.Typhoon.MaxPressure)
	assert.Equal(t, 50.0, cfg.Thresholds.HeavyRain.Threshold)
	assert.Equal(t, 3*time.Hour, cfg.Thresholds.HeavyRain.MinDuration)
	assert.Equal(t, 72*time.Hour, cfg.Thresholds.HighTemp.MinDuration)
	assert.Equal(t, 48*time.Hour, cfg.Thresholds.LowTemp.MinDuration)
	assert.Equal(t, 12*time.Hour, cfg.Thresholds.HeavySnow.MinDuration)

	assert.Equal(t, []float64{2, 3, 4}, cfg.Alerts.LevelBoundaries)
	assert.True(t, cfg.Alerts.Console)
	assert.True(t, cfg.Alerts.File)
	assert.Equal(t, "alerts", cfg.Alerts.FileDir)

	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "fusion-forecasts", cfg.Kafka.ForecastTopic)
	assert.Equal(t, "fusion-alerts", cfg.Kafka.AlertTopic)

	assert.Equal(t, "forecast-fusion.db", cfg.Store.Path)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FUSION_HTTP_ADDR", ":9090")
	t.Setenv("FUSION_LOG_LEVEL", "debug")
	t.Setenv("FUSION_LOG_FORMAT", "text")
	t.Setenv("FUSION_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("FUSION_CYCLE_INTERVAL", "15m")
	t.Setenv("FUSION_HORIZONS", "1h,6h,1day")
	t.Setenv("FUSION_OBSERVATIONS__WINDOW_HOURS", "120")
	t.Setenv("FUSION_REMOTE__ENABLED", "true")
	t.Setenv("FUSION_REMOTE__BASE_URL", "https://llm.example.com/v1")
	t.Setenv("FUSION_REMOTE__API_KEY", "sk-test")
	t.Setenv("FUSION_REMOTE__MODEL", "forecaster-large")
	t.Setenv("FUSION_UNCERTAINTY__SAMPLES", "500")
	t.Setenv("FUSION_KAFKA__ENABLED", "true")
	t.Setenv("FUSION_KAFKA__BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("FUSION_STORE__PATH", ":memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.CycleInterval)
	assert.Equal(t, []string{"1h", "6h", "1day"}, cfg.Horizons)
	assert.Equal(t, 120, cfg.Observations.WindowHours)
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "https://llm.example.com/v1", cfg.Remote.BaseURL)
	assert.Equal(t, "sk-test", cfg.Remote.APIKey)
	assert.Equal(t, "forecaster-large", cfg.Remote.Model)
	assert.Equal(t, 500, cfg.Uncertainty.Samples)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, ":memory:", cfg.Store.Path)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.yaml")
	doc := `
http_addr: ":7070"
regions:
  - name: ningguo
    display_name: Ningguo
    lat: 30.63
    lon: 118.98
thresholds:
  heavy_rain:
    threshold: 40
    min_duration: 2h
alerts:
  level_boundaries: [1.5, 2.5, 3.5]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("FUSION_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	require.Len(t, cfg.Regions, 1)
	assert.Equal(t, "ningguo", cfg.Regions[0].Name)
	assert.Equal(t, 40.0, cfg.Thresholds.HeavyRain.Threshold)
	assert.Equal(t, 2*time.Hour, cfg.Thresholds.HeavyRain.MinDuration)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, cfg.Alerts.LevelBoundaries)
	// Untouched sections keep their defaults.
	assert.Equal(t, 50.0, cfg.Thresholds.HeavyRain.Severity.Bands[1].From)
	assert.Equal(t, "synthetic", cfg.Observations.Mode)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":7070\"\n"), 0o600))
	t.Setenv("FUSION_CONFIG", path)
	t.Setenv("FUSION_HTTP_ADDR", ":6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.HTTPAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("FUSION_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "FUSION_LOG_LEVEL", "verbose"},
		{"bad log format", "FUSION_LOG_FORMAT", "xml"},
		{"negative shutdown timeout", "FUSION_SHUTDOWN_TIMEOUT", "-5s"},
		{"zero cycle interval", "FUSION_CYCLE_INTERVAL", "0s"},
		{"bad horizon", "FUSION_HORIZONS", "1h,fortnight"},
		{"bad observations mode", "FUSION_OBSERVATIONS__MODE", "live"},
		{"zero window", "FUSION_OBSERVATIONS__WINDOW_HOURS", "0"},
		{"zero samples", "FUSION_UNCERTAINTY__SAMPLES", "0"},
		{"confidence too high", "FUSION_UNCERTAINTY__CONFIDENCE", "1.0"},
		{"empty store path", "FUSION_STORE__PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_RemoteEnabledWithoutCredentials(t *testing.T) {
	t.Setenv("FUSION_REMOTE__ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "remote.base_url")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("FUSION_KAFKA__ENABLED", "true")
	t.Setenv("FUSION_KAFKA__BROKERS", "")
	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate_Regions(t *testing.T) {
	t.Run("no regions", func(t *testing.T) {
		cfg := New()
		cfg.Regions = nil
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("duplicate region", func(t *testing.T) {
		cfg := New()
		cfg.Regions = append(cfg.Regions, cfg.Regions[0])
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})
}

func TestValidate_LevelBoundaries(t *testing.T) {
	t.Run("wrong count", func(t *testing.T) {
		cfg := New()
		cfg.Alerts.LevelBoundaries = []float64{2, 3}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("not ascending", func(t *testing.T) {
		cfg := New()
		cfg.Alerts.LevelBoundaries = []float64{3, 2, 4}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})
}

func TestDomainRegions(t *testing.T) {
	cfg := New()
	regions := cfg.DomainRegions()
	require.Len(t, regions, 2)
	assert.Equal(t, domain.Region{Name: "xuancheng", DisplayName: "Xuancheng", Lat: 30.9, Lon: 118.8}, regions[0])
}
