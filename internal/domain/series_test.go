package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlySamples(start time.Time, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{Timestamp: start.Add(time.Duration(i) * time.Hour), Temperature: 20}
	}
	return out
}

func TestObservationSeriesValidate(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid hourly series", func(t *testing.T) {
		s := ObservationSeries{Region: "xuancheng", Samples: hourlySamples(start, 24)}
		require.NoError(t, s.Validate())
	})

	t.Run("empty series", func(t *testing.T) {
		s := ObservationSeries{Region: "xuancheng"}
		err := s.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("duplicate timestamp", func(t *testing.T) {
		samples := hourlySamples(start, 3)
		samples[2].Timestamp = samples[1].Timestamp
		err := ObservationSeries{Region: "xuancheng", Samples: samples}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("decreasing timestamp", func(t *testing.T) {
		samples := hourlySamples(start, 3)
		samples[1].Timestamp = start.Add(-time.Hour)
		err := ObservationSeries{Region: "xuancheng", Samples: samples}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestObservationSeriesTail(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	s := ObservationSeries{Region: "xuancheng", Samples: hourlySamples(start, 10)}

	t.Run("cutoff inside series", func(t *testing.T) {
		tail := s.Tail(start.Add(6 * time.Hour))
		require.Len(t, tail.Samples, 3)
		assert.Equal(t, start.Add(7*time.Hour), tail.Samples[0].Timestamp)
	})

	t.Run("cutoff before series keeps everything", func(t *testing.T) {
		tail := s.Tail(start.Add(-time.Hour))
		assert.Len(t, tail.Samples, 10)
	})

	t.Run("cutoff after series keeps nothing", func(t *testing.T) {
		tail := s.Tail(start.Add(24 * time.Hour))
		assert.Empty(t, tail.Samples)
	})
}

func TestObservationSeriesLatest(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns last sample", func(t *testing.T) {
		s := ObservationSeries{Samples: hourlySamples(start, 5)}
		latest, ok := s.Latest()
		require.True(t, ok)
		assert.Equal(t, start.Add(4*time.Hour), latest.Timestamp)
	})

	t.Run("empty series", func(t *testing.T) {
		_, ok := ObservationSeries{}.Latest()
		assert.False(t, ok)
	})
}

func TestObservationSeriesSpan(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 9*time.Hour, ObservationSeries{Samples: hourlySamples(start, 10)}.Span())
	assert.Equal(t, time.Duration(0), ObservationSeries{Samples: hourlySamples(start, 1)}.Span())
	assert.Equal(t, time.Duration(0), ObservationSeries{}.Span())
}

func TestSampleValue(t *testing.T) {
	s := Sample{
		Temperature:       31.5,
		Humidity:          72,
		Pressure:          1002,
		WindSpeed:         4.2,
		PrecipitationRate: 12,
		Snowfall:          0,
		CloudCover:        80,
		Visibility:        9,
	}

	tests := []struct {
		param    string
		expected float64
	}{
		{ParamTemperature, 31.5},
		{ParamHumidity, 72},
		{ParamPressure, 1002},
		{ParamWindSpeed, 4.2},
		{ParamPrecipitationRate, 12},
		{ParamSnowfall, 0},
		{ParamCloudCover, 80},
		{ParamVisibility, 9},
		{ParamAQI, 0},
		{"unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Value(tt.param))
		})
	}
}

func TestSampleFromParameters(t *testing.T) {
	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		s := Sample{Timestamp: ts, Temperature: 28, Humidity: 65, Pressure: 1008, WindSpeed: 3}
		back := SampleFromParameters(ts, s.Parameters())
		assert.Equal(t, s, back)
	})

	t.Run("forecast-only parameters are dropped", func(t *testing.T) {
		p := Parameters{ParamTemperature: 25, ParamAQI: 120, ParamPrecipProbability: 40}
		s := SampleFromParameters(ts, p)
		assert.Equal(t, 25.0, s.Temperature)
		assert.Equal(t, 0.0, s.Value(ParamAQI))
	})
}
