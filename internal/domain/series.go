package domain

import (
	"fmt"
	"time"
)

// Sample is one time point of normalized weather observations.
// Units: temperature C, humidity %, pressure hPa, wind speed m/s,
// precipitation rate mm/h, snowfall mm, cloud cover %, visibility km.
type Sample struct {
	Timestamp         time.Time `json:"timestamp"`
	Temperature       float64   `json:"temperature"`
	Humidity          float64   `json:"humidity"`
	Pressure          float64   `json:"pressure"`
	WindSpeed         float64   `json:"wind_speed"`
	PrecipitationRate float64   `json:"precipitation_rate"`
	Snowfall          float64   `json:"snowfall"`
	CloudCover        float64   `json:"cloud_cover"`
	Visibility        float64   `json:"visibility"`
}

// Value returns the sample's reading for a named parameter, or 0 for
// parameters a sample does not carry (such as AQI).
func (s Sample) Value(param string) float64 {
	switch param {
	case ParamTemperature:
		return s.Temperature
	case ParamHumidity:
		return s.Humidity
	case ParamPressure:
		return s.Pressure
	case ParamWindSpeed:
		return s.WindSpeed
	case ParamPrecipitationRate:
		return s.PrecipitationRate
	case ParamSnowfall:
		return s.Snowfall
	case ParamCloudCover:
		return s.CloudCover
	case ParamVisibility:
		return s.Visibility
	default:
		return 0
	}
}

// Parameters converts the sample into a parameter map, the shape forecast
// sources produce and consume.
func (s Sample) Parameters() Parameters {
	return Parameters{
		ParamTemperature:       s.Temperature,
		ParamHumidity:          s.Humidity,
		ParamPressure:          s.Pressure,
		ParamWindSpeed:         s.WindSpeed,
		ParamPrecipitationRate: s.PrecipitationRate,
		ParamSnowfall:          s.Snowfall,
		ParamCloudCover:        s.CloudCover,
		ParamVisibility:        s.Visibility,
	}
}

// SampleFromParameters builds a sample at ts from a parameter map. Missing
// parameters default to zero; extra parameters (AQI) are dropped.
func SampleFromParameters(ts time.Time, p Parameters) Sample {
	return Sample{
		Timestamp:         ts,
		Temperature:       p[ParamTemperature],
		Humidity:          p[ParamHumidity],
		Pressure:          p[ParamPressure],
		WindSpeed:         p[ParamWindSpeed],
		PrecipitationRate: p[ParamPrecipitationRate],
		Snowfall:          p[ParamSnowfall],
		CloudCover:        p[ParamCloudCover],
		Visibility:        p[ParamVisibility],
	}
}

// ObservationSeries is an ordered run of samples for one region.
// Timestamps are strictly increasing; the series is read-only to consumers.
type ObservationSeries struct {
	Region  string   `json:"region"`
	Samples []Sample `json:"samples"`
}

// Validate checks the series invariants. Violations wrap ErrDataUnavailable
// so callers can classify the failure with errors.Is.
func (s ObservationSeries) Validate() error {
	if len(s.Samples) == 0 {
		return fmt.Errorf("region %q: empty series: %w", s.Region, ErrDataUnavailable)
	}
	for i := 1; i < len(s.Samples); i++ {
		if !s.Samples[i].Timestamp.After(s.Samples[i-1].Timestamp) {
			return fmt.Errorf("region %q: timestamps not strictly increasing at index %d: %w",
				s.Region, i, ErrDataUnavailable)
		}
	}
	return nil
}

// Latest returns the most recent sample, or false for an empty series.
func (s ObservationSeries) Latest() (Sample, bool) {
	if len(s.Samples) == 0 {
		return Sample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Tail returns the samples newer than cutoff, sharing the backing array.
func (s ObservationSeries) Tail(cutoff time.Time) ObservationSeries {
	i := len(s.Samples)
	for i > 0 && s.Samples[i-1].Timestamp.After(cutoff) {
		i--
	}
	return ObservationSeries{Region: s.Region, Samples: s.Samples[i:]}
}

// Span is the duration covered by the series, zero for fewer than two samples.
func (s ObservationSeries) Span() time.Duration {
	if len(s.Samples) < 2 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].Timestamp.Sub(s.Samples[0].Timestamp)
}
