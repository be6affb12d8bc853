package forecast

import (
	"context"
	"math"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// trendWindow bounds how much history feeds the trend estimate.
const trendWindow = 24

// Local is the deterministic fallback model: a damped linear trend over the
// recent series that reverts toward the seasonal baseline at long leads.
// It has no failure mode and no randomness; resampling noise is the
// estimator's job.
type Local struct{}

// NewLocal returns the local trend model.
func NewLocal() *Local {
	return &Local{}
}

// Name implements Source.
func (l *Local) Name() domain.Source {
	return domain.SourceLocal
}

// Predict implements Source. It never returns an error: an empty series
// falls back to the seasonal baseline with neutral defaults.
func (l *Local) Predict(_ context.Context, _ domain.Region, series domain.ObservationSeries, horizon domain.Horizon) (domain.Parameters, error) {
	leadHours := horizon.Lead.Hours()

	if len(series.Samples) == 0 {
		month := domain.Now().Add(horizon.Lead).Month()
		return domain.ClampParameters(domain.Parameters{
			domain.ParamTemperature:       domain.SeasonalBaseTemp(month),
			domain.ParamHumidity:          65,
			domain.ParamPressure:          1010,
			domain.ParamWindSpeed:         3,
			domain.ParamPrecipitationRate: 0,
			domain.ParamSnowfall:          0,
			domain.ParamCloudCover:        50,
			domain.ParamVisibility:        10,
			domain.ParamPrecipProbability: 30,
			domain.ParamAQI:               50,
		}), nil
	}

	window := series.Samples
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	latest := window[len(window)-1]
	validAt := latest.Timestamp.Add(horizon.Lead)

	// Trend damping: short leads follow the recent slope, long leads decay
	// toward persistence.
	damp := trendWindow / (trendWindow + leadHours)

	out := domain.Parameters{}
	for _, param := range []string{
		domain.ParamTemperature,
		domain.ParamHumidity,
		domain.ParamPressure,
		domain.ParamWindSpeed,
		domain.ParamCloudCover,
		domain.ParamVisibility,
	} {
		out[param] = latest.Value(param) + slopePerHour(window, param)*leadHours*damp
	}

	// Temperature additionally reverts toward the seasonal baseline: a week
	// out, the trend says little and climate says most.
	w := math.Min(1, leadHours/168)
	out[domain.ParamTemperature] = (1-w)*out[domain.ParamTemperature] +
		w*domain.SeasonalBaseTemp(validAt.Month())

	// Active precipitation decays; storms do not persist for days.
	decay := math.Exp(-leadHours / 12)
	out[domain.ParamPrecipitationRate] = latest.PrecipitationRate * decay
	out[domain.ParamSnowfall] = latest.Snowfall * decay

	// Precipitation probability blends the recent wet fraction with a
	// climatological 30% floor as the lead grows.
	out[domain.ParamPrecipProbability] = wetFraction(window)*100*damp + 30*(1-damp)

	out[domain.ParamAQI] = 50 + (out[domain.ParamHumidity]-65)*0.4 + (15-out[domain.ParamVisibility])*4

	return domain.ClampParameters(out), nil
}

// slopePerHour estimates a parameter's hourly rate of change across the
// window endpoints. Zero for a single-sample window.
func slopePerHour(window []domain.Sample, param string) float64 {
	if len(window) < 2 {
		return 0
	}
	first, last := window[0], window[len(window)-1]
	spanHours := last.Timestamp.Sub(first.Timestamp).Hours()
	if spanHours <= 0 {
		return 0
	}
	return (last.Value(param) - first.Value(param)) / spanHours
}

// wetFraction is the share of window samples with active precipitation.
func wetFraction(window []domain.Sample) float64 {
	if len(window) == 0 {
		return 0
	}
	wet := 0
	for _, s := range window {
		if s.PrecipitationRate > 0.1 || s.Snowfall > 0.1 {
			wet++
		}
	}
	return float64(wet) / float64(len(window))
}
