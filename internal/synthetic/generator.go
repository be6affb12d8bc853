// Package synthetic produces seasonal observation series for demos, tests,
// and fixture generation. Output is fully determined by the generator seed,
// the region name, and the series start time.
package synthetic

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// Generator builds hourly observation series around a seasonal baseline:
// winter 0 C, spring 15 C, summer 28 C, autumn 18 C, with Gaussian
// temperature variation and uniform or exponential draws for the remaining
// parameters. Sub-zero hours convert precipitation into snowfall.
type Generator struct {
	seed int64
}

// NewGenerator returns a generator whose output is reproducible per seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed}
}

func (g *Generator) rng(region string, start time.Time) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(region))
	return rand.New(rand.NewSource(g.seed ^ int64(h.Sum64()) ^ start.UTC().Unix()))
}

// Series generates hours hourly samples for region beginning at start.
// Calling it twice with the same arguments yields identical series.
func (g *Generator) Series(region string, start time.Time, hours int) domain.ObservationSeries {
	rng := g.rng(region, start)
	start = start.UTC().Truncate(time.Hour)

	samples := make([]domain.Sample, hours)
	for i := range samples {
		ts := start.Add(time.Duration(i) * time.Hour)
		temp := domain.SeasonalBaseTemp(ts.Month()) + rng.NormFloat64()*3
		precip := math.Max(0, rng.ExpFloat64()*2)
		snow := 0.0
		if temp < 0 {
			snow = precip
			precip = 0
		}
		samples[i] = domain.Sample{
			Timestamp:         ts,
			Temperature:       round1(temp),
			Humidity:          round1(uniform(rng, 40, 90)),
			Pressure:          round1(uniform(rng, 990, 1020)),
			WindSpeed:         round1(uniform(rng, 0, 15)),
			PrecipitationRate: round1(precip),
			Snowfall:          round1(snow),
			CloudCover:        round1(uniform(rng, 0, 100)),
			Visibility:        round1(uniform(rng, 5, 20)),
		}
	}
	return domain.ObservationSeries{Region: region, Samples: samples}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Scenario names an extreme episode that Overlay can inject into a series.
type Scenario string

const (
	ScenarioCalm      Scenario = "calm"
	ScenarioTyphoon   Scenario = "typhoon"
	ScenarioHeavyRain Scenario = "heavy_rain"
	ScenarioHeatWave  Scenario = "heat_wave"
	ScenarioColdSnap  Scenario = "cold_snap"
	ScenarioBlizzard  Scenario = "blizzard"
)

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case ScenarioCalm, ScenarioTyphoon, ScenarioHeavyRain, ScenarioHeatWave, ScenarioColdSnap, ScenarioBlizzard:
		return Scenario(s), nil
	default:
		return "", fmt.Errorf("unknown scenario %q", s)
	}
}

// Overlay returns a copy of the series with a qualifying episode written
// over a window starting a third of the way in. Calm returns the series
// unchanged: the baseline draws cannot cross any operational threshold for
// a sustained run.
func Overlay(series domain.ObservationSeries, sc Scenario) domain.ObservationSeries {
	if sc == ScenarioCalm || len(series.Samples) == 0 {
		return series
	}

	samples := make([]domain.Sample, len(series.Samples))
	copy(samples, series.Samples)
	out := domain.ObservationSeries{Region: series.Region, Samples: samples}

	start := len(samples) / 3
	window := func(n int) []domain.Sample {
		end := start + n
		if end > len(samples) {
			end = len(samples)
		}
		return samples[start:end]
	}

	switch sc {
	case ScenarioTyphoon:
		for i, s := range window(6) {
			samples[start+i] = s
			samples[start+i].WindSpeed = 35 + 2*float64(i)
			samples[start+i].Pressure = 975 - 2*float64(i)
			samples[start+i].PrecipitationRate = 30
			samples[start+i].CloudCover = 100
		}
	case ScenarioHeavyRain:
		// Five wet hours span 4h, comfortably past the 3h minimum.
		for i, s := range window(5) {
			samples[start+i] = s
			samples[start+i].PrecipitationRate = 60 + 15*float64(i)
			samples[start+i].Humidity = 95
			samples[start+i].CloudCover = 100
		}
	case ScenarioHeatWave:
		for i, s := range window(76) {
			samples[start+i] = s
			samples[start+i].Temperature = 38.5 + math.Sin(float64(i)/4) // stays above 37
			samples[start+i].Humidity = 30
		}
	case ScenarioColdSnap:
		for i, s := range window(52) {
			samples[start+i] = s
			samples[start+i].Temperature = -14 - math.Sin(float64(i)/6)*3
			samples[start+i].Snowfall = 2
			samples[start+i].PrecipitationRate = 0
		}
	case ScenarioBlizzard:
		for i, s := range window(14) {
			samples[start+i] = s
			samples[start+i].Temperature = -6
			samples[start+i].Snowfall = 12 + float64(i)
			samples[start+i].PrecipitationRate = 0
			samples[start+i].WindSpeed = 18
			samples[start+i].Visibility = 0.5
		}
	}
	return out
}
