// Package detect evaluates observation and forecast timelines against
// threshold/duration rules and emits extreme-event candidates.
package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// Band maps a reading at or beyond From to a severity score. Bands are
// ordered most severe first; the first matching band wins.
type Band struct {
	From  float64 `koanf:"from"`
	Score float64 `koanf:"score"`
}

// Severity is a banded score table. Default applies when no band matches,
// which is the floor score for a run that only just crossed the trigger.
type Severity struct {
	Bands   []Band  `koanf:"bands"`
	Default float64 `koanf:"default"`
}

// Score resolves a reading to its band score. When lowWorse is set the
// comparison inverts: a band matches when the value is at or below From.
func (s Severity) Score(value float64, lowWorse bool) float64 {
	for _, b := range s.Bands {
		if lowWorse && value <= b.From {
			return b.Score
		}
		if !lowWorse && value >= b.From {
			return b.Score
		}
	}
	return s.Default
}

func (s Severity) validate(name string, lowWorse bool) error {
	prev := 0.0
	for i, b := range s.Bands {
		if i == 0 {
			prev = b.From
			continue
		}
		if lowWorse && b.From <= prev {
			return fmt.Errorf("%s: severity bands must be ordered coldest first", name)
		}
		if !lowWorse && b.From >= prev {
			return fmt.Errorf("%s: severity bands must be ordered most severe first", name)
		}
		prev = b.From
	}
	return nil
}

// ValueRule triggers when a single parameter crosses Threshold and stays
// there for at least MinDuration, measured first to last sample of the run.
type ValueRule struct {
	Threshold   float64       `koanf:"threshold"`
	MinDuration time.Duration `koanf:"min_duration"`
	Severity    Severity      `koanf:"severity"`
}

// TyphoonRule triggers on a single sample with wind at or above
// MinWindSpeed and pressure strictly below MaxPressure.
type TyphoonRule struct {
	MinWindSpeed float64  `koanf:"min_wind_speed"`
	MaxPressure  float64  `koanf:"max_pressure"`
	Severity     Severity `koanf:"severity"`
}

// Rules carries the trigger and severity tables for every event type.
type Rules struct {
	Typhoon   TyphoonRule `koanf:"typhoon"`
	HeavyRain ValueRule   `koanf:"heavy_rain"`
	HighTemp  ValueRule   `koanf:"high_temp"`
	LowTemp   ValueRule   `koanf:"low_temp"`
	HeavySnow ValueRule   `koanf:"heavy_snow"`
}

// DefaultRules returns the operational criteria: typhoon wind/pressure at
// the Beaufort-12 boundary, rain at 50 mm/h over 3 hours, heat at 37 C over
// 3 days, cold at -10 C over 2 days, snow at 10 mm over 12 hours, with the
// standard four-band severity tables.
func DefaultRules() Rules {
	return Rules{
		Typhoon: TyphoonRule{
			MinWindSpeed: 32.7,
			MaxPressure:  980,
			Severity: Severity{
				Bands:   []Band{{From: 51, Score: 4}, {From: 41.5, Score: 4}, {From: 32.7, Score: 3}},
				Default: 2,
			},
		},
		HeavyRain: ValueRule{
			Threshold:   50,
			MinDuration: 3 * time.Hour,
			Severity: Severity{
				Bands:   []Band{{From: 100, Score: 4}, {From: 50, Score: 3}, {From: 25, Score: 2}},
				Default: 1,
			},
		},
		HighTemp: ValueRule{
			Threshold:   37,
			MinDuration: 72 * time.Hour,
			Severity: Severity{
				Bands:   []Band{{From: 40, Score: 4}, {From: 38, Score: 3}},
				Default: 2,
			},
		},
		LowTemp: ValueRule{
			Threshold:   -10,
			MinDuration: 48 * time.Hour,
			Severity: Severity{
				Bands:   []Band{{From: -20, Score: 4}, {From: -15, Score: 3}},
				Default: 2,
			},
		},
		HeavySnow: ValueRule{
			Threshold:   10,
			MinDuration: 12 * time.Hour,
			Severity: Severity{
				Bands:   []Band{{From: 30, Score: 4}, {From: 20, Score: 3}, {From: 10, Score: 2}},
				Default: 1,
			},
		},
	}
}

// Validate checks band ordering and duration signs.
func (r Rules) Validate() error {
	if err := r.Typhoon.Severity.validate("typhoon", false); err != nil {
		return err
	}
	for _, c := range []struct {
		name     string
		rule     ValueRule
		lowWorse bool
	}{
		{"heavy_rain", r.HeavyRain, false},
		{"high_temp", r.HighTemp, false},
		{"low_temp", r.LowTemp, true},
		{"heavy_snow", r.HeavySnow, false},
	} {
		if c.rule.MinDuration < 0 {
			return fmt.Errorf("%s: min_duration must not be negative", c.name)
		}
		if err := c.rule.Severity.validate(c.name, c.lowWorse); err != nil {
			return err
		}
	}
	return nil
}

// Detector scans combined observation and forecast timelines for extreme
// events. Detection is pure: the same inputs always yield the same
// candidates, and no input raises an error.
type Detector struct {
	rules Rules
}

// NewDetector builds a detector from an already-validated rule set.
func NewDetector(rules Rules) *Detector {
	return &Detector{rules: rules}
}

// spec is one evaluation pass: which samples qualify, how long they must
// persist, and how the run's worst readings score.
type spec struct {
	typ      domain.EventType
	minDur   time.Duration
	pred     func(domain.Sample) bool
	worst    func(run []domain.Sample) (float64, domain.Parameters)
	severity Severity
	lowWorse bool
}

func (d *Detector) specs() []spec {
	r := d.rules
	return []spec{
		{
			typ:    domain.EventTyphoon,
			minDur: 0,
			pred: func(s domain.Sample) bool {
				return s.WindSpeed >= r.Typhoon.MinWindSpeed && s.Pressure < r.Typhoon.MaxPressure
			},
			worst: func(run []domain.Sample) (float64, domain.Parameters) {
				maxWind, minPressure := run[0].WindSpeed, run[0].Pressure
				for _, s := range run[1:] {
					if s.WindSpeed > maxWind {
						maxWind = s.WindSpeed
					}
					if s.Pressure < minPressure {
						minPressure = s.Pressure
					}
				}
				return maxWind, domain.Parameters{
					domain.ParamWindSpeed: maxWind,
					domain.ParamPressure:  minPressure,
				}
			},
			severity: r.Typhoon.Severity,
		},
		{
			typ:      domain.EventHeavyRain,
			minDur:   r.HeavyRain.MinDuration,
			pred:     func(s domain.Sample) bool { return s.PrecipitationRate >= r.HeavyRain.Threshold },
			worst:    worstOf(domain.ParamPrecipitationRate, false),
			severity: r.HeavyRain.Severity,
		},
		{
			typ:      domain.EventHighTemp,
			minDur:   r.HighTemp.MinDuration,
			pred:     func(s domain.Sample) bool { return s.Temperature >= r.HighTemp.Threshold },
			worst:    worstOf(domain.ParamTemperature, false),
			severity: r.HighTemp.Severity,
		},
		{
			typ:      domain.EventLowTemp,
			minDur:   r.LowTemp.MinDuration,
			pred:     func(s domain.Sample) bool { return s.Temperature <= r.LowTemp.Threshold },
			worst:    worstOf(domain.ParamTemperature, true),
			severity: r.LowTemp.Severity,
			lowWorse: true,
		},
		{
			typ:      domain.EventHeavySnow,
			minDur:   r.HeavySnow.MinDuration,
			pred:     func(s domain.Sample) bool { return s.Snowfall >= r.HeavySnow.Threshold },
			worst:    worstOf(domain.ParamSnowfall, false),
			severity: r.HeavySnow.Severity,
		},
	}
}

// worstOf picks a run's extreme reading for one parameter.
func worstOf(param string, lowWorse bool) func([]domain.Sample) (float64, domain.Parameters) {
	return func(run []domain.Sample) (float64, domain.Parameters) {
		worst := run[0].Value(param)
		for _, s := range run[1:] {
			v := s.Value(param)
			if (lowWorse && v < worst) || (!lowWorse && v > worst) {
				worst = v
			}
		}
		return worst, domain.Parameters{param: worst}
	}
}

// Detect evaluates every rule over the combined timeline and returns all
// qualifying candidates ordered by event type, then window start. Forecast
// point estimates join the timeline as synthetic samples at their valid
// times; an observed sample wins any timestamp collision.
func (d *Detector) Detect(series domain.ObservationSeries, forecasts map[string]domain.Forecast) []domain.Candidate {
	timeline := mergeTimeline(series, forecasts)
	if len(timeline) == 0 {
		return nil
	}

	var out []domain.Candidate
	for _, sp := range d.specs() {
		for _, run := range maximalRuns(timeline, sp.pred) {
			span := run[len(run)-1].Timestamp.Sub(run[0].Timestamp)
			if span < sp.minDur {
				continue
			}
			worst, values := sp.worst(run)
			out = append(out, domain.Candidate{
				Type:             sp.typ,
				Region:           series.Region,
				WindowStart:      run[0].Timestamp,
				WindowEnd:        run[len(run)-1].Timestamp,
				TriggeringValues: values,
				SeverityScore:    sp.severity.Score(worst, sp.lowWorse),
			})
		}
	}
	return out
}

// maximalRuns partitions the timeline into maximal contiguous stretches
// where pred holds. A single failing sample ends the current run.
func maximalRuns(timeline []domain.Sample, pred func(domain.Sample) bool) [][]domain.Sample {
	var runs [][]domain.Sample
	start := -1
	for i, s := range timeline {
		if pred(s) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, timeline[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, timeline[start:])
	}
	return runs
}

// mergeTimeline appends forecast point estimates to the observed samples and
// sorts the result. Forecast timestamps that collide with an observed sample
// are dropped.
func mergeTimeline(series domain.ObservationSeries, forecasts map[string]domain.Forecast) []domain.Sample {
	observed := make(map[time.Time]bool, len(series.Samples))
	for _, s := range series.Samples {
		observed[s.Timestamp.UTC()] = true
	}

	timeline := make([]domain.Sample, len(series.Samples))
	copy(timeline, series.Samples)

	ids := make([]string, 0, len(forecasts))
	for id := range forecasts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := forecasts[id]
		if observed[f.ValidAt.UTC()] {
			continue
		}
		observed[f.ValidAt.UTC()] = true
		timeline = append(timeline, domain.SampleFromParameters(f.ValidAt, f.Point))
	}

	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})
	return timeline
}
