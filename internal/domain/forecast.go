package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Parameter names carried in forecast estimates. Observation samples cover
// the first eight; precipitation probability and AQI only appear in
// forecast output.
const (
	ParamTemperature       = "temperature"
	ParamHumidity          = "humidity"
	ParamPressure          = "pressure"
	ParamWindSpeed         = "wind_speed"
	ParamPrecipitationRate = "precipitation_rate"
	ParamSnowfall          = "snowfall"
	ParamCloudCover        = "cloud_cover"
	ParamVisibility        = "visibility"
	ParamPrecipProbability = "precipitation_probability"
	ParamAQI               = "aqi"
)

// Parameters maps parameter names to numeric values.
type Parameters map[string]float64

// Clone returns an independent copy.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Names returns the parameter names in sorted order for stable iteration.
func (p Parameters) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Source labels which forecast capability produced a value.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Horizon is one entry of the enumerated forecast horizon set.
type Horizon struct {
	ID   string
	Lead time.Duration
}

// DefaultHorizonIDs is the standard seven-horizon set, shortest first.
var DefaultHorizonIDs = []string{"1h", "3h", "6h", "1day", "2day", "3day", "1week"}

// horizonRe captures the "<n><unit>" horizon grammar.
var horizonRe = regexp.MustCompile(`^(\d+)(h|day|week)$`)

// ParseHorizon resolves a horizon ID ("3h", "1day", "1week") to its lead time.
func ParseHorizon(id string) (Horizon, error) {
	m := horizonRe.FindStringSubmatch(id)
	if m == nil {
		return Horizon{}, fmt.Errorf("invalid horizon id %q", id)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return Horizon{}, fmt.Errorf("invalid horizon id %q", id)
	}
	var unit time.Duration
	switch m[2] {
	case "h":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	}
	return Horizon{ID: id, Lead: time.Duration(n) * unit}, nil
}

// ParseHorizons resolves a list of horizon IDs, rejecting duplicates.
func ParseHorizons(ids []string) ([]Horizon, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]Horizon, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("duplicate horizon id %q", id)
		}
		seen[id] = true
		h, err := ParseHorizon(id)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Forecast is one issued prediction for a (region, horizon) pair.
// Immutable after creation; one per horizon per prediction cycle.
type Forecast struct {
	ID         string     `json:"id"`
	CycleID    string     `json:"cycle_id,omitempty"`
	Region     string     `json:"region"`
	HorizonID  string     `json:"horizon_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	ValidAt    time.Time  `json:"valid_at"`
	Point      Parameters `json:"point_estimate"`
	Lower      Parameters `json:"lower_bound"`
	Upper      Parameters `json:"upper_bound"`
	Confidence float64    `json:"confidence_level"`
	Source     Source     `json:"source"`
}

// paramRange bounds a physical parameter. Max of +Inf means unbounded above.
type paramRange struct {
	min, max float64
}

var paramRanges = map[string]paramRange{
	ParamHumidity:          {0, 100},
	ParamPrecipProbability: {0, 100},
	ParamCloudCover:        {0, 100},
	ParamAQI:               {0, 500},
	ParamWindSpeed:         {0, math.Inf(1)},
	ParamPrecipitationRate: {0, math.Inf(1)},
	ParamSnowfall:          {0, math.Inf(1)},
	ParamVisibility:        {0, math.Inf(1)},
}

// ClampParameters clamps each parameter to its physical range, returning a
// copy. Temperature and pressure pass through unchanged. Clamping is
// monotonic: applying it to point estimate and bounds keeps lower <= upper.
func ClampParameters(p Parameters) Parameters {
	out := p.Clone()
	for name, r := range paramRanges {
		v, ok := out[name]
		if !ok {
			continue
		}
		out[name] = math.Min(r.max, math.Max(r.min, v))
	}
	return out
}

// SeasonalBaseTemp is the climatological baseline temperature for a month:
// winter 0 C, spring 15 C, summer 28 C, autumn 18 C. The synthetic generator
// builds series around it and the local model reverts toward it at long leads.
func SeasonalBaseTemp(month time.Month) float64 {
	switch month {
	case time.December, time.January, time.February:
		return 0
	case time.March, time.April, time.May:
		return 15
	case time.June, time.July, time.August:
		return 28
	default:
		return 18
	}
}

// beaufortBounds are the upper wind-speed bounds (m/s) of Beaufort levels 0-11.
var beaufortBounds = []float64{0.3, 1.6, 3.4, 5.5, 8.0, 10.8, 13.9, 17.2, 20.8, 24.5, 28.5, 32.7}

// BeaufortLevel maps a wind speed in m/s onto the Beaufort scale 0-12.
// 32.7 m/s and above is level 12, the typhoon boundary.
func BeaufortLevel(windSpeed float64) int {
	for level, bound := range beaufortBounds {
		if windSpeed < bound {
			return level
		}
	}
	return 12
}

// AQICategory labels an air-quality index using the six standard bands.
func AQICategory(aqi float64) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// ForecastID produces a deterministic ID from a forecast's key fields, so
// replaying a cycle reproduces the same rows and storage stays idempotent.
func ForecastID(region, horizonID string, issuedAt time.Time) string {
	input := fmt.Sprintf("%s|%s|%s", region, horizonID, issuedAt.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "fc-" + hex.EncodeToString(hash[:8])
}

// CycleID labels all artifacts issued by one engine cycle. Derived from the
// cycle start time so a replayed cycle carries the same label.
func CycleID(startedAt time.Time) string {
	hash := sha256.Sum256([]byte(startedAt.UTC().Format(time.RFC3339)))
	return "cyc-" + hex.EncodeToString(hash[:8])
}
