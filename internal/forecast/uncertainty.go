package forecast

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// noiseSigma is the per-parameter resampling noise at a 1h lead. Values are
// calibrated to each parameter's natural variability; precipitation noise
// additionally scales with the base value.
var noiseSigma = map[string]float64{
	domain.ParamTemperature:       1.5,
	domain.ParamHumidity:          8,
	domain.ParamPressure:          3,
	domain.ParamWindSpeed:         1.2,
	domain.ParamPrecipitationRate: 0.5,
	domain.ParamSnowfall:          0.5,
	domain.ParamCloudCover:        10,
	domain.ParamVisibility:        2,
	domain.ParamPrecipProbability: 10,
	domain.ParamAQI:               20,
}

// growthHours controls how fast noise widens with lead time: sigma doubles
// at a 48h lead.
const growthHours = 48

// Estimator attaches confidence intervals to a source's forecast by
// resampling its output with calibrated Gaussian noise. The source is
// evaluated exactly once per Estimate call; spread comes from the noise
// model, so a remote source costs one request regardless of sample count.
//
// Output is deterministic: the noise stream is derived from the configured
// seed plus the region and horizon, never from a shared generator, so
// concurrent horizon evaluation cannot reorder draws.
type Estimator struct {
	samples    int
	confidence float64
	seed       int64
}

// NewEstimator configures resampling. samples must be >= 1 and confidence
// inside (0,1); both are validated at config load.
func NewEstimator(samples int, confidence float64, seed int64) *Estimator {
	return &Estimator{samples: samples, confidence: confidence, seed: seed}
}

// Confidence reports the configured interval mass.
func (e *Estimator) Confidence() float64 {
	return e.confidence
}

func (e *Estimator) rng(region, horizonID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(region))
	h.Write([]byte{'|'})
	h.Write([]byte(horizonID))
	return rand.New(rand.NewSource(e.seed ^ int64(h.Sum64())))
}

// Estimate evaluates src once and derives point estimate and bounds from
// the resampled values. With samples=1 no noise is drawn and all three
// values equal the single evaluation. The source's error, if any, is
// returned untouched for the caller's fallback decision.
func (e *Estimator) Estimate(ctx context.Context, src Source, region domain.Region, series domain.ObservationSeries, horizon domain.Horizon) (point, lower, upper domain.Parameters, err error) {
	base, err := src.Predict(ctx, region, series, horizon)
	if err != nil {
		return nil, nil, nil, err
	}

	if e.samples == 1 {
		p := base.Clone()
		return p, p.Clone(), p.Clone(), nil
	}

	rng := e.rng(region.Name, horizon.ID)
	scale := 1 + horizon.Lead.Hours()/growthHours

	point = make(domain.Parameters, len(base))
	lower = make(domain.Parameters, len(base))
	upper = make(domain.Parameters, len(base))

	alpha := 1 - e.confidence
	values := make([]float64, e.samples)

	// Iterate in sorted name order so the draw sequence is stable.
	for _, name := range base.Names() {
		v := base[name]
		sigma := noiseSigma[name]
		if sigma == 0 {
			sigma = math.Max(0.5, 0.05*math.Abs(v))
		}
		if name == domain.ParamPrecipitationRate || name == domain.ParamSnowfall {
			sigma = math.Max(sigma, 0.4*v)
		}
		sigma *= scale

		sum := 0.0
		for i := range values {
			values[i] = v + rng.NormFloat64()*sigma
			sum += values[i]
		}

		mean := sum / float64(e.samples)
		lo := quantile(values, alpha/2)
		hi := quantile(values, 1-alpha/2)

		// The empirical mean can land outside narrow quantiles; widen so
		// the interval always contains the point estimate.
		point[name] = mean
		lower[name] = math.Min(lo, mean)
		upper[name] = math.Max(hi, mean)
	}

	return point, lower, upper, nil
}

// quantile returns the q-th empirical quantile with linear interpolation
// between order statistics. values is not modified.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
