package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/observability"
)

// MultiScale produces forecasts for a fixed set of horizons from one
// observation window. Horizons are evaluated concurrently and independently:
// a remote failure on one horizon falls back to the local model for that
// horizon only and never disturbs the others.
type MultiScale struct {
	remote        Source
	local         Source
	est           *Estimator
	horizons      []domain.Horizon
	logger        *slog.Logger
	metrics       *observability.Metrics
	limit         int
	remoteTimeout time.Duration
}

// NewMultiScale wires the forecaster. remote may be nil, in which case every
// horizon uses the local model directly. limit caps concurrent horizon
// evaluations; values below 1 mean unlimited.
func NewMultiScale(remote, local Source, est *Estimator, horizons []domain.Horizon, logger *slog.Logger, metrics *observability.Metrics, limit int, remoteTimeout time.Duration) *MultiScale {
	if limit < 1 {
		limit = len(horizons)
	}
	return &MultiScale{
		remote:        remote,
		local:         local,
		est:           est,
		horizons:      horizons,
		logger:        logger,
		metrics:       metrics,
		limit:         limit,
		remoteTimeout: remoteTimeout,
	}
}

// Horizons returns the configured horizon set.
func (m *MultiScale) Horizons() []domain.Horizon {
	return m.horizons
}

// Forecast evaluates every configured horizon against the series and returns
// the results keyed by horizon ID. The only error condition is unusable
// input data; remote source failures are absorbed by local fallback and
// reported through logs and counters. A cancelled context leaves the
// unfinished horizons absent from the map.
func (m *MultiScale) Forecast(ctx context.Context, region domain.Region, series domain.ObservationSeries) (map[string]domain.Forecast, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("region %s: %w", region.Name, err)
	}

	issuedAt := domain.Now().UTC()
	cycleID := domain.CycleID(issuedAt)

	results := make(chan domain.Forecast, len(m.horizons))

	var g errgroup.Group
	g.SetLimit(m.limit)
	for _, h := range m.horizons {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			fc := m.forecastHorizon(ctx, region, series, h, issuedAt, cycleID)
			results <- fc
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors
	close(results)

	out := make(map[string]domain.Forecast, len(m.horizons))
	for fc := range results {
		out[fc.HorizonID] = fc
	}
	return out, nil
}

// forecastHorizon evaluates a single horizon, trying the remote source first
// and falling back to the local model on any remote error.
func (m *MultiScale) forecastHorizon(ctx context.Context, region domain.Region, series domain.ObservationSeries, h domain.Horizon, issuedAt time.Time, cycleID string) domain.Forecast {
	source := m.local
	var point, lower, upper domain.Parameters

	if m.remote != nil {
		rctx := ctx
		var cancel context.CancelFunc
		if m.remoteTimeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, m.remoteTimeout)
		}
		p, lo, up, err := m.est.Estimate(rctx, m.remote, region, series, h)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			source = m.remote
			point, lower, upper = p, lo, up
		} else {
			reason := "unavailable"
			if errors.Is(err, ErrMalformedResponse) {
				reason = "malformed"
			}
			m.metrics.RemoteFailures.WithLabelValues(reason).Inc()
			m.logger.Warn("remote forecast failed, using local model",
				"region", region.Name, "horizon", h.ID, "reason", reason, "error", err)
		}
	}

	if point == nil {
		p, lo, up, err := m.est.Estimate(ctx, m.local, region, series, h)
		if err != nil {
			// The local model is total over valid input; reaching this
			// means the context died mid-evaluation. Emit a degenerate
			// zero-spread forecast from the latest observation.
			m.logger.Error("local forecast failed", "region", region.Name, "horizon", h.ID, "error", err)
			latest, _ := series.Latest()
			p = latest.Parameters()
			lo, up = p.Clone(), p.Clone()
		}
		source = m.local
		point, lower, upper = p, lo, up
	}

	point = domain.ClampParameters(point)
	lower = domain.ClampParameters(lower)
	upper = domain.ClampParameters(upper)
	orderBounds(point, lower, upper)

	name := source.Name()
	m.metrics.ForecastsIssued.WithLabelValues(h.ID, string(name)).Inc()

	return domain.Forecast{
		ID:         domain.ForecastID(region.Name, h.ID, issuedAt),
		CycleID:    cycleID,
		Region:     region.Name,
		HorizonID:  h.ID,
		IssuedAt:   issuedAt,
		ValidAt:    issuedAt.Add(h.Lead),
		Point:      point,
		Lower:      lower,
		Upper:      upper,
		Confidence: m.est.Confidence(),
		Source:     name,
	}
}

// orderBounds restores lower <= point <= upper after clamping, which can
// push a bound past the point when the point itself sat outside the
// physical range.
func orderBounds(point, lower, upper domain.Parameters) {
	for name, v := range point {
		if lower[name] > v {
			lower[name] = v
		}
		if upper[name] < v {
			upper[name] = v
		}
	}
}
