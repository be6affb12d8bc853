// Package forecast produces multi-horizon forecasts with a remote-to-local
// fallback chain and resampling-based confidence intervals.
package forecast

import (
	"context"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// Source is one forecast capability: remote inference or the local model.
// Predict returns raw (unclamped) parameter values for a single horizon.
// Implementations must be safe for concurrent use; horizons are evaluated
// in parallel.
type Source interface {
	Name() domain.Source
	Predict(ctx context.Context, region domain.Region, series domain.ObservationSeries, horizon domain.Horizon) (domain.Parameters, error)
}
