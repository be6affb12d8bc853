// Package engine orchestrates the prediction cycle: fetch observations,
// forecast every horizon, detect extreme events, dispatch alerts, persist.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/alert"
	"github.com/couchcryptid/forecast-fusion-service/internal/detect"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/forecast"
	"github.com/couchcryptid/forecast-fusion-service/internal/observability"
)

// ObservationSource supplies the observation window evaluated each cycle.
type ObservationSource interface {
	Observe(ctx context.Context, region domain.Region) (domain.ObservationSeries, error)
}

// Archive is the write side of the persistence layer used by the cycle.
type Archive interface {
	SaveForecasts(ctx context.Context, forecasts []domain.Forecast) (int, error)
	SaveAlerts(ctx context.Context, alerts []domain.Alert) (int, error)
	MarkSuperseded(ctx context.Context, id string) error
	MarkClosed(ctx context.Context, id string, closedAt time.Time) error
}

// ForecastPublisher streams issued forecasts to an external broker.
type ForecastPublisher interface {
	PublishForecasts(ctx context.Context, forecasts []domain.Forecast) error
}

// Engine runs the prediction cycle across all configured regions on a fixed
// interval.
type Engine struct {
	source     ObservationSource
	forecaster *forecast.MultiScale
	detector   *detect.Detector
	dispatcher *alert.Dispatcher
	archive    Archive
	publisher  ForecastPublisher
	regions    []domain.Region
	interval   time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates an Engine. publisher may be nil when no broker is configured.
func New(
	source ObservationSource,
	forecaster *forecast.MultiScale,
	detector *detect.Detector,
	dispatcher *alert.Dispatcher,
	archive Archive,
	publisher ForecastPublisher,
	regions []domain.Region,
	interval time.Duration,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		source:     source,
		forecaster: forecaster,
		detector:   detector,
		dispatcher: dispatcher,
		archive:    archive,
		publisher:  publisher,
		regions:    regions,
		interval:   interval,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once at least one region has completed a full
// cycle, or an error describing why the service is not yet ready.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not completed a prediction cycle yet")
	}
	return nil
}

// Run executes prediction cycles until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started", "regions", len(e.regions), "interval", e.interval)
	e.metrics.EngineRunning.Set(1)
	defer e.metrics.EngineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Failed cycles retry quickly instead of waiting out a full interval.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Error("cycle failed", "error", err)
			e.metrics.CycleErrors.Inc()
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		if !sleepWithContext(ctx, e.interval) {
			return nil
		}
	}
}

// RunCycle evaluates every region once. Per-region failures are joined into
// the returned error; the remaining regions still complete, and alert
// dispatch runs over whatever candidates the successful regions produced.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()

	var (
		errs       []error
		candidates []domain.Candidate
		succeeded  int
	)
	for _, region := range e.regions {
		found, err := e.runRegion(ctx, region)
		if err != nil {
			if ctx.Err() != nil {
				errs = append(errs, err)
				break
			}
			e.logger.Error("region cycle failed", "region", region.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		succeeded++
		candidates = append(candidates, found...)
	}

	if succeeded == 0 {
		return errors.Join(errs...)
	}

	for _, c := range candidates {
		e.metrics.CandidatesDetected.WithLabelValues(string(c.Type)).Inc()
	}

	result := e.dispatcher.Dispatch(ctx, candidates)
	if err := e.persistAlerts(ctx, result); err != nil {
		errs = append(errs, err)
	}

	e.metrics.CyclesCompleted.Inc()
	e.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	e.ready.Store(true)
	e.logger.Info("cycle complete",
		"regions", succeeded,
		"candidates", len(candidates),
		"alerts", len(result.Emitted),
		"suppressed", result.Suppressed,
		"closed", len(result.Closures),
		"duration", time.Since(start),
	)
	return errors.Join(errs...)
}

// runRegion produces and persists forecasts for one region and returns the
// extreme-event candidates its timeline yields.
func (e *Engine) runRegion(ctx context.Context, region domain.Region) ([]domain.Candidate, error) {
	series, err := e.source.Observe(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("region %s: observations: %w", region.Name, err)
	}

	forecasts, err := e.forecaster.Forecast(ctx, region, series)
	if err != nil {
		return nil, fmt.Errorf("region %s: forecast: %w", region.Name, err)
	}

	ordered := orderForecasts(forecasts)
	if _, err := e.archive.SaveForecasts(ctx, ordered); err != nil {
		return nil, fmt.Errorf("region %s: saving forecasts: %w", region.Name, err)
	}
	if e.publisher != nil {
		if err := e.publisher.PublishForecasts(ctx, ordered); err != nil {
			// Publish failures must not block detection; the archive already
			// holds the records.
			e.logger.Error("publishing forecasts failed", "region", region.Name, "error", err)
		}
	}

	return e.detector.Detect(series, forecasts), nil
}

// persistAlerts records the dispatch outcome: new alert rows, supersede
// transitions for escalations, and closed rows for expired episodes.
func (e *Engine) persistAlerts(ctx context.Context, result alert.Result) error {
	var errs []error
	if _, err := e.archive.SaveAlerts(ctx, result.Emitted); err != nil {
		errs = append(errs, fmt.Errorf("saving alerts: %w", err))
	}
	for _, a := range result.Emitted {
		if a.Supersedes == "" {
			continue
		}
		if err := e.archive.MarkSuperseded(ctx, a.Supersedes); err != nil {
			errs = append(errs, fmt.Errorf("marking %s superseded: %w", a.Supersedes, err))
		}
	}
	for _, c := range result.Closures {
		if err := e.archive.MarkClosed(ctx, c.AlertID, c.ClosedAt); err != nil {
			errs = append(errs, fmt.Errorf("marking %s closed: %w", c.AlertID, err))
		}
	}
	return errors.Join(errs...)
}

// orderForecasts flattens the per-horizon map into a slice sorted by lead
// time so archive rows and broker records arrive in a stable order.
func orderForecasts(forecasts map[string]domain.Forecast) []domain.Forecast {
	out := make([]domain.Forecast, 0, len(forecasts))
	for _, f := range forecasts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ValidAt.Before(out[j].ValidAt)
	})
	return out
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
