// Package alert turns qualifying event candidates into leveled, deduplicated
// alert records and fans them out to the configured sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/observability"
)

// Sink receives issued alerts and closures. Implementations must tolerate
// repeated delivery of the same record; alert IDs are deterministic for
// exactly that reason.
type Sink interface {
	Name() string
	Emit(ctx context.Context, a domain.Alert) error
	EmitClosure(ctx context.Context, c domain.Closure) error
}

// Result summarizes one dispatch pass.
type Result struct {
	Emitted    []domain.Alert
	Closures   []domain.Closure
	Suppressed int
}

// Dispatcher maps candidates to alert levels, suppresses duplicates within
// an open episode, escalates when severity grows, and closes episodes whose
// window passed without re-triggering. Sink failures are logged and counted
// but never alter the returned result.
type Dispatcher struct {
	registry   *Registry
	sinks      []Sink
	boundaries []float64
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewDispatcher wires the dispatcher. boundaries are the three ascending
// severity scores at which the level steps up from blue; they are validated
// at config load.
func NewDispatcher(registry *Registry, sinks []Sink, boundaries []float64, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		sinks:      sinks,
		boundaries: boundaries,
		logger:     logger,
		metrics:    metrics,
	}
}

// Registry exposes the open-episode memory for seeding and read-only
// surfaces.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// LevelFor maps a severity score onto the four-color ladder using the
// configured boundaries.
func (d *Dispatcher) LevelFor(score float64) domain.Level {
	level := domain.LevelBlue
	for i, b := range d.boundaries {
		if score >= b {
			level = domain.Level(int(domain.LevelBlue) + i + 1)
		}
	}
	return level
}

// Dispatch processes one cycle's candidates. Candidates whose episode is
// already open at an equal or higher level are suppressed; higher-severity
// re-triggers emit an escalation superseding the prior record. Episodes
// absent from this batch whose window has passed are closed. Dispatch never
// fails: candidates carry no error modes and sink trouble only shows up in
// logs and counters.
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []domain.Candidate) Result {
	now := domain.Now().UTC()
	cycleID := domain.CycleID(now)
	touched := make(map[domain.DedupKey]struct{}, len(candidates))

	var res Result
	for _, c := range candidates {
		key := domain.NewDedupKey(c.Region, c.Type, c.WindowStart)
		touched[key] = struct{}{}
		level := d.LevelFor(c.SeverityScore)

		existing, open := d.registry.Lookup(key)
		if open && level <= existing.Level {
			d.registry.Extend(key, c.WindowEnd)
			d.metrics.AlertsSuppressed.Inc()
			d.logger.Debug("alert suppressed",
				"region", c.Region, "type", c.Type, "level", level.String(), "open_level", existing.Level.String())
			res.Suppressed++
			continue
		}

		a := domain.Alert{
			ID:               domain.AlertID(key, level),
			CycleID:          cycleID,
			Region:           c.Region,
			Type:             c.Type,
			Level:            level,
			SeverityScore:    c.SeverityScore,
			WindowStart:      key.WindowStart,
			WindowEnd:        c.WindowEnd.UTC(),
			TriggeringValues: c.TriggeringValues.Clone(),
			IssuedAt:         now,
			Message:          alertMessage(c, level),
		}
		if open {
			a.Supersedes = existing.ID
			d.metrics.AlertsEscalated.Inc()
			d.logger.Info("alert escalated",
				"region", c.Region, "type", c.Type, "from", existing.Level.String(), "to", level.String(), "supersedes", existing.ID)
		} else {
			d.logger.Info("alert issued",
				"region", c.Region, "type", c.Type, "level", level.String(), "severity", c.SeverityScore)
		}

		d.registry.Put(a)
		d.metrics.AlertsEmitted.WithLabelValues(level.String()).Inc()
		res.Emitted = append(res.Emitted, a)
		d.emit(ctx, a)
	}

	for _, closed := range d.registry.Sweep(now, touched) {
		cl := domain.Closure{
			AlertID:     closed.ID,
			Region:      closed.Region,
			Type:        closed.Type,
			WindowStart: closed.WindowStart,
			ClosedAt:    now,
		}
		d.metrics.AlertsClosed.Inc()
		d.logger.Info("alert closed", "region", cl.Region, "type", cl.Type, "alert_id", cl.AlertID)
		res.Closures = append(res.Closures, cl)
		d.emitClosure(ctx, cl)
	}

	d.metrics.OpenAlerts.Set(float64(d.registry.Len()))
	return res
}

func (d *Dispatcher) emit(ctx context.Context, a domain.Alert) {
	for _, s := range d.sinks {
		if err := s.Emit(ctx, a); err != nil {
			d.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			d.logger.Error("sink emit failed", "sink", s.Name(), "alert_id", a.ID, "error", err)
		}
	}
}

func (d *Dispatcher) emitClosure(ctx context.Context, c domain.Closure) {
	for _, s := range d.sinks {
		if err := s.EmitClosure(ctx, c); err != nil {
			d.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			d.logger.Error("sink closure failed", "sink", s.Name(), "alert_id", c.AlertID, "error", err)
		}
	}
}

// alertMessage renders the one-line human summary carried on the record.
func alertMessage(c domain.Candidate, level domain.Level) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s alert for %s", strings.ToUpper(level.String()), c.Type, c.Region)
	fmt.Fprintf(&b, ": severity %.1f", c.SeverityScore)
	fmt.Fprintf(&b, ", window %s to %s",
		c.WindowStart.UTC().Format("2006-01-02 15:04"), c.WindowEnd.UTC().Format("2006-01-02 15:04"))
	for _, name := range c.TriggeringValues.Names() {
		fmt.Fprintf(&b, ", %s %.1f", name, c.TriggeringValues[name])
	}
	return b.String()
}
