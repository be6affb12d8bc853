package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast-fusion engine.
type Metrics struct {
	CyclesCompleted prometheus.Counter
	CycleErrors     prometheus.Counter
	CycleDuration   prometheus.Histogram
	EngineRunning   prometheus.Gauge

	// Forecasting metrics.
	ForecastsIssued       *prometheus.CounterVec // labels: horizon, source={remote,local}
	RemoteFailures        *prometheus.CounterVec // labels: reason={unavailable,malformed}
	RemoteRequestDuration prometheus.Histogram
	RemoteCache           *prometheus.CounterVec // labels: result={hit,miss}
	RemoteEnabled         prometheus.Gauge

	// Detection and alerting metrics.
	CandidatesDetected *prometheus.CounterVec // labels: type
	AlertsEmitted      *prometheus.CounterVec // labels: level
	AlertsSuppressed   prometheus.Counter
	AlertsEscalated    prometheus.Counter
	AlertsClosed       prometheus.Counter
	OpenAlerts         prometheus.Gauge
	SinkErrors         *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "cycles_completed_total",
			Help:      "Total prediction cycles that ran to completion.",
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "cycle_errors_total",
			Help:      "Total prediction cycles that failed for at least one region.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast_fusion",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-forecast-detect-dispatch cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast_fusion",
			Name:      "engine_running",
			Help:      "1 when the engine loop is active, 0 when shut down.",
		}),
		ForecastsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "forecasts_issued_total",
			Help:      "Forecasts issued by horizon and producing source.",
		}, []string{"horizon", "source"}),
		RemoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "remote_failures_total",
			Help:      "Remote forecast attempts that fell back to the local model, by reason.",
		}, []string{"reason"}),
		RemoteRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast_fusion",
			Name:      "remote_request_duration_seconds",
			Help:      "Remote inference request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RemoteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "remote_cache_total",
			Help:      "Remote response cache lookups by result.",
		}, []string{"result"}),
		RemoteEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast_fusion",
			Name:      "remote_enabled",
			Help:      "1 when the remote forecast source is configured, 0 otherwise.",
		}),
		CandidatesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "candidates_detected_total",
			Help:      "Extreme-event candidates by type.",
		}, []string{"type"}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "alerts_emitted_total",
			Help:      "Alerts handed to sinks, by level.",
		}, []string{"level"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "alerts_suppressed_total",
			Help:      "Candidates suppressed because an equal-or-higher alert was already open.",
		}),
		AlertsEscalated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "alerts_escalated_total",
			Help:      "Alerts that superseded a lower-level open alert.",
		}),
		AlertsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "alerts_closed_total",
			Help:      "Open alerts closed after their window passed.",
		}),
		OpenAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast_fusion",
			Name:      "open_alerts",
			Help:      "Currently open alerts across all regions.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_fusion",
			Name:      "sink_errors_total",
			Help:      "Alert sink delivery failures by sink.",
		}, []string{"sink"}),
	}

	prometheus.MustRegister(
		m.CyclesCompleted,
		m.CycleErrors,
		m.CycleDuration,
		m.EngineRunning,
		m.ForecastsIssued,
		m.RemoteFailures,
		m.RemoteRequestDuration,
		m.RemoteCache,
		m.RemoteEnabled,
		m.CandidatesDetected,
		m.AlertsEmitted,
		m.AlertsSuppressed,
		m.AlertsEscalated,
		m.AlertsClosed,
		m.OpenAlerts,
		m.SinkErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CyclesCompleted:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "cycles_completed_total"}),
		CycleErrors:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "cycle_errors_total"}),
		CycleDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "forecast_fusion", Name: "cycle_duration_seconds"}),
		EngineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "forecast_fusion", Name: "engine_running"}),
		ForecastsIssued:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "forecasts_issued_total"}, []string{"horizon", "source"}),
		RemoteFailures:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "remote_failures_total"}, []string{"reason"}),
		RemoteRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "forecast_fusion", Name: "remote_request_duration_seconds"}),
		RemoteCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "remote_cache_total"}, []string{"result"}),
		RemoteEnabled:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "forecast_fusion", Name: "remote_enabled"}),
		CandidatesDetected:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "candidates_detected_total"}, []string{"type"}),
		AlertsEmitted:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "alerts_emitted_total"}, []string{"level"}),
		AlertsSuppressed:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "alerts_suppressed_total"}),
		AlertsEscalated:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "alerts_escalated_total"}),
		AlertsClosed:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "alerts_closed_total"}),
		OpenAlerts:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "forecast_fusion", Name: "open_alerts"}),
		SinkErrors:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "forecast_fusion", Name: "sink_errors_total"}, []string{"sink"}),
	}
}
