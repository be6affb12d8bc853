// Package http exposes the service's operational endpoints: health and
// readiness probes, Prometheus metrics, and a small read-only API over the
// forecast and alert archive.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Archive is the read side of the persistence layer consumed by the API
// handlers.
type Archive interface {
	RecentAlerts(ctx context.Context, limit int) ([]store.AlertRecord, error)
	AlertReport(ctx context.Context, since time.Time) (store.Report, error)
	LatestForecasts(ctx context.Context, region string) ([]domain.Forecast, error)
}

// OpenAlerts exposes the dispatcher's live open-episode snapshot.
type OpenAlerts interface {
	Open() []domain.Alert
}

// Server exposes health, readiness, metrics, and archive query endpoints.
type Server struct {
	httpServer *http.Server
	archive    Archive
	open       OpenAlerts
	logger     *slog.Logger
}

// NewServer creates an HTTP server with probe, metrics, and v1 API routes.
func NewServer(addr string, ready ReadinessChecker, archive Archive, open OpenAlerts, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		archive: archive,
		open:    open,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/alerts", s.handleAlerts)
	mux.HandleFunc("GET /v1/alerts/open", s.handleOpenAlerts)
	mux.HandleFunc("GET /v1/alerts/report", s.handleReport)
	mux.HandleFunc("GET /v1/forecasts", s.handleForecasts)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.archive.RecentAlerts(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent alerts query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if records == nil {
		records = []store.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(records), "alerts": records})
}

func (s *Server) handleOpenAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.open.Open()
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(alerts), "alerts": alerts})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hours must be a positive integer"})
			return
		}
		hours = n
	}

	since := domain.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	report, err := s.archive.AlertReport(r.Context(), since)
	if err != nil {
		s.logger.Error("alert report query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "region parameter is required"})
		return
	}

	forecasts, err := s.archive.LatestForecasts(r.Context(), region)
	if err != nil {
		s.logger.Error("latest forecasts query failed", "error", err, "region", region)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	views := make([]forecastView, len(forecasts))
	for i, fc := range forecasts {
		views[i] = presentForecast(fc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"region": region, "count": len(views), "forecasts": views})
}

// forecastView decorates an archived forecast with the derived readings
// consumers expect next to the raw parameters.
type forecastView struct {
	domain.Forecast
	WindLevel  *int   `json:"wind_level,omitempty"`
	AirQuality string `json:"air_quality,omitempty"`
}

func presentForecast(fc domain.Forecast) forecastView {
	view := forecastView{Forecast: fc}
	if wind, ok := fc.Point[domain.ParamWindSpeed]; ok {
		level := domain.BeaufortLevel(wind)
		view.WindLevel = &level
	}
	if aqi, ok := fc.Point[domain.ParamAQI]; ok {
		view.AirQuality = domain.AQICategory(aqi)
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
