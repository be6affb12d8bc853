package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/forecast-fusion-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/forecast-fusion-service/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-fusion-service/internal/adapter/llm"
	"github.com/couchcryptid/forecast-fusion-service/internal/adapter/sink"
	"github.com/couchcryptid/forecast-fusion-service/internal/alert"
	"github.com/couchcryptid/forecast-fusion-service/internal/config"
	"github.com/couchcryptid/forecast-fusion-service/internal/detect"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/engine"
	"github.com/couchcryptid/forecast-fusion-service/internal/forecast"
	"github.com/couchcryptid/forecast-fusion-service/internal/observability"
	"github.com/couchcryptid/forecast-fusion-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.Store.Path)
		os.Exit(1)
	}

	// Observation source (synthetic generator or genobs fixtures).
	var source engine.ObservationSource
	switch cfg.Observations.Mode {
	case "file":
		source = engine.NewFileSource(cfg.Observations.FixtureDir)
		logger.Info("observations from fixtures", "dir", cfg.Observations.FixtureDir)
	default:
		source = engine.NewSyntheticSource(cfg.Observations.Seed, cfg.Observations.WindowHours)
		logger.Info("observations from synthetic generator",
			"window_hours", cfg.Observations.WindowHours, "seed", cfg.Observations.Seed)
	}

	// Remote forecast source (feature-flagged via FUSION_REMOTE__ENABLED).
	var remote forecast.Source
	if cfg.Remote.Enabled {
		client := llm.NewClient(llm.Options{
			BaseURL:      cfg.Remote.BaseURL,
			APIKey:       cfg.Remote.APIKey,
			Model:        cfg.Remote.Model,
			Timeout:      cfg.Remote.Timeout,
			Temperature:  cfg.Remote.Temperature,
			MaxTokens:    cfg.Remote.MaxTokens,
			RateInterval: cfg.Remote.RateInterval,
		}, logger, metrics)
		remote = llm.NewCachedSource(client, cfg.Remote.CacheSize, metrics)
		metrics.RemoteEnabled.Set(1)
		logger.Info("remote forecast source enabled",
			"model", cfg.Remote.Model, "cache_size", cfg.Remote.CacheSize, "timeout", cfg.Remote.Timeout)
	} else {
		logger.Info("remote forecast source disabled, local model only")
	}

	horizons, err := domain.ParseHorizons(cfg.Horizons)
	if err != nil {
		logger.Error("invalid horizons", "error", err)
		os.Exit(1)
	}

	estimator := forecast.NewEstimator(cfg.Uncertainty.Samples, cfg.Uncertainty.Confidence, cfg.Uncertainty.Seed)
	forecaster := forecast.NewMultiScale(remote, forecast.NewLocal(), estimator,
		horizons, logger, metrics, 0, cfg.Remote.Timeout)
	detector := detect.NewDetector(cfg.Thresholds)

	// Reseed the dedup registry so a restart does not re-emit open episodes.
	registry := alert.NewRegistry()
	if open, err := st.OpenAlerts(context.Background()); err != nil {
		logger.Warn("could not reseed alert registry", "error", err)
	} else if len(open) > 0 {
		registry.Seed(open)
		logger.Info("alert registry reseeded", "open_alerts", len(open))
	}

	var sinks []alert.Sink
	if cfg.Alerts.Console {
		sinks = append(sinks, sink.NewConsole(nil))
	}
	if cfg.Alerts.File {
		sinks = append(sinks, sink.NewFile(cfg.Alerts.FileDir))
	}

	var (
		publisher *kafkaadapter.Publisher
		enginePub engine.ForecastPublisher
	)
	if cfg.Kafka.Enabled {
		publisher = kafkaadapter.NewPublisher(cfg.Kafka, logger)
		sinks = append(sinks, publisher)
		enginePub = publisher
		logger.Info("kafka publisher enabled",
			"brokers", cfg.Kafka.Brokers,
			"forecast_topic", cfg.Kafka.ForecastTopic, "alert_topic", cfg.Kafka.AlertTopic)
	}

	dispatcher := alert.NewDispatcher(registry, sinks, cfg.Alerts.LevelBoundaries, logger, metrics)

	eng := engine.New(source, forecaster, detector, dispatcher, st, enginePub,
		cfg.DomainRegions(), cfg.CycleInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, st, dispatcher.Registry(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the prediction engine.
	go func() {
		if err := eng.Run(ctx); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
