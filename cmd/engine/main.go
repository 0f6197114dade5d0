package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/epiwatch/outbreak-engine/internal/adapter/httpadapter"
	kafkaadapter "github.com/epiwatch/outbreak-engine/internal/adapter/kafka"
	"github.com/epiwatch/outbreak-engine/internal/alert"
	"github.com/epiwatch/outbreak-engine/internal/config"
	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/forecast"
	"github.com/epiwatch/outbreak-engine/internal/observability"
	"github.com/epiwatch/outbreak-engine/internal/pipeline"
	"github.com/epiwatch/outbreak-engine/internal/risk"
	"github.com/epiwatch/outbreak-engine/internal/schedule"
	"github.com/epiwatch/outbreak-engine/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	registry := domain.NewDefaultRegistry()

	// Alert dispatch is feature-flagged via ALERTS_ENABLED / KAFKA_BROKERS.
	var dispatcher alert.Dispatcher
	var kafkaDispatcher *kafkaadapter.Dispatcher
	if cfg.AlertsEnabled {
		kafkaDispatcher = kafkaadapter.NewDispatcher(cfg, logger)
		dispatcher = kafkaDispatcher
		logger.Info("kafka alert dispatch enabled", "topic", cfg.KafkaAlertTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka alert dispatch disabled")
	}

	riskEngine := risk.NewEngine(st, registry, risk.DefaultOptions(), cfg.Workers, logger, metrics)
	alertGen := alert.NewGenerator(st, registry, dispatcher, cfg.HighRiskThreshold, logger, metrics)
	forecastEngine := forecast.NewEngine(st, registry, cfg.Workers, cfg.FitTimeout, logger, metrics)

	orch := pipeline.New(riskEngine, alertGen, forecastEngine, st, registry, logger, metrics)

	sched := schedule.New(orch, cfg.Diseases, pipeline.Request{
		Horizon:     cfg.Horizon,
		Granularity: domain.Granularity(cfg.Granularity),
		Model:       cfg.ForecastModel,
		Reset:       cfg.Reset,
		Seasonal:    cfg.SeasonalBoost,
	}, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, orch, sched, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	switch cfg.RunMode {
	case "once":
		go func() {
			defer stop()
			if err := sched.RunAll(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	case "cron":
		if err := sched.Start(ctx, cfg.CronSpec); err != nil {
			logger.Error("scheduler error", "error", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaDispatcher != nil {
		if err := kafkaDispatcher.Close(); err != nil {
			logger.Error("kafka dispatcher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
