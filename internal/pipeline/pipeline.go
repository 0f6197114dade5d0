// Package pipeline sequences the three computation stages for one disease:
// risk scoring, then alert generation and forecasting. Alerts and forecasts
// run concurrently once risk scoring has finished, since neither reads the
// other's output. Every write along the way is an idempotent upsert keyed
// by (region, date, disease[, model version]), so a re-run converges on the
// same documents and no locking is needed across stages.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/epiwatch/outbreak-engine/internal/alert"
	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/forecast"
	"github.com/epiwatch/outbreak-engine/internal/observability"
	"github.com/epiwatch/outbreak-engine/internal/risk"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

// RiskComputer scores every region of a disease for a date.
type RiskComputer interface {
	ComputeRiskScores(ctx context.Context, date time.Time, disease string, seasonalBoost bool) (risk.Result, error)
}

// AlertGenerator raises alerts from the latest risk scores.
type AlertGenerator interface {
	GenerateAlerts(ctx context.Context, date time.Time, disease string) (alert.Result, error)
}

// ForecastGenerator forecasts future case counts per region.
type ForecastGenerator interface {
	GenerateForecasts(ctx context.Context, date time.Time, horizon int, disease string, g domain.Granularity, model string) (forecast.Result, error)
}

// Request describes one pipeline invocation.
type Request struct {
	Disease     string
	Date        time.Time // zero resolves to the latest case date
	Horizon     int
	Granularity domain.Granularity
	Model       string // forecast strategy: auto, naive, or statistical
	Reset       bool   // delete the disease's documents before recomputing
	Seasonal    bool   // apply the seasonal boost in risk scoring
}

// Created holds per-collection document counts produced by one run.
type Created struct {
	RiskScores int `json:"risk_scores"`
	Alerts     int `json:"alerts"`
	Forecasts  int `json:"forecasts"`
}

// Report is the outcome of one pipeline invocation. Totals are the store's
// post-run document counts for the disease; with reset they equal Created,
// without reset they include documents from earlier runs.
type Report struct {
	Disease       string       `json:"disease"`
	EffectiveDate time.Time    `json:"effective_date"`
	Created       Created      `json:"created"`
	Skipped       int          `json:"skipped"`
	Deleted       int          `json:"deleted"`
	Totals        store.Counts `json:"totals"`
}

// Orchestrator runs the staged pipeline for one disease per invocation.
type Orchestrator struct {
	risk      RiskComputer
	alerts    AlertGenerator
	forecasts ForecastGenerator
	store     store.Store
	registry  *domain.DiseaseRegistry
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a pipeline orchestrator from its three stages.
func New(r RiskComputer, a AlertGenerator, f ForecastGenerator, st store.Store, registry *domain.DiseaseRegistry, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		risk:      r,
		alerts:    a,
		forecasts: f,
		store:     st,
		registry:  registry,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the orchestrator has completed at least
// one run and the store answers a ping.
func (o *Orchestrator) CheckReadiness(ctx context.Context) error {
	if err := o.store.Ping(ctx); err != nil {
		return err
	}
	if !o.ready.Load() {
		return fmt.Errorf("no pipeline run has completed yet")
	}
	return nil
}

// Run executes the full pipeline for one disease: optional reset, risk
// scoring, then alerts and forecasts concurrently. Validation happens
// before any write; a region-level failure inside a stage is skipped and
// logged by that stage, while a store failure aborts the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Report, error) {
	disease, err := o.validate(req)
	if err != nil {
		return Report{}, err
	}

	o.metrics.PipelineRunning.Set(1)
	defer o.metrics.PipelineRunning.Set(0)

	report, err := o.run(ctx, req, disease)
	if err != nil {
		o.metrics.PipelineRuns.WithLabelValues("error").Inc()
		return Report{}, err
	}

	o.metrics.PipelineRuns.WithLabelValues("ok").Inc()
	o.ready.Store(true)
	return report, nil
}

func (o *Orchestrator) validate(req Request) (string, error) {
	disease, err := o.registry.Validate(req.Disease)
	if err != nil {
		return "", err
	}
	if req.Horizon < 1 {
		return "", fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrValidation, req.Horizon)
	}
	if _, err := domain.ParseGranularity(string(req.Granularity)); err != nil {
		return "", err
	}
	return disease, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, disease string) (Report, error) {
	report := Report{Disease: disease}

	if req.Reset {
		deleted, err := o.reset(ctx, disease)
		if err != nil {
			return Report{}, err
		}
		report.Deleted = deleted
	}

	riskRes, err := o.risk.ComputeRiskScores(ctx, req.Date, disease, req.Seasonal)
	if err != nil {
		return Report{}, fmt.Errorf("risk stage: %w", err)
	}
	report.EffectiveDate = riskRes.EffectiveDate
	report.Created.RiskScores = len(riskRes.Scores)
	report.Skipped += riskRes.Skipped
	o.logger.Info("pipeline stage complete", "stage", "risk", "disease", disease, "created", len(riskRes.Scores))

	// Alerts and forecasts have no data dependency on each other.
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		alertRes, err := o.alerts.GenerateAlerts(gctx, riskRes.EffectiveDate, disease)
		if err != nil {
			return fmt.Errorf("alert stage: %w", err)
		}
		report.Created.Alerts = len(alertRes.Alerts)
		o.logger.Info("pipeline stage complete", "stage", "alert", "disease", disease, "created", len(alertRes.Alerts))
		return nil
	})
	grp.Go(func() error {
		fcRes, err := o.forecasts.GenerateForecasts(gctx, riskRes.EffectiveDate, req.Horizon, disease, req.Granularity, req.Model)
		if err != nil {
			return fmt.Errorf("forecast stage: %w", err)
		}
		report.Created.Forecasts = len(fcRes.Records)
		report.Skipped += fcRes.Skipped
		o.logger.Info("pipeline stage complete", "stage", "forecast", "disease", disease, "created", len(fcRes.Records))
		return nil
	})
	if err := grp.Wait(); err != nil {
		return Report{}, err
	}

	totals, err := o.store.Counts(ctx, disease)
	if err != nil {
		return Report{}, fmt.Errorf("count documents: %w", err)
	}
	report.Totals = totals

	o.logger.Info("pipeline run complete",
		"disease", disease,
		"date", domain.DayKey(report.EffectiveDate),
		"risk_scores", report.Created.RiskScores,
		"alerts", report.Created.Alerts,
		"forecasts", report.Created.Forecasts,
		"skipped", report.Skipped,
	)
	return report, nil
}

// reset deletes the disease's documents across the three engine-owned
// collections. The disease filter is the isolation boundary; other
// diseases' documents are untouchable from here.
func (o *Orchestrator) reset(ctx context.Context, disease string) (int, error) {
	total := 0
	for _, del := range []struct {
		name string
		fn   func(context.Context, string) (int, error)
	}{
		{"risk_scores", o.store.DeleteRiskScores},
		{"alerts", o.store.DeleteAlerts},
		{"forecasts", o.store.DeleteForecasts},
	} {
		n, err := del.fn(ctx, disease)
		if err != nil {
			return 0, fmt.Errorf("reset %s: %w", del.name, err)
		}
		total += n
	}
	o.logger.Info("reset complete", "disease", disease, "deleted", total)
	return total, nil
}
