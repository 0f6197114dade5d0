// Package alert turns high risk scores into persisted alerts and hands them
// to an external notification dispatcher. Persistence and dispatch are
// decoupled: a dispatch failure is logged and counted but never rolls back
// or fails the alert stage.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/observability"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

// DefaultHighThreshold is the risk score at which a region alerts.
const DefaultHighThreshold = 0.70

// Dispatcher delivers an alert batch to the notification system. Delivery is
// out of scope for the engine; failures are non-fatal.
type Dispatcher interface {
	Dispatch(ctx context.Context, alerts []domain.Alert) error
}

// Generator builds alerts from the latest risk scores of one (date, disease).
type Generator struct {
	store      store.Store
	registry   *domain.DiseaseRegistry
	dispatcher Dispatcher // nil disables dispatch
	threshold  float64
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewGenerator creates an alert generator. A nil dispatcher disables
// notification delivery; thresholds outside (0, 1] fall back to the default.
func NewGenerator(st store.Store, registry *domain.DiseaseRegistry, dispatcher Dispatcher, threshold float64, logger *slog.Logger, metrics *observability.Metrics) *Generator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultHighThreshold
	}
	return &Generator{store: st, registry: registry, dispatcher: dispatcher, threshold: threshold, logger: logger, metrics: metrics}
}

// Result is the outcome of one GenerateAlerts invocation.
type Result struct {
	EffectiveDate time.Time
	Alerts        []domain.Alert
	Dispatched    bool
}

// GenerateAlerts reads the latest risk scores for the date and disease,
// raises an alert for every region at or above the threshold, upserts the
// batch, and then hands it to the dispatcher. Re-running for the same inputs
// produces the same alert set, not duplicates.
func (g *Generator) GenerateAlerts(ctx context.Context, date time.Time, disease string) (Result, error) {
	start := time.Now()
	disease, err := g.registry.Validate(disease)
	if err != nil {
		return Result{}, err
	}

	date, err = store.EffectiveDate(ctx, g.store, date, disease)
	if err != nil {
		return Result{}, err
	}

	scores, err := g.store.LatestRiskScores(ctx, date, disease)
	if err != nil {
		return Result{}, fmt.Errorf("latest risk scores: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(scores))
	for _, sc := range scores {
		if sc.Score < g.threshold {
			g.metrics.RegionsProcessed.WithLabelValues("alert", "skipped").Inc()
			continue
		}
		reason := fmt.Sprintf("Risk score %.2f >= threshold %.2f", sc.Score, g.threshold)
		alerts = append(alerts, domain.Alert{
			ID:        domain.AlertID(sc.RegionID, date, disease, reason),
			RegionID:  sc.RegionID,
			Date:      date,
			Disease:   disease,
			Reason:    reason,
			Severity:  sc.Level,
			Drivers:   append([]string(nil), sc.Drivers...),
			RiskScore: sc.Score,
			CreatedAt: domain.Timestamp(),
		})
		g.metrics.RegionsProcessed.WithLabelValues("alert", "ok").Inc()
	}

	if err := g.store.PutAlerts(ctx, alerts); err != nil {
		return Result{}, fmt.Errorf("put alerts: %w", err)
	}
	g.metrics.DocumentsWritten.WithLabelValues("alerts").Add(float64(len(alerts)))

	dispatched := g.dispatch(ctx, alerts)

	g.metrics.StageDuration.WithLabelValues("alert").Observe(time.Since(start).Seconds())
	g.logger.Info("alerts generated",
		"disease", disease,
		"date", domain.DayKey(date),
		"alerts", len(alerts),
		"scored_regions", len(scores),
		"dispatched", dispatched,
	)

	return Result{EffectiveDate: date, Alerts: alerts, Dispatched: dispatched}, nil
}

// dispatch hands the batch to the notification dispatcher after persistence.
// Failures are logged and counted, never propagated.
func (g *Generator) dispatch(ctx context.Context, alerts []domain.Alert) bool {
	if g.dispatcher == nil || len(alerts) == 0 {
		return false
	}
	if err := g.dispatcher.Dispatch(ctx, alerts); err != nil {
		g.logger.Error("alert dispatch failed", "alerts", len(alerts), "error", err)
		g.metrics.DispatchFailures.Inc()
		return false
	}
	return true
}
