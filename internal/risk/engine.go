package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/observability"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

// Engine computes and persists risk scores for every region of a disease.
type Engine struct {
	store    store.Store
	registry *domain.DiseaseRegistry
	opts     Options
	workers  int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates a risk scoring engine. workers bounds the per-region
// parallelism; values below 1 are treated as 1.
func NewEngine(st store.Store, registry *domain.DiseaseRegistry, opts Options, workers int, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{store: st, registry: registry, opts: opts, workers: workers, logger: logger, metrics: metrics}
}

// Result is the outcome of one ComputeRiskScores invocation.
type Result struct {
	EffectiveDate time.Time
	Scores        []domain.RiskScore
	Skipped       int
}

// ComputeRiskScores scores every region of a disease for the given date and
// upserts the results. A zero date resolves to the latest date with case
// data. Regions with insufficient history are skipped and logged; a store
// failure aborts the stage before any partial write.
func (e *Engine) ComputeRiskScores(ctx context.Context, date time.Time, disease string, seasonalBoost bool) (Result, error) {
	start := time.Now()
	disease, err := e.registry.Validate(disease)
	if err != nil {
		return Result{}, err
	}

	date, err = store.EffectiveDate(ctx, e.store, date, disease)
	if err != nil {
		return Result{}, err
	}

	regions, err := e.store.ListRegions(ctx, disease)
	if err != nil {
		return Result{}, fmt.Errorf("list regions: %w", err)
	}

	opts := e.opts
	opts.SeasonalBoost = seasonalBoost

	var (
		mu      sync.Mutex
		scores  []domain.RiskScore
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, region := range regions {
		g.Go(func() error {
			from := date.AddDate(0, 0, -(LookbackDays - 1))
			window, err := e.store.CaseHistory(gctx, region.ID, from, date, disease)
			if err != nil {
				// Store failures are fatal for the stage.
				return fmt.Errorf("case history for %s: %w", region.ID, err)
			}

			score, err := Score(region.ID, date, disease, window, opts)
			if err != nil {
				e.logger.Warn("skipping region",
					"stage", "risk",
					"region", region.ID,
					"date", domain.DayKey(date),
					"disease", disease,
					"error", err,
				)
				e.metrics.RegionsProcessed.WithLabelValues("risk", "skipped").Inc()
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			e.metrics.RegionsProcessed.WithLabelValues("risk", "ok").Inc()
			mu.Lock()
			scores = append(scores, score)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Sort before the upsert so reruns write in a stable order.
	sort.Slice(scores, func(i, j int) bool { return scores[i].RegionID < scores[j].RegionID })

	if err := e.store.PutRiskScores(ctx, scores); err != nil {
		return Result{}, fmt.Errorf("put risk scores: %w", err)
	}

	e.metrics.DocumentsWritten.WithLabelValues("risk_scores").Add(float64(len(scores)))
	e.metrics.StageDuration.WithLabelValues("risk").Observe(time.Since(start).Seconds())
	e.logger.Info("risk scores computed",
		"disease", disease,
		"date", domain.DayKey(date),
		"scored", len(scores),
		"skipped", skipped,
	)

	return Result{EffectiveDate: date, Scores: scores, Skipped: skipped}, nil
}

