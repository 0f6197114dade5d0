package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/observability"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

// Model selection values accepted by GenerateForecasts.
const (
	ModelAuto        = "auto"
	ModelNaive       = "naive"
	ModelStatistical = "statistical"
)

// Engine generates and persists forecasts for every region of a disease.
type Engine struct {
	store      store.Store
	registry   *domain.DiseaseRegistry
	naive      Naive
	arima      *ARIMA
	workers    int
	fitTimeout time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewEngine creates a forecasting engine. fitTimeout bounds the CPU time
// spent fitting the statistical model per region; on expiry the region
// falls back to the naive strategy.
func NewEngine(st store.Store, registry *domain.DiseaseRegistry, workers int, fitTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if workers < 1 {
		workers = 1
	}
	if fitTimeout <= 0 {
		fitTimeout = 10 * time.Second
	}
	return &Engine{
		store:      st,
		registry:   registry,
		arima:      NewARIMA(),
		workers:    workers,
		fitTimeout: fitTimeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Result is the outcome of one GenerateForecasts invocation.
type Result struct {
	EffectiveDate time.Time
	Records       []domain.ForecastRecord
	Skipped       int
	Fallbacks     int
}

// GenerateForecasts forecasts horizon steps for every region of a disease
// at the given granularity and upserts the records. model selects the
// strategy: "auto" and "statistical" fit the time-series model with naive
// fallback, "naive" skips the fit entirely. Regions without history are
// skipped and logged.
func (e *Engine) GenerateForecasts(ctx context.Context, date time.Time, horizon int, disease string, g domain.Granularity, model string) (Result, error) {
	start := time.Now()
	disease, err := e.registry.Validate(disease)
	if err != nil {
		return Result{}, err
	}
	if horizon < 1 {
		return Result{}, fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrValidation, horizon)
	}
	model, err = parseModel(model)
	if err != nil {
		return Result{}, err
	}
	if _, err := domain.ParseGranularity(string(g)); err != nil {
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

	var (
		mu        sync.Mutex
		records   []domain.ForecastRecord
		skipped   int
		fallbacks int
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.workers)
	for _, region := range regions {
		grp.Go(func() error {
			series, err := e.store.CaseSeries(gctx, region.ID, disease, g, g.FitWindow())
			if err != nil {
				return fmt.Errorf("case series for %s: %w", region.ID, err)
			}

			history := make([]float64, len(series))
			for i, rec := range series {
				history[i] = float64(rec.Confirmed)
			}

			pred, fellBack, err := e.forecastRegion(gctx, region.ID, history, horizon, g, model)
			if err != nil {
				e.logger.Warn("skipping region",
					"stage", "forecast",
					"region", region.ID,
					"date", domain.DayKey(date),
					"disease", disease,
					"error", err,
				)
				e.metrics.RegionsProcessed.WithLabelValues("forecast", "skipped").Inc()
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			regionRecords := make([]domain.ForecastRecord, len(pred.Points))
			for i, pt := range pred.Points {
				target := g.Step(date, i+1)
				regionRecords[i] = domain.ForecastRecord{
					ID:                domain.ForecastID(region.ID, target, disease, pred.ModelVersion),
					RegionID:          region.ID,
					Date:              target,
					Disease:           disease,
					ModelVersion:      pred.ModelVersion,
					PredMean:          pt.Mean,
					PredLower:         pt.Lower,
					PredUpper:         pt.Upper,
					SourceGranularity: g,
					GeneratedAt:       domain.Timestamp(),
				}
			}

			e.metrics.RegionsProcessed.WithLabelValues("forecast", "ok").Inc()
			mu.Lock()
			records = append(records, regionRecords...)
			if fellBack {
				fallbacks++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return Result{}, err
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RegionID != records[j].RegionID {
			return records[i].RegionID < records[j].RegionID
		}
		return records[i].Date.Before(records[j].Date)
	})

	if err := e.store.PutForecasts(ctx, records); err != nil {
		return Result{}, fmt.Errorf("put forecasts: %w", err)
	}

	e.metrics.DocumentsWritten.WithLabelValues("forecasts").Add(float64(len(records)))
	e.metrics.StageDuration.WithLabelValues("forecast").Observe(time.Since(start).Seconds())
	e.logger.Info("forecasts generated",
		"disease", disease,
		"date", domain.DayKey(date),
		"granularity", string(g),
		"horizon", horizon,
		"records", len(records),
		"skipped", skipped,
		"fallbacks", fallbacks,
	)

	return Result{EffectiveDate: date, Records: records, Skipped: skipped, Fallbacks: fallbacks}, nil
}

// forecastRegion applies the selected strategy for one region. For auto and
// statistical models a failed or timed-out fit falls back to naive; the
// returned bool reports whether the fallback was taken.
func (e *Engine) forecastRegion(ctx context.Context, regionID string, history []float64, horizon int, g domain.Granularity, model string) (Prediction, bool, error) {
	if model == ModelNaive {
		pred, err := e.naive.Forecast(history, horizon, g)
		return pred, false, err
	}

	pred, err := e.fitWithTimeout(ctx, history, horizon, g)
	if err == nil {
		return pred, false, nil
	}

	e.logger.Warn("statistical fit failed, falling back to naive",
		"region", regionID,
		"granularity", string(g),
		"error", err,
	)
	e.metrics.ForecastFallbacks.Inc()

	pred, nerr := e.naive.Forecast(history, horizon, g)
	return pred, true, nerr
}

// fitWithTimeout runs the ARIMA fit in its own goroutine so a slow fit
// cannot stall the whole batch. On timeout the goroutine's eventual result
// is discarded.
func (e *Engine) fitWithTimeout(ctx context.Context, history []float64, horizon int, g domain.Granularity) (Prediction, error) {
	type outcome struct {
		pred Prediction
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		pred, err := e.arima.Forecast(history, horizon, g)
		ch <- outcome{pred, err}
	}()

	timer := time.NewTimer(e.fitTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.pred, out.err
	case <-timer.C:
		return Prediction{}, fmt.Errorf("%w: fit exceeded %s", ErrFitFailed, e.fitTimeout)
	case <-ctx.Done():
		return Prediction{}, ctx.Err()
	}
}

func parseModel(model string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case "", ModelAuto:
		return ModelAuto, nil
	case ModelNaive:
		return ModelNaive, nil
	case ModelStatistical, "arima":
		return ModelStatistical, nil
	default:
		return "", fmt.Errorf("%w: model %q (want auto, naive, or statistical)", domain.ErrValidation, model)
	}
}
