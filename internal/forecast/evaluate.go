package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/store"
)

// Accuracy summarizes forecast error against later-observed actuals.
// MAPE is a percentage and only counts points whose actual is nonzero.
type Accuracy struct {
	ModelVersion string  `json:"model_version"`
	MAE          float64 `json:"mae"`
	MAPE         float64 `json:"mape"`
	Matched      int     `json:"matched"`
	Unmatched    int     `json:"unmatched"`
}

// Evaluate compares stored forecast records against the case records
// observed at the forecast target dates. It is a read-only reporting
// function over the same store, not part of the pipeline hot path. Pass an
// empty modelVersion to evaluate all strategies together.
func Evaluate(ctx context.Context, st store.Store, disease, modelVersion string, g domain.Granularity) (Accuracy, error) {
	records, err := st.ListForecasts(ctx, disease, modelVersion)
	if err != nil {
		return Accuracy{}, fmt.Errorf("list forecasts: %w", err)
	}

	// One observed-series fetch per region, reused across its records.
	observed := make(map[string]map[string]float64)
	acc := Accuracy{ModelVersion: modelVersion}
	var absErrSum, pctErrSum float64
	pctCount := 0

	for _, rec := range records {
		if rec.SourceGranularity != g {
			continue
		}
		byDay, ok := observed[rec.RegionID]
		if !ok {
			series, err := st.CaseSeries(ctx, rec.RegionID, disease, g, 0)
			if err != nil {
				return Accuracy{}, fmt.Errorf("case series for %s: %w", rec.RegionID, err)
			}
			byDay = make(map[string]float64, len(series))
			for _, c := range series {
				byDay[domain.DayKey(c.Date)] = float64(c.Confirmed)
			}
			observed[rec.RegionID] = byDay
		}

		actual, ok := byDay[domain.DayKey(rec.Date)]
		if !ok {
			acc.Unmatched++
			continue
		}

		absErr := math.Abs(rec.PredMean - actual)
		absErrSum += absErr
		if actual > 0 {
			pctErrSum += absErr / actual
			pctCount++
		}
		acc.Matched++
	}

	if acc.Matched > 0 {
		acc.MAE = absErrSum / float64(acc.Matched)
	}
	if pctCount > 0 {
		acc.MAPE = 100 * pctErrSum / float64(pctCount)
	}
	return acc, nil
}
