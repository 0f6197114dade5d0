// Package risk scores per-region outbreak risk from a 7-day lookback window
// of daily case records, with an optional seasonal adjustment.
package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/season"
)

// ErrInsufficientHistory marks a region with fewer than two points in the
// lookback window. The region is skipped, not failed.
var ErrInsufficientHistory = errors.New("insufficient case history")

// Component weights of the base score.
const (
	growthWeight     = 0.65
	volatilityWeight = 0.25
	deathWeight      = 0.10
)

// Sub-thresholds at which a component earns a driver string. Taken from the
// operational defaults; see Open Questions in DESIGN.md.
const (
	growthDriverMin     = 0.30
	volatilityDriverMin = 0.15
	deathDriverMin      = 0.02

	// seasonalDriverMin is the relative score change above which the
	// seasonal adjustment earns its own driver string.
	seasonalDriverMin = 0.10
)

// LookbackDays is the width of the risk scoring window.
const LookbackDays = 7

// Options configures the pure scoring function. The zero value is not
// usable; construct with DefaultOptions and override as needed.
type Options struct {
	// Seasonal is the month-to-multiplier table. Required.
	Seasonal season.Table

	// SeasonalBoost applies the multiplier when true; otherwise the base
	// score is the final score and climate info records a 1.0 multiplier.
	SeasonalBoost bool
}

// DefaultOptions returns scoring options with the default seasonal table and
// the boost enabled.
func DefaultOptions() Options {
	return Options{Seasonal: season.Default(), SeasonalBoost: true}
}

// Score computes one region's risk score from its lookback window. The
// window must hold the region's daily records for [date-6d, date] in
// ascending date order; fewer than two points returns ErrInsufficientHistory.
func Score(regionID string, date time.Time, disease string, window []domain.CaseRecord, opts Options) (domain.RiskScore, error) {
	if len(window) < 2 {
		return domain.RiskScore{}, fmt.Errorf("%w: region %s has %d points in window", ErrInsufficientHistory, regionID, len(window))
	}

	growthRate := growth(window)
	volatilityNorm := volatility(window)
	deathRatio := deaths(window)

	base := growthWeight*clip(growthRate) +
		volatilityWeight*clip(2*volatilityNorm) +
		deathWeight*clip(50*deathRatio)

	factor, label := 1.0, "baseline"
	adjusted := base
	if opts.SeasonalBoost {
		factor, label = opts.Seasonal.Multiplier(date)
		adjusted = math.Min(1.0, base*factor)
	}

	score := domain.RiskScore{
		ID:       domain.RiskScoreID(regionID, date, disease),
		RegionID: regionID,
		Date:     date,
		Disease:  disease,
		Score:    adjusted,
		Level:    domain.LevelForScore(adjusted),
		Drivers:  drivers(growthRate, volatilityNorm, deathRatio, base, adjusted, label),
		Metrics: domain.RiskMetrics{
			GrowthRate:     growthRate,
			VolatilityNorm: volatilityNorm,
			DeathRatio:     deathRatio,
		},
		Climate: domain.ClimateInfo{
			BaseRisk:     base,
			Multiplier:   factor,
			AdjustedRisk: adjusted,
			Season:       label,
			Explanation:  season.Explain(label, factor, base, adjusted),
		},
		ComputedAt: domain.Timestamp(),
	}
	return score, nil
}

// growth is the relative case increase across the window: newest point
// against the point 7 days back (the oldest in the window). Zero when the
// old count is zero so the division is always safe.
func growth(window []domain.CaseRecord) float64 {
	old := float64(window[0].Confirmed)
	if old == 0 {
		return 0
	}
	latest := float64(window[len(window)-1].Confirmed)
	return (latest - old) / old
}

// volatility is the coefficient of variation of confirmed counts
// (population standard deviation over mean). Zero when the mean is zero.
func volatility(window []domain.CaseRecord) float64 {
	var sum float64
	for _, rec := range window {
		sum += float64(rec.Confirmed)
	}
	mean := sum / float64(len(window))
	if mean == 0 {
		return 0
	}

	var ss float64
	for _, rec := range window {
		d := float64(rec.Confirmed) - mean
		ss += d * d
	}
	stdev := math.Sqrt(ss / float64(len(window)))
	return stdev / mean
}

// deaths is the window's aggregate case fatality ratio. Zero when no
// confirmed cases were observed.
func deaths(window []domain.CaseRecord) float64 {
	var confirmed, dead float64
	for _, rec := range window {
		confirmed += float64(rec.Confirmed)
		dead += float64(rec.Deaths)
	}
	if confirmed == 0 {
		return 0
	}
	return dead / confirmed
}

// drivers builds the ordered human-readable reasons for the score. Order is
// fixed (growth, volatility, deaths, seasonal) so recomputation is
// byte-identical.
func drivers(growthRate, volatilityNorm, deathRatio, base, adjusted float64, label string) []string {
	out := make([]string, 0, 4)
	if clip(growthRate) >= growthDriverMin {
		out = append(out, fmt.Sprintf("Case growth %.0f%% over %d days", growthRate*100, LookbackDays))
	}
	if volatilityNorm >= volatilityDriverMin {
		out = append(out, fmt.Sprintf("Unstable case counts (volatility %.2f)", volatilityNorm))
	}
	if deathRatio >= deathDriverMin {
		out = append(out, fmt.Sprintf("Elevated death ratio %.1f%%", deathRatio*100))
	}
	if base > 0 {
		delta := (adjusted - base) / base
		if math.Abs(delta) > seasonalDriverMin {
			out = append(out, fmt.Sprintf("Seasonal adjustment %+.0f%% (%s season)", delta*100, label))
		}
	}
	return out
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
