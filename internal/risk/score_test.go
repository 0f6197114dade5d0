package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/season"
)

var scoreDate = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

// window builds a 7-day daily window ending at scoreDate from confirmed
// counts, with optional deaths applied to the last day.
func window(confirmed []int, lastDayDeaths int) []domain.CaseRecord {
	out := make([]domain.CaseRecord, len(confirmed))
	for i, c := range confirmed {
		out[i] = domain.CaseRecord{
			RegionID:  "r1",
			Date:      scoreDate.AddDate(0, 0, -(len(confirmed) - 1 - i)),
			Disease:   "dengue",
			Confirmed: c,
		}
	}
	if len(out) > 0 {
		out[len(out)-1].Deaths = lastDayDeaths
	}
	return out
}

func noSeasonal() Options {
	return Options{Seasonal: season.Default(), SeasonalBoost: false}
}

func TestScore_InsufficientHistory(t *testing.T) {
	_, err := Score("r1", scoreDate, "dengue", nil, noSeasonal())
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = Score("r1", scoreDate, "dengue", window([]int{10}, 0), noSeasonal())
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestScore_FlatSeriesScoresZero(t *testing.T) {
	sc, err := Score("r1", scoreDate, "dengue", window([]int{50, 50, 50, 50, 50, 50, 50}, 0), noSeasonal())
	require.NoError(t, err)

	assert.Equal(t, 0.0, sc.Score)
	assert.Equal(t, domain.LevelLow, sc.Level)
	assert.Empty(t, sc.Drivers)
	assert.Equal(t, 0.0, sc.Metrics.GrowthRate)
	assert.Equal(t, 0.0, sc.Metrics.VolatilityNorm)
	assert.Equal(t, 0.0, sc.Metrics.DeathRatio)
}

func TestScore_GrowthComponent(t *testing.T) {
	// 10 -> 20: growth 1.0, clipped growth contributes the full 0.65 weight.
	sc, err := Score("r1", scoreDate, "dengue", window([]int{10, 10, 10, 10, 10, 10, 20}, 0), noSeasonal())
	require.NoError(t, err)

	assert.Equal(t, 1.0, sc.Metrics.GrowthRate)
	assert.Greater(t, sc.Score, 0.65)
	assert.Contains(t, sc.Drivers[0], "Case growth 100% over 7 days")
}

func TestScore_GrowthZeroWhenOldCountZero(t *testing.T) {
	sc, err := Score("r1", scoreDate, "dengue", window([]int{0, 0, 0, 0, 0, 0, 100}, 0), noSeasonal())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sc.Metrics.GrowthRate)
}

func TestScore_DeathComponent(t *testing.T) {
	// 700 confirmed, 35 deaths: ratio 0.05, component 50*0.05 clipped to 1.
	sc, err := Score("r1", scoreDate, "dengue", window([]int{100, 100, 100, 100, 100, 100, 100}, 35), noSeasonal())
	require.NoError(t, err)

	assert.InDelta(t, 0.05, sc.Metrics.DeathRatio, 1e-9)
	assert.Contains(t, sc.Drivers[len(sc.Drivers)-1], "Elevated death ratio 5.0%")
}

func TestScore_VolatilityComponent(t *testing.T) {
	sc, err := Score("r1", scoreDate, "dengue", window([]int{10, 100, 10, 100, 10, 100, 10}, 0), noSeasonal())
	require.NoError(t, err)

	assert.Greater(t, sc.Metrics.VolatilityNorm, volatilityDriverMin)
	found := false
	for _, d := range sc.Drivers {
		if strings.HasPrefix(d, "Unstable case counts") {
			found = true
		}
	}
	assert.True(t, found, "expected volatility driver, got %v", sc.Drivers)
}

func TestScore_ClampedToOne(t *testing.T) {
	// Extreme growth, volatility, and deaths in monsoon season.
	opts := Options{Seasonal: season.Default(), SeasonalBoost: true}
	sc, err := Score("r1", scoreDate, "dengue", window([]int{1, 1, 1, 1, 1, 500, 1000}, 200), opts)
	require.NoError(t, err)

	assert.LessOrEqual(t, sc.Score, 1.0)
	assert.Equal(t, domain.LevelCritical, sc.Level)
}

func TestScore_SeasonalBoost(t *testing.T) {
	w := window([]int{10, 11, 12, 13, 14, 15, 16}, 0)

	base, err := Score("r1", scoreDate, "dengue", w, noSeasonal())
	require.NoError(t, err)
	boosted, err := Score("r1", scoreDate, "dengue", w, Options{Seasonal: season.Default(), SeasonalBoost: true})
	require.NoError(t, err)

	// July carries a 1.8 monsoon multiplier.
	assert.InDelta(t, base.Score*1.8, boosted.Score, 1e-9)
	assert.Equal(t, 1.8, boosted.Climate.Multiplier)
	assert.Equal(t, "monsoon", boosted.Climate.Season)
	assert.Equal(t, base.Score, boosted.Climate.BaseRisk)

	assert.Equal(t, 1.0, base.Climate.Multiplier)
	assert.Equal(t, "baseline", base.Climate.Season)
}

func TestScore_SeasonalDriverOnlyOnMaterialChange(t *testing.T) {
	w := window([]int{10, 11, 12, 13, 14, 15, 16}, 0)

	boosted, err := Score("r1", scoreDate, "dengue", w, Options{Seasonal: season.Default(), SeasonalBoost: true})
	require.NoError(t, err)
	assert.Contains(t, boosted.Drivers[len(boosted.Drivers)-1], "Seasonal adjustment +80% (monsoon season)")

	// May's 1.0 multiplier changes nothing, so no seasonal driver.
	mayDate := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	may, err := Score("r1", mayDate, "dengue", window([]int{10, 11, 12, 13, 14, 15, 16}, 0), Options{Seasonal: season.Default(), SeasonalBoost: true})
	require.NoError(t, err)
	for _, d := range may.Drivers {
		assert.NotContains(t, d, "Seasonal adjustment")
	}
}

func TestScore_Deterministic(t *testing.T) {
	w := window([]int{10, 20, 15, 30, 25, 40, 50}, 2)
	opts := Options{Seasonal: season.Default(), SeasonalBoost: true}

	a, err := Score("r1", scoreDate, "dengue", w, opts)
	require.NoError(t, err)
	b, err := Score("r1", scoreDate, "dengue", w, opts)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.Drivers, b.Drivers)
}
