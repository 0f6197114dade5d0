package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/store/sqlite"
)

var day = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCaseRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := domain.CaseRecord{
		RegionID: "r1", Date: day, Disease: "dengue",
		Confirmed: 120, Deaths: 3, Recovered: 80, Granularity: domain.Daily,
	}
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{rec}))

	got, err := st.CaseHistory(ctx, "r1", day, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(rec, got[0]); diff != "" {
		t.Fatalf("case roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestPutCases_UpsertOverwrites(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := domain.CaseRecord{RegionID: "r1", Date: day, Disease: "dengue", Confirmed: 10, Granularity: domain.Daily}
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{rec}))
	rec.Confirmed = 99
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{rec}))

	got, err := st.CaseHistory(ctx, "r1", day, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 99, got[0].Confirmed)
}

func TestUntaggedCasesDefaultToDaily(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{
		{RegionID: "r1", Date: day, Disease: "dengue", Confirmed: 7},
	}))

	got, err := st.CaseHistory(ctx, "r1", day, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Daily, got[0].Granularity)
}

func TestCaseSeries_LimitAndOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var records []domain.CaseRecord
	for i := 0; i < 8; i++ {
		records = append(records, domain.CaseRecord{
			RegionID: "r1", Date: day.AddDate(0, -7+i, 0), Disease: "dengue",
			Confirmed: i, Granularity: domain.Monthly,
		})
	}
	require.NoError(t, st.PutCases(ctx, records))

	got, err := st.CaseSeries(ctx, "r1", "dengue", domain.Monthly, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Ascending order, trailing points.
	assert.Equal(t, 5, got[0].Confirmed)
	assert.Equal(t, 7, got[2].Confirmed)

	// Non-positive limit returns the whole series.
	all, err := st.CaseSeries(ctx, "r1", "dengue", domain.Monthly, 0)
	require.NoError(t, err)
	assert.Len(t, all, 8)
}

func TestListRegions_JoinsMetadata(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutRegions(ctx, []domain.Region{{ID: "r1", Name: "District 1", Country: "IN"}}))
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{
		{RegionID: "r1", Date: day, Disease: "dengue", Confirmed: 1, Granularity: domain.Daily},
		{RegionID: "r2", Date: day, Disease: "dengue", Confirmed: 1, Granularity: domain.Daily},
		{RegionID: "r3", Date: day, Disease: "malaria", Confirmed: 1, Granularity: domain.Daily},
	}))

	got, err := st.ListRegions(ctx, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Region{ID: "r1", Name: "District 1", Country: "IN"}, got[0])
	// Regions without metadata fall back to their ID.
	assert.Equal(t, domain.Region{ID: "r2", Name: "r2"}, got[1])
}

func TestLatestCaseDate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	got, err := st.LatestCaseDate(ctx, "dengue")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{
		{RegionID: "r1", Date: day.AddDate(0, 0, -5), Disease: "dengue", Granularity: domain.Daily},
		{RegionID: "r1", Date: day, Disease: "dengue", Granularity: domain.Daily},
	}))

	got, err = st.LatestCaseDate(ctx, "dengue")
	require.NoError(t, err)
	assert.Equal(t, day, got)
}

func TestRiskScoreRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sc := domain.RiskScore{
		ID:       domain.RiskScoreID("r1", day, "dengue"),
		RegionID: "r1",
		Date:     day,
		Disease:  "dengue",
		Score:    0.82,
		Level:    domain.LevelHigh,
		Drivers:  []string{"Case growth 120% over 7 days", "Elevated death ratio 3.0%"},
		Metrics:  domain.RiskMetrics{GrowthRate: 1.2, VolatilityNorm: 0.4, DeathRatio: 0.03},
		Climate: domain.ClimateInfo{
			BaseRisk: 0.46, Multiplier: 1.8, AdjustedRisk: 0.82,
			Season: "monsoon", Explanation: "monsoon season multiplier 1.80 applied: base risk 0.460 -> 0.820",
		},
		ComputedAt: day.Add(6 * time.Hour),
	}
	require.NoError(t, st.PutRiskScores(ctx, []domain.RiskScore{sc}))

	got, err := st.LatestRiskScores(ctx, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(sc, got[0]); diff != "" {
		t.Fatalf("risk score roundtrip mismatch (-want +got):\n%s", diff)
	}

	// Upsert on the same ID keeps one row.
	sc.Score = 0.9
	require.NoError(t, st.PutRiskScores(ctx, []domain.RiskScore{sc}))
	got, err = st.LatestRiskScores(ctx, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Score)
}

func TestAlertRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := domain.Alert{
		ID:        domain.AlertID("r1", day, "dengue", "Risk score 0.82 >= threshold 0.70"),
		RegionID:  "r1",
		Date:      day,
		Disease:   "dengue",
		Reason:    "Risk score 0.82 >= threshold 0.70",
		Severity:  domain.LevelHigh,
		Drivers:   []string{"Case growth 120% over 7 days"},
		RiskScore: 0.82,
		CreatedAt: day.Add(6 * time.Hour),
	}
	require.NoError(t, st.PutAlerts(ctx, []domain.Alert{a}))
	require.NoError(t, st.PutAlerts(ctx, []domain.Alert{a})) // idempotent rerun

	got, err := st.ListAlerts(ctx, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(a, got[0]); diff != "" {
		t.Fatalf("alert roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestForecastRoundtripAndFilter(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	naive := domain.ForecastRecord{
		ID: domain.ForecastID("r1", day, "dengue", "naive_v1"), RegionID: "r1", Date: day,
		Disease: "dengue", ModelVersion: "naive_v1", PredMean: 10, PredLower: 9, PredUpper: 11,
		SourceGranularity: domain.Monthly, GeneratedAt: day.Add(6 * time.Hour),
	}
	arima := naive
	arima.ID = domain.ForecastID("r1", day, "dengue", "arima_v1")
	arima.ModelVersion = "arima_v1"
	require.NoError(t, st.PutForecasts(ctx, []domain.ForecastRecord{naive, arima}))

	all, err := st.ListForecasts(ctx, "dengue", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := st.ListForecasts(ctx, "dengue", "arima_v1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(arima, got[0]); diff != "" {
		t.Fatalf("forecast roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestDeletesAndCounts_AreDiseaseScoped(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, disease := range []string{"dengue", "malaria"} {
		require.NoError(t, st.PutRiskScores(ctx, []domain.RiskScore{{
			ID: domain.RiskScoreID("r1", day, disease), RegionID: "r1", Date: day, Disease: disease,
			Level: domain.LevelLow, Drivers: []string{}, ComputedAt: day,
		}}))
		require.NoError(t, st.PutAlerts(ctx, []domain.Alert{{
			ID: domain.AlertID("r1", day, disease, "x"), RegionID: "r1", Date: day, Disease: disease,
			Reason: "x", Severity: domain.LevelHigh, Drivers: []string{}, CreatedAt: day,
		}}))
		require.NoError(t, st.PutForecasts(ctx, []domain.ForecastRecord{{
			ID: domain.ForecastID("r1", day, disease, "naive_v1"), RegionID: "r1", Date: day,
			Disease: disease, ModelVersion: "naive_v1", SourceGranularity: domain.Monthly, GeneratedAt: day,
		}}))
	}

	n, err := st.DeleteRiskScores(ctx, "dengue")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = st.DeleteAlerts(ctx, "dengue")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = st.DeleteForecasts(ctx, "dengue")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := st.Counts(ctx, "malaria")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.RiskScores)
	assert.Equal(t, 1, counts.Alerts)
	assert.Equal(t, 1, counts.Forecasts)
}

func TestPing(t *testing.T) {
	st := openTestStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
