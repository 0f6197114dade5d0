package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/outbreak-engine/internal/domain"
	"github.com/epiwatch/outbreak-engine/internal/store/memory"
)

var day = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

func TestPutCases_UpsertOverwrites(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	rec := domain.CaseRecord{RegionID: "r1", Date: day, Disease: "dengue", Confirmed: 10, Granularity: domain.Daily}
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{rec}))
	rec.Confirmed = 25
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{rec}))

	got, err := st.CaseHistory(ctx, "r1", day, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 25, got[0].Confirmed)
}

func TestCaseHistory_FiltersGranularityAndRange(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{
		{RegionID: "r1", Date: day.AddDate(0, 0, -8), Disease: "dengue", Confirmed: 1, Granularity: domain.Daily},
		{RegionID: "r1", Date: day.AddDate(0, 0, -2), Disease: "dengue", Confirmed: 2, Granularity: domain.Daily},
		{RegionID: "r1", Date: day.AddDate(0, 0, -1), Disease: "dengue", Confirmed: 3}, // untagged counts as daily
		{RegionID: "r1", Date: day, Disease: "dengue", Confirmed: 4, Granularity: domain.Weekly},
	}))

	got, err := st.CaseHistory(ctx, "r1", day.AddDate(0, 0, -6), day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Confirmed)
	assert.Equal(t, 3, got[1].Confirmed)
}

func TestCaseSeries_TrimsToLimit(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	var records []domain.CaseRecord
	for i := 0; i < 10; i++ {
		records = append(records, domain.CaseRecord{
			RegionID: "r1", Date: day.AddDate(0, -9+i, 0), Disease: "dengue",
			Confirmed: i, Granularity: domain.Monthly,
		})
	}
	require.NoError(t, st.PutCases(ctx, records))

	got, err := st.CaseSeries(ctx, "r1", "dengue", domain.Monthly, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 7, got[0].Confirmed)
	assert.Equal(t, 9, got[2].Confirmed)

	all, err := st.CaseSeries(ctx, "r1", "dengue", domain.Monthly, 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestListRegions_DiseaseScoped(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.PutRegions(ctx, []domain.Region{{ID: "r1", Name: "District 1"}}))
	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{
		{RegionID: "r1", Date: day, Disease: "dengue", Confirmed: 1, Granularity: domain.Daily},
		{RegionID: "r2", Date: day, Disease: "malaria", Confirmed: 1, Granularity: domain.Daily},
	}))

	dengue, err := st.ListRegions(ctx, "dengue")
	require.NoError(t, err)
	require.Len(t, dengue, 1)
	assert.Equal(t, "r1", dengue[0].ID)
	assert.Equal(t, "District 1", dengue[0].Name) // metadata from PutRegions

	malaria, err := st.ListRegions(ctx, "malaria")
	require.NoError(t, err)
	require.Len(t, malaria, 1)
	assert.Equal(t, "r2", malaria[0].ID)
}

func TestDeletes_AreDiseaseScoped(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	for _, disease := range []string{"dengue", "malaria"} {
		require.NoError(t, st.PutRiskScores(ctx, []domain.RiskScore{{
			ID: domain.RiskScoreID("r1", day, disease), RegionID: "r1", Date: day, Disease: disease,
		}}))
		require.NoError(t, st.PutAlerts(ctx, []domain.Alert{{
			ID: domain.AlertID("r1", day, disease, "x"), RegionID: "r1", Date: day, Disease: disease,
		}}))
		require.NoError(t, st.PutForecasts(ctx, []domain.ForecastRecord{{
			ID: domain.ForecastID("r1", day, disease, "naive_v1"), RegionID: "r1", Date: day, Disease: disease,
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

	// Malaria documents untouched.
	counts, err := st.Counts(ctx, "malaria")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.RiskScores)
	assert.Equal(t, 1, counts.Alerts)
	assert.Equal(t, 1, counts.Forecasts)

	empty, err := st.Counts(ctx, "dengue")
	require.NoError(t, err)
	assert.Zero(t, empty.RiskScores)
	assert.Zero(t, empty.Alerts)
	assert.Zero(t, empty.Forecasts)
}

func TestLatestCaseDate(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	got, err := st.LatestCaseDate(ctx, "dengue")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	require.NoError(t, st.PutCases(ctx, []domain.CaseRecord{
		{RegionID: "r1", Date: day.AddDate(0, 0, -3), Disease: "dengue", Granularity: domain.Daily},
		{RegionID: "r1", Date: day, Disease: "dengue", Granularity: domain.Daily},
		{RegionID: "r1", Date: day.AddDate(0, 0, 5), Disease: "malaria", Granularity: domain.Daily},
	}))

	got, err = st.LatestCaseDate(ctx, "dengue")
	require.NoError(t, err)
	assert.Equal(t, day, got)
}

func TestLatestRiskScores_ScopedToDay(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.PutRiskScores(ctx, []domain.RiskScore{
		{ID: "a", RegionID: "r1", Date: day, Disease: "dengue", Score: 0.5},
		{ID: "b", RegionID: "r2", Date: day.AddDate(0, 0, -1), Disease: "dengue", Score: 0.9},
	}))

	got, err := st.LatestRiskScores(ctx, day, "dengue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RegionID)
}
