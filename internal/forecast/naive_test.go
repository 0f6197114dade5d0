package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/outbreak-engine/internal/domain"
)

func TestNaive_MeanWithInterval(t *testing.T) {
	history := []float64{10, 10, 10, 10, 10, 10}

	pred, err := Naive{}.Forecast(history, 3, domain.Monthly)
	require.NoError(t, err)

	assert.Equal(t, NaiveVersion, pred.ModelVersion)
	require.Len(t, pred.Points, 3)
	for _, pt := range pred.Points {
		assert.Equal(t, 10.0, pt.Mean)
		assert.InDelta(t, 9.0, pt.Lower, 1e-9)
		assert.InDelta(t, 11.0, pt.Upper, 1e-9)
	}
}

func TestNaive_UsesTrailingLookbackOnly(t *testing.T) {
	// Monthly lookback is 6: the leading 100s must not influence the mean.
	history := []float64{100, 100, 100, 2, 4, 6, 8, 10, 12}

	pred, err := Naive{}.Forecast(history, 1, domain.Monthly)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, pred.Points[0].Mean, 1e-9)
}

func TestNaive_ShortHistory(t *testing.T) {
	pred, err := Naive{}.Forecast([]float64{42}, 2, domain.Yearly)
	require.NoError(t, err)
	assert.Equal(t, 42.0, pred.Points[0].Mean)
	assert.Equal(t, 42.0, pred.Points[1].Mean)
}

func TestNaive_EmptyHistory(t *testing.T) {
	_, err := Naive{}.Forecast(nil, 1, domain.Weekly)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestNaive_InvalidHorizon(t *testing.T) {
	_, err := Naive{}.Forecast([]float64{1, 2, 3}, 0, domain.Weekly)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
