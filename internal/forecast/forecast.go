// Package forecast produces short-horizon case-count forecasts through two
// interchangeable strategies behind one interface: a naive trailing-mean
// baseline and an auto-order ARIMA/SARIMA fit. Strategy selection is
// explicit configuration; a failed or timed-out statistical fit falls back
// to the naive strategy for that region instead of aborting the batch.
package forecast

import (
	"errors"

	"github.com/epiwatch/outbreak-engine/internal/domain"
)

// Model version labels stored on forecast records so downstream evaluation
// can compare strategies.
const (
	NaiveVersion    = "naive_v1"
	ARIMAVersion    = "arima_v1"
	SeasonalVersion = "sarima_v1"
)

var (
	// ErrInsufficientHistory marks a series too short for the strategy.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNoVariance marks a degenerate (flat) series the statistical model
	// cannot fit.
	ErrNoVariance = errors.New("series has no variance")

	// ErrFitFailed marks a non-converged or numerically singular fit.
	ErrFitFailed = errors.New("model fit failed")
)

// Point is one predicted future value with its uncertainty interval.
// Bounds are clamped to zero: case counts cannot be negative.
type Point struct {
	Mean  float64
	Lower float64
	Upper float64
}

// Prediction is a strategy's output for one region: horizon points plus the
// model version that produced them.
type Prediction struct {
	Points       []Point
	ModelVersion string
}

// Strategy is the common forecasting contract. history is the region's case
// series in ascending date order at the given granularity; implementations
// must be safe for concurrent use.
type Strategy interface {
	Forecast(history []float64, horizon int, g domain.Granularity) (Prediction, error)
	Name() string
}
