package forecast

import (
	"fmt"

	"github.com/epiwatch/outbreak-engine/internal/domain"
)

// Naive forecasts every future point as the mean of the most recent
// lookback(granularity) observations, with a flat ±10% interval. It needs
// only one point; with fewer than three the mean is still returned but the
// real uncertainty is wider than the interval advertises, which is why the
// statistical strategy is preferred when it can fit.
type Naive struct{}

// naiveIntervalFraction is the half-width of the prediction interval
// relative to the mean.
const naiveIntervalFraction = 0.10

func (Naive) Name() string { return "naive" }

// Forecast returns horizon copies of the trailing mean.
func (Naive) Forecast(history []float64, horizon int, g domain.Granularity) (Prediction, error) {
	if len(history) == 0 {
		return Prediction{}, fmt.Errorf("%w: naive strategy needs at least one point", ErrInsufficientHistory)
	}
	if horizon < 1 {
		return Prediction{}, fmt.Errorf("%w: horizon must be positive", domain.ErrValidation)
	}

	n := g.NaiveLookback()
	if len(history) < n {
		n = len(history)
	}
	tail := history[len(history)-n:]

	var sum float64
	for _, v := range tail {
		sum += v
	}
	mean := sum / float64(n)
	if mean < 0 {
		mean = 0
	}

	point := Point{
		Mean:  mean,
		Lower: mean * (1 - naiveIntervalFraction),
		Upper: mean * (1 + naiveIntervalFraction),
	}
	points := make([]Point, horizon)
	for i := range points {
		points[i] = point
	}
	return Prediction{Points: points, ModelVersion: NaiveVersion}, nil
}
