package domain

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the temporal resolution of a case series used for
// forecasting. It determines the naive lookback, the statistical fit window,
// and the seasonal period.
type Granularity string

const (
	// Daily tags the raw case records that feed risk scoring. It is not a
	// valid forecasting granularity.
	Daily Granularity = "daily"

	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// ParseGranularity validates a granularity string.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	default:
		return "", fmt.Errorf("%w: granularity %q (want weekly, monthly, or yearly)", ErrValidation, s)
	}
}

// NaiveLookback is the number of trailing points the naive forecaster averages.
func (g Granularity) NaiveLookback() int {
	switch g {
	case Yearly:
		return 3
	case Monthly:
		return 6
	default:
		return 12
	}
}

// FitWindow is the maximum history length used to fit the statistical model.
func (g Granularity) FitWindow() int {
	switch g {
	case Yearly:
		return 5
	case Monthly:
		return 24
	default:
		return 52
	}
}

// SeasonalPeriod is the seasonal cycle length in points. A period of 1 means
// no seasonal structure (yearly series).
func (g Granularity) SeasonalPeriod() int {
	switch g {
	case Yearly:
		return 1
	case Monthly:
		return 12
	default:
		return 52
	}
}

// Step advances a date by n granularity units. Used to derive forecast
// target dates from the effective date.
func (g Granularity) Step(t time.Time, n int) time.Time {
	switch g {
	case Yearly:
		return t.AddDate(n, 0, 0)
	case Monthly:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, 7*n)
	}
}
