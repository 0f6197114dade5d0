package season

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCoversEveryMonth(t *testing.T) {
	table := Default()
	for m := time.January; m <= time.December; m++ {
		entry, ok := table[m]
		assert.True(t, ok, m.String())
		assert.Greater(t, entry.Factor, 0.0, m.String())
		assert.NotEmpty(t, entry.Label, m.String())
	}
}

func TestMultiplier(t *testing.T) {
	table := Default()

	tests := []struct {
		month  time.Month
		factor float64
		label  string
	}{
		{time.January, 0.50, "winter"},
		{time.May, 1.00, "pre-monsoon"},
		{time.July, 1.80, "monsoon"},
		{time.October, 1.20, "post-monsoon"},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			date := time.Date(2025, tt.month, 15, 0, 0, 0, 0, time.UTC)
			factor, label := table.Multiplier(date)
			assert.Equal(t, tt.factor, factor)
			assert.Equal(t, tt.label, label)
		})
	}
}

func TestMultiplierFallsBackOnPartialTable(t *testing.T) {
	partial := Table{time.June: {Factor: 1.5, Label: "monsoon"}}

	factor, label := partial.Multiplier(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1.0, factor)
	assert.Equal(t, "baseline", label)

	factor, label = partial.Multiplier(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1.5, factor)
	assert.Equal(t, "monsoon", label)
}

func TestMultiplierRejectsNonPositiveFactor(t *testing.T) {
	bad := Table{time.March: {Factor: 0, Label: "broken"}}
	factor, label := bad.Multiplier(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1.0, factor)
	assert.Equal(t, "baseline", label)
}

func TestMonsoonPeaksAboveWinter(t *testing.T) {
	table := Default()
	july, _ := table.Multiplier(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	january, _ := table.Multiplier(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Greater(t, july, january)
}

func TestExplain(t *testing.T) {
	got := Explain("monsoon", 1.80, 0.400, 0.720)
	assert.Equal(t, "monsoon season multiplier 1.80 applied: base risk 0.400 -> 0.720", got)
}
