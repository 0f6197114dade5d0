// Package season provides the static month-to-multiplier table used to
// adjust base risk scores for known seasonal transmission patterns. The
// table is calibrated for vector-borne disease in a monsoon climate: low
// transmission in winter, ramp-up before the rains, peak during the monsoon,
// and an elevated tail afterwards. There is no external I/O and no mutable
// state, so a Table is safe to share across any number of goroutines.
package season

import (
	"fmt"
	"time"
)

// Entry is one month's risk multiplier and human-readable season label.
type Entry struct {
	Factor float64
	Label  string
}

// Table maps calendar months to their multiplier entries.
type Table map[time.Month]Entry

// Default returns the standard historical multiplier table.
func Default() Table {
	return Table{
		time.January:   {Factor: 0.50, Label: "winter"},
		time.February:  {Factor: 0.55, Label: "winter"},
		time.March:     {Factor: 0.70, Label: "pre-monsoon"},
		time.April:     {Factor: 0.85, Label: "pre-monsoon"},
		time.May:       {Factor: 1.00, Label: "pre-monsoon"},
		time.June:      {Factor: 1.50, Label: "monsoon"},
		time.July:      {Factor: 1.80, Label: "monsoon"},
		time.August:    {Factor: 1.70, Label: "monsoon"},
		time.September: {Factor: 1.60, Label: "monsoon"},
		time.October:   {Factor: 1.20, Label: "post-monsoon"},
		time.November:  {Factor: 1.20, Label: "post-monsoon"},
		time.December:  {Factor: 0.50, Label: "winter"},
	}
}

// Multiplier returns the risk factor and season label for a date's month.
// Months absent from the table fall back to a 1.0 no-op multiplier with the
// "baseline" label, so a partial custom table degrades safely.
func (t Table) Multiplier(date time.Time) (float64, string) {
	entry, ok := t[date.Month()]
	if !ok || entry.Factor <= 0 {
		return 1.0, "baseline"
	}
	return entry.Factor, entry.Label
}

// Explain renders the standard explanation string stored in climate info.
func Explain(label string, factor, base, adjusted float64) string {
	return fmt.Sprintf("%s season multiplier %.2f applied: base risk %.3f -> %.3f", label, factor, base, adjusted)
}
