package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for document timestamps. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Timestamp returns the current UTC time from the package clock. Engines use
// it to stamp ComputedAt/CreatedAt/GeneratedAt on documents they write.
func Timestamp() time.Time {
	return clock.Now().UTC()
}
