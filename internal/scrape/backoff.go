package scrape

import (
	"math"
	"math/rand/v2"
)

// A unit whose previous runs kept yielding zero new entries is skipped with
// growing probability. The chance bottoms out at 5% so even a fully dormant
// (user, skapp, category) still gets synced every so often.
const (
	shouldRunFactor = 1.05
	shouldRunMinPct = 0.05
)

// Backoff decides whether a unit runs this cycle. The random source is
// injectable so tests can force either branch.
type Backoff struct {
	rand func() float64
}

// NewBackoff constructs a Backoff backed by the default random source.
func NewBackoff() *Backoff {
	return &Backoff{rand: rand.Float64}
}

// NewBackoffWithRand constructs a Backoff with a custom random source.
func NewBackoffWithRand(r func() float64) *Backoff {
	return &Backoff{rand: r}
}

// ShouldRun reports whether a unit with the given count of consecutive empty
// runs should run this cycle.
func (b *Backoff) ShouldRun(emptyRuns int) bool {
	pct := 1 / math.Pow(shouldRunFactor, float64(emptyRuns))
	if pct < shouldRunMinPct {
		pct = shouldRunMinPct
	}
	return b.rand() <= pct
}
