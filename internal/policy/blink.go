package policy

import "time"

// Blinker is a two-phase timed state: Off for one period, then On for one
// period, repeating while the blink condition holds. The phase is derived
// from elapsed time, so it does not depend on how often it is sampled.
type Blinker struct {
	period time.Duration
	active bool
	start  time.Time
}

func NewBlinker(period time.Duration) *Blinker {
	if period <= 0 {
		period = time.Second
	}
	return &Blinker{period: period}
}

func (b *Blinker) Period() time.Duration { return b.period }

// Lit reports whether the color should be drawn at now. Entering the blink
// condition starts in the Off phase; leaving it resets the blinker and
// always reports lit.
func (b *Blinker) Lit(active bool, now time.Time) bool {
	if !active {
		b.active = false
		return true
	}
	if !b.active {
		b.active = true
		b.start = now
	}
	// Phase edges sit half a period off the start so samples taken on a
	// cadence equal to the period do not straddle an edge under jitter.
	n := int64((now.Sub(b.start) + b.period/2) / b.period)
	return n%2 == 1
}
