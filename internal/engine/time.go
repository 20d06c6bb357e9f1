package engine

import (
	"fmt"
	"math"
)

// Time is the simulation clock in seconds. Current is derived from the
// tick count so it does not accumulate rounding error.
type Time struct {
	Current float64
	End     float64 // +Inf for runs without an end time
	Tick    float64
	Ticks   uint64 // ticks elapsed
}

// NewTime creates a clock at zero.
func NewTime(end, tick float64) Time {
	return Time{End: end, Tick: tick}
}

// Passed reports whether the end time has been reached.
func (t Time) Passed() bool { return t.Current >= t.End }

// Finite reports whether the clock has an end time.
func (t Time) Finite() bool { return !math.IsInf(t.End, 1) }

// Next advances the clock by one tick.
func (t *Time) Next() {
	t.Ticks++
	t.Current = float64(t.Ticks) * t.Tick
}

// TicksPerSecond returns ceil(1/tick), the tick count of one simulated second.
func (t Time) TicksPerSecond() uint64 {
	return uint64(math.Ceil(1 / t.Tick))
}

func (t Time) String() string {
	if !t.Finite() {
		return fmt.Sprintf("%.2fs/inf", t.Current)
	}
	return fmt.Sprintf("%.2fs/%.2fs", t.Current, t.End)
}
