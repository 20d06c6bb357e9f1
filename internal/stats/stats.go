// Package stats aggregates values observed when people finish their path.
package stats

import (
	"fmt"
	"math"

	"github.com/talgya/crowd-sim/internal/agents"
)

// Accumulator keeps running min, max, sum and sum of squares. Derived
// values are NaN until the first Add.
type Accumulator struct {
	Min, Max   float64
	Count      uint32
	Sum, SumSq float64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() Accumulator {
	return Accumulator{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Add records one observation.
func (a *Accumulator) Add(v float64) {
	a.Min = math.Min(a.Min, v)
	a.Max = math.Max(a.Max, v)
	a.Count++
	a.Sum += v
	a.SumSq += v * v
}

// Mean returns sum/count.
func (a *Accumulator) Mean() float64 { return a.Sum / float64(a.Count) }

// Variance returns the population variance. Rounding can push the raw
// difference slightly below zero when all values are equal; it is floored.
func (a *Accumulator) Variance() float64 {
	m := a.Mean()
	return max(0, a.SumSq/float64(a.Count)-m*m)
}

// StdDeviation returns the square root of the variance.
func (a *Accumulator) StdDeviation() float64 { return math.Sqrt(a.Variance()) }

// Summary is a snapshot of an accumulator.
type Summary struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Count        uint32  `json:"count"`
	Mean         float64 `json:"mean"`
	Variance     float64 `json:"variance"`
	StdDeviation float64 `json:"std_deviation"`
}

// Summary returns the derived statistics, or false when nothing was added.
func (a *Accumulator) Summary() (Summary, bool) {
	if a.Count == 0 {
		return Summary{}, false
	}
	return Summary{
		Min:          a.Min,
		Max:          a.Max,
		Count:        a.Count,
		Mean:         a.Mean(),
		Variance:     a.Variance(),
		StdDeviation: a.StdDeviation(),
	}, true
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d min=%.2f max=%.2f mean=%.2f sd=%.2f", s.Count, s.Min, s.Max, s.Mean, s.StdDeviation)
}

// Statistics collects per-run completion statistics.
type Statistics struct {
	CompletionTime Accumulator // simulation time at which people finished
	TravelTime     Accumulator // finish time minus spawn time
}

// New returns empty run statistics.
func New() *Statistics {
	return &Statistics{CompletionTime: NewAccumulator(), TravelTime: NewAccumulator()}
}

// Record adds everybody who finished at time now.
func (s *Statistics) Record(finished []*agents.Person, now float64) {
	for _, p := range finished {
		s.CompletionTime.Add(now)
		s.TravelTime.Add(now - p.SpawnTime)
	}
}
