// Package contagion propagates panic through the crowd. Panic rises at
// once near panic sources and panicked neighbours and decays slowly
// otherwise. Updates are synchronous: every new level is computed from
// the previous tick's levels and committed after the full pass.
package contagion

import (
	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
)

// ProximityRadius is the reach of panic between people, in meters.
const ProximityRadius = 2.0

// Propagator recomputes panic levels once per tick.
type Propagator struct {
	KInitial float64 // weight of panic sources
	KSpread  float64 // weight of neighbours' panic
	KDecay   float64 // fraction of the gap closed per tick when calming down
	Radius   float64 // meters

	next []float64
}

// New creates a propagator from the panic configuration.
func New(cfg config.Panic) *Propagator {
	return &Propagator{
		KInitial: cfg.KInitial,
		KSpread:  cfg.KSpread,
		KDecay:   cfg.KDecay,
		Radius:   ProximityRadius,
	}
}

// Update recomputes every person's panic level.
func (pr *Propagator) Update(s *scene.Scene) {
	people := s.People
	if cap(pr.next) < len(people) {
		pr.next = make([]float64, len(people))
	}
	next := pr.next[:len(people)]

	radius := pr.Radius / s.Scale
	radiusSqr := radius * radius

	for i, p := range people {
		fromSources := 0.0
		sources := 0
		for _, src := range s.PanicSources {
			if src.Affects(p.Coordinates) {
				fromSources += src.Power
				sources++
			}
		}
		if sources > 0 {
			fromSources /= float64(sources)
		}

		fromHerd := 0.0
		neighbours := 0
		for j, other := range people {
			if j == i || other.Coordinates.DistanceSqr(p.Coordinates) > radiusSqr {
				continue
			}
			fromHerd += other.PanicLevel
			neighbours++
		}
		if neighbours > 0 {
			fromHerd /= float64(neighbours)
		}

		desired := geom.Clamp(pr.KInitial*fromSources+pr.KSpread*fromHerd, 0, 1)
		next[i] = pr.step(p.PanicLevel, desired)
	}

	for i, p := range people {
		p.PanicLevel = next[i]
	}
}

func (pr *Propagator) step(current, desired float64) float64 {
	if desired >= current {
		return desired
	}
	return geom.Clamp(current+(desired-current)*pr.KDecay, 0, 1)
}
