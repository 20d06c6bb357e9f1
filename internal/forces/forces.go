// Package forces implements the social-force model: independent force
// contributors summed into one net force per person per tick, and the
// per-person parameter generator used at spawn time.
//
// Contributors are evaluated in a fixed order (target, repulsion,
// fluctuation, herding). Fluctuation and herding keep per-person state, so
// every contributor must be asked exactly once per person per tick.
package forces

import (
	"math/rand"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/dist"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
)

// MaxSpeedFactor caps the net force at this multiple of the person's target speed.
const MaxSpeedFactor = 1.2

// Force is one contributor to the net force. The result is in meters per second.
type Force interface {
	Name() string
	ForceFor(p *agents.Person, s *scene.Scene, rng *rand.Rand) geom.Vector
}

// Forces combines the contributors and samples per-person parameters.
type Forces struct {
	contributors []Force
	herding      *Herding

	targetSpeed    dist.Value
	repulsionCoeff dist.Value
	forwardFOV     dist.Value
	backwardFOV    dist.Value
	herdingCoeff   dist.Value
}

// New builds the standard contributor set. Fluctuation durations are
// counted in ticks derived from cfg.Time.Tick.
func New(cfg config.Config) *Forces {
	ticksPerSecond := 1.0
	if cfg.Time.Tick > 0 {
		ticksPerSecond = 1 / cfg.Time.Tick
	}
	herding := NewHerding()
	return &Forces{
		contributors: []Force{
			Target{},
			Repulsion{},
			NewFluctuation(ticksPerSecond),
			herding,
		},
		herding:        herding,
		targetSpeed:    cfg.Forces.TargetSpeed,
		repulsionCoeff: cfg.Forces.RepulsionCoeff,
		forwardFOV:     cfg.FOV.Forward,
		backwardFOV:    cfg.FOV.Backward,
		herdingCoeff:   cfg.Forces.Herding,
	}
}

// Contributors returns the contributors in evaluation order.
func (f *Forces) Contributors() []Force { return f.contributors }

// Generate samples a fresh parameter bundle. Sampling order is fixed so a
// seeded generator always yields the same people.
func (f *Forces) Generate(rng *rand.Rand) agents.Params {
	return agents.Params{
		TargetSpeed:    f.targetSpeed.Sample(rng),
		RepulsionCoeff: f.repulsionCoeff.Sample(rng),
		ForwardFOV:     f.forwardFOV.Sample(rng),
		BackwardFOV:    f.backwardFOV.Sample(rng),
		Herding:        f.herdingCoeff.Sample(rng),
	}
}

// BeginTick clears per-tick side outputs.
func (f *Forces) BeginTick() {
	f.herding.BeginTick()
}

// TotalForce sums every contributor for p, caps the result at
// MaxSpeedFactor times the target speed, and converts it to grid units.
func (f *Forces) TotalForce(p *agents.Person, s *scene.Scene, rng *rand.Rand) geom.Vector {
	var total geom.Vector
	for _, c := range f.contributors {
		total = total.Add(c.ForceFor(p, s, rng))
	}
	total = total.Clamped(p.Params.TargetSpeed * MaxSpeedFactor)
	return total.Scale(1 / s.Scale)
}

// Suggestions returns the path changes herding proposed this tick.
func (f *Forces) Suggestions() map[agents.PersonID]scene.PathChange {
	return f.herding.Suggestions()
}
