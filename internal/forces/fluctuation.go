package forces

import (
	"math"
	"math/rand"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/dist"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
)

// Fluctuation tuning.
const (
	FluctuationProbability = 0.1 // chance per tick at full panic
	FluctuationMaxPower    = 0.5 // m/s
	FluctuationMaxDuration = 2.0 // seconds
)

type fluctuationState struct {
	force     geom.Vector
	remaining int // ticks
}

// Fluctuation adds random stumbles whose likelihood, strength and length
// grow with panic. A started fluctuation keeps pushing the same way until
// it runs out.
type Fluctuation struct {
	ticksPerSecond float64
	active         map[agents.PersonID]*fluctuationState
}

// NewFluctuation creates a fluctuation force for the given tick rate.
func NewFluctuation(ticksPerSecond float64) *Fluctuation {
	return &Fluctuation{
		ticksPerSecond: ticksPerSecond,
		active:         make(map[agents.PersonID]*fluctuationState),
	}
}

func (f *Fluctuation) Name() string { return "fluctuation" }

func (f *Fluctuation) ForceFor(p *agents.Person, _ *scene.Scene, rng *rand.Rand) geom.Vector {
	if st, ok := f.active[p.ID]; ok {
		force := st.force
		st.remaining--
		if st.remaining <= 0 {
			delete(f.active, p.ID)
		}
		return force
	}

	if p.PanicLevel == 0 || rng.Float64() >= p.PanicLevel*FluctuationProbability {
		return geom.Vector{}
	}

	angle := dist.SampleUniform(rng, 0, 2*math.Pi)
	power := dist.SampleUniform(rng, 0, FluctuationMaxPower) * p.PanicLevel
	ticks := int(math.Round(dist.SampleUniform(rng, 0, FluctuationMaxDuration) * p.PanicLevel * f.ticksPerSecond))
	ticks = max(1, ticks)

	st := &fluctuationState{force: geom.FromHeading(angle, power), remaining: ticks}
	f.active[p.ID] = st

	st.remaining--
	if st.remaining <= 0 {
		delete(f.active, p.ID)
	}
	return st.force
}

// Active returns the number of people with a running fluctuation.
func (f *Fluctuation) Active() int { return len(f.active) }
