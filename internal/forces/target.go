package forces

import (
	"math/rand"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
)

// Target pulls a person toward its current target area at target speed.
type Target struct{}

func (Target) Name() string { return "target" }

func (Target) ForceFor(p *agents.Person, s *scene.Scene, _ *rand.Rand) geom.Vector {
	dir := p.TargetPoint(s.Scale).Sub(p.Coordinates)
	if dir.IsZero() {
		return geom.Vector{}
	}
	return dir.WithLength(p.Params.TargetSpeed)
}
