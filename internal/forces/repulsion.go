package forces

import (
	"math"
	"math/rand"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
)

// Repulsion tuning. Distances are in meters.
const (
	RepulsionStrength = 2.0 // m/s at zero distance, straight ahead
	RepulsionCutoff   = 2.0
	RepulsionDecay    = 0.3
	RepulsionFront    = 5.0
	RepulsionSide     = 1.5
)

// Repulsion pushes a person away from nearby walls and other people.
// Pushes from ahead and behind count more than pushes from the side, and
// stimuli outside the field of view are discounted. Panicked people care
// less about others' personal space.
type Repulsion struct{}

func (Repulsion) Name() string { return "repulsion" }

func (Repulsion) ForceFor(p *agents.Person, s *scene.Scene, _ *rand.Rand) geom.Vector {
	var total geom.Vector
	for _, wall := range s.Walls {
		total = total.Add(repulsionFrom(p, wall.NearestPoint(p.Coordinates), s.Scale, 1))
	}
	othersWeight := 1 - p.PanicLevel
	for _, other := range s.People {
		if other.ID == p.ID {
			continue
		}
		total = total.Add(repulsionFrom(p, other.Coordinates, s.Scale, othersWeight))
	}
	return total.Scale(p.Params.RepulsionCoeff)
}

func repulsionFrom(p *agents.Person, nearest geom.Point, scale, weight float64) geom.Vector {
	dir := nearest.Sub(p.Coordinates)
	if dir.IsZero() || weight == 0 {
		return geom.Vector{}
	}
	d := dir.Length() * scale
	if d >= RepulsionCutoff {
		return geom.Vector{}
	}

	rel := geom.HeadingDiff(dir.Heading(), p.Heading)
	anisotropy := math.Sqrt(geom.EllipseRadiusSqrAt(RepulsionFront, RepulsionSide, rel)) / RepulsionFront
	magnitude := RepulsionStrength * math.Exp(-d/RepulsionDecay) * anisotropy * p.FOVCoeff(nearest) * weight

	return dir.Normalized().Neg().Scale(magnitude)
}
