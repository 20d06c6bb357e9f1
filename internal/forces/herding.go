package forces

import (
	"math/rand"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
)

// Herding tuning.
const (
	HerdingRadius              = 3.0 // meters
	HerdingSuggestionThreshold = 0.7 // fraction of target speed
)

// Herding makes panicked people walk the way their neighbours walk. When
// the pull is strong it also suggests following the last neighbour's path.
type Herding struct {
	suggestions map[agents.PersonID]scene.PathChange
}

// NewHerding creates a herding force with no suggestions.
func NewHerding() *Herding {
	return &Herding{suggestions: make(map[agents.PersonID]scene.PathChange)}
}

func (h *Herding) Name() string { return "herding" }

// BeginTick drops the previous tick's suggestions.
func (h *Herding) BeginTick() {
	clear(h.suggestions)
}

func (h *Herding) ForceFor(p *agents.Person, s *scene.Scene, _ *rand.Rand) geom.Vector {
	if p.PanicLevel == 0 {
		return geom.Vector{}
	}

	radius := HerdingRadius / s.Scale
	radiusSqr := radius * radius

	var sum geom.Vector
	var last *agents.Person
	n := 0
	for _, other := range s.People {
		if other.ID == p.ID || other.Coordinates.DistanceSqr(p.Coordinates) >= radiusSqr {
			continue
		}
		sum = sum.Add(other.HeadingVelocity())
		last = other
		n++
	}
	if n == 0 {
		return geom.Vector{}
	}

	force := sum.Scale(p.PanicLevel * p.Params.Herding / float64(n))
	if force.Length() > HerdingSuggestionThreshold*p.Params.TargetSpeed {
		h.suggestions[p.ID] = scene.PathChange{
			PathID:      last.PathID,
			TargetIndex: last.TargetIndex,
			Target:      last.Target,
		}
	}
	return force
}

// Suggestions returns this tick's path-change suggestions by person.
func (h *Herding) Suggestions() map[agents.PersonID]scene.PathChange {
	return h.suggestions
}
