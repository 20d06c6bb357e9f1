package scene

import "github.com/talgya/crowd-sim/internal/agents"

type arrival uint8

const (
	stay arrival = iota
	advance
	finish
)

// ProcessReachedDestinationPeople advances everyone standing inside their
// current target and removes those who finished their path, returning the
// removed people. All decisions are taken before anyone is changed, so one
// person's advance never affects another's test in the same pass.
func (s *Scene) ProcessReachedDestinationPeople() []*agents.Person {
	decisions := make([]arrival, len(s.People))
	for i, p := range s.People {
		path := s.MustPath(p.PathID)
		switch {
		case !p.ReachedDestination(path, s.Scale):
			decisions[i] = stay
		case p.TargetIndex < path.Last():
			decisions[i] = advance
		default:
			decisions[i] = finish
		}
	}

	var finished []*agents.Person
	kept := s.People[:0]
	for i, p := range s.People {
		switch decisions[i] {
		case advance:
			p.AdvanceTarget(s.MustPath(p.PathID))
			kept = append(kept, p)
		case finish:
			finished = append(finished, p)
		default:
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(s.People); i++ {
		s.People[i] = nil
	}
	s.People = kept
	return finished
}
