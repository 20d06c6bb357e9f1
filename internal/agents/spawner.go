// Person creation. Issues ids and sets up the initial heading and target.
package agents

import (
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/world"
)

// DefaultPanicLevel is the panic level of a freshly spawned person.
const DefaultPanicLevel = 0.5

// Spawner creates people with monotonically increasing ids.
type Spawner struct {
	nextID PersonID
}

// NewSpawner creates a spawner whose first id is 1.
func NewSpawner() *Spawner {
	return &Spawner{nextID: 1}
}

// SetNextID sets the next id to be issued.
func (s *Spawner) SetNextID(id PersonID) {
	s.nextID = id
}

// NextID returns the id the next person will get.
func (s *Spawner) NextID() PersonID { return s.nextID }

// Spawn creates a person at the given point on the first target of path,
// facing the nearest point of that target.
func (s *Spawner) Spawn(path *world.Path, at geom.Point, params Params, panicLevel, now float64) *Person {
	id := s.nextID
	s.nextID++

	target := path.Targets[0]
	heading := 0.0
	if dir := target.NearestPoint(at).Sub(at); !dir.IsZero() {
		heading = dir.Heading()
	}

	return &Person{
		ID:          id,
		Coordinates: at,
		Heading:     heading,
		PathID:      path.ID,
		TargetIndex: 0,
		Target:      target,
		PanicLevel:  geom.Clamp(panicLevel, 0, 1),
		Params:      params,
		SpawnTime:   now,
	}
}
