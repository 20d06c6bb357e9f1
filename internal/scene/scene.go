// Package scene holds the dynamic part of the world: the live population on
// top of a static layout, spawn scheduling, arrival processing, and the
// density estimate built from people's positions.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/world"
)

// SpawnAttempts bounds the random placement samples per path per spawn.
const SpawnAttempts = 10

// ErrNoRoom is returned when no free spot was found in a spawn area.
var ErrNoRoom = errors.New("scene: no free spot in spawn area")

// ParamsGenerator samples per-person force parameters at spawn time.
type ParamsGenerator interface {
	Generate(rng *rand.Rand) agents.Params
}

// PathChange moves a person onto another path's target.
type PathChange struct {
	PathID      world.PathID
	TargetIndex int
	Target      world.Area
}

// Scene is the layout plus everyone currently walking through it.
type Scene struct {
	*world.Layout

	People       []*agents.Person
	InitialPanic float64

	spawner *agents.Spawner
}

// New creates an empty scene over layout.
func New(layout *world.Layout) *Scene {
	return &Scene{
		Layout:       layout,
		InitialPanic: agents.DefaultPanicLevel,
		spawner:      agents.NewSpawner(),
	}
}

// Population returns the number of live people.
func (s *Scene) Population() int { return len(s.People) }

// Add inserts an already-built person.
func (s *Scene) Add(p *agents.Person) {
	s.People = append(s.People, p)
	if p.ID >= s.spawner.NextID() {
		s.spawner.SetNextID(p.ID + 1)
	}
}

// SpawnPeople runs one tick of spawn scheduling. Every path whose countdown
// expires gets one placement attempt; paths without room are skipped.
func (s *Scene) SpawnPeople(gen ParamsGenerator, tick, now float64, rng *rand.Rand) []*agents.Person {
	var due []*world.Path
	for _, path := range s.Paths {
		if path.Spawn.Schedule(tick) {
			due = append(due, path)
		}
	}

	var spawned []*agents.Person
	for _, path := range due {
		p, err := s.spawnInPath(path, gen, now, rng)
		if err != nil {
			slog.Warn("spawn skipped", "path", path.ID, "attempts", SpawnAttempts, "error", err)
			continue
		}
		spawned = append(spawned, p)
	}
	return spawned
}

// SpawnInitial places up to perPath people in every path at once.
// It returns how many were placed.
func (s *Scene) SpawnInitial(gen ParamsGenerator, perPath int, now float64, rng *rand.Rand) int {
	placed := 0
	for _, path := range s.Paths {
		for i := 0; i < perPath; i++ {
			if _, err := s.spawnInPath(path, gen, now, rng); err != nil {
				slog.Warn("initial spawn short", "path", path.ID, "placed", i, "wanted", perPath)
				break
			}
			placed++
		}
	}
	return placed
}

func (s *Scene) spawnInPath(path *world.Path, gen ParamsGenerator, now float64, rng *rand.Rand) (*agents.Person, error) {
	if len(path.Targets) == 0 {
		return nil, fmt.Errorf("path %d has no targets", path.ID)
	}
	minDist := agents.PersonRadius / s.Scale
	minDistSqr := minDist * minDist

	for attempt := 0; attempt < SpawnAttempts; attempt++ {
		at := path.Spawn.RandomInside(rng)
		if !s.isFree(at, minDistSqr) {
			continue
		}
		p := s.spawner.Spawn(path, at, gen.Generate(rng), s.InitialPanic, now)
		s.People = append(s.People, p)
		return p, nil
	}
	return nil, ErrNoRoom
}

func (s *Scene) isFree(at geom.Point, minDistSqr float64) bool {
	for _, other := range s.People {
		if other.Coordinates.DistanceSqr(at) <= minDistSqr {
			return false
		}
	}
	return true
}

// SwitchPath puts p onto another path. The target index and cached area
// are taken from the layout so they cannot disagree.
func (s *Scene) SwitchPath(p *agents.Person, ch PathChange) {
	path := s.MustPath(ch.PathID)
	if ch.TargetIndex < 0 || ch.TargetIndex >= len(path.Targets) {
		panic(fmt.Sprintf("scene: path change to index %d of path %d (%d targets)", ch.TargetIndex, ch.PathID, len(path.Targets)))
	}
	p.PathID = ch.PathID
	p.TargetIndex = ch.TargetIndex
	p.Target = path.Targets[ch.TargetIndex]
}
