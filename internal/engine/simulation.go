// Simulation ties the scene, forces, panic and statistics together and runs
// them in a fixed order each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/dustin/go-humanize"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/contagion"
	"github.com/talgya/crowd-sim/internal/forces"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/output"
	"github.com/talgya/crowd-sim/internal/scene"
	"github.com/talgya/crowd-sim/internal/stats"
	"github.com/talgya/crowd-sim/internal/world"
)

// Simulation holds the complete run state.
type Simulation struct {
	Config config.Config
	Seed   int64

	Scene  *scene.Scene
	Forces *forces.Forces
	Panic  *contagion.Propagator
	Stats  *stats.Statistics
	Clock  Time
	Sink   output.Sink

	LastTick  uint64 // ticks completed
	Completed int    // people who finished their path

	rng          *rand.Rand
	netForces    []geom.Vector
	densityEvery uint64
}

// NewSimulation builds a run from a validated configuration. All randomness
// comes from one generator seeded with seed.
func NewSimulation(cfg config.Config, seed int64, sink output.Sink) *Simulation {
	layout := world.NewLayout(cfg.Scene, cfg.Spawn.Rate)
	sc := scene.New(layout)
	sc.InitialPanic = cfg.Panic.InitialLevel

	clock := NewTime(cfg.Time.EndTime, cfg.Time.Tick)
	return &Simulation{
		Config:       cfg,
		Seed:         seed,
		Scene:        sc,
		Forces:       forces.New(cfg),
		Panic:        contagion.New(cfg.Panic),
		Stats:        stats.New(),
		Clock:        clock,
		Sink:         sink,
		rng:          rand.New(rand.NewSource(seed)),
		densityEvery: clock.TicksPerSecond(),
	}
}

// Header describes the run for output sinks.
func (s *Simulation) Header(runID string) output.Header {
	return output.Header{
		RunID:      runID,
		SceneFile:  s.Config.Scene.FileName,
		Scale:      s.Config.Scene.Scale,
		DensityMin: s.Config.DensityMap.MinThreshold,
		DensityMax: s.Config.DensityMap.MaxThreshold,
		Width:      s.Scene.Width,
		Height:     s.Scene.Height,
		Mode:       s.Config.Mode.String(),
		Seed:       s.Seed,
	}
}

// Start sends the header and, in escape mode, places the initial crowd.
func (s *Simulation) Start(runID string) error {
	if err := s.Sink.Init(s.Header(runID)); err != nil {
		return fmt.Errorf("init output: %w", err)
	}
	if s.Config.Mode == config.ModeEscape {
		n := s.Scene.SpawnInitial(s.Forces, int(s.Config.Spawn.InitialPeople), s.Clock.Current, s.rng)
		slog.Info("initial crowd placed", "people", n, "paths", len(s.Scene.Paths))
	}
	slog.Info("simulation started", "run", runID, "layout", s.Scene.Layout.String(), "seed", s.Seed)
	return nil
}

// Done reports whether the run is over. Flow runs end at the end time.
// Escape runs end when everybody got out, or at a finite end time.
func (s *Simulation) Done() bool {
	if s.Config.Mode == config.ModeEscape {
		return s.Scene.Population() == 0 || (s.Clock.Finite() && s.Clock.Passed())
	}
	return s.Clock.Passed()
}

// Step advances the simulation by one tick. Forces are computed for
// everybody before anybody moves.
func (s *Simulation) Step() error {
	dt := s.Clock.Tick
	people := s.Scene.People

	s.Forces.BeginTick()
	if cap(s.netForces) < len(people) {
		s.netForces = make([]geom.Vector, len(people))
	}
	net := s.netForces[:len(people)]
	for i, p := range people {
		net[i] = s.Forces.TotalForce(p, s.Scene, s.rng)
	}
	for i, p := range people {
		p.MoveBy(net[i], dt, s.Scene.Scale)
	}

	if s.Config.Forces.FollowHerd {
		s.followHerd()
	}

	s.Panic.Update(s.Scene)

	if s.Config.Mode == config.ModeFlow {
		s.Scene.SpawnPeople(s.Forces, dt, s.Clock.Current, s.rng)
	}

	finished := s.Scene.ProcessReachedDestinationPeople()
	s.Stats.Record(finished, s.Clock.Current)
	s.Completed += len(finished)

	if err := s.Sink.WriteFrame(s.frame(len(finished))); err != nil {
		return fmt.Errorf("tick %d: %w", s.LastTick, err)
	}

	s.Clock.Next()
	s.LastTick++
	return nil
}

func (s *Simulation) followHerd() {
	s.adoptSuggestions(s.Forces.Suggestions())
}

// adoptSuggestions moves people onto the path their herd follows. A
// suggestion on the person's own path is ignored: targets of one path are
// visited in order and are never skipped.
func (s *Simulation) adoptSuggestions(suggestions map[agents.PersonID]scene.PathChange) {
	if len(suggestions) == 0 {
		return
	}
	for _, p := range s.Scene.People {
		if ch, ok := suggestions[p.ID]; ok && ch.PathID != p.PathID {
			s.Scene.SwitchPath(p, ch)
		}
	}
}

func (s *Simulation) frame(completed int) *output.Frame {
	f := &output.Frame{
		Tick:      s.LastTick,
		Time:      s.Clock.Current,
		People:    make([]output.PersonState, len(s.Scene.People)),
		Completed: completed,
	}
	for i, p := range s.Scene.People {
		f.People[i] = output.PersonState{
			ID:          uint64(p.ID),
			X:           p.Coordinates.X,
			Y:           p.Coordinates.Y,
			Heading:     p.Heading,
			Panic:       p.PanicLevel,
			PathID:      uint8(p.PathID),
			TargetIndex: p.TargetIndex,
		}
	}

	if s.Config.DensityMap.Enabled && s.LastTick%s.densityEvery == 0 {
		f.HasDensity = true
		threshold := s.Config.DensityMap.MinThreshold
		for y, row := range s.Scene.DensityMap() {
			for x, v := range row {
				if v > threshold {
					f.Density = append(f.Density, output.DensityCell{X: uint16(x), Y: uint16(y), Value: v})
				}
			}
		}
	}
	return f
}

// Final returns the end-of-run statistics.
func (s *Simulation) Final() output.Final {
	f := output.Final{Time: s.Clock.Current, Ticks: s.LastTick}
	if sum, ok := s.Stats.CompletionTime.Summary(); ok {
		f.CompletionTime = &sum
	}
	if sum, ok := s.Stats.TravelTime.Summary(); ok {
		f.TravelTime = &sum
	}
	return f
}

// Finish writes the statistics and closes the sink.
func (s *Simulation) Finish() error {
	final := s.Final()
	if err := s.Sink.WriteStatistics(final); err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}

	attrs := []any{
		"ticks", humanize.Comma(int64(s.LastTick)),
		"time", s.Clock.String(),
		"completed", humanize.Comma(int64(s.Completed)),
		"remaining", s.Scene.Population(),
	}
	if final.CompletionTime != nil {
		attrs = append(attrs, "completion", final.CompletionTime.String())
	}
	if final.TravelTime != nil {
		attrs = append(attrs, "travel", final.TravelTime.String())
	}
	slog.Info("simulation finished", attrs...)

	if err := s.Sink.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// Run starts the simulation, steps it until done, and finishes it.
func (s *Simulation) Run(runID string) error {
	if err := s.Start(runID); err != nil {
		return err
	}
	for !s.Done() {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return s.Finish()
}
