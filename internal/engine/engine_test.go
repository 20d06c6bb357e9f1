package engine

import (
	"bytes"
	"math"
	"testing"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/dist"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/output"
	"github.com/talgya/crowd-sim/internal/scene"
)

func testConfig(mode config.Mode) config.Config {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.Scene = config.Scene{
		FileName: "test",
		Width:    100, Height: 40, Scale: 0.1,
		Walls: []config.Wall{
			{X0: 0, Y0: 2, X1: 99, Y1: 2},
			{X0: 0, Y0: 38, X1: 99, Y1: 38},
		},
		SpawnAreas: []config.SpawnArea{{X0: 2, Y0: 8, X1: 15, Y1: 32}},
		TargetAreas: []config.TargetArea{
			{X0: 50, Y0: 3, X1: 62, Y1: 37, SequenceNo: 0},
			{X0: 85, Y0: 3, X1: 99, Y1: 37, SequenceNo: 1, Last: true},
		},
		PanicSources: []config.PanicSource{{X: 56, Y: 20, Radius: 10, Power: 0.6}},
	}
	cfg.Time = config.Time{EndTime: 10, Tick: 0.1}
	cfg.Spawn.Rate = 2
	cfg.Spawn.InitialPeople = 5
	cfg.Forces.TargetSpeed = dist.NormalValue(1.3, 0.1)
	cfg.Forces.RepulsionCoeff = dist.NormalValue(1, 0.1)
	cfg.DensityMap = config.DensityMap{Enabled: true, MinThreshold: 0.5, MaxThreshold: 3}
	return cfg
}

type recordingSink struct {
	header output.Header
	frames []*output.Frame
	final  *output.Final
	closed bool
}

func (r *recordingSink) Init(h output.Header) error { r.header = h; return nil }

func (r *recordingSink) WriteFrame(f *output.Frame) error {
	r.frames = append(r.frames, f)
	return nil
}

func (r *recordingSink) WriteStatistics(f output.Final) error { r.final = &f; return nil }

func (r *recordingSink) Close() error { r.closed = true; return nil }

func TestDeterministicOutput(t *testing.T) {
	run := func() []byte {
		var buf bytes.Buffer
		sim := NewSimulation(testConfig(config.ModeFlow), 42, output.NewBinary(&buf))
		if err := sim.Run("run"); err != nil {
			t.Fatalf("run: %v", err)
		}
		return buf.Bytes()
	}

	a, b := run(), run()
	if len(a) == 0 {
		t.Fatal("no output")
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("outputs differ (%d vs %d bytes)", len(a), len(b))
	}
}

func TestFlowRunsUntilEndTime(t *testing.T) {
	sink := &recordingSink{}
	sim := NewSimulation(testConfig(config.ModeFlow), 7, sink)
	if err := sim.Run("flow"); err != nil {
		t.Fatal(err)
	}

	if n := len(sink.frames); n != 100 {
		t.Errorf("frames = %d, want 100", n)
	}
	if sim.Clock.Current != 10 {
		t.Errorf("clock = %v, want 10", sim.Clock.Current)
	}
	if sink.header.SceneFile != "test" || sink.header.Mode != "flow" {
		t.Errorf("header = %+v", sink.header)
	}
	if sink.final == nil || !sink.closed {
		t.Fatal("statistics not written or sink not closed")
	}
	if sim.Completed > 0 && (sink.final.CompletionTime == nil || int(sink.final.CompletionTime.Count) != sim.Completed) {
		t.Errorf("completion stats %+v for %d completed", sink.final.CompletionTime, sim.Completed)
	}
}

func TestInvariantsHoldEveryTick(t *testing.T) {
	sink := &recordingSink{}
	sim := NewSimulation(testConfig(config.ModeFlow), 3, sink)
	if err := sim.Start("inv"); err != nil {
		t.Fatal(err)
	}
	for !sim.Done() {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
		for _, p := range sim.Scene.People {
			path := sim.Scene.MustPath(p.PathID)
			if p.PanicLevel < 0 || p.PanicLevel > 1 {
				t.Fatalf("person %d panic %v", p.ID, p.PanicLevel)
			}
			if p.TargetIndex < 0 || p.TargetIndex >= len(path.Targets) || p.Target != path.Targets[p.TargetIndex] {
				t.Fatalf("person %d target %d out of sync", p.ID, p.TargetIndex)
			}
		}
	}
}

func TestDensityEverySimulatedSecond(t *testing.T) {
	sink := &recordingSink{}
	sim := NewSimulation(testConfig(config.ModeFlow), 1, sink)
	sim.Start("density")
	for i := 0; i < 25; i++ {
		sim.Step()
	}
	var ticks []uint64
	for _, f := range sink.frames {
		if f.HasDensity {
			ticks = append(ticks, f.Tick)
		}
		for _, c := range f.Density {
			if c.Value <= 0.5 {
				t.Fatalf("cell %v below threshold", c)
			}
		}
	}
	if len(ticks) != 3 || ticks[0] != 0 || ticks[1] != 10 || ticks[2] != 20 {
		t.Errorf("density ticks = %v, want [0 10 20]", ticks)
	}
}

func TestEscapeEmptiesScene(t *testing.T) {
	cfg := testConfig(config.ModeEscape)
	cfg.Time.EndTime = math.Inf(1)
	sink := &recordingSink{}
	sim := NewSimulation(cfg, 11, sink)
	if err := sim.Start("escape"); err != nil {
		t.Fatal(err)
	}
	if sim.Scene.Population() != 5 {
		t.Fatalf("initial population = %d, want 5", sim.Scene.Population())
	}

	const maxTicks = 3000
	for i := 0; i < maxTicks && !sim.Done(); i++ {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if !sim.Done() || sim.Scene.Population() != 0 {
		t.Fatalf("population %d after %d ticks", sim.Scene.Population(), sim.LastTick)
	}
	if sim.Completed != 5 {
		t.Errorf("completed = %d, want 5", sim.Completed)
	}
	if err := sim.Finish(); err != nil {
		t.Fatal(err)
	}
	if sink.final.TravelTime == nil || sink.final.TravelTime.Count != 5 {
		t.Errorf("travel stats = %+v", sink.final.TravelTime)
	}
}

func TestEscapeStopsAtFiniteEndTime(t *testing.T) {
	cfg := testConfig(config.ModeEscape)
	cfg.Time.EndTime = 0.5
	sim := NewSimulation(cfg, 2, &recordingSink{})
	if err := sim.Run("short"); err != nil {
		t.Fatal(err)
	}
	if sim.LastTick > 6 {
		t.Errorf("ran %d ticks past a 0.5s end time", sim.LastTick)
	}
}

func TestForcesComputedBeforeMoves(t *testing.T) {
	place := func(reversed bool) map[agents.PersonID]geom.Point {
		cfg := testConfig(config.ModeEscape)
		cfg.Scene.PanicSources = nil
		sim := NewSimulation(cfg, 5, &recordingSink{})
		path := sim.Scene.Paths[0]
		a := &agents.Person{ID: 1, Coordinates: geom.Pt(20, 20), PathID: path.ID, Target: path.Targets[0],
			Params: agents.Params{TargetSpeed: 1.3, RepulsionCoeff: 1, ForwardFOV: 5, BackwardFOV: 0.3}}
		b := &agents.Person{ID: 2, Coordinates: geom.Pt(23, 20), PathID: path.ID, Target: path.Targets[0],
			Params: agents.Params{TargetSpeed: 1.3, RepulsionCoeff: 1, ForwardFOV: 5, BackwardFOV: 0.3}}
		if reversed {
			sim.Scene.Add(b)
			sim.Scene.Add(a)
		} else {
			sim.Scene.Add(a)
			sim.Scene.Add(b)
		}
		for i := 0; i < 5; i++ {
			sim.Step()
		}
		return map[agents.PersonID]geom.Point{1: a.Coordinates, 2: b.Coordinates}
	}

	forward, backward := place(false), place(true)
	for id, p := range forward {
		if backward[id] != p {
			t.Errorf("person %d at %v vs %v depending on order", id, p, backward[id])
		}
	}
}

func TestEngineStop(t *testing.T) {
	sim := NewSimulation(testConfig(config.ModeFlow), 9, &recordingSink{})
	sim.Start("engine")
	e := NewEngine(sim)
	seconds := 0
	e.OnSecond = func(uint64) {
		seconds++
		e.Stop()
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if seconds != 1 || sim.LastTick != 10 {
		t.Errorf("seconds=%d ticks=%d, want 1 and 10", seconds, sim.LastTick)
	}
	if e.Running() {
		t.Error("engine still running")
	}
}

func TestTimeClock(t *testing.T) {
	c := NewTime(1, 0.25)
	n := 0
	for !c.Passed() {
		c.Next()
		n++
	}
	if n != 4 {
		t.Errorf("ticks = %d, want 4", n)
	}

	c = NewTime(10, 0.1)
	n = 0
	for !c.Passed() {
		c.Next()
		n++
	}
	if n != 100 || c.Current != 10 {
		t.Errorf("0.1s ticks: %d ticks ending at %v, want 100 ending at 10", n, c.Current)
	}

	if NewTime(math.Inf(1), 0.1).Finite() {
		t.Error("infinite clock reported finite")
	}
	if got := NewTime(1, 0.3).TicksPerSecond(); got != 4 {
		t.Errorf("TicksPerSecond = %d, want 4", got)
	}
}

func TestHerdSuggestionsNeverSkipTargets(t *testing.T) {
	cfg := testConfig(config.ModeFlow)
	cfg.Forces.FollowHerd = true
	cfg.Scene.SpawnAreas = append(cfg.Scene.SpawnAreas, config.SpawnArea{X0: 2, Y0: 8, X1: 15, Y1: 32, ID: 1})
	cfg.Scene.TargetAreas = append(cfg.Scene.TargetAreas,
		config.TargetArea{X0: 85, Y0: 3, X1: 99, Y1: 37, ID: 1, SequenceNo: 0, Last: true})
	sim := NewSimulation(cfg, 1, &recordingSink{})

	own := sim.Scene.MustPath(0)
	p := &agents.Person{ID: 1, Coordinates: geom.Pt(10, 20), PathID: 0, Target: own.Targets[0]}
	sim.Scene.Add(p)

	sim.adoptSuggestions(map[agents.PersonID]scene.PathChange{
		1: {PathID: 0, TargetIndex: 1, Target: own.Targets[1]},
	})
	if p.PathID != 0 || p.TargetIndex != 0 || p.Target != own.Targets[0] {
		t.Fatalf("same-path suggestion moved person to path %d index %d", p.PathID, p.TargetIndex)
	}

	other := sim.Scene.MustPath(1)
	sim.adoptSuggestions(map[agents.PersonID]scene.PathChange{
		1: {PathID: 1, TargetIndex: 0, Target: other.Targets[0]},
	})
	if p.PathID != 1 || p.TargetIndex != 0 || p.Target != other.Targets[0] {
		t.Errorf("other-path suggestion: path %d index %d, want path 1 index 0", p.PathID, p.TargetIndex)
	}
}
