package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/crowd-sim/internal/output"
	"github.com/talgya/crowd-sim/internal/stats"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestRecorderStoresRun(t *testing.T) {
	db := openTemp(t)
	rec := NewRecorder(db, 2)

	if err := rec.Init(output.Header{SceneFile: "corridor", Mode: "flow", Seed: 9, Scale: 0.1, Width: 100, Height: 40}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if rec.RunID() == "" {
		t.Fatal("run id not assigned")
	}

	for tick := uint64(0); tick < 5; tick++ {
		f := &output.Frame{
			Tick: tick,
			Time: float64(tick) * 0.1,
			People: []output.PersonState{
				{ID: 1, X: float64(tick), Y: 2, Heading: 0.5, Panic: 0.2, PathID: 0, TargetIndex: 0},
				{ID: 2, X: 7, Y: 8, Heading: 1, Panic: 0.9, PathID: 1, TargetIndex: 1},
			},
		}
		if err := rec.WriteFrame(f); err != nil {
			t.Fatalf("frame %d: %v", tick, err)
		}
	}

	final := output.Final{
		Time:           0.5,
		Ticks:          5,
		CompletionTime: &stats.Summary{Min: 1, Max: 3, Count: 3, Mean: 2, Variance: 2.0 / 3, StdDeviation: 0.8165},
	}
	if err := rec.WriteStatistics(final); err != nil {
		t.Fatalf("statistics: %v", err)
	}

	n, err := db.FrameCount(rec.RunID())
	if err != nil || n != 3 {
		t.Errorf("frames = %d (%v), want 3 (ticks 0, 2, 4)", n, err)
	}

	ps, err := db.Positions(rec.RunID(), 4)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(ps) != 2 || ps[0].X != 4 || ps[1].PathID != 1 || ps[1].TargetIndex != 1 {
		t.Errorf("positions = %+v", ps)
	}

	st, err := db.Statistics(rec.RunID())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if len(st) != 1 || st[0].Kind != "completion_time" || st[0].Count != 3 || st[0].Mean != 2 {
		t.Errorf("statistics = %+v", st)
	}

	run, err := db.GetRun(rec.RunID())
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.SceneFile != "corridor" || run.Seed != 9 || run.Ticks != 5 || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}

	current, err := db.CurrentRun()
	if err != nil || current.ID != rec.RunID() {
		t.Errorf("current run = %q (%v), want %q", current.ID, err, rec.RunID())
	}

	if err := rec.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestCreateRunKeepsGivenID(t *testing.T) {
	db := openTemp(t)
	defer db.Close()

	id, err := db.CreateRun(output.Header{RunID: "fixed", Mode: "escape"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "fixed" {
		t.Errorf("id = %q", id)
	}
	if _, err := db.CreateRun(output.Header{RunID: "fixed"}); err == nil {
		t.Error("duplicate run id should fail")
	}

	if run, err := db.GetRun("fixed"); err != nil || run.Mode != "escape" {
		t.Errorf("run = %+v (%v)", run, err)
	}
}

func TestNewRecordingReplacesPreviousRun(t *testing.T) {
	db := openTemp(t)
	defer db.Close()

	first := NewRecorder(db, 1)
	if err := first.Init(output.Header{RunID: "first", Mode: "flow"}); err != nil {
		t.Fatal(err)
	}
	if err := first.WriteFrame(&output.Frame{Tick: 0, People: []output.PersonState{{ID: 1}}}); err != nil {
		t.Fatal(err)
	}

	second := NewRecorder(db, 1)
	if err := second.Init(output.Header{RunID: "second", Mode: "escape"}); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetRun("first"); err == nil {
		t.Error("previous run still stored")
	}
	if n, _ := db.FrameCount("first"); n != 0 {
		t.Errorf("previous run frames = %d, want 0", n)
	}
	if ps, _ := db.Positions("first", 0); len(ps) != 0 {
		t.Errorf("previous run positions = %+v", ps)
	}
	if run, err := db.CurrentRun(); err != nil || run.ID != "second" {
		t.Errorf("current run = %+v (%v), want second", run, err)
	}
}
