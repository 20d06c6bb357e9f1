package contagion

import (
	"math"
	"testing"

	"github.com/talgya/crowd-sim/internal/agents"
	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/scene"
	"github.com/talgya/crowd-sim/internal/world"
)

const eps = 1e-9

func testScene(sources ...config.PanicSource) *scene.Scene {
	sc := config.Scene{Width: 100, Height: 100, Scale: 0.1, PanicSources: sources}
	return scene.New(world.NewLayout(sc, 0))
}

func add(s *scene.Scene, id agents.PersonID, at geom.Point, level float64) *agents.Person {
	p := &agents.Person{ID: id, Coordinates: at, PanicLevel: level}
	s.Add(p)
	return p
}

func testPropagator() *Propagator {
	return New(config.Panic{KInitial: 1, KSpread: 0.9, KDecay: 0.05})
}

func TestPanicSourceRaisesPanicImmediately(t *testing.T) {
	s := testScene(config.PanicSource{X: 50, Y: 50, Radius: 10, Power: 0.8})
	p := add(s, 1, geom.Pt(52, 50), 0.1)

	testPropagator().Update(s)
	if math.Abs(p.PanicLevel-0.8) > eps {
		t.Errorf("panic = %v, want 0.8", p.PanicLevel)
	}
}

func TestPanicDecaysSlowly(t *testing.T) {
	s := testScene()
	p := add(s, 1, geom.Pt(50, 50), 1)

	testPropagator().Update(s)
	if math.Abs(p.PanicLevel-0.95) > eps {
		t.Errorf("panic = %v, want 0.95", p.PanicLevel)
	}
}

func TestPanicUpdateIsSynchronous(t *testing.T) {
	// A chain a-b-c where only a is panicked; b and c are each within reach
	// of their neighbours only. In one tick b catches a's panic but c must
	// still see b's old level.
	s := testScene()
	a := add(s, 1, geom.Pt(10, 50), 1)
	b := add(s, 2, geom.Pt(25, 50), 0)
	c := add(s, 3, geom.Pt(40, 50), 0)

	testPropagator().Update(s)

	if math.Abs(b.PanicLevel-0.45) > eps {
		t.Errorf("b = %v, want 0.9 * avg(1, 0) = 0.45", b.PanicLevel)
	}
	if math.Abs(c.PanicLevel) > eps {
		t.Errorf("c = %v, want 0 (b's update must not be visible)", c.PanicLevel)
	}
	if a.PanicLevel >= 1 || a.PanicLevel < 0.9 {
		t.Errorf("a = %v, want slight decay", a.PanicLevel)
	}
}

func TestPanicStaysInBounds(t *testing.T) {
	s := testScene(
		config.PanicSource{X: 50, Y: 50, Radius: 40, Power: 1},
		config.PanicSource{X: 50, Y: 50, Radius: 40, Power: 1},
	)
	for i := 0; i < 20; i++ {
		add(s, agents.PersonID(i+1), geom.Pt(40+float64(i), 50), 1)
	}
	pr := New(config.Panic{KInitial: 3, KSpread: 3, KDecay: 2})
	for tick := 0; tick < 10; tick++ {
		pr.Update(s)
		for _, p := range s.People {
			if p.PanicLevel < 0 || p.PanicLevel > 1 {
				t.Fatalf("panic %v out of bounds", p.PanicLevel)
			}
		}
	}
}
