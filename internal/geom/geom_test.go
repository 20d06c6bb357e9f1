package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestDistancePointsSqr(t *testing.T) {
	if got := Pt(3, 4).DistanceSqr(Pt(0, 0)); got != 25 {
		t.Fatalf("DistanceSqr = %v, want 25", got)
	}
}

func TestNearestPointOnVerticalLine(t *testing.T) {
	l := Seg(3, -4, 3, 4)
	p := Pt(1, 0)
	n := l.NearestPoint(p)
	if !near(n.X, 3) || !near(n.Y, 0) {
		t.Fatalf("NearestPoint = %v, want (3, 0)", n)
	}
	if !near(l.DistanceSqr(p), 4) || !near(l.Distance(p), 2) {
		t.Errorf("distance = %v (sqr %v), want 2 (sqr 4)", l.Distance(p), l.DistanceSqr(p))
	}
}

func TestNearestPointClampsToSegmentEnds(t *testing.T) {
	l := Seg(-4, 5, 4, 5)
	if n := l.NearestPoint(Pt(10, 0)); n != Pt(4, 5) {
		t.Errorf("past the end: got %v, want (4, 5)", n)
	}
	if n := l.NearestPoint(Pt(-10, 0)); n != Pt(-4, 5) {
		t.Errorf("before the start: got %v, want (-4, 5)", n)
	}
	degenerate := Seg(1, 1, 1, 1)
	if n := degenerate.NearestPoint(Pt(7, 7)); n != Pt(1, 1) {
		t.Errorf("degenerate segment: got %v, want (1, 1)", n)
	}
}

func TestRectangleNearestPoint(t *testing.T) {
	r := Rect(10, 10, 0, 0)
	cases := []struct {
		p, want Point
	}{
		{Pt(5, 5), Pt(5, 5)},
		{Pt(-3, 5), Pt(0, 5)},
		{Pt(15, 20), Pt(10, 10)},
		{Pt(5, -1), Pt(5, 0)},
	}
	for _, c := range cases {
		if got := r.NearestPoint(c.p); got != c.want {
			t.Errorf("NearestPoint(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestRectangleContainsCircle(t *testing.T) {
	r := Rect(0, 0, 10, 10)
	if !r.ContainsCircle(Pt(5, 5), 1) {
		t.Error("centered circle should be inside")
	}
	if r.ContainsCircle(Pt(0.5, 5), 1) {
		t.Error("circle crossing the border should not be inside")
	}
	thin := Rect(0, 0, 1, 10)
	if !thin.ContainsCircle(Pt(0.5, 5), 2) {
		t.Error("narrow rectangle should accept a centered circle")
	}
}

func TestNormalizedPanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic normalizing zero vector")
		}
	}()
	Vec(0, 0).Normalized()
}

func TestClamped(t *testing.T) {
	v := Vec(3, 4).Clamped(2.5)
	if !near(v.Length(), 2.5) || !near(v.X/v.Y, 0.75) {
		t.Fatalf("Clamped = %v, want length 2.5 along (3, 4)", v)
	}
	if got := Vec(1, 0).Clamped(2); got != Vec(1, 0) {
		t.Errorf("short vector changed: %v", got)
	}
}

func TestHeadings(t *testing.T) {
	if h := Vec(0, -1).Heading(); !near(h, 1.5*math.Pi) {
		t.Errorf("Heading(0,-1) = %v, want 3π/2", h)
	}
	if d := HeadingDiff(Radians(10), Radians(350)); !near(d, Radians(20)) {
		t.Errorf("HeadingDiff(10°, 350°) = %v, want 20°", d)
	}
	if d := HeadingDiff(Radians(350), Radians(10)); !near(d, Radians(-20)) {
		t.Errorf("HeadingDiff(350°, 10°) = %v, want -20°", d)
	}
	if d := HeadingDiff(0, math.Pi); !near(d, math.Pi) {
		t.Errorf("HeadingDiff(0, π) = %v, want π", d)
	}
}

func TestEllipseRadius(t *testing.T) {
	if r := EllipseRadiusSqrAt(5, 2, 0); !near(r, 25) {
		t.Errorf("radius² at 0 = %v, want 25", r)
	}
	if r := EllipseRadiusSqrAt(5, 2, math.Pi/2); !near(r, 4) {
		t.Errorf("radius² at π/2 = %v, want 4", r)
	}
}

func TestNormalizeHeadingStaysBelowTwoPi(t *testing.T) {
	for _, h := range []float64{-1e-17, Vec(1, -1e-17).Heading(), 2 * math.Pi, -2 * math.Pi} {
		if got := NormalizeHeading(h); got < 0 || got >= 2*math.Pi {
			t.Errorf("NormalizeHeading(%v) = %v, want [0, 2π)", h, got)
		}
	}
	if h := Vec(1, -1e-17).Heading(); h >= 2*math.Pi {
		t.Errorf("Heading of (1, -1e-17) = %v, want < 2π", h)
	}
}
