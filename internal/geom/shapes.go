package geom

import "math"

// Line is a static wall segment.
type Line struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Seg builds a segment from raw coordinates.
func Seg(x0, y0, x1, y1 float64) Line {
	return Line{From: Pt(x0, y0), To: Pt(x1, y1)}
}

// LengthSqr returns the squared length of the segment.
func (l Line) LengthSqr() float64 { return l.To.DistanceSqr(l.From) }

// Length returns the length of the segment.
func (l Line) Length() float64 { return l.To.Distance(l.From) }

// NearestPoint returns the point of the segment closest to p.
func (l Line) NearestPoint(p Point) Point {
	lenSqr := l.LengthSqr()
	if lenSqr == 0 {
		return l.From
	}
	dir := l.To.Sub(l.From)
	t := p.Sub(l.From).Dot(dir) / lenSqr
	switch {
	case t < 0:
		return l.From
	case t > 1:
		return l.To
	}
	return l.From.Add(dir.Scale(t))
}

// DistanceSqr returns the squared distance from p to the segment.
func (l Line) DistanceSqr(p Point) float64 { return p.DistanceSqr(l.NearestPoint(p)) }

// Distance returns the distance from p to the segment.
func (l Line) Distance(p Point) float64 { return math.Sqrt(l.DistanceSqr(p)) }

// Rectangle is an axis-aligned rectangle described by its four corners,
// P1 being the minimum corner and P3 the maximum one.
type Rectangle struct {
	P1, P2, P3, P4 Point
}

// Rect builds a rectangle from two opposite corners given in any order.
func Rect(x0, y0, x1, y1 float64) Rectangle {
	minX, maxX := math.Min(x0, x1), math.Max(x0, x1)
	minY, maxY := math.Min(y0, y1), math.Max(y0, y1)
	return Rectangle{
		P1: Pt(minX, minY),
		P2: Pt(minX, maxY),
		P3: Pt(maxX, maxY),
		P4: Pt(maxX, minY),
	}
}

// Min returns the minimum corner.
func (r Rectangle) Min() Point { return r.P1 }

// Max returns the maximum corner.
func (r Rectangle) Max() Point { return r.P3 }

// Width returns the extent along X.
func (r Rectangle) Width() float64 { return r.P3.X - r.P1.X }

// Height returns the extent along Y.
func (r Rectangle) Height() float64 { return r.P3.Y - r.P1.Y }

// Contains reports whether p lies inside or on the border of r.
func (r Rectangle) Contains(p Point) bool {
	return p.X >= r.P1.X && p.X <= r.P3.X && p.Y >= r.P1.Y && p.Y <= r.P3.Y
}

// NearestPoint returns the point of r (border or interior) closest to p.
// Points inside r are their own nearest point.
func (r Rectangle) NearestPoint(p Point) Point {
	return Pt(Clamp(p.X, r.P1.X, r.P3.X), Clamp(p.Y, r.P1.Y, r.P3.Y))
}

// DistanceSqr returns the squared distance from p to r.
func (r Rectangle) DistanceSqr(p Point) float64 { return p.DistanceSqr(r.NearestPoint(p)) }

// ContainsCircle reports whether a circle of the given radius centered at c
// lies fully inside r. Along an axis where r is narrower than the circle the
// center only has to be inside.
func (r Rectangle) ContainsCircle(c Point, radius float64) bool {
	return spanContains(r.P1.X, r.P3.X, c.X, radius) && spanContains(r.P1.Y, r.P3.Y, c.Y, radius)
}

func spanContains(lo, hi, v, radius float64) bool {
	if hi-lo <= 2*radius {
		return v >= lo && v <= hi
	}
	return v-radius >= lo && v+radius <= hi
}

// Edges returns the four sides of r as segments.
func (r Rectangle) Edges() [4]Line {
	return [4]Line{
		{From: r.P1, To: r.P2},
		{From: r.P2, To: r.P3},
		{From: r.P3, To: r.P4},
		{From: r.P4, To: r.P1},
	}
}
