// Package geom provides the 2D primitives the simulation is built on:
// points, vectors, wall segments, and axis-aligned rectangles.
// Coordinates are scene-relative grid units unless noted otherwise.
package geom

import (
	"fmt"
	"math"
)

// Point is a position in the scene.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a displacement or a force.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Vec is shorthand for Vector{x, y}.
func Vec(x, y float64) Vector { return Vector{X: x, Y: y} }

// Add moves the point by v.
func (p Point) Add(v Vector) Point { return Point{p.X + v.X, p.Y + v.Y} }

// Sub returns the vector pointing from q to p.
func (p Point) Sub(q Point) Vector { return Vector{p.X - q.X, p.Y - q.Y} }

// DistanceSqr returns the squared distance between two points.
func (p Point) DistanceSqr(q Point) float64 { return p.Sub(q).LengthSqr() }

// Distance returns the distance between two points.
func (p Point) Distance(q Point) float64 { return p.Sub(q).Length() }

func (p Point) String() string { return fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y) }

// Add returns v + w.
func (v Vector) Add(w Vector) Vector { return Vector{v.X + w.X, v.Y + w.Y} }

// Sub returns v - w.
func (v Vector) Sub(w Vector) Vector { return Vector{v.X - w.X, v.Y - w.Y} }

// Scale returns v multiplied by k.
func (v Vector) Scale(k float64) Vector { return Vector{v.X * k, v.Y * k} }

// Neg returns -v.
func (v Vector) Neg() Vector { return Vector{-v.X, -v.Y} }

// Dot returns the dot product of v and w.
func (v Vector) Dot(w Vector) float64 { return v.X*w.X + v.Y*w.Y }

// LengthSqr returns the squared length of v.
func (v Vector) LengthSqr() float64 { return v.X*v.X + v.Y*v.Y }

// Length returns the Euclidean length of v.
func (v Vector) Length() float64 { return math.Sqrt(v.LengthSqr()) }

// IsZero reports whether v has zero length.
func (v Vector) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Normalized returns the unit vector with the direction of v.
// Normalizing the zero vector is a caller bug and panics.
func (v Vector) Normalized() Vector {
	l := v.Length()
	if l == 0 {
		panic("geom: normalize of zero-length vector")
	}
	return Vector{v.X / l, v.Y / l}
}

// WithLength returns v rescaled to the given length, keeping its direction.
func (v Vector) WithLength(length float64) Vector {
	return v.Normalized().Scale(length)
}

// Clamped limits the length of v to max, keeping its direction.
func (v Vector) Clamped(max float64) Vector {
	l := v.Length()
	if l <= max || l == 0 {
		return v
	}
	return v.Scale(max / l)
}

// Heading returns the direction of v in radians, normalized into [0, 2π).
func (v Vector) Heading() float64 {
	return NormalizeHeading(math.Atan2(v.Y, v.X))
}

// FromHeading returns the vector of the given length pointing along heading.
func FromHeading(heading, length float64) Vector {
	return Vector{math.Cos(heading) * length, math.Sin(heading) * length}
}

func (v Vector) String() string { return fmt.Sprintf("<%.3f, %.3f>", v.X, v.Y) }
