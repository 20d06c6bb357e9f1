package geom

import (
	"math"

	"golang.org/x/exp/constraints"
)

const twoPi = 2 * math.Pi

// NormalizeHeading maps any angle into [0, 2π).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, twoPi)
	if h < 0 {
		h += twoPi
	}
	if h >= twoPi {
		h = 0 // tiny negative inputs round up to exactly 2π
	}
	return h
}

// HeadingDiff returns the signed rotation from h2 to h1, wrapped into (-π, π].
func HeadingDiff(h1, h2 float64) float64 {
	d := math.Mod(h1-h2, twoPi)
	if d > math.Pi {
		d -= twoPi
	} else if d <= -math.Pi {
		d += twoPi
	}
	return d
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Clamp limits x to [lo, hi].
func Clamp[T constraints.Ordered](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// EllipseRadiusSqrAt returns the squared radius of the ellipse with semi-axes
// rx (along angle 0) and ry (along angle π/2) in the direction of angle.
func EllipseRadiusSqrAt(rx, ry, angle float64) float64 {
	s, c := math.Sincos(angle)
	return (rx * ry) * (rx * ry) / (rx*rx*s*s + ry*ry*c*c)
}
