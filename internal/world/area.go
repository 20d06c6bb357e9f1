// Package world provides the static part of the scene: wall segments, the
// paths people follow from a spawn area through ordered target areas, and
// panic sources. Everything here is built once from configuration.
package world

import (
	"math"
	"math/rand"

	"github.com/talgya/crowd-sim/internal/dist"
	"github.com/talgya/crowd-sim/internal/geom"
)

// Area is an axis-aligned rectangle ordered within its path by SequenceNo.
type Area struct {
	Rect       geom.Rectangle `json:"rect"`
	SequenceNo uint8          `json:"sequence_no"`
}

// NewArea builds an area from two opposite corners.
func NewArea(x0, y0, x1, y1 float64, sequenceNo uint8) Area {
	return Area{Rect: geom.Rect(x0, y0, x1, y1), SequenceNo: sequenceNo}
}

// NearestPoint returns the point of the area closest to p.
func (a Area) NearestPoint(p geom.Point) geom.Point {
	return a.Rect.NearestPoint(p)
}

// ArrivalPoint returns the nearest point at which a circle of the given
// radius centered there lies fully inside the area. Along an axis where the
// area is too narrow the center line is used.
func (a Area) ArrivalPoint(p geom.Point, radius float64) geom.Point {
	lo, hi := a.Rect.Min(), a.Rect.Max()
	return geom.Pt(innerClamp(p.X, lo.X, hi.X, radius), innerClamp(p.Y, lo.Y, hi.Y, radius))
}

func innerClamp(v, lo, hi, margin float64) float64 {
	if hi-lo <= 2*margin {
		return (lo + hi) / 2
	}
	return geom.Clamp(v, lo+margin, hi-margin)
}

// Center returns the middle of the area.
func (a Area) Center() geom.Point {
	lo, hi := a.Rect.Min(), a.Rect.Max()
	return geom.Pt((lo.X+hi.X)/2, (lo.Y+hi.Y)/2)
}

// RandomInside samples a uniformly distributed point of the area.
func (a Area) RandomInside(rng *rand.Rand) geom.Point {
	lo, hi := a.Rect.Min(), a.Rect.Max()
	return geom.Pt(
		dist.SampleUniform(rng, lo.X, hi.X),
		dist.SampleUniform(rng, lo.Y, hi.Y),
	)
}

// PathID identifies a path; spawn and target areas of one path share it.
type PathID uint8

// SpawnArea is where new people of a path appear, at Rate people per second.
type SpawnArea struct {
	Area
	Rate             float64
	TicksToNextSpawn int
}

// Schedule counts down one tick and reports whether the path spawns now.
// When it does, the countdown restarts at ceil(1 / (rate * tick)).
// A non-positive rate never spawns.
func (s *SpawnArea) Schedule(tick float64) bool {
	if s.Rate <= 0 {
		return false
	}
	s.TicksToNextSpawn--
	if s.TicksToNextSpawn > 0 {
		return false
	}
	s.TicksToNextSpawn = int(math.Ceil(1 / (s.Rate * tick)))
	return true
}

// Path is a spawn area and the target areas visited in order.
type Path struct {
	ID      PathID
	Spawn   SpawnArea
	Targets []Area // ascending SequenceNo
}

// Last returns the index of the final target.
func (p *Path) Last() int { return len(p.Targets) - 1 }

// PanicSource raises the panic of everybody within Radius grid units.
type PanicSource struct {
	Center geom.Point `json:"center"`
	Radius float64    `json:"radius"`
	Power  float64    `json:"power"`
}

// Affects reports whether p is within reach of the source.
func (ps PanicSource) Affects(p geom.Point) bool {
	return ps.Center.DistanceSqr(p) <= ps.Radius*ps.Radius
}
