// Package agents provides the pedestrian data model and its kinematics:
// the turn-rate-limited movement rule, field-of-view weighting, and
// arrival detection against the current target area.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/crowd-sim/internal/geom"
	"github.com/talgya/crowd-sim/internal/world"
)

// PersonID is a unique identifier for a person, issued monotonically by the scene.
type PersonID uint64

// Kinematic constants. Angles are in radians, PersonRadius in meters.
var (
	PersonRadius                  = 0.3
	InstantHeadingChangeThreshold = geom.Radians(20)
	TurnRate                      = geom.Radians(10) // per tick
	MaxTargetDeviation            = geom.Radians(90)
)

// SideFOV is the lateral semi-axis of the field-of-view ellipse.
const SideFOV = 2.0

// Params are sampled once at spawn and fixed for the person's lifetime.
type Params struct {
	TargetSpeed    float64 `json:"target_speed"` // m/s
	RepulsionCoeff float64 `json:"repulsion_coeff"`
	ForwardFOV     float64 `json:"forward_fov"`
	BackwardFOV    float64 `json:"backward_fov"`
	Herding        float64 `json:"herding"`
}

// Person is one simulated pedestrian.
type Person struct {
	ID          PersonID   `json:"id"`
	Coordinates geom.Point `json:"coordinates"` // grid units
	Heading     float64    `json:"heading"`     // [0, 2π)

	PathID      world.PathID `json:"path_id"`
	TargetIndex int          `json:"target_index"`
	Target      world.Area   `json:"target"` // Path.Targets[TargetIndex]

	PanicLevel float64 `json:"panic_level"` // [0, 1]
	Params     Params  `json:"params"`
	SpawnTime  float64 `json:"spawn_time"` // seconds
}

// TargetPoint is where the person heads: the closest point at which its
// body fits inside the current target area.
func (p *Person) TargetPoint(scale float64) geom.Point {
	return p.Target.ArrivalPoint(p.Coordinates, PersonRadius/scale)
}

// HeadingVelocity is the velocity the person intends to walk at, in m/s.
func (p *Person) HeadingVelocity() geom.Vector {
	return geom.FromHeading(p.Heading, p.Params.TargetSpeed)
}

// MoveBy applies a net force (grid units per second) for dt seconds.
// Sharp turns are limited to TurnRate per call and weaken the force;
// the heading never strays more than MaxTargetDeviation from the target.
func (p *Person) MoveBy(force geom.Vector, dt, scale float64) {
	if force.IsZero() {
		return
	}

	desired := force.Heading()
	diff := geom.HeadingDiff(desired, p.Heading)
	applied := force
	newHeading := desired

	if math.Abs(diff) > InstantHeadingChangeThreshold {
		newHeading = geom.NormalizeHeading(p.Heading + math.Copysign(TurnRate, diff))
		power := force.Length() * math.Max(0, math.Cos(math.Abs(diff)-InstantHeadingChangeThreshold))

		toTarget := p.TargetPoint(scale).Sub(p.Coordinates)
		if !toTarget.IsZero() {
			targetHeading := toTarget.Heading()
			dev := geom.HeadingDiff(newHeading, targetHeading)
			if excess := math.Abs(dev) - MaxTargetDeviation; excess > 0 {
				newHeading = geom.NormalizeHeading(targetHeading + math.Copysign(MaxTargetDeviation, dev))
				power *= math.Max(0, math.Cos(excess))
			}
		}
		applied = geom.FromHeading(newHeading, power)
	}

	p.Coordinates = p.Coordinates.Add(applied.Scale(dt))
	p.Heading = newHeading
}

// FOVCoeff weights a stimulus at source by where it lies relative to the
// person's heading. The result is in (0, 0.5], largest straight ahead.
func (p *Person) FOVCoeff(source geom.Point) float64 {
	dir := source.Sub(p.Coordinates)
	if dir.IsZero() {
		return 0.5
	}
	rel := geom.HeadingDiff(dir.Heading(), p.Heading)

	var r2 float64
	if math.Abs(rel) <= math.Pi/2 {
		r2 = geom.EllipseRadiusSqrAt(p.Params.ForwardFOV, SideFOV, rel)
	} else {
		r2 = geom.EllipseRadiusSqrAt(p.Params.BackwardFOV, SideFOV, math.Pi-math.Abs(rel))
	}
	norm := math.Max(SideFOV, math.Max(p.Params.ForwardFOV, p.Params.BackwardFOV))
	return math.Sqrt(r2) / norm / 2
}

// ReachedDestination reports whether the person's body lies fully inside
// its current target area. A person whose target disagrees with its path
// is a bug and panics.
func (p *Person) ReachedDestination(path *world.Path, scale float64) bool {
	p.checkTarget(path)
	return p.Target.Rect.ContainsCircle(p.Coordinates, PersonRadius/scale)
}

// AdvanceTarget moves the person to the next target of its path and
// reports whether one exists. Index and cached area change together.
func (p *Person) AdvanceTarget(path *world.Path) bool {
	p.checkTarget(path)
	if p.TargetIndex >= path.Last() {
		return false
	}
	p.TargetIndex++
	p.Target = path.Targets[p.TargetIndex]
	return true
}

func (p *Person) checkTarget(path *world.Path) {
	if path.ID != p.PathID {
		panic(fmt.Sprintf("agents: person %d on path %d checked against path %d", p.ID, p.PathID, path.ID))
	}
	if p.TargetIndex < 0 || p.TargetIndex >= len(path.Targets) {
		panic(fmt.Sprintf("agents: person %d target index %d out of range (%d targets)", p.ID, p.TargetIndex, len(path.Targets)))
	}
	if path.Targets[p.TargetIndex] != p.Target {
		panic(fmt.Sprintf("agents: person %d target area out of sync with index %d", p.ID, p.TargetIndex))
	}
}

// String returns a short description of the person.
func (p *Person) String() string {
	return fmt.Sprintf("Person(%d @ %v, heading=%.2f, path=%d, target=%d, panic=%.2f)",
		p.ID, p.Coordinates, p.Heading, p.PathID, p.TargetIndex, p.PanicLevel)
}
