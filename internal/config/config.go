// Package config holds the typed configuration value set of a run and the
// tagged binary stream it is read from.
package config

import (
	"errors"
	"fmt"

	"github.com/talgya/crowd-sim/internal/dist"
)

// Mode selects how a run spawns people and when it ends.
type Mode uint8

const (
	// ModeFlow spawns continuously until the end time elapses.
	ModeFlow Mode = 0
	// ModeEscape spawns an initial population once and runs until everybody left.
	ModeEscape Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeFlow:
		return "flow"
	case ModeEscape:
		return "escape"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Wall is an obstacle segment in grid units.
type Wall struct {
	X0, Y0, X1, Y1 uint16
}

// SpawnArea is the rectangle where people of path ID appear.
type SpawnArea struct {
	X0, Y0, X1, Y1 uint16
	ID             uint8
}

// TargetArea is one step of path ID, visited in SequenceNo order.
type TargetArea struct {
	X0, Y0, X1, Y1 uint16
	ID             uint8
	SequenceNo     uint8
	Last           bool
}

// PanicSource raises the panic of everybody within Radius grid units.
type PanicSource struct {
	X, Y, Radius uint16
	Power        float64 // 0.0–1.0
}

// Scene describes the static world.
type Scene struct {
	FileName     string
	Width        uint16
	Height       uint16
	Scale        float64 // meters per grid unit
	Walls        []Wall
	SpawnAreas   []SpawnArea
	TargetAreas  []TargetArea
	PanicSources []PanicSource
}

// Time describes the simulation clock in seconds.
type Time struct {
	EndTime float64 // +Inf for an unbounded run
	Tick    float64
}

// Spawn describes how people enter the scene.
type Spawn struct {
	Rate          float64    // people per second per path (flow mode)
	Time          dist.Value // spawn time distribution, carried for the viewer
	InitialPeople uint16     // people per path at start (escape mode)
}

// Forces holds the per-agent force parameter distributions.
type Forces struct {
	TargetSpeed    dist.Value // m/s
	RepulsionCoeff dist.Value
	Herding        dist.Value
	FollowHerd     bool // adopt herding path-change suggestions
}

// FOV holds the field of view semi-axis distributions.
type FOV struct {
	Forward  dist.Value
	Backward dist.Value
}

// DensityMap controls density map output.
type DensityMap struct {
	Enabled      bool
	MinThreshold float64
	MaxThreshold float64
}

// Panic holds the panic propagation coefficients.
type Panic struct {
	KInitial     float64 // weight of panic sources
	KSpread      float64 // weight of neighbors' panic
	KDecay       float64 // per-tick decay rate toward a lower level
	InitialLevel float64 // panic of a freshly spawned person
}

// Config is the complete value set of one run.
type Config struct {
	Mode       Mode
	Scene      Scene
	Time       Time
	Spawn      Spawn
	Forces     Forces
	FOV        FOV
	DensityMap DensityMap
	Panic      Panic
}

// Default returns a Config with every optional parameter filled in. The
// required ones (scene geometry, clock, spawn rate, speed and repulsion
// distributions) are left zero.
func Default() Config {
	return Config{
		Mode: ModeFlow,
		Spawn: Spawn{
			Time:          dist.UniformValue(0, 0),
			InitialPeople: 20,
		},
		Forces: Forces{
			Herding: dist.NormalValue(1.0, 0.1),
		},
		FOV: FOV{
			Forward:  dist.NormalValue(5.0, 0.1),
			Backward: dist.NormalValue(0.3, 0.001),
		},
		DensityMap: DensityMap{
			Enabled:      false,
			MinThreshold: 4.0,
			MaxThreshold: 10.0,
		},
		Panic: Panic{
			KInitial:     1.0,
			KSpread:      0.9,
			KDecay:       0.05,
			InitialLevel: 0.5,
		},
	}
}

// MissingError reports a required parameter that was never set.
type MissingError struct {
	Param string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required config parameter %s", e.Param)
}

// Validate checks that every required parameter is present and coherent.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error
	missing := func(name string) { errs = append(errs, &MissingError{Param: name}) }

	if c.Scene.Width == 0 {
		missing("scene.width")
	}
	if c.Scene.Height == 0 {
		missing("scene.height")
	}
	if c.Scene.Scale <= 0 {
		missing("scene.scale")
	}
	if len(c.Scene.SpawnAreas) == 0 {
		missing("scene.spawn_area")
	}
	for _, sa := range c.Scene.SpawnAreas {
		found := false
		for _, ta := range c.Scene.TargetAreas {
			if ta.ID == sa.ID {
				found = true
				break
			}
		}
		if !found {
			missing(fmt.Sprintf("scene.target_area[path=%d]", sa.ID))
		}
	}
	if c.Time.Tick <= 0 {
		missing("time.tick")
	}
	if c.Time.EndTime <= 0 {
		missing("time.end_time")
	}
	if c.Mode == ModeFlow && c.Spawn.Rate <= 0 {
		missing("spawn.rate")
	}
	if !c.Forces.TargetSpeed.Valid() {
		missing("forces.target.speed")
	}
	if !c.Forces.RepulsionCoeff.Valid() {
		missing("forces.repulsion.coeff")
	}
	if !c.Forces.Herding.Valid() {
		missing("forces.herding")
	}
	if !c.FOV.Forward.Valid() {
		missing("fov.forward")
	}
	if !c.FOV.Backward.Valid() {
		missing("fov.backward")
	}
	if c.Mode != ModeFlow && c.Mode != ModeEscape {
		errs = append(errs, fmt.Errorf("unknown simulation mode %d", c.Mode))
	}
	for i, ps := range c.Scene.PanicSources {
		if ps.Power < 0 || ps.Power > 1 {
			errs = append(errs, fmt.Errorf("panic source %d: power %v outside [0, 1]", i, ps.Power))
		}
	}
	return errors.Join(errs...)
}
