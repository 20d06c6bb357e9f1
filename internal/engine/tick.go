// Package engine runs the simulation: the per-tick orchestration of forces,
// movement, panic, spawning and arrivals, and the loop that drives it.
package engine

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Engine drives a Simulation until it is done or stopped.
type Engine struct {
	Sim   *Simulation
	Speed float64 // 0 = as fast as possible, 1 = real time

	// OnSecond runs once per simulated second, after the tick.
	OnSecond func(tick uint64)

	running atomic.Bool
}

// NewEngine creates an engine running sim as fast as possible.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{Sim: sim}
}

// Run steps the simulation until it is done or Stop is called. It returns
// the first error from the primary output sink.
func (e *Engine) Run() error {
	e.running.Store(true)
	defer e.running.Store(false)

	interval := time.Duration(e.Sim.Clock.Tick * float64(time.Second))
	perSecond := e.Sim.Clock.TicksPerSecond()
	slog.Info("simulation engine started", "mode", e.Sim.Config.Mode.String(), "speed", e.Speed, "clock", e.Sim.Clock.String())

	for e.running.Load() && !e.Sim.Done() {
		start := time.Now()

		if err := e.Sim.Step(); err != nil {
			return err
		}

		if e.OnSecond != nil && e.Sim.LastTick%perSecond == 0 {
			e.OnSecond(e.Sim.LastTick)
		}

		if e.Speed > 0 {
			elapsed := time.Since(start)
			target := time.Duration(float64(interval) / e.Speed)
			if elapsed < target {
				time.Sleep(target - elapsed)
			}
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Sim.LastTick, "clock", e.Sim.Clock.String(), "population", e.Sim.Scene.Population())
	return nil
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool { return e.running.Load() }
