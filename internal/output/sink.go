// Package output defines what a run emits and where it goes. A run sends
// one Header, then one Frame per tick, then a Final summary. The binary
// stream is the primary product; other sinks (database, live viewers)
// hang off a Multi and are dropped if they fail.
package output

import (
	"github.com/talgya/crowd-sim/internal/stats"
)

// Record type tags of the binary stream.
const (
	TagCurrentTime    uint8 = 0
	TagLocations      uint8 = 1
	TagDensityMap     uint8 = 2
	TagCompletionTime uint8 = 3
	TagTravelTime     uint8 = 4
)

// Header describes the run. It is sent once before the first frame.
type Header struct {
	RunID      string  `json:"run_id"`
	SceneFile  string  `json:"scene_file"`
	Scale      float64 `json:"scale"`
	DensityMin float64 `json:"density_min"`
	DensityMax float64 `json:"density_max"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Mode       string  `json:"mode"`
	Seed       int64   `json:"seed"`
}

// PersonState is one person's position in a frame.
type PersonState struct {
	ID          uint64  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Heading     float64 `json:"heading"`
	Panic       float64 `json:"panic"`
	PathID      uint8   `json:"path_id"`
	TargetIndex int     `json:"target_index"`
}

// DensityCell is a grid cell whose density passed the minimum threshold.
type DensityCell struct {
	X     uint16  `json:"x"`
	Y     uint16  `json:"y"`
	Value float64 `json:"value"`
}

// Frame is the state after one tick.
type Frame struct {
	Tick      uint64        `json:"tick"`
	Time      float64       `json:"time"`
	People    []PersonState `json:"people"`
	Completed int           `json:"completed"` // people who finished this tick

	HasDensity bool          `json:"has_density"`
	Density    []DensityCell `json:"density,omitempty"`
}

// Final carries the end-of-run statistics. A nil summary means nobody
// finished, so there is nothing to report.
type Final struct {
	Time           float64        `json:"time"`
	Ticks          uint64         `json:"ticks"`
	CompletionTime *stats.Summary `json:"completion_time,omitempty"`
	TravelTime     *stats.Summary `json:"travel_time,omitempty"`
}

// Sink receives a run's output.
type Sink interface {
	Init(Header) error
	WriteFrame(*Frame) error
	WriteStatistics(Final) error
	Close() error
}
