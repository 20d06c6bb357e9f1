// Layout generation using simplex noise.
// Produces a walled corridor with a spawn area at the closed end, a gate
// half way, an exit at the open end, and pillars wherever the noise field
// peaks above a threshold.
package world

import (
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/dist"
)

// GenConfig holds layout generation parameters.
type GenConfig struct {
	Width, Height   uint16  // grid extent
	Scale           float64 // meters per grid unit
	Seed            int64   // noise seed (0 = random)
	PillarSpacing   int     // lattice step between pillar candidates, grid units
	PillarSize      int     // pillar edge length, grid units
	PillarThreshold float64 // normalized noise level above which a pillar is placed
	PanicSources    int     // number of panic sources at the strongest noise peaks
	PanicRadius     uint16  // grid units
	Mode            config.Mode
}

// DefaultGenConfig returns a 10m x 4m corridor at 5cm per grid unit.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:           200,
		Height:          80,
		Scale:           0.05,
		Seed:            0,
		PillarSpacing:   20,
		PillarSize:      6,
		PillarThreshold: 0.6,
		PanicSources:    0,
		PanicRadius:     20,
		Mode:            config.ModeFlow,
	}
}

// SmallTestConfig returns a tiny layout for tests.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:           120,
		Height:          40,
		Scale:           0.1,
		Seed:            42,
		PillarSpacing:   12,
		PillarSize:      2,
		PillarThreshold: 0.65,
		PanicSources:    1,
		PanicRadius:     10,
		Mode:            config.ModeFlow,
	}
}

const corridorMargin = 4

// Generate creates a complete run configuration around a generated layout.
func Generate(cfg GenConfig) config.Config {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	pillarNoise := opensimplex.NewNormalized(seed)
	panicNoise := opensimplex.NewNormalized(seed + 1)

	w, h := int(cfg.Width), int(cfg.Height)
	top, bottom := corridorMargin, h-corridorMargin

	out := config.Default()
	out.Mode = cfg.Mode
	out.Scene.FileName = "generated"
	out.Scene.Width = cfg.Width
	out.Scene.Height = cfg.Height
	out.Scene.Scale = cfg.Scale

	// Corridor shell: long walls and the closed end behind the spawn area.
	out.Scene.Walls = append(out.Scene.Walls,
		config.Wall{X0: 0, Y0: u16(top), X1: u16(w - 1), Y1: u16(top)},
		config.Wall{X0: 0, Y0: u16(bottom), X1: u16(w - 1), Y1: u16(bottom)},
		config.Wall{X0: 0, Y0: u16(top), X1: 0, Y1: u16(bottom)},
	)

	spawnEnd := w / 10
	gateW := gateWidth(cfg)
	gateX0 := w/2 - gateW/2
	exitX0 := w - 1 - gateW

	out.Scene.SpawnAreas = []config.SpawnArea{{
		X0: 2, Y0: u16(top + 2), X1: u16(spawnEnd), Y1: u16(bottom - 2), ID: 0,
	}}
	out.Scene.TargetAreas = []config.TargetArea{
		{X0: u16(gateX0), Y0: u16(top + 1), X1: u16(gateX0 + gateW), Y1: u16(bottom - 1), ID: 0, SequenceNo: 0},
		{X0: u16(exitX0), Y0: u16(top + 1), X1: u16(w - 1), Y1: u16(bottom - 1), ID: 0, SequenceNo: 1, Last: true},
	}

	type candidate struct {
		x, y  int
		panic float64
	}
	var candidates []candidate

	step := cfg.PillarSpacing
	if step <= 0 {
		step = 20
	}
	half := cfg.PillarSize / 2
	for x := spawnEnd + step; x < exitX0-step/2; x += step {
		if x+half >= gateX0-1 && x-half <= gateX0+gateW+1 {
			continue // keep the gate clear
		}
		for y := top + step/2; y <= bottom-step/2; y += step {
			candidates = append(candidates, candidate{x: x, y: y, panic: panicNoise.Eval2(float64(x)*0.05, float64(y)*0.05)})

			if octaveNoise(pillarNoise, float64(x), float64(y), 3, 0.04, 0.5) < cfg.PillarThreshold {
				continue
			}
			out.Scene.Walls = append(out.Scene.Walls, pillar(x, y, half)...)
		}
	}

	// Panic sources sit at the strongest peaks of the second noise layer.
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].panic > candidates[j].panic })
	for i := 0; i < cfg.PanicSources && i < len(candidates); i++ {
		c := candidates[i]
		out.Scene.PanicSources = append(out.Scene.PanicSources, config.PanicSource{
			X: u16(c.x), Y: u16(c.y), Radius: cfg.PanicRadius,
			Power: math.Round(c.panic*100) / 100,
		})
	}

	out.Time = config.Time{EndTime: 60, Tick: 0.05}
	out.Spawn.Rate = 1.0
	out.Spawn.Time = dist.UniformValue(0, 60)
	out.Forces.TargetSpeed = dist.NormalValue(1.5, 0.2)
	out.Forces.RepulsionCoeff = dist.NormalValue(1.0, 0.1)
	out.DensityMap.Enabled = true
	out.DensityMap.MinThreshold = 5.0
	out.DensityMap.MaxThreshold = 10.0
	return out
}

// gateWidth keeps target areas wide enough for a person to fit inside.
func gateWidth(cfg GenConfig) int {
	w := int(math.Ceil(4 * 0.3 / cfg.Scale))
	if w < 4 {
		w = 4
	}
	return w
}

func pillar(x, y, half int) []config.Wall {
	if half < 1 {
		half = 1
	}
	x0, y0, x1, y1 := u16(x-half), u16(y-half), u16(x+half), u16(y+half)
	return []config.Wall{
		{X0: x0, Y0: y0, X1: x1, Y1: y0},
		{X0: x1, Y0: y0, X1: x1, Y1: y1},
		{X0: x1, Y0: y1, X1: x0, Y1: y1},
		{X0: x0, Y0: y1, X1: x0, Y1: y0},
	}
}

func u16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
