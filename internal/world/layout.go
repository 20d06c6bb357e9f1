package world

import (
	"fmt"
	"sort"

	"github.com/talgya/crowd-sim/internal/config"
	"github.com/talgya/crowd-sim/internal/geom"
)

// Layout holds the static world state.
type Layout struct {
	Width        int     `json:"width"`  // grid columns
	Height       int     `json:"height"` // grid rows
	Scale        float64 `json:"scale"`  // meters per grid unit
	Walls        []geom.Line
	Paths        []*Path
	PanicSources []PanicSource

	pathIndex map[PathID]*Path
}

// NewLayout builds walls and paths from the scene configuration. Target
// areas are grouped by path id and sorted by sequence number; every spawn
// countdown starts at 1 so each path spawns on the first scheduling check.
func NewLayout(sc config.Scene, spawnRate float64) *Layout {
	l := &Layout{
		Width:     int(sc.Width),
		Height:    int(sc.Height),
		Scale:     sc.Scale,
		pathIndex: make(map[PathID]*Path, len(sc.SpawnAreas)),
	}

	for _, w := range sc.Walls {
		l.Walls = append(l.Walls, geom.Seg(float64(w.X0), float64(w.Y0), float64(w.X1), float64(w.Y1)))
	}

	for _, sa := range sc.SpawnAreas {
		path := &Path{
			ID: PathID(sa.ID),
			Spawn: SpawnArea{
				Area:             NewArea(float64(sa.X0), float64(sa.Y0), float64(sa.X1), float64(sa.Y1), 0),
				Rate:             spawnRate,
				TicksToNextSpawn: 1,
			},
		}
		for _, ta := range sc.TargetAreas {
			if ta.ID != sa.ID {
				continue
			}
			path.Targets = append(path.Targets,
				NewArea(float64(ta.X0), float64(ta.Y0), float64(ta.X1), float64(ta.Y1), ta.SequenceNo))
		}
		sort.SliceStable(path.Targets, func(i, j int) bool {
			return path.Targets[i].SequenceNo < path.Targets[j].SequenceNo
		})
		l.Paths = append(l.Paths, path)
		l.pathIndex[path.ID] = path
	}

	for _, ps := range sc.PanicSources {
		l.PanicSources = append(l.PanicSources, PanicSource{
			Center: geom.Pt(float64(ps.X), float64(ps.Y)),
			Radius: float64(ps.Radius),
			Power:  ps.Power,
		})
	}
	return l
}

// Path returns the path with the given id, or nil.
func (l *Layout) Path(id PathID) *Path {
	return l.pathIndex[id]
}

// MustPath returns the path with the given id. An unknown id means a person
// references a path that was never built, which is a bug.
func (l *Layout) MustPath(id PathID) *Path {
	p := l.pathIndex[id]
	if p == nil {
		panic(fmt.Sprintf("world: unknown path %d", id))
	}
	return p
}

// InBounds reports whether p lies on the grid.
func (l *Layout) InBounds(p geom.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < float64(l.Width) && p.Y < float64(l.Height)
}

// String returns a summary of the layout.
func (l *Layout) String() string {
	return fmt.Sprintf("Layout(%dx%d @ %gm, walls=%d, paths=%d, panic_sources=%d)",
		l.Width, l.Height, l.Scale, len(l.Walls), len(l.Paths), len(l.PanicSources))
}
