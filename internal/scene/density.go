package scene

import "math"

// DensityKernel is the smoothing radius constant of the density map, in meters.
const DensityKernel = 2.0

// DensityMap returns a Height x Width grid indexed [y][x]. Each person adds
// a compact kernel of radius 3c cells, c = round(DensityKernel/Scale).
func (s *Scene) DensityMap() [][]float64 {
	grid := make([][]float64, s.Height)
	for y := range grid {
		grid[y] = make([]float64, s.Width)
	}

	c := int(math.Round(DensityKernel / s.Scale))
	if c == 0 {
		return grid
	}
	reach := 3 * c
	norm := float64(9 * c * c)

	for _, p := range s.People {
		px, py := p.Coordinates.X, p.Coordinates.Y
		cx, cy := int(math.Floor(px)), int(math.Floor(py))

		for y := max(0, cy-reach); y <= min(s.Height-1, cy+reach+1); y++ {
			dy := float64(y) - py
			for x := max(0, cx-reach); x <= min(s.Width-1, cx+reach+1); x++ {
				dx := float64(x) - px
				v := 1 - (dx*dx+dy*dy)/norm
				if v <= 0 {
					continue
				}
				grid[y][x] += v * v
			}
		}
	}
	return grid
}
