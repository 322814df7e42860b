package physics

import "math"

// Rect is an axis-aligned footprint on a ship's module grid, in whole cells.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right returns the first column past the rectangle.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the first row past the rectangle.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Overlaps reports whether two footprints share at least one cell.
func (r Rect) Overlaps(other Rect) bool {
	return r.X < other.Right() && other.X < r.Right() &&
		r.Y < other.Bottom() && other.Y < r.Bottom()
}

// ContainsCell reports whether the cell (x, y) lies inside the rectangle.
func (r Rect) ContainsCell(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Cell is a single grid coordinate.
type Cell struct {
	X int
	Y int
}

// segmentSamplesPerCell controls how finely a segment is walked.
const segmentSamplesPerCell = 4

// SegmentCells returns the grid cells crossed by the segment from start to end,
// in order of traversal and without duplicates. Coordinates are in cell units.
func SegmentCells(start, end Vector2D) []Cell {
	steps := int(math.Ceil(start.Distance(end)*segmentSamplesPerCell)) + 1

	cells := make([]Cell, 0, steps)
	seen := make(map[Cell]struct{}, steps)
	for i := 0; i <= steps; i++ {
		p := start.Lerp(end, float64(i)/float64(steps))
		c := Cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cells = append(cells, c)
	}
	return cells
}
