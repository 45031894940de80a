// Package grid provides the cell-addressable grid the maze generator carves.
//
// Cells live in a single dense slice addressed by the flattened index
// x + z*width. A cell is never nil; removed cells ("gaps") keep their slot
// and are marked with Present = false.
package grid

import (
	"errors"
	"fmt"
)

// NoCell marks an absent predecessor or an out-of-bounds neighbour index.
const NoCell = -1

var (
	ErrInvalidSize = errors.New("grid: invalid grid size")
)

// Pos identifies a cell by its column (X) and row (Z).
type Pos struct {
	X int `json:"x" yaml:"x"`
	Z int `json:"z" yaml:"z"`
}

// String returns the position as "x,z"
func (p Pos) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Z)
}

// Direction is a move between adjacent cells.
type Direction int

// Expansion order matters: it decides which of several equal-length shortest
// paths a breadth-first search settles on.
const (
	North Direction = iota
	South
	East
	West
	NorthEast
	NorthWest
	SouthEast
	SouthWest
)

// String returns the string representation of a Direction
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	case NorthEast:
		return "northeast"
	case NorthWest:
		return "northwest"
	case SouthEast:
		return "southeast"
	case SouthWest:
		return "southwest"
	default:
		return "unknown"
	}
}

// Delta returns the (dx, dz) offset of the direction. North is towards z-1.
func (d Direction) Delta() (int, int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	case West:
		return -1, 0
	case NorthEast:
		return 1, -1
	case NorthWest:
		return -1, -1
	case SouthEast:
		return 1, 1
	case SouthWest:
		return -1, 1
	}
	return 0, 0
}

// Directions returns the four cardinal directions, or all eight when
// diagonal movement is allowed, in expansion order.
func Directions(allowDiagonal bool) []Direction {
	if allowDiagonal {
		return []Direction{North, South, East, West, NorthEast, NorthWest, SouthEast, SouthWest}
	}
	return []Direction{North, South, East, West}
}

// Cell is a single grid square plus the bookkeeping the carver and path
// search need.
type Cell struct {
	Pos
	Present       bool
	Distance      int // BFS distance from start, reset per search
	OnOptimalPath bool
	IsSubgoal     bool
	IsWaypoint    bool
	Predecessor   int // flattened index, or NoCell
}

// Neighbor is a candidate adjacent cell. Valid is false when the candidate
// lies outside the grid.
type Neighbor struct {
	Dir   Direction
	Pos   Pos
	Index int
	Valid bool
}

// Grid is a width x length arena of cells.
type Grid struct {
	Width, Length int
	cells         []Cell
}

// New creates a grid with every cell present.
func New(width, length int) (*Grid, error) {
	if width < 1 || length < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, length)
	}

	g := &Grid{
		Width:  width,
		Length: length,
		cells:  make([]Cell, width*length),
	}
	for z := 0; z < length; z++ {
		for x := 0; x < width; x++ {
			g.cells[x+z*width] = Cell{
				Pos:         Pos{X: x, Z: z},
				Present:     true,
				Distance:    -1,
				Predecessor: NoCell,
			}
		}
	}
	return g, nil
}

// Size returns the total number of cells.
func (g *Grid) Size() int {
	return len(g.cells)
}

// InBounds reports whether p lies inside the grid.
func (g *Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < g.Width && p.Z >= 0 && p.Z < g.Length
}

// Index maps a position to its flattened index, or NoCell when out of bounds.
func (g *Grid) Index(p Pos) int {
	if !g.InBounds(p) {
		return NoCell
	}
	return p.X + p.Z*g.Width
}

// PosOf maps a flattened index back to a position.
func (g *Grid) PosOf(i int) Pos {
	return Pos{X: i % g.Width, Z: i / g.Width}
}

// At returns the cell at p, or nil when p is out of bounds.
func (g *Grid) At(p Pos) *Cell {
	i := g.Index(p)
	if i == NoCell {
		return nil
	}
	return &g.cells[i]
}

// Cell returns the cell at flattened index i.
func (g *Grid) Cell(i int) *Cell {
	return &g.cells[i]
}

// IsPresent reports whether p is in bounds and not a gap.
func (g *Grid) IsPresent(p Pos) bool {
	c := g.At(p)
	return c != nil && c.Present
}

// Neighbors returns the 4 or 8 candidate neighbours of p in expansion order.
// Out-of-bounds candidates are returned with Valid = false.
func (g *Grid) Neighbors(p Pos, allowDiagonal bool) []Neighbor {
	dirs := Directions(allowDiagonal)
	result := make([]Neighbor, 0, len(dirs))
	for _, d := range dirs {
		dx, dz := d.Delta()
		np := Pos{X: p.X + dx, Z: p.Z + dz}
		idx := g.Index(np)
		result = append(result, Neighbor{
			Dir:   d,
			Pos:   np,
			Index: idx,
			Valid: idx != NoCell,
		})
	}
	return result
}

// ResetSearch clears per-search state (distance and predecessor) on every cell.
func (g *Grid) ResetSearch() {
	for i := range g.cells {
		g.cells[i].Distance = -1
		g.cells[i].Predecessor = NoCell
	}
}

// ClearOptimalPath clears the OnOptimalPath flag on every cell.
func (g *Grid) ClearOptimalPath() {
	for i := range g.cells {
		g.cells[i].OnOptimalPath = false
	}
}

// Absent returns the positions of all gaps in index order.
func (g *Grid) Absent() []Pos {
	var gaps []Pos
	for i := range g.cells {
		if !g.cells[i].Present {
			gaps = append(gaps, g.cells[i].Pos)
		}
	}
	return gaps
}

// PresentCount returns the number of cells that are not gaps.
func (g *Grid) PresentCount() int {
	count := 0
	for i := range g.cells {
		if g.cells[i].Present {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return &Grid{Width: g.Width, Length: g.Length, cells: cells}
}

// StepDistance is the minimum number of moves between a and b: Manhattan
// distance on a 4-connected grid, Chebyshev distance on an 8-connected one.
func StepDistance(a, b Pos, allowDiagonal bool) int {
	dx := abs(a.X - b.X)
	dz := abs(a.Z - b.Z)
	if allowDiagonal {
		return max(dx, dz)
	}
	return dx + dz
}

// Adjacent reports whether b is one move away from a.
func Adjacent(a, b Pos, allowDiagonal bool) bool {
	return StepDistance(a, b, allowDiagonal) == 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
