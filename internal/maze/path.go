package maze

import (
	"github.com/lawnchairsociety/towermaze/internal/grid"
)

// search runs a breadth-first search from start over present cells, recording
// Distance and Predecessor on every cell it visits. It stops as soon as end is
// dequeued and reports whether end was reached.
func search(g *grid.Grid, start, end grid.Pos, allowDiagonal bool) bool {
	g.ResetSearch()

	startIdx := g.Index(start)
	endIdx := g.Index(end)
	if startIdx == grid.NoCell || !g.Cell(startIdx).Present {
		return false
	}
	g.Cell(startIdx).Distance = 0

	queue := []int{startIdx}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == endIdx {
			return true
		}

		cell := g.Cell(current)
		for _, n := range g.Neighbors(cell.Pos, allowDiagonal) {
			if !n.Valid {
				continue
			}
			next := g.Cell(n.Index)
			if !next.Present || next.Distance != -1 {
				continue
			}
			next.Distance = cell.Distance + 1
			next.Predecessor = current
			queue = append(queue, n.Index)
		}
	}

	return false
}

// tracePath walks predecessor links back from end, flags every cell on the
// way with OnOptimalPath and returns the path in start-to-end order.
// It must only be called after a search that reached end.
func tracePath(g *grid.Grid, end grid.Pos) []grid.Pos {
	g.ClearOptimalPath()

	var reversed []grid.Pos
	for i := g.Index(end); i != grid.NoCell; i = g.Cell(i).Predecessor {
		c := g.Cell(i)
		c.OnOptimalPath = true
		reversed = append(reversed, c.Pos)
	}

	path := make([]grid.Pos, len(reversed))
	for i, p := range reversed {
		path[len(reversed)-1-i] = p
	}
	return path
}

// ShortestPath recomputes the optimal path over the grid as it stands and
// rebuilds the OnOptimalPath flags. Running it twice on an unchanged grid
// produces the same path and flags. It returns nil when end is unreachable.
func ShortestPath(g *grid.Grid, start, end grid.Pos, allowDiagonal bool) []grid.Pos {
	if !search(g, start, end, allowDiagonal) {
		g.ClearOptimalPath()
		return nil
	}
	return tracePath(g, end)
}

// IsValidPath reports whether path is a walk over present cells from start to
// end in which each step moves to an adjacent cell.
func IsValidPath(g *grid.Grid, path []grid.Pos, start, end grid.Pos, allowDiagonal bool) bool {
	if len(path) == 0 || path[0] != start || path[len(path)-1] != end {
		return false
	}
	for i, p := range path {
		if !g.IsPresent(p) {
			return false
		}
		if i > 0 && !grid.Adjacent(path[i-1], p, allowDiagonal) {
			return false
		}
	}
	return true
}
