package maze

import (
	"math/rand"

	"github.com/lawnchairsociety/towermaze/internal/grid"
)

// SampleWaypoints picks up to n distinct cells reachable from start without
// passing through end. Start, end and cells flagged OnOptimalPath are never
// chosen, though the search still walks through path cells. Fewer than n
// cells are returned when too few candidates remain. Chosen cells are
// flagged on g.
func SampleWaypoints(g *grid.Grid, start, end grid.Pos, n int, allowDiagonal bool, rng *rand.Rand) []grid.Pos {
	if n <= 0 {
		return nil
	}

	candidates := offPath(g, reachable(g, start, end, allowDiagonal))
	count := min(n, len(candidates))
	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	waypoints := make([]grid.Pos, count)
	for i := 0; i < count; i++ {
		c := g.Cell(candidates[i])
		c.IsWaypoint = true
		waypoints[i] = c.Pos
	}
	return waypoints
}

// offPath filters out cells on the optimal path, keeping BFS order.
func offPath(g *grid.Grid, indices []int) []int {
	kept := indices[:0]
	for _, idx := range indices {
		if !g.Cell(idx).OnOptimalPath {
			kept = append(kept, idx)
		}
	}
	return kept
}

// reachable returns the indices of present cells reachable from start in BFS
// order, never expanding through end. Start and end are excluded. It keeps
// its own visited set so the grid's search state is left untouched.
func reachable(g *grid.Grid, start, end grid.Pos, allowDiagonal bool) []int {
	startIdx := g.Index(start)
	endIdx := g.Index(end)
	if startIdx == grid.NoCell || !g.Cell(startIdx).Present {
		return nil
	}

	visited := make([]bool, g.Size())
	visited[startIdx] = true
	if endIdx != grid.NoCell {
		visited[endIdx] = true
	}

	var found []int
	queue := []int{startIdx}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, n := range g.Neighbors(g.PosOf(current), allowDiagonal) {
			if !n.Valid || visited[n.Index] || !g.Cell(n.Index).Present {
				continue
			}
			visited[n.Index] = true
			found = append(found, n.Index)
			queue = append(queue, n.Index)
		}
	}
	return found
}
