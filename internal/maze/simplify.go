package maze

import (
	"math"

	"github.com/lawnchairsociety/towermaze/internal/grid"
)

const (
	samplesPerUnit  = 5
	footprintOffset = 0.2
)

// Collision is the coarse 2-D collision model used for line-of-sight tests.
type Collision struct {
	// GapsAreWalls makes gaps obstruct the agent's footprint, not just its
	// centre line. Set when gap blocks stand taller than the walkway.
	GapsAreWalls bool
}

// Simplify reduces path to the subgoals an agent needs to steer by: start,
// every cell where line of sight from the previous subgoal breaks, and end.
// Cells one step apart on the path count as visible even where the footprint
// test clips a wall corner. Subgoal cells are flagged on g.
func Simplify(g *grid.Grid, path []grid.Pos, collision Collision) []grid.Pos {
	if len(path) == 0 {
		return nil
	}
	if len(path) <= 2 {
		subgoals := append([]grid.Pos(nil), path...)
		markSubgoals(g, subgoals)
		return subgoals
	}

	visible := func(i, k int) bool {
		return k == i+1 || LineOfSight(g, path[i], path[k], collision)
	}

	subgoals := []grid.Pos{path[0]}
	i, j := 0, 0
	for k := 1; k < len(path); {
		if visible(i, k) {
			j = k
			k++
			continue
		}
		subgoals = append(subgoals, path[j])
		i = j
		k = i + 1
	}
	subgoals = append(subgoals, path[len(path)-1])

	markSubgoals(g, subgoals)
	return subgoals
}

func markSubgoals(g *grid.Grid, subgoals []grid.Pos) {
	for _, p := range subgoals {
		if c := g.At(p); c != nil {
			c.IsSubgoal = true
		}
	}
}

// LineOfSight reports whether the straight segment between the centres of a
// and b crosses only present cells.
func LineOfSight(g *grid.Grid, a, b grid.Pos, collision Collision) bool {
	ax, az := float64(a.X)+0.5, float64(a.Z)+0.5
	bx, bz := float64(b.X)+0.5, float64(b.Z)+0.5
	dx, dz := bx-ax, bz-az

	samples := int(math.Hypot(dx, dz) * samplesPerUnit)
	if samples < 1 {
		samples = 1
	}

	for s := 0; s <= samples; s++ {
		t := float64(s) / float64(samples)
		x, z := ax+t*dx, az+t*dz
		if blockedAt(g, x, z) {
			return false
		}
		if collision.GapsAreWalls {
			for _, o := range [][2]float64{
				{-footprintOffset, -footprintOffset},
				{footprintOffset, -footprintOffset},
				{-footprintOffset, footprintOffset},
				{footprintOffset, footprintOffset},
			} {
				if blockedAt(g, x+o[0], z+o[1]) {
					return false
				}
			}
		}
	}
	return true
}

// blockedAt reports whether the point (x, z) falls in a gap or off the grid.
func blockedAt(g *grid.Grid, x, z float64) bool {
	p := grid.Pos{X: int(math.Floor(x)), Z: int(math.Floor(z))}
	return !g.IsPresent(p)
}
