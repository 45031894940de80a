package maze

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/lawnchairsociety/towermaze/internal/grid"
)

func TestSampleWaypointsStopsAtEnd(t *testing.T) {
	g, _ := grid.New(5, 1)
	start, end := grid.Pos{X: 0, Z: 0}, grid.Pos{X: 2, Z: 0}

	got := SampleWaypoints(g, start, end, 3, false, rand.New(rand.NewSource(1)))
	want := []grid.Pos{{X: 1, Z: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SampleWaypoints() = %v, want %v", got, want)
	}
	if !g.At(grid.Pos{X: 1, Z: 0}).IsWaypoint {
		t.Error("selected cell not flagged IsWaypoint")
	}
}

func TestSampleWaypointsSkipsOptimalPath(t *testing.T) {
	g, _ := grid.New(3, 2)
	start, end := grid.Pos{X: 0, Z: 0}, grid.Pos{X: 2, Z: 0}
	path := ShortestPath(g, start, end, false)
	if len(path) != 3 {
		t.Fatalf("ShortestPath() = %v, want the top row", path)
	}

	got := SampleWaypoints(g, start, end, 10, false, rand.New(rand.NewSource(4)))
	if len(got) != 3 {
		t.Fatalf("SampleWaypoints() = %v, want the three bottom-row cells", got)
	}
	for _, p := range got {
		if p.Z != 1 {
			t.Errorf("waypoint %v is on the optimal path", p)
		}
	}
	if g.At(grid.Pos{X: 1, Z: 0}).IsWaypoint {
		t.Error("optimal path cell flagged IsWaypoint")
	}
}

func TestSampleWaypointsNone(t *testing.T) {
	g, _ := grid.New(4, 4)
	if got := SampleWaypoints(g, grid.Pos{}, grid.Pos{X: 3, Z: 3}, 0, false, rand.New(rand.NewSource(1))); got != nil {
		t.Errorf("SampleWaypoints(n=0) = %v, want nil", got)
	}
}

func TestSampleWaypointsProperties(t *testing.T) {
	for _, diagonal := range []bool{false, true} {
		for seed := int64(1); seed <= 25; seed++ {
			c := carve(t, CarveParams{Width: 8, Length: 8, GapProbability: 0.4, AllowDiagonal: diagonal}, seed)
			rng := rand.New(rand.NewSource(seed))

			reachableSet := make(map[grid.Pos]bool)
			offPathCount := 0
			for _, idx := range reachable(c.Grid, c.Start, c.End, diagonal) {
				reachableSet[c.Grid.PosOf(idx)] = true
				if !c.Grid.Cell(idx).OnOptimalPath {
					offPathCount++
				}
			}

			waypoints := SampleWaypoints(c.Grid, c.Start, c.End, 6, diagonal, rng)
			if want := min(6, offPathCount); len(waypoints) != want {
				t.Errorf("diag=%v seed %d: %d waypoints, want %d", diagonal, seed, len(waypoints), want)
			}

			seen := make(map[grid.Pos]bool)
			for _, w := range waypoints {
				if w == c.Start || w == c.End {
					t.Errorf("diag=%v seed %d: waypoint %v is start or end", diagonal, seed, w)
				}
				if !reachableSet[w] {
					t.Errorf("diag=%v seed %d: waypoint %v not reachable", diagonal, seed, w)
				}
				if c.Grid.At(w).OnOptimalPath {
					t.Errorf("diag=%v seed %d: waypoint %v lies on the optimal path", diagonal, seed, w)
				}
				if seen[w] {
					t.Errorf("diag=%v seed %d: waypoint %v selected twice", diagonal, seed, w)
				}
				seen[w] = true
				if !c.Grid.At(w).IsWaypoint {
					t.Errorf("diag=%v seed %d: waypoint %v not flagged", diagonal, seed, w)
				}
			}
		}
	}
}

func TestReachableExcludesIsolatedCells(t *testing.T) {
	g, _ := grid.New(3, 3)
	// Wall off the right column.
	removeCells(g, grid.Pos{X: 1, Z: 0}, grid.Pos{X: 1, Z: 1}, grid.Pos{X: 1, Z: 2})

	for _, idx := range reachable(g, grid.Pos{X: 0, Z: 0}, grid.Pos{X: 0, Z: 2}, false) {
		if g.PosOf(idx).X == 2 {
			t.Errorf("cell %v beyond the wall reported reachable", g.PosOf(idx))
		}
	}
}

func TestSampleWaypointsDeterministic(t *testing.T) {
	sample := func() []grid.Pos {
		g, _ := grid.New(6, 6)
		return SampleWaypoints(g, grid.Pos{}, grid.Pos{X: 5, Z: 5}, 4, true, rand.New(rand.NewSource(99)))
	}
	if a, b := sample(), sample(); !reflect.DeepEqual(a, b) {
		t.Errorf("same seed gave different waypoints: %v vs %v", a, b)
	}
}
