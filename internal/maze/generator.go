// Package maze carves a connected maze out of a grid and derives the optimal
// path, the simplified subgoal path and random waypoints from it.
package maze

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/lawnchairsociety/towermaze/internal/grid"
	"github.com/lawnchairsociety/towermaze/internal/logger"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
)

// Generate builds a maze for the mission. The mission is validated before any
// work starts and is never modified.
//
// Two independent RNG streams are used: the path seed drives carving,
// start/end selection and waypoints; the material seed drives block choices.
func Generate(m *mazespec.Mission) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	pathSeed, err := resolveSeed("path", m.PathSeed)
	if err != nil {
		return nil, err
	}
	materialSeed, err := resolveSeed("material", m.MaterialSeed)
	if err != nil {
		return nil, err
	}

	pathRNG := rand.New(rand.NewSource(pathSeed))
	materialRNG := rand.New(rand.NewSource(materialSeed))

	palette := mazespec.NewResolver(materialRNG).Resolve(m)

	carving, err := NewCarver(CarveParams{
		Width:            m.Width,
		Length:           m.Length,
		GapProbability:   m.Gaps.Probability,
		GapVariance:      m.Gaps.Variance,
		AllowDiagonal:    m.AllowDiagonalMovement,
		StartFixedToEdge: m.Blocks.Start.FixedToEdge,
		EndFixedToEdge:   m.Blocks.End.FixedToEdge,
	}, pathRNG).Carve()
	if err != nil {
		return nil, fmt.Errorf("carving failed: %w", err)
	}

	for _, w := range carving.Warnings {
		logger.Warning("Maze constraint relaxed", "detail", w)
	}
	if carving.GapsRemoved < carving.GapsRequested {
		logger.Info("Gap quota not met",
			"requested", carving.GapsRequested,
			"removed", carving.GapsRemoved)
	}

	subgoals := Simplify(carving.Grid, carving.Path, Collision{GapsAreWalls: palette.GapsAreWalls()})

	var waypoints []grid.Pos
	if n := m.WaypointCount(); n > 0 {
		waypoints = SampleWaypoints(carving.Grid, carving.Start, carving.End, n, m.AllowDiagonalMovement, pathRNG)
		if len(waypoints) < n {
			logger.Info("Fewer waypoints than requested",
				"requested", n,
				"placed", len(waypoints))
		}
	}

	result := &Result{
		Grid:           carving.Grid,
		Start:          carving.Start,
		End:            carving.End,
		AllowDiagonal:  m.AllowDiagonalMovement,
		Path:           carving.Path,
		Subgoals:       subgoals,
		Waypoints:      waypoints,
		GapProbability: carving.GapProbability,
		GapsRequested:  carving.GapsRequested,
		GapsRemoved:    carving.GapsRemoved,
		MaxPathLength:  carving.MaxPathLength,
		Warnings:       carving.Warnings,
		PathSeed:       pathSeed,
		MaterialSeed:   materialSeed,
		Palette:        palette,
	}

	logger.Debug("Maze generated", append(logger.Maze("", pathSeed, materialSeed),
		"width", m.Width,
		"length", m.Length,
		"path_length", len(result.Path),
		"subgoals", len(result.Subgoals),
		"gaps", result.GapsRemoved)...)

	return result, nil
}

// resolveSeed turns a seed string into a seed, deriving one from the clock
// for "random". Random seeds are logged so a run can be reproduced.
func resolveSeed(name, s string) (int64, error) {
	seed, random, err := mazespec.ParseSeed(s)
	if err != nil {
		return 0, fmt.Errorf("%s seed: %w", name, err)
	}
	if random {
		seed = time.Now().UnixNano()
		logger.Info("Using random seed", "stream", name, "seed", seed)
	}
	return seed, nil
}
