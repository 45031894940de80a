package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lawnchairsociety/towermaze/internal/database"
	"github.com/lawnchairsociety/towermaze/internal/logger"
	"github.com/lawnchairsociety/towermaze/internal/maze"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
	"github.com/lawnchairsociety/towermaze/internal/placement"
)

func main() {
	missionFile := flag.String("mission", "missions/example.yaml", "Path to mission YAML file")
	pathSeed := flag.String("path-seed", "", "Override the mission path seed (integer or \"random\")")
	materialSeed := flag.String("material-seed", "", "Override the mission material seed (integer or \"random\")")
	planFile := flag.String("plan", "", "Write the placement plan YAML to this file")
	dbFile := flag.String("db", "", "Store the maze in this SQLite database")
	asJSON := flag.Bool("json", false, "Print the maze snapshot as JSON instead of a map")
	showLegend := flag.Bool("legend", true, "Show legend")
	loggingConfig := flag.String("logging", "", "Path to logging config YAML file")
	subgoalTolerance := flag.Float64("subgoal-tolerance", placement.DefaultSubgoalTolerance, "Subgoal trigger radius as a multiple of scale")
	quitTolerance := flag.Float64("quit-tolerance", placement.DefaultQuitTolerance, "Quit trigger radius as a multiple of scale")
	flag.Parse()

	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logConfig.Service = "mazegen"
	logger.Initialize(logConfig)

	mission, err := mazespec.LoadFromYAML(*missionFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading mission: %v\n", err)
		os.Exit(1)
	}
	mission, err = mission.WithSeeds(*pathSeed, *materialSeed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := maze.Generate(mission)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating maze: %v\n", err)
		os.Exit(1)
	}

	snap := result.Snapshot()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Print(render(result, *showLegend))
	}

	if *planFile != "" {
		plan, err := placement.Build(mission, result, placement.Options{
			SubgoalTolerance: *subgoalTolerance,
			QuitTolerance:    *quitTolerance,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building placement plan: %v\n", err)
			os.Exit(1)
		}
		if err := plan.WriteFile(*planFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing plan: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Plan written to %s\n", *planFile)
	}

	if *dbFile != "" {
		db, err := database.Open(*dbFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		rec, created, err := db.SaveMaze(snap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error storing maze: %v\n", err)
			os.Exit(1)
		}
		if created {
			fmt.Fprintf(os.Stderr, "Stored maze %d\n", rec.ID)
		} else {
			fmt.Fprintf(os.Stderr, "Maze already stored as %d\n", rec.ID)
		}
	}
}

// render draws the maze with a summary header.
func render(r *maze.Result, legend bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Maze %dx%d  path seed %d  material seed %d\n",
		r.Grid.Width, r.Grid.Length, r.PathSeed, r.MaterialSeed))
	sb.WriteString(fmt.Sprintf("Gaps %d/%d  path %d/%d  subgoals %d  waypoints %d\n",
		r.GapsRemoved, r.GapsRequested, len(r.Path), r.MaxPathLength, len(r.Subgoals), len(r.Waypoints)))
	sb.WriteString(fmt.Sprintf("Fingerprint %s\n\n", r.Fingerprint()))
	sb.WriteString(r.String() + "\n")

	if legend {
		sb.WriteString("\nLegend: S=start E=end *=subgoal o=optimal path w=waypoint #=gap .=floor\n")
	}
	for _, w := range r.Warnings {
		sb.WriteString("Warning: " + w + "\n")
	}
	return sb.String()
}
