package maze

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/lawnchairsociety/towermaze/internal/grid"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
)

// Result is the frozen output of one generation call. Nothing mutates it
// after Generate returns; hand a Clone to anything that might.
type Result struct {
	Grid          *grid.Grid
	Start, End    grid.Pos
	AllowDiagonal bool

	Path      []grid.Pos
	Subgoals  []grid.Pos
	Waypoints []grid.Pos

	GapProbability float64
	GapsRequested  int
	GapsRemoved    int
	MaxPathLength  int
	Warnings       []string

	PathSeed     int64
	MaterialSeed int64
	Palette      mazespec.Palette
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	c := *r
	c.Grid = r.Grid.Clone()
	c.Path = clonePositions(r.Path)
	c.Subgoals = clonePositions(r.Subgoals)
	c.Waypoints = clonePositions(r.Waypoints)
	if r.Warnings != nil {
		c.Warnings = append([]string(nil), r.Warnings...)
	}
	return &c
}

func clonePositions(ps []grid.Pos) []grid.Pos {
	if ps == nil {
		return nil
	}
	return append([]grid.Pos(nil), ps...)
}

// Rows renders the maze one string per row, north first.
//
//	S start  E end  * subgoal  o optimal path  w waypoint  . floor  # gap
func (r *Result) Rows() []string {
	rows := make([]string, r.Grid.Length)
	var sb strings.Builder
	for z := 0; z < r.Grid.Length; z++ {
		sb.Reset()
		for x := 0; x < r.Grid.Width; x++ {
			p := grid.Pos{X: x, Z: z}
			c := r.Grid.At(p)
			switch {
			case p == r.Start:
				sb.WriteByte('S')
			case p == r.End:
				sb.WriteByte('E')
			case !c.Present:
				sb.WriteByte('#')
			case c.IsSubgoal:
				sb.WriteByte('*')
			case c.OnOptimalPath:
				sb.WriteByte('o')
			case c.IsWaypoint:
				sb.WriteByte('w')
			default:
				sb.WriteByte('.')
			}
		}
		rows[z] = sb.String()
	}
	return rows
}

// String returns the ASCII rendering of the maze.
func (r *Result) String() string {
	return strings.Join(r.Rows(), "\n")
}

// Fingerprint is a BLAKE2b-256 digest of everything that determines the
// built maze: layout, path, subgoals, waypoints and palette. Two results with
// the same fingerprint render identically.
func (r *Result) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%dx%d diag=%t start=%v end=%v\n", r.Grid.Width, r.Grid.Length, r.AllowDiagonal, r.Start, r.End)
	writePositions(h, "gaps", r.Grid.Absent())
	writePositions(h, "path", r.Path)
	writePositions(h, "subgoals", r.Subgoals)
	writePositions(h, "waypoints", r.Waypoints)
	fmt.Fprintf(h, "palette %+v\n", r.Palette)
	return hex.EncodeToString(h.Sum(nil))
}

func writePositions(w io.Writer, label string, ps []grid.Pos) {
	fmt.Fprintf(w, "%s:", label)
	for _, p := range ps {
		fmt.Fprintf(w, " %v", p)
	}
	fmt.Fprintln(w)
}

// Snapshot is the serialisable view of a result handed to stores and
// observers.
type Snapshot struct {
	Fingerprint    string           `json:"fingerprint"`
	Width          int              `json:"width"`
	Length         int              `json:"length"`
	AllowDiagonal  bool             `json:"allow_diagonal"`
	Start          grid.Pos         `json:"start"`
	End            grid.Pos         `json:"end"`
	Gaps           []grid.Pos       `json:"gaps"`
	Path           []grid.Pos       `json:"path"`
	Subgoals       []grid.Pos       `json:"subgoals"`
	Waypoints      []grid.Pos       `json:"waypoints"`
	GapProbability float64          `json:"gap_probability"`
	GapsRequested  int              `json:"gaps_requested"`
	GapsRemoved    int              `json:"gaps_removed"`
	MaxPathLength  int              `json:"max_path_length"`
	PathSeed       int64            `json:"path_seed"`
	MaterialSeed   int64            `json:"material_seed"`
	Palette        mazespec.Palette `json:"palette"`
	Warnings       []string         `json:"warnings,omitempty"`
	Layout         []string         `json:"layout"`
}

// Snapshot copies the result into its serialisable form.
func (r *Result) Snapshot() Snapshot {
	c := r.Clone()
	return Snapshot{
		Fingerprint:    c.Fingerprint(),
		Width:          c.Grid.Width,
		Length:         c.Grid.Length,
		AllowDiagonal:  c.AllowDiagonal,
		Start:          c.Start,
		End:            c.End,
		Gaps:           c.Grid.Absent(),
		Path:           c.Path,
		Subgoals:       c.Subgoals,
		Waypoints:      c.Waypoints,
		GapProbability: c.GapProbability,
		GapsRequested:  c.GapsRequested,
		GapsRemoved:    c.GapsRemoved,
		MaxPathLength:  c.MaxPathLength,
		PathSeed:       c.PathSeed,
		MaterialSeed:   c.MaterialSeed,
		Palette:        c.Palette,
		Warnings:       c.Warnings,
		Layout:         c.Rows(),
	}
}
