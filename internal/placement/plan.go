// Package placement turns a generated maze into world-space instructions for
// the renderer and the mission handlers that consume it.
package placement

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/towermaze/internal/grid"
	"github.com/lawnchairsociety/towermaze/internal/maze"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
)

var (
	ErrNoResult      = errors.New("placement: no maze result")
	ErrUnknownMarker = errors.New("placement: unknown waypoint marker")
)

// Default tolerances, as multiples of the mission scale.
const (
	DefaultSubgoalTolerance = 0.5
	DefaultQuitTolerance    = 0.5
)

// WorldPos is an integer block coordinate.
type WorldPos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Point is a continuous world coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Placement fills one cell's footprint with a block column.
type Placement struct {
	Cell    grid.Pos `json:"cell"`
	Pos     WorldPos `json:"pos"`
	Role    string   `json:"role"`
	Block   string   `json:"block"`
	Colour  string   `json:"colour,omitempty"`
	Variant string   `json:"variant,omitempty"`
	Height  int      `json:"height"`
	Size    int      `json:"size"`
}

// StartPlacement is where the agent spawns.
type StartPlacement struct {
	Pos   Point   `json:"pos"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PointOfInterest is a named position with a trigger radius.
type PointOfInterest struct {
	Name        string  `json:"name"`
	Pos         Point   `json:"pos"`
	Tolerance   float64 `json:"tolerance"`
	Description string  `json:"description"`
}

// Options tunes plan construction.
type Options struct {
	SubgoalTolerance float64 // multiple of scale
	QuitTolerance    float64 // multiple of scale
}

// DefaultOptions returns the default tolerances.
func DefaultOptions() Options {
	return Options{
		SubgoalTolerance: DefaultSubgoalTolerance,
		QuitTolerance:    DefaultQuitTolerance,
	}
}

// Plan is everything the world renderer and mission handlers need.
type Plan struct {
	Placements    []Placement       `json:"placements"`
	Start         StartPlacement    `json:"start"`
	QuitPoints    []PointOfInterest `json:"quit_points,omitempty"`
	SubgoalPoints []PointOfInterest `json:"subgoal_points,omitempty"`
	Waypoints     []Marker          `json:"waypoints,omitempty"`
}

// builder carries the mission geometry while a plan is assembled.
type builder struct {
	mission *mazespec.Mission
	result  *maze.Result
	opts    Options
}

// Build lays out the plan for r. The mission is read, never written; the
// resolved start position is returned in the plan.
func Build(m *mazespec.Mission, r *maze.Result, opts Options) (*Plan, error) {
	if r == nil || r.Grid == nil {
		return nil, ErrNoResult
	}
	b := &builder{mission: m, result: r, opts: opts}

	plan := &Plan{
		Placements: b.placements(),
		Start:      b.start(),
	}

	if m.AddQuitTrigger {
		plan.QuitPoints = []PointOfInterest{{
			Name:        "quit",
			Pos:         b.top(r.End),
			Tolerance:   opts.QuitTolerance * float64(m.Scale),
			Description: m.QuitDescription,
		}}
	}

	if m.AddNavigationObservations {
		for i, p := range r.Subgoals {
			name := fmt.Sprintf("subgoal_%d", i+1)
			plan.SubgoalPoints = append(plan.SubgoalPoints, PointOfInterest{
				Name:        name,
				Pos:         b.top(p),
				Tolerance:   opts.SubgoalTolerance * float64(m.Scale),
				Description: name,
			})
		}
	}

	if m.Waypoints != nil && len(r.Waypoints) > 0 {
		factory, ok := markerFactories[m.Waypoints.MarkerKind()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMarker, m.Waypoints.MarkerKind())
		}
		for i, p := range r.Waypoints {
			plan.Waypoints = append(plan.Waypoints, factory(markerSite{
				Index: i + 1,
				Cell:  p,
				Pos:   b.top(p),
			}, m.Waypoints, r.Palette))
		}
	}

	return plan, nil
}

// placements returns one placement per cell, row by row.
func (b *builder) placements() []Placement {
	g := b.result.Grid
	out := make([]Placement, 0, g.Size())
	for i := 0; i < g.Size(); i++ {
		c := g.Cell(i)
		role, block := b.roleOf(c)
		out = append(out, Placement{
			Cell:    c.Pos,
			Pos:     b.corner(c.Pos),
			Role:    role,
			Block:   block.Block,
			Colour:  block.Colour,
			Variant: block.Variant,
			Height:  block.Height,
			Size:    b.mission.Scale,
		})
	}
	return out
}

// roleOf picks the role a cell is built as. Start and end take precedence,
// then gaps, then the most specific path role.
func (b *builder) roleOf(c *grid.Cell) (string, mazespec.ResolvedBlock) {
	p := b.result.Palette
	switch {
	case c.Pos == b.result.Start:
		return mazespec.RoleStart, p.Start
	case c.Pos == b.result.End:
		return mazespec.RoleEnd, p.End
	case !c.Present:
		return mazespec.RoleGap, p.Gap
	case c.IsSubgoal:
		return mazespec.RoleSubgoal, p.Subgoal
	case c.OnOptimalPath:
		return mazespec.RoleOptimalPath, p.OptimalPath
	default:
		return mazespec.RolePath, p.Path
	}
}

func (b *builder) start() StartPlacement {
	return StartPlacement{
		Pos:   b.top(b.result.Start),
		Pitch: b.mission.AgentStart.Pitch,
		Yaw:   b.mission.AgentStart.Yaw,
	}
}

// corner maps a cell to the world position of its minimum corner.
func (b *builder) corner(p grid.Pos) WorldPos {
	o, s := b.mission.Origin, b.mission.Scale
	return WorldPos{X: o.X + s*p.X, Y: o.Y, Z: o.Z + s*p.Z}
}

// top is the centre of the cell's footprint, standing on its block column.
func (b *builder) top(p grid.Pos) Point {
	o, s := b.mission.Origin, float64(b.mission.Scale)
	c := b.result.Grid.At(p)
	_, block := b.roleOf(c)
	return Point{
		X: float64(o.X) + s*(float64(p.X)+0.5),
		Y: float64(o.Y + block.Height),
		Z: float64(o.Z) + s*(float64(p.Z)+0.5),
	}
}
