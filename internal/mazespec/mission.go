// Package mazespec holds the declarative description of a maze mission and
// resolves its cosmetic choices.
package mazespec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidMission   = errors.New("mazespec: invalid mission")
	ErrInvalidSeed      = errors.New("mazespec: invalid seed")
	ErrMissingBlockSpec = errors.New("mazespec: missing block spec")
)

// RandomSeed is the seed string that asks for a time-derived seed.
const RandomSeed = "random"

// Vec3 is an integer world coordinate.
type Vec3 struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// Orientation is the agent's view direction in degrees.
type Orientation struct {
	Pitch float64 `yaml:"pitch"`
	Yaw   float64 `yaml:"yaw"`
}

// GapSpec controls how many cells are carved away.
type GapSpec struct {
	Probability float64 `yaml:"probability"`
	Variance    float64 `yaml:"variance"`
}

// BlockSpec describes how cells of one role are built.
type BlockSpec struct {
	Types          []string `yaml:"types"`
	Colours        []string `yaml:"colours"`
	Variants       []string `yaml:"variants"`
	Height         int      `yaml:"height"`
	HeightVariance int      `yaml:"height_variance"`

	// FixedToEdge pins start to the first row and end to the last row.
	// Ignored for other roles.
	FixedToEdge bool `yaml:"fixed_to_edge"`
}

// Blocks groups the per-role block specs. OptimalPath and Subgoal are
// optional and inherit from Path and OptimalPath respectively.
type Blocks struct {
	Start       *BlockSpec `yaml:"start"`
	End         *BlockSpec `yaml:"end"`
	Path        *BlockSpec `yaml:"path"`
	OptimalPath *BlockSpec `yaml:"optimal_path"`
	Subgoal     *BlockSpec `yaml:"subgoal"`
	Gap         *BlockSpec `yaml:"gap"`
}

// ItemSpec describes an item dropped on a waypoint cell.
type ItemSpec struct {
	Type   string `yaml:"type"`
	Colour string `yaml:"colour"`
}

// WaypointSpec requests auxiliary markers on reachable cells.
// A marker is either a block or an item drop, never both.
type WaypointSpec struct {
	Quantity int        `yaml:"quantity"`
	Block    *BlockSpec `yaml:"block"`
	Item     *ItemSpec  `yaml:"item"`
}

// MarkerKind returns the registry key of the waypoint marker.
func (w *WaypointSpec) MarkerKind() string {
	if w.Item != nil {
		return "item"
	}
	return "block"
}

// Mission is everything the generator needs for one maze.
type Mission struct {
	Width  int  `yaml:"width"`
	Length int  `yaml:"length"`
	Origin Vec3 `yaml:"origin"`
	Scale  int  `yaml:"scale"`

	Gaps                  GapSpec `yaml:"gaps"`
	AllowDiagonalMovement bool    `yaml:"allow_diagonal_movement"`

	PathSeed     string `yaml:"path_seed"`
	MaterialSeed string `yaml:"material_seed"`

	Blocks    Blocks        `yaml:"blocks"`
	Waypoints *WaypointSpec `yaml:"waypoints"`

	AddQuitTrigger            bool        `yaml:"add_quit_trigger"`
	QuitDescription           string      `yaml:"quit_description"`
	AddNavigationObservations bool        `yaml:"add_navigation_observations"`
	AgentStart                Orientation `yaml:"agent_start"`
}

// ApplyDefaults fills in optional fields that were left empty.
func (m *Mission) ApplyDefaults() {
	if m.Scale == 0 {
		m.Scale = 1
	}
	if m.PathSeed == "" {
		m.PathSeed = RandomSeed
	}
	if m.MaterialSeed == "" {
		m.MaterialSeed = RandomSeed
	}
	if m.QuitDescription == "" {
		m.QuitDescription = "reached end"
	}
}

// Validate checks the mission before any generation work starts.
func (m *Mission) Validate() error {
	if m.Width < 1 || m.Length < 1 {
		return fmt.Errorf("%w: grid %dx%d must be at least 1x1", ErrInvalidMission, m.Width, m.Length)
	}
	if m.Width*m.Length < 2 {
		return fmt.Errorf("%w: grid %dx%d cannot hold distinct start and end cells", ErrInvalidMission, m.Width, m.Length)
	}
	if m.Scale < 1 {
		return fmt.Errorf("%w: scale %d must be positive", ErrInvalidMission, m.Scale)
	}
	if m.Gaps.Probability < 0 || m.Gaps.Probability > 1 {
		return fmt.Errorf("%w: gap probability %.3f outside [0,1]", ErrInvalidMission, m.Gaps.Probability)
	}
	if m.Gaps.Variance < 0 {
		return fmt.Errorf("%w: gap variance %.3f is negative", ErrInvalidMission, m.Gaps.Variance)
	}

	required := []struct {
		role string
		spec *BlockSpec
	}{
		{RoleStart, m.Blocks.Start},
		{RoleEnd, m.Blocks.End},
		{RolePath, m.Blocks.Path},
		{RoleGap, m.Blocks.Gap},
	}
	for _, r := range required {
		if r.spec == nil {
			return fmt.Errorf("%w: %s", ErrMissingBlockSpec, r.role)
		}
	}

	specs := map[string]*BlockSpec{
		RoleStart:       m.Blocks.Start,
		RoleEnd:         m.Blocks.End,
		RolePath:        m.Blocks.Path,
		RoleOptimalPath: m.Blocks.OptimalPath,
		RoleSubgoal:     m.Blocks.Subgoal,
		RoleGap:         m.Blocks.Gap,
	}
	if m.Waypoints != nil {
		specs[RoleWaypoint] = m.Waypoints.Block
	}
	for role, spec := range specs {
		if spec == nil {
			continue
		}
		if spec.Height < 0 || spec.HeightVariance < 0 {
			return fmt.Errorf("%w: %s height %d variance %d must not be negative",
				ErrInvalidMission, role, spec.Height, spec.HeightVariance)
		}
	}

	if m.Waypoints != nil {
		if m.Waypoints.Quantity < 0 {
			return fmt.Errorf("%w: waypoint quantity %d is negative", ErrInvalidMission, m.Waypoints.Quantity)
		}
		if m.Waypoints.Block != nil && m.Waypoints.Item != nil {
			return fmt.Errorf("%w: waypoints need a block or an item, not both", ErrInvalidMission)
		}
		if m.Waypoints.Item != nil && m.Waypoints.Item.Type == "" {
			return fmt.Errorf("%w: waypoint item has no type", ErrInvalidMission)
		}
	}

	if _, _, err := ParseSeed(m.PathSeed); err != nil {
		return fmt.Errorf("path seed: %w", err)
	}
	if _, _, err := ParseSeed(m.MaterialSeed); err != nil {
		return fmt.Errorf("material seed: %w", err)
	}

	return nil
}

// WaypointCount returns the number of requested waypoints.
func (m *Mission) WaypointCount() int {
	if m.Waypoints == nil {
		return 0
	}
	return m.Waypoints.Quantity
}

// ParseSeed interprets a seed string. An empty string or "random" reports
// random = true; anything else must be a base-10 integer.
func ParseSeed(s string) (seed int64, random bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, RandomSeed) {
		return 0, true, nil
	}
	seed, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidSeed, s)
	}
	return seed, false, nil
}

// WithSeeds returns a copy of m with the given seed overrides applied. Empty
// overrides keep the mission's seeds. The copy shares block specs with m.
func (m *Mission) WithSeeds(pathSeed, materialSeed string) (*Mission, error) {
	c := *m
	if pathSeed != "" {
		if _, _, err := ParseSeed(pathSeed); err != nil {
			return nil, fmt.Errorf("path seed: %w", err)
		}
		c.PathSeed = pathSeed
	}
	if materialSeed != "" {
		if _, _, err := ParseSeed(materialSeed); err != nil {
			return nil, fmt.Errorf("material seed: %w", err)
		}
		c.MaterialSeed = materialSeed
	}
	return &c, nil
}
