package mazespec

import (
	"math/rand"
)

// Cell roles. Each role is resolved to one concrete block per maze.
const (
	RoleStart       = "start"
	RoleEnd         = "end"
	RolePath        = "path"
	RoleOptimalPath = "optimal_path"
	RoleSubgoal     = "subgoal"
	RoleGap         = "gap"
	RoleWaypoint    = "waypoint"
)

// AirBlock is the block type that leaves a cell open.
const AirBlock = "air"

// defaultBlocks is used when a role's type list is empty.
var defaultBlocks = map[string]string{
	RoleStart:       "emerald_block",
	RoleEnd:         "redstone_block",
	RolePath:        "sandstone",
	RoleOptimalPath: "sandstone",
	RoleSubgoal:     "sandstone",
	RoleGap:         AirBlock,
	RoleWaypoint:    "diamond_block",
}

// ResolvedBlock is a concrete block choice for one role.
type ResolvedBlock struct {
	Block   string `yaml:"block" json:"block"`
	Colour  string `yaml:"colour,omitempty" json:"colour,omitempty"`
	Variant string `yaml:"variant,omitempty" json:"variant,omitempty"`
	Height  int    `yaml:"height" json:"height"`
}

// Palette holds the resolved block for every role.
type Palette struct {
	Start       ResolvedBlock `yaml:"start" json:"start"`
	End         ResolvedBlock `yaml:"end" json:"end"`
	Path        ResolvedBlock `yaml:"path" json:"path"`
	OptimalPath ResolvedBlock `yaml:"optimal_path" json:"optimal_path"`
	Subgoal     ResolvedBlock `yaml:"subgoal" json:"subgoal"`
	Gap         ResolvedBlock `yaml:"gap" json:"gap"`
	Waypoint    ResolvedBlock `yaml:"waypoint" json:"waypoint"`
}

// GapsAreWalls reports whether gap cells stand taller than the walkway, in
// which case path simplification must keep the agent's footprint clear of them.
func (p Palette) GapsAreWalls() bool {
	return p.Gap.Height > p.Path.Height && p.Gap.Block != AirBlock
}

// Resolver turns block specs into concrete choices. It only ever draws from
// the material RNG, so cosmetic choices never perturb carving.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver creates a resolver drawing from rng.
func NewResolver(rng *rand.Rand) *Resolver {
	return &Resolver{rng: rng}
}

// Resolve picks a block for every role of the mission. Roles are resolved in
// a fixed order so a given material seed always yields the same palette.
func (r *Resolver) Resolve(m *Mission) Palette {
	path := m.Blocks.Path
	optimal := m.Blocks.OptimalPath
	if optimal == nil {
		optimal = path
	}
	subgoal := m.Blocks.Subgoal
	if subgoal == nil {
		subgoal = optimal
	}
	var waypoint *BlockSpec
	if m.Waypoints != nil {
		waypoint = m.Waypoints.Block
	}

	return Palette{
		Start:       r.ResolveBlock(RoleStart, m.Blocks.Start),
		End:         r.ResolveBlock(RoleEnd, m.Blocks.End),
		Path:        r.ResolveBlock(RolePath, path),
		OptimalPath: r.ResolveBlock(RoleOptimalPath, optimal),
		Subgoal:     r.ResolveBlock(RoleSubgoal, subgoal),
		Gap:         r.ResolveBlock(RoleGap, m.Blocks.Gap),
		Waypoint:    r.ResolveBlock(RoleWaypoint, waypoint),
	}
}

// ResolveBlock resolves a single spec. A nil spec yields the role default
// with height zero.
func (r *Resolver) ResolveBlock(role string, spec *BlockSpec) ResolvedBlock {
	if spec == nil {
		return ResolvedBlock{Block: defaultBlocks[role]}
	}

	block := r.choose(spec.Types)
	if block == "" {
		block = defaultBlocks[role]
	}

	return ResolvedBlock{
		Block:   block,
		Colour:  r.choose(spec.Colours),
		Variant: r.choose(spec.Variants),
		Height:  r.height(spec.Height, spec.HeightVariance),
	}
}

// choose picks uniformly from options, or returns "" when there are none.
func (r *Resolver) choose(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[r.rng.Intn(len(options))]
}

// height perturbs base by an integer drawn uniformly from [-variance, variance].
func (r *Resolver) height(base, variance int) int {
	h := base
	if variance > 0 {
		h += r.rng.Intn(2*variance+1) - variance
	}
	if h < 0 {
		h = 0
	}
	return h
}
