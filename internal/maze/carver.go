package maze

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lawnchairsociety/towermaze/internal/grid"
)

// CarveParams are the inputs to the carving step.
type CarveParams struct {
	Width, Length    int
	GapProbability   float64
	GapVariance      float64
	AllowDiagonal    bool
	StartFixedToEdge bool // start on the first row
	EndFixedToEdge   bool // end on the last row
}

// Carving is the outcome of one carving pass.
type Carving struct {
	Grid           *grid.Grid
	Start, End     grid.Pos
	Path           []grid.Pos
	GapProbability float64
	GapsRequested  int
	GapsRemoved    int
	MaxPathLength  int
	Warnings       []string
}

// Carver removes cells from a full grid while keeping start connected to
// end by a path no longer than the budget. All randomness comes from the
// path RNG handed to NewCarver.
type Carver struct {
	params CarveParams
	rng    *rand.Rand

	grid          *grid.Grid
	start, end    grid.Pos
	gapsToRemove  int
	maxPathLength int
	warnings      []string
}

// NewCarver creates a carver for params drawing from rng.
func NewCarver(params CarveParams, rng *rand.Rand) *Carver {
	return &Carver{params: params, rng: rng}
}

// Carve runs the whole carving pass. Infeasible targets are relaxed and
// reported in Carving.Warnings; running out of candidates yields fewer gaps
// than requested.
func (c *Carver) Carve() (*Carving, error) {
	g, err := grid.New(c.params.Width, c.params.Length)
	if err != nil {
		return nil, err
	}
	if g.Size() < 2 {
		return nil, fmt.Errorf("%w: %dx%d has no room for distinct start and end", grid.ErrInvalidSize, g.Width, g.Length)
	}
	c.grid = g

	p := c.resolveGapProbability()
	c.computeBudget(p)
	c.chooseStart()
	c.enforceEndRow()
	c.chooseEnd()

	if !search(g, c.start, c.end, c.params.AllowDiagonal) {
		// A full grid is always connected.
		return nil, fmt.Errorf("maze: start %v cannot reach end %v on a full grid", c.start, c.end)
	}
	tracePath(g, c.end)

	removed := c.carve()

	return &Carving{
		Grid:           g,
		Start:          c.start,
		End:            c.end,
		Path:           ShortestPath(g, c.start, c.end, c.params.AllowDiagonal),
		GapProbability: p,
		GapsRequested:  c.gapsToRemove,
		GapsRemoved:    removed,
		MaxPathLength:  c.maxPathLength,
		Warnings:       c.warnings,
	}, nil
}

// resolveGapProbability perturbs the configured probability by a uniform
// draw from [-variance, variance] and clamps it to [0, 1].
func (c *Carver) resolveGapProbability() float64 {
	p := c.params.GapProbability
	if c.params.GapVariance > 0 {
		p += (c.rng.Float64()*2 - 1) * c.params.GapVariance
	}
	return math.Min(1, math.Max(0, p))
}

// computeBudget derives the gap quota and path budget from p, relaxing them
// when the quota would leave no room for a path.
func (c *Carver) computeBudget(p float64) {
	total := c.grid.Size()
	c.gapsToRemove = int(math.Round(float64(total) * p))
	c.maxPathLength = total - c.gapsToRemove

	if c.maxPathLength < 2 {
		relaxed := max(c.grid.Length, 2)
		c.warn("gap probability %.3f leaves a path budget of %d cells; relaxing budget to %d",
			p, c.maxPathLength, relaxed)
		c.setBudget(relaxed)
	}
}

func (c *Carver) setBudget(maxPathLength int) {
	c.maxPathLength = maxPathLength
	c.gapsToRemove = c.grid.Size() - maxPathLength
}

func (c *Carver) chooseStart() {
	g := c.grid
	switch {
	case c.params.StartFixedToEdge:
		c.start = grid.Pos{X: c.rng.Intn(g.Width), Z: 0}
	case c.params.EndFixedToEdge && g.Width == 1:
		// A one-column grid has a single cell in the last row; keep it free
		// for the end.
		c.start = grid.Pos{X: 0, Z: c.rng.Intn(g.Length - 1)}
	default:
		c.start = g.PosOf(c.rng.Intn(g.Size()))
	}
}

// enforceEndRow raises the path budget when the end is pinned to the last row
// and the budget cannot span the rows between start and that row. With both
// ends pinned this is exactly the grid length.
func (c *Carver) enforceEndRow() {
	if !c.params.EndFixedToEdge {
		return
	}
	lastRow := c.grid.Length - 1
	required := max(abs(lastRow-c.start.Z)+1, 2)
	if c.maxPathLength < required {
		c.warn("end fixed to row %d needs a path of at least %d cells but the budget is %d; relaxing budget to %d",
			lastRow, required, c.maxPathLength, required)
		c.setBudget(required)
	}
}

// chooseEnd draws the end cell. When the budget covers every pair of cells
// the draw is uniform, otherwise it is rejection-sampled from the box of
// cells within budget of start.
func (c *Carver) chooseEnd() {
	g := c.grid
	lastRow := g.Length - 1
	diagonal := grid.StepDistance(grid.Pos{}, grid.Pos{X: g.Width - 1, Z: lastRow}, c.params.AllowDiagonal)
	reach := c.maxPathLength - 1

	if reach >= diagonal {
		var candidates []grid.Pos
		for i := 0; i < g.Size(); i++ {
			p := g.PosOf(i)
			if p == c.start || (c.params.EndFixedToEdge && p.Z != lastRow) {
				continue
			}
			candidates = append(candidates, p)
		}
		c.end = candidates[c.rng.Intn(len(candidates))]
		return
	}

	for {
		p := grid.Pos{
			X: c.start.X + c.rng.Intn(2*reach+1) - reach,
			Z: c.start.Z + c.rng.Intn(2*reach+1) - reach,
		}
		if c.params.EndFixedToEdge {
			p.Z = lastRow
		}
		if !g.InBounds(p) || p == c.start {
			continue
		}
		if grid.StepDistance(c.start, p, c.params.AllowDiagonal) > reach {
			continue
		}
		c.end = p
		return
	}
}

// carve tries candidate cells in random order, each at most once, and keeps
// every removal that leaves end reachable within budget. It returns the
// number of cells removed.
func (c *Carver) carve() int {
	g := c.grid
	startIdx := g.Index(c.start)
	endIdx := g.Index(c.end)

	candidates := make([]int, 0, g.Size()-2)
	for i := 0; i < g.Size(); i++ {
		if i != startIdx && i != endIdx {
			candidates = append(candidates, i)
		}
	}

	removed := 0
	remaining := c.gapsToRemove
	for n := len(candidates); remaining > 0 && n > 0; n-- {
		j := c.rng.Intn(n)
		idx := candidates[j]
		candidates[j] = candidates[n-1]

		cell := g.Cell(idx)
		cell.Present = false

		if cell.OnOptimalPath {
			reached := search(g, c.start, c.end, c.params.AllowDiagonal)
			if !reached || g.Cell(endIdx).Distance+1 > c.maxPathLength {
				cell.Present = true
				continue
			}
			tracePath(g, c.end)
		}

		removed++
		remaining--
	}

	return removed
}

func (c *Carver) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
