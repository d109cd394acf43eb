package generator

import (
	"go.uber.org/zap"

	"github.com/makudoku/backend/internal/engine"
	"github.com/makudoku/backend/internal/variant"
)

// DefaultClueTarget is the digging target used when a request does not
// supply one.
const DefaultClueTarget = 30

// Config tunes default random generation.
type Config struct {
	ClueTarget int
}

// Result is one finished generation: the dug puzzle, its solution, the
// variant set in effect, the seed that reproduces the run, and bookkeeping
// for the persisted payload.
type Result struct {
	Puzzle    string
	Solution  engine.Grid
	Specs     []variant.Spec
	Seed      uint64
	ClueCount int
	Symmetry  *string
}

// Generator drives puzzle generation for the HTTP surface.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// New returns a generator. A zero ClueTarget falls back to the default.
func New(cfg Config, logger *zap.Logger) *Generator {
	if cfg.ClueTarget <= 0 {
		cfg.ClueTarget = DefaultClueTarget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// Custom generates a puzzle for a caller-supplied variant set, clue target
// and optional seed. A nil seed draws a fresh one; the seed actually used
// is reported in the result so the run can be replayed.
func (g *Generator) Custom(specs []variant.Spec, clueTarget int, seed *uint64) (Result, error) {
	var rng *engine.Rng
	if seed != nil {
		rng = engine.NewRngFromSeed(*seed)
	} else {
		rng = engine.NewRng()
	}

	solver, err := engine.ForSpecs(specs)
	if err != nil {
		return Result{}, err
	}
	solution, err := solver.FullSolution(rng)
	if err != nil {
		return Result{}, err
	}

	puzzle, err := FromSolution(solution, clueTarget, specs, rng)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Puzzle:    puzzle,
		Solution:  solution,
		Specs:     specs,
		Seed:      rng.Seed(),
		ClueCount: clueCount(puzzle),
	}
	g.logger.Debug("puzzle generated",
		zap.Uint64("seed", result.Seed),
		zap.Int("clue_count", result.ClueCount),
		zap.Strings("variants", variant.KindTags(specs)))
	return result, nil
}

// Random generates a puzzle with a randomly chosen variant set: possibly a
// global chess rule, plus local constraints sampled from the generated
// solution so they are guaranteed consistent with it.
func (g *Generator) Random() (Result, error) {
	rng := engine.NewRng()

	globals := pickGlobalSpecs(rng)
	solver, err := engine.ForSpecs(globals)
	if err != nil {
		return Result{}, err
	}
	solution, err := solver.FullSolution(rng)
	if err != nil {
		return Result{}, err
	}

	specs := append(globals, pickLocalSpecs(rng, solution)...)
	puzzle, err := FromSolution(solution, g.cfg.ClueTarget, specs, rng)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Puzzle:    puzzle,
		Solution:  solution,
		Specs:     specs,
		Seed:      rng.Seed(),
		ClueCount: clueCount(puzzle),
	}
	g.logger.Debug("random puzzle generated",
		zap.Uint64("seed", result.Seed),
		zap.Int("clue_count", result.ClueCount),
		zap.Strings("variants", variant.KindTags(specs)))
	return result, nil
}

func clueCount(puzzle string) int {
	count := 0
	for i := 0; i < len(puzzle); i++ {
		if puzzle[i] != '.' {
			count++
		}
	}
	return count
}

func pickGlobalSpecs(rng *engine.Rng) []variant.Spec {
	switch rng.IntN(6) {
	case 0:
		return []variant.Spec{variant.King{}}
	case 1:
		return []variant.Spec{variant.Knight{}}
	case 2:
		return []variant.Spec{variant.Queen{}}
	default:
		return nil
	}
}

func pickLocalSpecs(rng *engine.Rng, solution engine.Grid) []variant.Spec {
	switch rng.IntN(4) {
	case 0:
		return sampleKropki(rng, solution)
	case 1:
		return sampleThermos(rng, solution)
	case 2:
		return sampleKillers(rng, solution)
	default:
		return nil
	}
}

// sampleKropki marks a handful of adjacent pairs where the solution
// already satisfies the dot's relation.
func sampleKropki(rng *engine.Rng, solution engine.Grid) []variant.Spec {
	var whites, blacks []variant.Spec
	for r := 0; r < engine.N; r++ {
		for c := 0; c < engine.N; c++ {
			a := variant.Cell{Row: r, Col: c}
			for _, b := range []variant.Cell{{Row: r, Col: c + 1}, {Row: r + 1, Col: c}} {
				if !b.InBounds() {
					continue
				}
				x, y := solution[a.Index()], solution[b.Index()]
				if x == 2*y || y == 2*x {
					blacks = append(blacks, variant.KropkiBlack{A: a, B: b})
				} else if int(x)-int(y) == 1 || int(y)-int(x) == 1 {
					whites = append(whites, variant.KropkiWhite{A: a, B: b})
				}
			}
		}
	}
	specs := make([]variant.Spec, 0, 10)
	specs = append(specs, sampleSpecs(rng, whites, 3+rng.IntN(4))...)
	specs = append(specs, sampleSpecs(rng, blacks, 2+rng.IntN(3))...)
	return specs
}

func sampleSpecs(rng *engine.Rng, pool []variant.Spec, want int) []variant.Spec {
	if len(pool) == 0 {
		return nil
	}
	if want > len(pool) {
		want = len(pool)
	}
	indices := make([]int, len(pool))
	for i := range indices {
		indices[i] = i
	}
	shufflePositions(rng, indices)
	out := make([]variant.Spec, 0, want)
	for _, idx := range indices[:want] {
		out = append(out, pool[idx])
	}
	return out
}

// sampleThermos walks increasing king-adjacent paths through the solution.
func sampleThermos(rng *engine.Rng, solution engine.Grid) []variant.Spec {
	used := make(map[int]bool)
	var specs []variant.Spec
	for attempt := 0; attempt < 40 && len(specs) < 3; attempt++ {
		start := rng.IntN(engine.NN)
		if used[start] || solution[start] > 5 {
			continue
		}
		path := []variant.Cell{{Row: start / engine.N, Col: start % engine.N}}
		for {
			next, ok := nextIncreasingNeighbor(rng, solution, used, path)
			if !ok {
				break
			}
			path = append(path, next)
		}
		if len(path) < 3 {
			continue
		}
		for _, cell := range path {
			used[cell.Index()] = true
		}
		specs = append(specs, variant.Thermo{Path: path})
	}
	return specs
}

func nextIncreasingNeighbor(rng *engine.Rng, solution engine.Grid, used map[int]bool, path []variant.Cell) (variant.Cell, bool) {
	last := path[len(path)-1]
	onPath := make(map[int]bool, len(path))
	for _, cell := range path {
		onPath[cell.Index()] = true
	}
	var options []variant.Cell
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			cell := variant.Cell{Row: last.Row + dr, Col: last.Col + dc}
			if !cell.InBounds() || used[cell.Index()] || onPath[cell.Index()] {
				continue
			}
			if solution[cell.Index()] > solution[last.Index()] {
				options = append(options, cell)
			}
		}
	}
	if len(options) == 0 {
		return variant.Cell{}, false
	}
	return options[rng.IntN(len(options))], true
}

// sampleKillers grows small orthogonally connected cages and labels them
// with their actual sums.
func sampleKillers(rng *engine.Rng, solution engine.Grid) []variant.Spec {
	used := make(map[int]bool)
	var specs []variant.Spec
	for attempt := 0; attempt < 30 && len(specs) < 4; attempt++ {
		start := rng.IntN(engine.NN)
		if used[start] {
			continue
		}
		size := 2 + rng.IntN(3)
		cells := growCage(rng, used, start, size)
		if len(cells) < 2 {
			continue
		}
		sum := 0
		var seen [engine.N + 1]bool
		distinct := true
		for _, cell := range cells {
			v := solution[cell.Index()]
			sum += int(v)
			if seen[v] {
				distinct = false
			}
			seen[v] = true
			used[cell.Index()] = true
		}
		specs = append(specs, variant.Killer{Cells: cells, Sum: sum, NoRepeats: distinct})
	}
	return specs
}

func growCage(rng *engine.Rng, used map[int]bool, start, size int) []variant.Cell {
	cells := []variant.Cell{{Row: start / engine.N, Col: start % engine.N}}
	inCage := map[int]bool{start: true}
	for len(cells) < size {
		last := cells[len(cells)-1]
		var options []variant.Cell
		for _, next := range []variant.Cell{
			{Row: last.Row - 1, Col: last.Col},
			{Row: last.Row + 1, Col: last.Col},
			{Row: last.Row, Col: last.Col - 1},
			{Row: last.Row, Col: last.Col + 1},
		} {
			if next.InBounds() && !used[next.Index()] && !inCage[next.Index()] {
				options = append(options, next)
			}
		}
		if len(options) == 0 {
			break
		}
		next := options[rng.IntN(len(options))]
		inCage[next.Index()] = true
		cells = append(cells, next)
	}
	return cells
}
