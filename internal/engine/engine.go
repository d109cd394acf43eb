// Package engine implements the constraint solver behind puzzle
// generation: base sudoku placement rules plus the optional variant rules,
// a uniqueness check that counts solutions up to two, and full-solution
// generation. The search is a randomized backtracker with per-cell
// candidate pruning.
package engine

import (
	"errors"
	"fmt"

	"github.com/makudoku/backend/internal/variant"
)

const (
	// N is the grid side length.
	N = 9
	// NN is the number of cells.
	NN      = N * N
	boxSize = 3
)

var (
	// ErrBuild indicates a structurally invalid constraint or givens string.
	ErrBuild = errors.New("engine: invalid constraint")
	// ErrUnsolvable indicates the constraint set admits no full solution.
	ErrUnsolvable = errors.New("engine: no solution exists")
)

// Grid is a complete or partial assignment; 0 marks an empty cell.
type Grid [NN]uint8

// GridFromText parses an 81-character puzzle string. '.' and '0' mark
// empty cells, '1'..'9' are givens.
func GridFromText(text string) (Grid, error) {
	var grid Grid
	if len(text) != NN {
		return grid, fmt.Errorf("%w: givens must be exactly %d characters", ErrBuild, NN)
	}
	for i := 0; i < NN; i++ {
		ch := text[i]
		switch {
		case ch == '.' || ch == '0':
			grid[i] = 0
		case ch >= '1' && ch <= '9':
			grid[i] = ch - '0'
		default:
			return grid, fmt.Errorf("%w: givens may contain only digits and '.'", ErrBuild)
		}
	}
	return grid, nil
}

// Text renders the grid as an 81-character puzzle string.
func (g Grid) Text() string {
	buf := make([]byte, NN)
	for i, v := range g {
		if v == 0 {
			buf[i] = '.'
		} else {
			buf[i] = '0' + v
		}
	}
	return string(buf)
}

// ClueCount reports the number of filled cells.
func (g Grid) ClueCount() int {
	count := 0
	for _, v := range g {
		if v != 0 {
			count++
		}
	}
	return count
}

// ConstraintKind tags entries of the renderer-consumable constraint list.
type ConstraintKind string

const (
	ConstraintRow         ConstraintKind = "row"
	ConstraintColumn      ConstraintKind = "column"
	ConstraintBox         ConstraintKind = "box"
	ConstraintKropkiWhite ConstraintKind = "kropki_white"
	ConstraintKropkiBlack ConstraintKind = "kropki_black"
	ConstraintThermo      ConstraintKind = "thermo"
	ConstraintArrow       ConstraintKind = "arrow"
	ConstraintKiller      ConstraintKind = "killer"
	ConstraintKing        ConstraintKind = "king"
	ConstraintKnight      ConstraintKind = "knight"
	ConstraintQueen       ConstraintKind = "queen"
)

// Constraint is the materialized form of one rule, exposed for rendering.
// It carries no solving logic; the engine keeps the matching predicate
// separately.
type Constraint struct {
	Kind      ConstraintKind
	Cells     []variant.Cell
	Sum       int
	NoRepeats bool
}

// rule reports whether placing value at idx is consistent with the current
// partial grid. Predicates are exact on complete grids and conservative
// (never rejecting a completable placement) on partial ones.
type rule func(g *Grid, idx int, value uint8) bool

// Engine assembles the base placement rules plus applied variants.
type Engine struct {
	constraints []Constraint
	rules       []rule
	givens      Grid
}

// New returns an engine with the base row, column and box rules applied.
func New() *Engine {
	e := &Engine{}
	e.addBaseConstraints()
	return e
}

// ForSpecs builds an engine from the base rules plus each variant in list
// order. It fails if any variant is structurally invalid.
func ForSpecs(specs []variant.Spec) (*Engine, error) {
	e := New()
	for _, spec := range specs {
		if err := e.Apply(spec); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// BuildWithGivens assembles an engine for the variant set and loads the
// puzzle text into it.
func BuildWithGivens(puzzleText string, specs []variant.Spec) (*Engine, error) {
	e, err := ForSpecs(specs)
	if err != nil {
		return nil, err
	}
	if err := e.LoadGivens(puzzleText); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply adds one variant's rule to the engine.
func (e *Engine) Apply(spec variant.Spec) error {
	switch v := spec.(type) {
	case variant.KropkiWhite:
		return e.AddKropkiWhite(v.A, v.B)
	case variant.KropkiBlack:
		return e.AddKropkiBlack(v.A, v.B)
	case variant.Thermo:
		return e.AddThermo(v.Path)
	case variant.Arrow:
		return e.AddArrow(v.Path)
	case variant.Killer:
		return e.AddKillerCage(v.Cells, v.Sum, v.NoRepeats)
	case variant.King:
		e.AddKing()
		return nil
	case variant.Knight:
		e.AddKnight()
		return nil
	case variant.Queen:
		e.AddQueen()
		return nil
	default:
		return fmt.Errorf("%w: unsupported variant %q", ErrBuild, spec.Kind())
	}
}

// LoadGivens validates and installs the puzzle text. A given that violates
// the active rules makes the load fail.
func (e *Engine) LoadGivens(text string) error {
	grid, err := GridFromText(text)
	if err != nil {
		return err
	}
	var staged Grid
	for idx := 0; idx < NN; idx++ {
		value := grid[idx]
		if value == 0 {
			continue
		}
		if !e.allows(&staged, idx, value) {
			return fmt.Errorf("%w: given at cell %d contradicts the rule set", ErrBuild, idx)
		}
		staged[idx] = value
	}
	e.givens = staged
	return nil
}

// Givens returns the currently loaded givens grid.
func (e *Engine) Givens() Grid {
	return e.givens
}

// Constraints returns the fully expanded constraint list (base rules plus
// variants, in application order) for downstream rendering.
func (e *Engine) Constraints() []Constraint {
	out := make([]Constraint, len(e.constraints))
	copy(out, e.constraints)
	return out
}

func (e *Engine) allows(g *Grid, idx int, value uint8) bool {
	for _, r := range e.rules {
		if !r(g, idx, value) {
			return false
		}
	}
	return true
}

func (e *Engine) addBaseConstraints() {
	for r := 0; r < N; r++ {
		cells := make([]variant.Cell, N)
		for c := 0; c < N; c++ {
			cells[c] = variant.Cell{Row: r, Col: c}
		}
		e.constraints = append(e.constraints, Constraint{Kind: ConstraintRow, Cells: cells})
	}
	for c := 0; c < N; c++ {
		cells := make([]variant.Cell, N)
		for r := 0; r < N; r++ {
			cells[r] = variant.Cell{Row: r, Col: c}
		}
		e.constraints = append(e.constraints, Constraint{Kind: ConstraintColumn, Cells: cells})
	}
	for br := 0; br < N; br += boxSize {
		for bc := 0; bc < N; bc += boxSize {
			cells := make([]variant.Cell, 0, N)
			for dr := 0; dr < boxSize; dr++ {
				for dc := 0; dc < boxSize; dc++ {
					cells = append(cells, variant.Cell{Row: br + dr, Col: bc + dc})
				}
			}
			e.constraints = append(e.constraints, Constraint{Kind: ConstraintBox, Cells: cells})
		}
	}

	e.rules = append(e.rules, func(g *Grid, idx int, value uint8) bool {
		row, col := idx/N, idx%N
		for i := 0; i < N; i++ {
			if g[row*N+i] == value || g[i*N+col] == value {
				return false
			}
		}
		boxRow, boxCol := (row/boxSize)*boxSize, (col/boxSize)*boxSize
		for dr := 0; dr < boxSize; dr++ {
			for dc := 0; dc < boxSize; dc++ {
				if g[(boxRow+dr)*N+boxCol+dc] == value {
					return false
				}
			}
		}
		return true
	})
}
