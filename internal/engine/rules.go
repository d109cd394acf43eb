package engine

import (
	"fmt"

	"github.com/makudoku/backend/internal/variant"
)

func orthogonallyAdjacent(a, b variant.Cell) bool {
	dr, dc := a.Row-b.Row, a.Col-b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr+dc == 1
}

func kingAdjacent(a, b variant.Cell) bool {
	dr, dc := a.Row-b.Row, a.Col-b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr <= 1 && dc <= 1 && dr+dc > 0
}

func checkCells(kind ConstraintKind, cells []variant.Cell, requireDistinct bool) error {
	if len(cells) == 0 {
		return fmt.Errorf("%w: %s requires at least one cell", ErrBuild, kind)
	}
	seen := make(map[int]struct{}, len(cells))
	for _, cell := range cells {
		if !cell.InBounds() {
			return fmt.Errorf("%w: %s cell [%d,%d] out of range", ErrBuild, kind, cell.Row, cell.Col)
		}
		if requireDistinct {
			if _, dup := seen[cell.Index()]; dup {
				return fmt.Errorf("%w: %s repeats cell [%d,%d]", ErrBuild, kind, cell.Row, cell.Col)
			}
			seen[cell.Index()] = struct{}{}
		}
	}
	return nil
}

func checkConnected(kind ConstraintKind, path []variant.Cell) error {
	for i := 1; i < len(path); i++ {
		if !kingAdjacent(path[i-1], path[i]) {
			return fmt.Errorf("%w: %s path breaks between [%d,%d] and [%d,%d]",
				ErrBuild, kind, path[i-1].Row, path[i-1].Col, path[i].Row, path[i].Col)
		}
	}
	return nil
}

// AddKropkiWhite constrains two orthogonally adjacent cells to consecutive
// values.
func (e *Engine) AddKropkiWhite(a, b variant.Cell) error {
	return e.addKropki(ConstraintKropkiWhite, a, b, func(x, y uint8) bool {
		diff := int(x) - int(y)
		return diff == 1 || diff == -1
	})
}

// AddKropkiBlack constrains two orthogonally adjacent cells to a 1:2 ratio.
func (e *Engine) AddKropkiBlack(a, b variant.Cell) error {
	return e.addKropki(ConstraintKropkiBlack, a, b, func(x, y uint8) bool {
		return x == 2*y || y == 2*x
	})
}

func (e *Engine) addKropki(kind ConstraintKind, a, b variant.Cell, pair func(x, y uint8) bool) error {
	if err := checkCells(kind, []variant.Cell{a, b}, true); err != nil {
		return err
	}
	if !orthogonallyAdjacent(a, b) {
		return fmt.Errorf("%w: %s cells [%d,%d] and [%d,%d] are not adjacent",
			ErrBuild, kind, a.Row, a.Col, b.Row, b.Col)
	}
	aIdx, bIdx := a.Index(), b.Index()
	e.constraints = append(e.constraints, Constraint{Kind: kind, Cells: []variant.Cell{a, b}})
	e.rules = append(e.rules, func(g *Grid, idx int, value uint8) bool {
		var other uint8
		switch idx {
		case aIdx:
			other = g[bIdx]
		case bIdx:
			other = g[aIdx]
		default:
			return true
		}
		if other == 0 {
			return true
		}
		return pair(value, other)
	})
	return nil
}

// AddThermo constrains the path to strictly increasing values from the bulb.
func (e *Engine) AddThermo(path []variant.Cell) error {
	if err := checkCells(ConstraintThermo, path, true); err != nil {
		return err
	}
	if err := checkConnected(ConstraintThermo, path); err != nil {
		return err
	}
	if len(path) > N {
		return fmt.Errorf("%w: thermo longer than %d cells cannot be satisfied", ErrBuild, N)
	}

	position := make(map[int]int, len(path))
	for i, cell := range path {
		position[cell.Index()] = i
	}
	length := len(path)

	e.constraints = append(e.constraints, Constraint{Kind: ConstraintThermo, Cells: append([]variant.Cell(nil), path...)})
	e.rules = append(e.rules, func(g *Grid, idx int, value uint8) bool {
		k, ok := position[idx]
		if !ok {
			return true
		}
		// Positional bounds follow from strict increase over 1..9.
		if int(value) < k+1 || int(value) > N-(length-1-k) {
			return false
		}
		for j, cell := range path {
			other := g[cell.Index()]
			if other == 0 || j == k {
				continue
			}
			if j < k && int(value)-int(other) < k-j {
				return false
			}
			if j > k && int(other)-int(value) < j-k {
				return false
			}
		}
		return true
	})
	return nil
}

// AddArrow constrains the head (first path cell) to the sum of the rest.
func (e *Engine) AddArrow(path []variant.Cell) error {
	if err := checkCells(ConstraintArrow, path, true); err != nil {
		return err
	}
	if err := checkConnected(ConstraintArrow, path); err != nil {
		return err
	}

	headIdx := path[0].Index()
	shaft := make([]int, 0, len(path)-1)
	for _, cell := range path[1:] {
		shaft = append(shaft, cell.Index())
	}
	member := make(map[int]struct{}, len(path))
	for _, cell := range path {
		member[cell.Index()] = struct{}{}
	}

	e.constraints = append(e.constraints, Constraint{Kind: ConstraintArrow, Cells: append([]variant.Cell(nil), path...)})
	e.rules = append(e.rules, func(g *Grid, idx int, value uint8) bool {
		if _, ok := member[idx]; !ok {
			return true
		}
		head := g[headIdx]
		if idx == headIdx {
			head = value
		}
		sum, unfilled := 0, 0
		for _, s := range shaft {
			v := g[s]
			if s == idx {
				v = value
			}
			if v == 0 {
				unfilled++
				continue
			}
			sum += int(v)
		}
		if head == 0 {
			return sum+unfilled <= N
		}
		if unfilled == 0 {
			return sum == int(head)
		}
		return sum+unfilled <= int(head) && sum+N*unfilled >= int(head)
	})
	return nil
}

// AddKillerCage constrains a cage of cells to a target sum, optionally
// forbidding repeated digits inside the cage.
func (e *Engine) AddKillerCage(cells []variant.Cell, sum int, noRepeats bool) error {
	if err := checkCells(ConstraintKiller, cells, true); err != nil {
		return err
	}
	if sum < len(cells) || sum > N*len(cells) {
		return fmt.Errorf("%w: killer sum %d unreachable for %d cells", ErrBuild, sum, len(cells))
	}

	indices := make([]int, len(cells))
	member := make(map[int]struct{}, len(cells))
	for i, cell := range cells {
		indices[i] = cell.Index()
		member[cell.Index()] = struct{}{}
	}

	e.constraints = append(e.constraints, Constraint{
		Kind:      ConstraintKiller,
		Cells:     append([]variant.Cell(nil), cells...),
		Sum:       sum,
		NoRepeats: noRepeats,
	})
	e.rules = append(e.rules, func(g *Grid, idx int, value uint8) bool {
		if _, ok := member[idx]; !ok {
			return true
		}
		var seen [N + 1]bool
		total, unfilled := 0, 0
		for _, ci := range indices {
			v := g[ci]
			if ci == idx {
				v = value
			}
			if v == 0 {
				unfilled++
				continue
			}
			if noRepeats {
				if seen[v] {
					return false
				}
				seen[v] = true
			}
			total += int(v)
		}
		if unfilled == 0 {
			return total == sum
		}
		return total+unfilled <= sum && total+N*unfilled >= sum
	})
	return nil
}

var (
	kingOffsets = [][2]int{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
	knightOffsets = [][2]int{
		{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2},
		{1, -2}, {1, 2}, {2, -1}, {2, 1},
	}
	diagonalDirections = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

// AddKing forbids equal digits a king's move apart.
func (e *Engine) AddKing() {
	e.constraints = append(e.constraints, Constraint{Kind: ConstraintKing})
	e.rules = append(e.rules, offsetRule(kingOffsets))
}

// AddKnight forbids equal digits a knight's move apart.
func (e *Engine) AddKnight() {
	e.constraints = append(e.constraints, Constraint{Kind: ConstraintKnight})
	e.rules = append(e.rules, offsetRule(knightOffsets))
}

// AddQueen makes every 9 act as a chess queen: no two 9s may share a
// diagonal. Rows and columns are already covered by the base rules, and
// applying the diagonal rule to all digits would leave no valid grid.
func (e *Engine) AddQueen() {
	e.constraints = append(e.constraints, Constraint{Kind: ConstraintQueen})
	e.rules = append(e.rules, func(g *Grid, idx int, value uint8) bool {
		if value != N {
			return true
		}
		row, col := idx/N, idx%N
		for _, dir := range diagonalDirections {
			r, c := row+dir[0], col+dir[1]
			for r >= 0 && r < N && c >= 0 && c < N {
				if g[r*N+c] == value {
					return false
				}
				r += dir[0]
				c += dir[1]
			}
		}
		return true
	})
}

func offsetRule(offsets [][2]int) rule {
	return func(g *Grid, idx int, value uint8) bool {
		row, col := idx/N, idx%N
		for _, off := range offsets {
			r, c := row+off[0], col+off[1]
			if r < 0 || r >= N || c < 0 || c >= N {
				continue
			}
			if g[r*N+c] == value {
				return false
			}
		}
		return true
	}
}
