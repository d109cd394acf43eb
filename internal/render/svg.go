// Package render turns a puzzle grid and its constraint list into a
// standalone SVG document.
package render

import (
	"fmt"
	"strings"

	"github.com/makudoku/backend/internal/engine"
	"github.com/makudoku/backend/internal/variant"
)

// Options tunes the rendered geometry. Zero values fall back to defaults.
type Options struct {
	CellSize int
	Margin   int
}

const (
	defaultCellSize = 64
	defaultMargin   = 16
)

// SVG renders the puzzle with every variant overlay in the constraint
// list. Base row/column/box constraints contribute the grid itself.
func SVG(puzzleText string, constraints []engine.Constraint, opts Options) (string, error) {
	grid, err := engine.GridFromText(puzzleText)
	if err != nil {
		return "", err
	}

	cell := opts.CellSize
	if cell <= 0 {
		cell = defaultCellSize
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = defaultMargin
	}
	boardSize := cell * engine.N

	globals := globalTags(constraints)
	height := boardSize + 2*margin
	if len(globals) > 0 {
		height += cell / 2
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		boardSize+2*margin, height, boardSize+2*margin, height)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="white"/>`, boardSize+2*margin, height)

	center := func(c variant.Cell) (float64, float64) {
		x := float64(margin) + (float64(c.Col)+0.5)*float64(cell)
		y := float64(margin) + (float64(c.Row)+0.5)*float64(cell)
		return x, y
	}

	// Overlays that sit under the grid lines.
	for _, constraint := range constraints {
		switch constraint.Kind {
		case engine.ConstraintKiller:
			drawCage(&b, constraint, cell, margin)
		case engine.ConstraintThermo:
			drawThermo(&b, constraint, center, cell)
		case engine.ConstraintArrow:
			drawArrow(&b, constraint, center, cell)
		}
	}

	drawGridLines(&b, cell, margin, boardSize)
	drawDigits(&b, grid, center, cell)

	// Kropki dots sit on top of the grid lines.
	for _, constraint := range constraints {
		switch constraint.Kind {
		case engine.ConstraintKropkiWhite:
			drawKropki(&b, constraint, center, cell, "white")
		case engine.ConstraintKropkiBlack:
			drawKropki(&b, constraint, center, cell, "black")
		}
	}

	if len(globals) > 0 {
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-family="sans-serif" font-size="%d" fill="#555">%s</text>`,
			margin, boardSize+margin+cell/3, cell/3, strings.Join(globals, " · "))
	}

	b.WriteString(`</svg>`)
	return b.String(), nil
}

func globalTags(constraints []engine.Constraint) []string {
	var tags []string
	for _, constraint := range constraints {
		switch constraint.Kind {
		case engine.ConstraintKing:
			tags = append(tags, "anti-king")
		case engine.ConstraintKnight:
			tags = append(tags, "anti-knight")
		case engine.ConstraintQueen:
			tags = append(tags, "queens")
		}
	}
	return tags
}

func drawGridLines(b *strings.Builder, cell, margin, boardSize int) {
	for i := 0; i <= engine.N; i++ {
		width := 1
		if i%3 == 0 {
			width = 3
		}
		offset := margin + i*cell
		fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black" stroke-width="%d"/>`,
			margin, offset, margin+boardSize, offset, width)
		fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black" stroke-width="%d"/>`,
			offset, margin, offset, margin+boardSize, width)
	}
}

func drawDigits(b *strings.Builder, grid engine.Grid, center func(variant.Cell) (float64, float64), cell int) {
	for idx, v := range grid {
		if v == 0 {
			continue
		}
		x, y := center(variant.Cell{Row: idx / engine.N, Col: idx % engine.N})
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" font-family="sans-serif" font-size="%d" text-anchor="middle" dominant-baseline="central">%d</text>`,
			x, y, cell*3/5, v)
	}
}

func drawKropki(b *strings.Builder, constraint engine.Constraint, center func(variant.Cell) (float64, float64), cell int, fill string) {
	if len(constraint.Cells) != 2 {
		return
	}
	ax, ay := center(constraint.Cells[0])
	bx, by := center(constraint.Cells[1])
	fmt.Fprintf(b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" stroke="black" stroke-width="1.5"/>`,
		(ax+bx)/2, (ay+by)/2, float64(cell)/8, fill)
}

func drawThermo(b *strings.Builder, constraint engine.Constraint, center func(variant.Cell) (float64, float64), cell int) {
	if len(constraint.Cells) == 0 {
		return
	}
	bulbX, bulbY := center(constraint.Cells[0])
	fmt.Fprintf(b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#c8c8c8"/>`, bulbX, bulbY, float64(cell)/3)
	writePolyline(b, constraint.Cells, center, float64(cell)/4, "#c8c8c8")
}

func drawArrow(b *strings.Builder, constraint engine.Constraint, center func(variant.Cell) (float64, float64), cell int) {
	if len(constraint.Cells) == 0 {
		return
	}
	headX, headY := center(constraint.Cells[0])
	fmt.Fprintf(b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#888" stroke-width="2"/>`,
		headX, headY, float64(cell)/3)
	writePolyline(b, constraint.Cells, center, 2, "#888")
}

func writePolyline(b *strings.Builder, cells []variant.Cell, center func(variant.Cell) (float64, float64), width float64, stroke string) {
	if len(cells) < 2 {
		return
	}
	points := make([]string, len(cells))
	for i, cell := range cells {
		x, y := center(cell)
		points[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}
	fmt.Fprintf(b, `<polyline points="%s" fill="none" stroke="%s" stroke-width="%.1f" stroke-linecap="round" stroke-linejoin="round"/>`,
		strings.Join(points, " "), stroke, width)
}

func drawCage(b *strings.Builder, constraint engine.Constraint, cell, margin int) {
	inset := cell / 10
	for _, c := range constraint.Cells {
		x := margin + c.Col*cell + inset
		y := margin + c.Row*cell + inset
		fmt.Fprintf(b, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="#666" stroke-width="1" stroke-dasharray="4 3"/>`,
			x, y, cell-2*inset, cell-2*inset)
	}
	if len(constraint.Cells) > 0 {
		top := topLeftCell(constraint.Cells)
		fmt.Fprintf(b, `<text x="%d" y="%d" font-family="sans-serif" font-size="%d" fill="#666">%d</text>`,
			margin+top.Col*cell+inset+2, margin+top.Row*cell+inset+cell/6+2, cell/5, constraint.Sum)
	}
}

func topLeftCell(cells []variant.Cell) variant.Cell {
	top := cells[0]
	for _, cell := range cells[1:] {
		if cell.Row < top.Row || (cell.Row == top.Row && cell.Col < top.Col) {
			top = cell
		}
	}
	return top
}
