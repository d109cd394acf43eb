package render

import (
	"strings"
	"testing"

	"github.com/makudoku/backend/internal/engine"
	"github.com/makudoku/backend/internal/variant"
)

func TestSVGRendersGridAndDigits(t *testing.T) {
	puzzle := "1" + strings.Repeat(".", 80)
	svg, err := SVG(puzzle, engine.New().Constraints(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("output is not an svg document")
	}
	if !strings.Contains(svg, ">1</text>") {
		t.Fatalf("digit missing from output")
	}
}

func TestSVGRendersVariantOverlays(t *testing.T) {
	specs := []variant.Spec{
		variant.KropkiWhite{A: variant.Cell{Row: 0, Col: 0}, B: variant.Cell{Row: 0, Col: 1}},
		variant.Thermo{Path: []variant.Cell{{Row: 2, Col: 2}, {Row: 2, Col: 3}, {Row: 2, Col: 4}}},
		variant.Killer{Cells: []variant.Cell{{Row: 5, Col: 5}, {Row: 5, Col: 6}}, Sum: 9, NoRepeats: true},
		variant.King{},
	}
	e, err := engine.ForSpecs(specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svg, err := SVG(strings.Repeat(".", 81), e.Constraints(), Options{CellSize: 40, Margin: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(svg, "<circle") {
		t.Fatalf("kropki/thermo circles missing")
	}
	if !strings.Contains(svg, "<polyline") {
		t.Fatalf("thermo polyline missing")
	}
	if !strings.Contains(svg, "stroke-dasharray") {
		t.Fatalf("killer cage dashes missing")
	}
	if !strings.Contains(svg, "anti-king") {
		t.Fatalf("global rule label missing")
	}
}

func TestSVGRejectsMalformedPuzzle(t *testing.T) {
	if _, err := SVG("short", nil, Options{}); err == nil {
		t.Fatalf("expected error for malformed puzzle text")
	}
}
