package variant

import (
	"encoding/json"
	"fmt"
)

// wireCell is the canonical [row, col] encoding of a cell. Decoding is
// strict: exactly two non-negative integers, nothing silently coerced.
type wireCell [2]int

func (w *wireCell) UnmarshalJSON(data []byte) error {
	var parts []json.Number
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: cell must be a [row, col] array", ErrInvalidConstraint)
	}
	if len(parts) != 2 {
		return fmt.Errorf("%w: cell must have two elements", ErrInvalidConstraint)
	}
	for i, part := range parts {
		value, err := part.Int64()
		if err != nil || value < 0 {
			return fmt.Errorf("%w: cell coordinates must be non-negative integers", ErrInvalidConstraint)
		}
		w[i] = int(value)
	}
	return nil
}

func (w wireCell) toCell() Cell {
	return Cell{Row: w[0], Col: w[1]}
}

func fromCell(c Cell) wireCell {
	return wireCell{c.Row, c.Col}
}

func toCells(cells []wireCell) []Cell {
	out := make([]Cell, len(cells))
	for i, cell := range cells {
		out[i] = cell.toCell()
	}
	return out
}

func fromCells(cells []Cell) []wireCell {
	out := make([]wireCell, len(cells))
	for i, cell := range cells {
		out[i] = fromCell(cell)
	}
	return out
}

// wireConstraint covers the union of per-kind field layouts.
type wireConstraint struct {
	Type      string     `json:"type"`
	A         *wireCell  `json:"a,omitempty"`
	B         *wireCell  `json:"b,omitempty"`
	Path      []wireCell `json:"path,omitempty"`
	Cells     []wireCell `json:"cells,omitempty"`
	Sum       *int       `json:"sum,omitempty"`
	NoRepeats *bool      `json:"no_repeats,omitempty"`
}

// Parse decodes a constraint list from its wire form. The input may be a
// bare JSON array or an object carrying a "constraints" array.
func Parse(data []byte) ([]Spec, error) {
	elements, err := normalizeInput(data)
	if err != nil {
		return nil, err
	}
	specs := make([]Spec, 0, len(elements))
	for _, element := range elements {
		spec, err := parseOne(element)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func normalizeInput(data []byte) ([]json.RawMessage, error) {
	var direct []json.RawMessage
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}
	var wrapped struct {
		Constraints []json.RawMessage `json:"constraints"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Constraints != nil {
		return wrapped.Constraints, nil
	}
	return nil, fmt.Errorf("%w: constraints must be a JSON array", ErrInvalidConstraint)
}

func parseOne(raw json.RawMessage) (Spec, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}

	var w wireConstraint
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConstraint, kind, err)
	}

	var spec Spec
	switch Kind(kind) {
	case KindKropkiWhite, KindKropkiBlack:
		if w.A == nil {
			return nil, fmt.Errorf("%w: %s missing a", ErrInvalidConstraint, kind)
		}
		if w.B == nil {
			return nil, fmt.Errorf("%w: %s missing b", ErrInvalidConstraint, kind)
		}
		if Kind(kind) == KindKropkiWhite {
			spec = KropkiWhite{A: w.A.toCell(), B: w.B.toCell()}
		} else {
			spec = KropkiBlack{A: w.A.toCell(), B: w.B.toCell()}
		}
	case KindThermo:
		if w.Path == nil {
			return nil, fmt.Errorf("%w: thermo missing path", ErrInvalidConstraint)
		}
		spec = Thermo{Path: toCells(w.Path)}
	case KindArrow:
		if w.Path == nil {
			return nil, fmt.Errorf("%w: arrow missing path", ErrInvalidConstraint)
		}
		spec = Arrow{Path: toCells(w.Path)}
	case KindKiller:
		if w.Cells == nil {
			return nil, fmt.Errorf("%w: killer missing cells", ErrInvalidConstraint)
		}
		if w.Sum == nil {
			return nil, fmt.Errorf("%w: killer missing sum", ErrInvalidConstraint)
		}
		noRepeats := true
		if w.NoRepeats != nil {
			noRepeats = *w.NoRepeats
		}
		spec = Killer{Cells: toCells(w.Cells), Sum: *w.Sum, NoRepeats: noRepeats}
	case KindKing:
		spec = King{}
	case KindKnight:
		spec = Knight{}
	case KindQueen:
		spec = Queen{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Wire re-encodes specs into the canonical JSON array. It is the exact
// structural inverse of Parse: Parse(Wire(v)) yields v again.
func Wire(specs []Spec) ([]byte, error) {
	encoded := make([]wireConstraint, 0, len(specs))
	for _, spec := range specs {
		encoded = append(encoded, encodeOne(spec))
	}
	return json.Marshal(encoded)
}

func encodeOne(spec Spec) wireConstraint {
	switch v := spec.(type) {
	case KropkiWhite:
		a, b := fromCell(v.A), fromCell(v.B)
		return wireConstraint{Type: string(KindKropkiWhite), A: &a, B: &b}
	case KropkiBlack:
		a, b := fromCell(v.A), fromCell(v.B)
		return wireConstraint{Type: string(KindKropkiBlack), A: &a, B: &b}
	case Thermo:
		return wireConstraint{Type: string(KindThermo), Path: fromCells(v.Path)}
	case Arrow:
		return wireConstraint{Type: string(KindArrow), Path: fromCells(v.Path)}
	case Killer:
		sum := v.Sum
		noRepeats := v.NoRepeats
		return wireConstraint{Type: string(KindKiller), Cells: fromCells(v.Cells), Sum: &sum, NoRepeats: &noRepeats}
	case King:
		return wireConstraint{Type: string(KindKing)}
	case Knight:
		return wireConstraint{Type: string(KindKnight)}
	case Queen:
		return wireConstraint{Type: string(KindQueen)}
	default:
		// The union is closed; reaching this means a new kind was added
		// without updating the codec.
		panic(fmt.Sprintf("variant: unhandled spec kind %q", spec.Kind()))
	}
}
