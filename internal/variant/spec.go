// Package variant holds the canonical representation of placement
// constraints layered on top of the base sudoku rules, together with the
// lossless JSON codec used for persistence and transport.
package variant

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GridSize is the side length of the grid all cell coordinates refer to.
const GridSize = 9

var (
	// ErrInvalidConstraint indicates a constraint element that does not match
	// any known shape.
	ErrInvalidConstraint = errors.New("variant: invalid constraint")
	// ErrUnknownKind indicates an unrecognized constraint type discriminator.
	ErrUnknownKind = errors.New("variant: unknown constraint type")
)

// Cell addresses a single grid cell by zero-based row and column.
type Cell struct {
	Row int
	Col int
}

// InBounds reports whether the cell lies inside the grid.
func (c Cell) InBounds() bool {
	return c.Row >= 0 && c.Row < GridSize && c.Col >= 0 && c.Col < GridSize
}

// Index returns the flat 0..80 position of the cell.
func (c Cell) Index() int {
	return c.Row*GridSize + c.Col
}

// Kind discriminates the supported constraint variants.
type Kind string

const (
	KindKropkiWhite Kind = "kropki_white"
	KindKropkiBlack Kind = "kropki_black"
	KindThermo      Kind = "thermo"
	KindArrow       Kind = "arrow"
	KindKiller      Kind = "killer"
	KindKing        Kind = "king"
	KindKnight      Kind = "knight"
	KindQueen       Kind = "queen"
)

// Spec is one concrete placement constraint. The set of implementations is
// closed: decoding rejects any discriminator outside the eight known kinds.
type Spec interface {
	Kind() Kind
	validate() error
}

// KropkiWhite marks two adjacent cells whose values differ by exactly one.
type KropkiWhite struct {
	A Cell
	B Cell
}

// KropkiBlack marks two adjacent cells whose values are in a 1:2 ratio.
type KropkiBlack struct {
	A Cell
	B Cell
}

// Thermo is a strictly increasing path starting at the bulb.
type Thermo struct {
	Path []Cell
}

// Arrow requires the head cell to equal the sum of the shaft cells.
type Arrow struct {
	Path []Cell
}

// Killer is a cage of cells with a target sum and an optional no-repeat rule.
type Killer struct {
	Cells     []Cell
	Sum       int
	NoRepeats bool
}

// King forbids equal digits a king's move apart.
type King struct{}

// Knight forbids equal digits a knight's move apart.
type Knight struct{}

// Queen forbids equal digits sharing a diagonal line of sight.
type Queen struct{}

func (KropkiWhite) Kind() Kind { return KindKropkiWhite }
func (KropkiBlack) Kind() Kind { return KindKropkiBlack }
func (Thermo) Kind() Kind      { return KindThermo }
func (Arrow) Kind() Kind       { return KindArrow }
func (Killer) Kind() Kind      { return KindKiller }
func (King) Kind() Kind        { return KindKing }
func (Knight) Kind() Kind      { return KindKnight }
func (Queen) Kind() Kind       { return KindQueen }

func validateCell(kind Kind, label string, cell Cell) error {
	if !cell.InBounds() {
		return fmt.Errorf("%w: %s cell %s [%d,%d] out of range", ErrInvalidConstraint, kind, label, cell.Row, cell.Col)
	}
	return nil
}

func validatePath(kind Kind, label string, path []Cell) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: %s %s must have at least one cell", ErrInvalidConstraint, kind, label)
	}
	for _, cell := range path {
		if err := validateCell(kind, label, cell); err != nil {
			return err
		}
	}
	return nil
}

func (v KropkiWhite) validate() error {
	if err := validateCell(KindKropkiWhite, "a", v.A); err != nil {
		return err
	}
	return validateCell(KindKropkiWhite, "b", v.B)
}

func (v KropkiBlack) validate() error {
	if err := validateCell(KindKropkiBlack, "a", v.A); err != nil {
		return err
	}
	return validateCell(KindKropkiBlack, "b", v.B)
}

func (v Thermo) validate() error {
	return validatePath(KindThermo, "path", v.Path)
}

func (v Arrow) validate() error {
	return validatePath(KindArrow, "path", v.Path)
}

func (v Killer) validate() error {
	if err := validatePath(KindKiller, "cells", v.Cells); err != nil {
		return err
	}
	if v.Sum < 0 {
		return fmt.Errorf("%w: killer sum must be non-negative", ErrInvalidConstraint)
	}
	return nil
}

func (King) validate() error   { return nil }
func (Knight) validate() error { return nil }
func (Queen) validate() error  { return nil }

// KindTags returns the distinct kind discriminators of the given specs in
// order of first appearance.
func KindTags(specs []Spec) []string {
	seen := make(map[Kind]struct{}, len(specs))
	tags := make([]string, 0, len(specs))
	for _, spec := range specs {
		kind := spec.Kind()
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		tags = append(tags, string(kind))
	}
	return tags
}

// DedupeTags collapses duplicate tag strings, preserving first occurrence.
func DedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// kindOf probes only the discriminator; kept close to the Spec definitions
// so the codec in wire.go stays an exhaustive mirror of the types above.
func kindOf(raw json.RawMessage) (string, error) {
	var probe struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
	}
	if probe.Type == nil {
		return "", fmt.Errorf("%w: constraint missing type", ErrInvalidConstraint)
	}
	return *probe.Type, nil
}
