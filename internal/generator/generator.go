// Package generator produces minimal-clue puzzles from full solutions by
// randomized digging, keeping the unique-solution invariant at every step.
package generator

import (
	"errors"
	"fmt"

	"github.com/makudoku/backend/internal/engine"
	"github.com/makudoku/backend/internal/variant"
)

var (
	// ErrClueTarget indicates a clue target outside [0, 81).
	ErrClueTarget = errors.New("generator: clue target out of range")
	// ErrSolverBuild indicates the variant set rejects even the full
	// starting solution.
	ErrSolverBuild = errors.New("generator: variant set rejects the full solution")
)

// shufflePositions applies a Fisher-Yates pass over the slice, drawing
// every swap index from the supplied generator.
func shufflePositions(rng *engine.Rng, positions []int) {
	for i := len(positions) - 1; i >= 1; i-- {
		j := rng.IntN(i + 1)
		positions[i], positions[j] = positions[j], positions[i]
	}
}

// FromSolution digs clues out of a complete solution until the clue count
// reaches targetClues or no further cell can be removed without losing
// uniqueness. The trial order is randomized, so different seeds yield
// different puzzles, and the result may legitimately keep more than
// targetClues clues. The result is not guaranteed irreducible: a clue
// rejected early in the trial order may have become removable later.
func FromSolution(solution engine.Grid, targetClues int, specs []variant.Spec, rng *engine.Rng) (string, error) {
	if targetClues < 0 || targetClues >= engine.NN {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrClueTarget, targetClues, engine.NN)
	}

	working := solution
	if _, err := engine.BuildWithGivens(working.Text(), specs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSolverBuild, err)
	}

	positions := make([]int, engine.NN)
	for i := range positions {
		positions[i] = i
	}
	shufflePositions(rng, positions)

	for _, pos := range positions {
		saved := working[pos]
		working[pos] = 0
		// A build failure on a trial keeps the clue; only the full grid
		// above is allowed to abort.
		solver, err := engine.BuildWithGivens(working.Text(), specs)
		if err != nil || !solver.HasUniqueSolution(rng) {
			working[pos] = saved
		}
		if working.ClueCount() <= targetClues {
			break
		}
	}

	return working.Text(), nil
}
