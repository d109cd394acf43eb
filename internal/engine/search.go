package engine

// bestCell picks the empty cell with the fewest candidate values. The
// second return is the candidate list; empty reports a dead end. The third
// return is false when the grid is already complete.
func (e *Engine) bestCell(g *Grid) (int, []uint8, bool) {
	bestIdx := -1
	var bestCandidates []uint8
	for idx := 0; idx < NN; idx++ {
		if g[idx] != 0 {
			continue
		}
		candidates := make([]uint8, 0, N)
		for v := uint8(1); v <= N; v++ {
			if e.allows(g, idx, v) {
				candidates = append(candidates, v)
			}
		}
		if bestIdx == -1 || len(candidates) < len(bestCandidates) {
			bestIdx = idx
			bestCandidates = candidates
			if len(bestCandidates) == 0 {
				break
			}
		}
	}
	if bestIdx == -1 {
		return 0, nil, false
	}
	return bestIdx, bestCandidates, true
}

func shuffleValues(rng *Rng, values []uint8) {
	for i := len(values) - 1; i >= 1; i-- {
		j := rng.IntN(i + 1)
		values[i], values[j] = values[j], values[i]
	}
}

// CountSolutions counts completions of the loaded givens, stopping at
// limit. Value ordering is randomized through the supplied generator, so
// the call advances its state.
func (e *Engine) CountSolutions(rng *Rng, limit int) int {
	grid := e.givens
	count := 0
	e.count(&grid, rng, limit, &count)
	return count
}

func (e *Engine) count(g *Grid, rng *Rng, limit int, found *int) {
	if *found >= limit {
		return
	}
	idx, candidates, hasEmpty := e.bestCell(g)
	if !hasEmpty {
		*found++
		return
	}
	shuffleValues(rng, candidates)
	for _, v := range candidates {
		g[idx] = v
		e.count(g, rng, limit, found)
		g[idx] = 0
		if *found >= limit {
			return
		}
	}
}

// HasUniqueSolution reports whether the loaded givens admit exactly one
// completion under the active rule set.
func (e *Engine) HasUniqueSolution(rng *Rng) bool {
	return e.CountSolutions(rng, 2) == 1
}

// FullSolution produces one complete grid consistent with the loaded
// givens (usually none) and every applied rule. It fails when the
// constraint set is contradictory.
func (e *Engine) FullSolution(rng *Rng) (Grid, error) {
	grid := e.givens
	if !e.solve(&grid, rng) {
		return Grid{}, ErrUnsolvable
	}
	return grid, nil
}

func (e *Engine) solve(g *Grid, rng *Rng) bool {
	idx, candidates, hasEmpty := e.bestCell(g)
	if !hasEmpty {
		return true
	}
	shuffleValues(rng, candidates)
	for _, v := range candidates {
		g[idx] = v
		if e.solve(g, rng) {
			return true
		}
		g[idx] = 0
	}
	return false
}
