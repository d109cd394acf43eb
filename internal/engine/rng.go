package engine

import (
	"math/bits"
	"time"
)

// Rng is a small deterministic generator (splitmix64). It remembers the
// seed it was created from so a puzzle's generation can be replayed
// exactly.
type Rng struct {
	seed  uint64
	state uint64
}

// NewRng returns a generator seeded from the wall clock.
func NewRng() *Rng {
	return NewRngFromSeed(uint64(time.Now().UnixNano()))
}

// NewRngFromSeed returns a generator with a fixed seed. The same seed and
// the same call sequence reproduce the same outputs.
func NewRngFromSeed(seed uint64) *Rng {
	return &Rng{seed: seed, state: seed}
}

// Seed reports the seed the generator was created with.
func (r *Rng) Seed() uint64 {
	return r.seed
}

func (r *Rng) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// IntN draws a uniform integer in [0, n). n must be positive.
func (r *Rng) IntN(n int) int {
	if n <= 0 {
		panic("engine: IntN requires a positive bound")
	}
	hi, _ := bits.Mul64(r.next(), uint64(n))
	return int(hi)
}
