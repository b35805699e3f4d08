// Package rng provides the deterministic random streams that drive every
// stochastic decision in lifegraph.
//
// Determinism doctrine: two streams created with the same seed MUST produce
// bit-for-bit identical output sequences across runs and platforms. There is
// no package-level default stream - every caller owns an explicit, seeded
// Stream, so reproducibility is a contract rather than an accident of
// initialization order.
package rng

import (
	"hash/fnv"
	"math/rand"
)

// Stream is a seeded, reproducible pseudo-random stream.
//
// Thread-safety: NOT thread-safe. Each concurrent unit of work (one worker,
// one entity) must own its own Stream, typically derived via Child.
type Stream struct {
	seed int64
	r    *rand.Rand
}

// New creates a Stream from a seed value.
func New(seed int64) *Stream {
	return &Stream{
		seed: seed,
		r:    rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed this Stream was created with.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Next returns the next value in [0, 1).
func (s *Stream) Next() float64 {
	return s.r.Float64()
}

// NextInt returns a value in [lo, hiExclusive). Panics if hiExclusive <= lo,
// matching math/rand's contract for an empty interval.
func (s *Stream) NextInt(lo, hiExclusive int) int {
	return lo + s.r.Intn(hiExclusive-lo)
}

// NextBool returns true with probability p.
func (s *Stream) NextBool(p float64) bool {
	return s.r.Float64() < p
}

// NextGaussian returns a normally distributed value with the given mean and
// standard deviation.
func (s *Stream) NextGaussian(mean, stddev float64) float64 {
	return mean + stddev*s.r.NormFloat64()
}

// NextRange returns a uniformly distributed value in [lo, hi].
func (s *Stream) NextRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.r.Float64()*(hi-lo)
}

// Choice returns a uniformly chosen element of list.
// Panics on an empty list, matching NextInt's empty-interval contract.
func Choice[T any](s *Stream, list []T) T {
	return list[s.r.Intn(len(list))]
}

// Shuffle permutes list in place.
func Shuffle[T any](s *Stream, list []T) {
	s.r.Shuffle(len(list), func(i, j int) {
		list[i], list[j] = list[j], list[i]
	})
}

// Child derives a fresh independent Stream. The child's seed is drawn from
// this stream, so the derivation itself is reproducible: the Nth child of a
// stream with seed K is always the same stream.
func (s *Stream) Child() *Stream {
	return New(s.r.Int63())
}

// ChildFor derives an independent Stream for a named subsystem without
// advancing this stream. The same (seed, name) pair always yields the same
// child, so per-subsystem derivation is order-independent.
func (s *Stream) ChildFor(name string) *Stream {
	return New(s.seed ^ fnv1a64(name))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
