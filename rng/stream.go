// Package rng provides the deterministic, seedable, splittable random stream
// used by every sampler in the simulator, together with the derived
// distributions (uniform, Poisson, binomial) the engines draw from.
package rng

import "math/rand"

// goldenGamma is Weyl sequence increment used by SplitMix64-style generators;
// it is the odd 64-bit integer nearest to 2^64/phi.
const goldenGamma = 0x9E3779B97F4A7C15

// Stream is a 64-bit pseudorandom stream. Two Streams constructed from the
// same seed, and split along the same sequence of labels, produce identical
// output: this is what makes a run reproducible given a seed and what lets
// the Tau-Split driver give independent-but-reproducible streams to the two
// halves of a split interval (see [Stream.Split]).
//
// Stream implements [math/rand.Source64] and so plugs directly into
// [math/rand.New] and gonum's distuv distributions.
type Stream struct {
	state uint64
}

// New returns a Stream seeded with seed.
func New(seed uint64) *Stream {
	return &Stream{state: seed}
}

// Uint64 returns the next 64-bit value in the stream.
func (s *Stream) Uint64() uint64 {
	s.state += goldenGamma
	return mix64(s.state)
}

// Int63 returns the next value in the stream, masked to 63 bits, satisfying
// [math/rand.Source].
func (s *Stream) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

// Seed reinitializes the stream's state. It exists to satisfy
// [math/rand.Source]; Streams are normally constructed with [New] or
// [Stream.Split] rather than reseeded in place.
func (s *Stream) Seed(seed int64) {
	s.state = uint64(seed)
}

// Split derives an independent child stream from s, labeled by name. Split
// does not advance s's own output sequence: deriving a child is O(1) and
// leaves the parent free to keep producing values or to be split again under
// a different label.
//
// Two Splits of the same parent state under the same label always produce
// the same child, which is what gives the Tau-Split recursion driver
// reproducible left/right subinterval streams.
func (s *Stream) Split(label string) *Stream {
	return &Stream{state: mix64(s.state ^ fnv1a64(label) ^ goldenGamma)}
}

// mix64 is the Stafford variant 13 finalizer: a 64-bit avalanching mix with
// no known short cycles, used both to generate output and to combine a
// parent's state with a split label.
func mix64(z uint64) uint64 {
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}

// fnv1a64 computes the 64-bit FNV-1a hash of s, used to fold a split label
// into a stream's state.
func fnv1a64(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}

var _ rand.Source64 = (*Stream)(nil)
