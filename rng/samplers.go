package rng

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Uniform draws a single value from the open interval (0, 1), used by the
// Gillespie engine for its next-time and next-reaction draws.
func Uniform(s *Stream) float64 {
	r := rand.New(s)
	// rand.Float64 returns [0, 1); exclude 0 so -ln(u) stays finite.
	u := r.Float64()
	for u == 0 {
		u = r.Float64()
	}
	return u
}

// Poisson draws an event count from a Poisson distribution with mean lambda,
// used by the Tau-Split engines for the initial leap. lambda must be
// non-negative; lambda == 0 always returns 0 without consuming the stream.
//
// gonum's [distuv.Poisson] switches internally between inversion sampling
// for small lambda and a transformed-rejection method for large lambda, so
// no manual small/large split is needed here.
func Poisson(lambda float64, s *Stream) uint64 {
	if lambda <= 0 {
		return 0
	}
	d := distuv.Poisson{Lambda: lambda, Src: s}
	return uint64(math.Round(d.Rand()))
}

// Binomial draws a count from Binomial(n, p), used when splitting a
// previously-drawn event count across the two halves of a bisected
// interval and when conditionally resampling an event count constrained
// by a firing-count parent.
func Binomial(n uint64, p float64, s *Stream) uint64 {
	switch {
	case n == 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	d := distuv.Binomial{N: float64(n), P: p, Src: s}
	v := uint64(math.Round(d.Rand()))
	if v > n {
		v = n
	}
	return v
}
