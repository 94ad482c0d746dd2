// Package engine defines the Engine and Sampler capability interfaces
// shared by the Gillespie, Tau-Split, and Tau-Split6 simulation engines, and
// the Harness that drives any Engine to emit samples at evenly-spaced time
// points.
package engine

import "context"

// Engine is the capability set every simulation algorithm implements:
// advance simulated time, report the current state, and report how many
// reaction firings have occurred so far. Exactly one Engine runs per
// process, so static or dynamic dispatch both suffice; this package uses
// the interface for dynamic dispatch since the algorithm is chosen at
// startup from a CLI flag.
type Engine interface {
	// Advance simulates forward until simulated time reaches until, or
	// until the horizon is otherwise exhausted (e.g. all propensities are
	// zero). Advance must never advance time past until.
	Advance(ctx context.Context, until float64) error
	// State returns the engine's current species counts. The returned
	// slice is owned by the caller; engines must not alias their internal
	// state vector across calls.
	State() []uint64
	// Time returns the current simulated time.
	Time() float64
	// ReactionCount returns the total number of reaction firings applied
	// so far.
	ReactionCount() uint64
}

// Sampler receives one observation per emitted sample: the simulated time,
// the state vector at that time, and the cumulative reaction count.
type Sampler interface {
	Sample(t float64, x []uint64, reactions uint64)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(t float64, x []uint64, reactions uint64)

// Sample calls f.
func (f SamplerFunc) Sample(t float64, x []uint64, reactions uint64) {
	f(t, x, reactions)
}

// Harness drives an Engine to emit samples at K evenly spaced target times
// T*i/K for i=1..K, after first emitting the initial state at time 0.
type Harness struct {
	horizon float64
	samples int
}

// NewHarness returns a Harness for the given horizon and sample count.
// samples defaults to 1 (final state only) if non-positive.
func NewHarness(horizon float64, samples int) *Harness {
	if samples < 1 {
		samples = 1
	}
	return &Harness{horizon: horizon, samples: samples}
}

// Run drives eng forward, invoking sampler.Sample once for the initial
// state and once at each target time crossed, then returns. Engines read
// the next target time through the until argument of successive Advance
// calls, so the initial tau for any step is automatically
// min(tau_ideal, t_next-t) — the harness never needs to inspect an
// engine's internal step size.
func (h *Harness) Run(ctx context.Context, eng Engine, sampler Sampler) error {
	emit := func() {
		if sampler != nil {
			sampler.Sample(eng.Time(), eng.State(), eng.ReactionCount())
		}
	}

	emit() // initial state, always emitted, even at horizon 0

	if h.horizon <= 0 {
		return nil
	}

	for i := 1; i <= h.samples; i++ {
		target := h.horizon * float64(i) / float64(h.samples)
		if err := eng.Advance(ctx, target); err != nil {
			return err
		}
		emit()
	}
	return nil
}
