// Package tausplit implements the Tau-Splitting recursion driver: a
// tau-leap that opportunistically commits groups of reactions whose
// sampled event counts are provably stable within configured error
// bounds, recursively bisecting the subinterval only where the bounds
// fail.
//
// The recursion is expressed as ordinary Go function recursion rather than
// a hand-rolled stack machine: recursion depth is bounded by
// ceil(log2(tau_root/tau_min)), which is small enough (tens of frames, not
// thousands) that Go's growable goroutine stack already gives bounded
// stack usage without extra bookkeeping. The *data* that must be
// explicit — which reactions are parked at which depth — is
// [recursion.Data], an explicit index-addressed stack.
package tausplit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ormorni/tausplit/engine"
	"github.com/ormorni/tausplit/internal/reactiondata"
	"github.com/ormorni/tausplit/internal/recursion"
	"github.com/ormorni/tausplit/network"
	"github.com/ormorni/tausplit/rng"
)

// ErrSplitExhausted is returned when a subinterval's bounds still fail the
// stability test after bisecting down to Config.MinTau, a fatal
// error-budget exhaustion.
var ErrSplitExhausted = errors.New("tausplit: stability bounds did not converge by the minimum interval")

// Config holds the tuning parameters for the recursion driver.
type Config struct {
	// LeapFactor sets the ideal root tau for each leap: tau_ideal =
	// LeapFactor / a0, i.e. the leap targets roughly LeapFactor expected
	// reaction firings before re-evaluating.
	LeapFactor float64
	// MinTau is the smallest subinterval tried before falling back to
	// single-reaction exact firing.
	MinTau float64
	// Stability holds the stability-test tolerances.
	Stability reactiondata.Config
	// Linear selects the tau-split6 refinement: initial event counts drawn
	// against the time-integrated linear propensity rather than a constant
	// endpoint, and stability judged by StabilityTestLinear. The tausplit6
	// package sets this.
	Linear bool
}

// DefaultConfig returns reasonable defaults for a CRN of moderate reaction
// counts and rate constants of order 1.
func DefaultConfig() Config {
	return Config{
		LeapFactor: 20,
		MinTau:     1e-9,
		Stability:  reactiondata.DefaultConfig(),
	}
}

// Engine is the Tau-Split simulation engine.
type Engine struct {
	net    *network.Network
	x      []uint64
	t      float64
	stream *rng.Stream
	fired  uint64
	cfg    Config
	rec    *recursion.Data
	step   uint64 // leap counter, folded into split labels for stream derivation
}

// New returns a Tau-Split Engine over net, starting at state x0 (copied),
// drawing from stream, configured by cfg.
func New(net *network.Network, x0 []uint64, stream *rng.Stream, cfg Config) *Engine {
	x := append([]uint64(nil), x0...)
	return &Engine{
		net:    net,
		x:      x,
		stream: stream,
		cfg:    cfg,
	}
}

// State returns a copy of the engine's current species counts.
func (e *Engine) State() []uint64 { return append([]uint64(nil), e.x...) }

// Time returns the current simulated time.
func (e *Engine) Time() float64 { return e.t }

// ReactionCount returns the number of reaction firings applied so far.
func (e *Engine) ReactionCount() uint64 { return e.fired }

// Advance drives the engine forward to simulated time until, choosing a
// leap size at each step and either simulating it via the recursive
// subdivision or, below Config.MinTau, falling back to a single exact SSA
// step.
func (e *Engine) Advance(ctx context.Context, until float64) error {
	for e.t < until {
		if err := ctx.Err(); err != nil {
			return err
		}

		a0, err := e.totalPropensity()
		if err != nil {
			return err
		}
		if a0 == 0 {
			e.t = until
			return nil
		}

		remaining := until - e.t
		tau := e.cfg.LeapFactor / a0
		if tau > remaining {
			tau = remaining
		}

		if tau < e.cfg.MinTau {
			if err := e.exactStep(remaining); err != nil {
				return err
			}
			continue
		}

		e.step++
		e.rec = recursion.New(e.net.NumReactions(), e.net.NumSpecies())
		active := make([]int, e.net.NumReactions())
		for i := range active {
			active[i] = i
		}
		leapStream := e.stream.Split(fmt.Sprintf("leap-%d", e.step))

		var counts map[int]uint64
		if e.cfg.Linear {
			counts, err = e.linearLeapCounts(active, tau, leapStream)
		} else {
			counts, err = e.constantLeapCounts(active, tau, leapStream)
		}
		if err != nil {
			return err
		}

		if err := e.simulate(ctx, active, counts, tau, leapStream); err != nil {
			return err
		}
		e.t += tau
	}
	return nil
}

// exactStep performs one exact-SSA firing (or a quiescent jump to the
// horizon), used once the ideal leap falls below Config.MinTau.
func (e *Engine) exactStep(remaining float64) error {
	a0, err := e.totalPropensity()
	if err != nil {
		return err
	}
	if a0 == 0 {
		e.t += remaining
		return nil
	}

	dt := -math.Log(rng.Uniform(e.stream)) / a0
	if dt >= remaining {
		e.t += remaining
		return nil
	}
	e.t += dt

	i, err := e.selectReaction(a0)
	if err != nil {
		return err
	}
	if err := e.net.Apply(i, e.x); err != nil {
		return err
	}
	e.fired++
	return nil
}

func (e *Engine) totalPropensity() (float64, error) {
	var a0 float64
	for i := 0; i < e.net.NumReactions(); i++ {
		a, err := e.net.Propensity(i, e.x)
		if err != nil {
			return 0, err
		}
		a0 += a
	}
	return a0, nil
}

func (e *Engine) selectReaction(a0 float64) (int, error) {
	r := rng.Uniform(e.stream) * a0
	var cum float64
	for i := 0; i < e.net.NumReactions(); i++ {
		a, err := e.net.Propensity(i, e.x)
		if err != nil {
			return 0, err
		}
		cum += a
		if r < cum {
			return i, nil
		}
	}
	return e.net.NumReactions() - 1, nil
}

// constantLeapCounts draws the base Tau-Split engine's initial event
// counts: spec step 1's literal "using current X as both X_lo and X_hi,
// compute a_i(X) and draw N_i ~ Poisson(a_i . tau)".
func (e *Engine) constantLeapCounts(active []int, tau float64, stream *rng.Stream) (map[int]uint64, error) {
	counts := make(map[int]uint64, len(active))
	for _, i := range active {
		a, err := e.net.Propensity(i, e.x)
		if err != nil {
			return nil, err
		}
		counts[i] = rng.Poisson(a*tau, stream.Split(fmt.Sprintf("init-%d", i)))
	}
	return counts, nil
}

// linearLeapCounts draws tau-split6's initial event counts against the
// time-integrated linear propensity a(t) = a0 + slope*t over [0, tau],
// rather than the constant endpoint a0 that constantLeapCounts uses.
// slope is a signed mean-field estimate of each reaction's propensity
// derivative (speciesDrift, propensitySlope), not a bound-width measure:
// a bound only gives a magnitude, and a degrading reactant's propensity
// genuinely falls over the subinterval, so the sign matters to the
// integral. The real counts are drawn from Poisson(integral of a(t) over
// [0, tau]) = Poisson(a0*tau + slope*tau^2/2), which is spec §4.4's
// reduction of the dominant error term from O(a*tau^2) to O(a*tau^3).
func (e *Engine) linearLeapCounts(active []int, tau float64, stream *rng.Stream) (map[int]uint64, error) {
	drift, err := e.speciesDrift(active)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]uint64, len(active))
	for _, i := range active {
		a0, err := e.net.Propensity(i, e.x)
		if err != nil {
			return nil, err
		}
		slope := e.propensitySlope(i, a0, drift)
		mean := a0*tau + 0.5*slope*tau*tau
		if mean < 0 {
			mean = 0
		}
		counts[i] = rng.Poisson(mean, stream.Split(fmt.Sprintf("init-%d", i)))
	}
	return counts, nil
}

// speciesDrift estimates dX_s/dt at the current state, for every species
// s, as the sum over active reactions of that reaction's net change to s
// weighted by its current propensity — the deterministic mean-field rate
// of change the reaction network would follow if propensities were held
// fixed over an infinitesimal interval.
func (e *Engine) speciesDrift(active []int) ([]float64, error) {
	drift := make([]float64, e.net.NumSpecies())
	for _, i := range active {
		a, err := e.net.Propensity(i, e.x)
		if err != nil {
			return nil, err
		}
		if a == 0 {
			continue
		}
		for s, delta := range e.net.NetChange(i) {
			if delta != 0 {
				drift[s] += float64(delta) * a
			}
		}
	}
	return drift, nil
}

// propensitySlope estimates da_i/dt for reaction i from the species
// drift, via the chain rule over i's reactants: da_i/dX_s is approximated
// as a_i * c_s / X_s (the log-derivative of the falling-factorial
// reactant term, exact for a coefficient-1 reactant and a standard local
// approximation otherwise), so da_i/dt = sum over reactants of
// (a_i*c_s/X_s) * dX_s/dt.
func (e *Engine) propensitySlope(i int, a0 float64, drift []float64) float64 {
	if a0 == 0 {
		return 0
	}
	var slope float64
	for _, term := range e.net.Reaction(i).Reactants {
		x := e.x[term.Species]
		if x == 0 {
			continue
		}
		slope += a0 * float64(term.Coeff) / float64(x) * drift[term.Species]
	}
	return slope
}

// expandBounds bounds every species' count over the subinterval [0, tau]
// given active reactions' sampled counts, assuming, worst-case, that all
// consumption happens before any production and vice versa.
func (e *Engine) expandBounds(active []int, counts map[int]uint64) (xLo, xHi []uint64) {
	xLo = append([]uint64(nil), e.x...)
	xHi = append([]uint64(nil), e.x...)
	for _, r := range active {
		n := counts[r]
		if n == 0 {
			continue
		}
		for s, delta := range e.net.NetChange(r) {
			switch {
			case delta < 0:
				consumed := uint64(-delta) * n
				if consumed > xLo[s] {
					xLo[s] = 0
				} else {
					xLo[s] -= consumed
				}
			case delta > 0:
				xHi[s] += uint64(delta) * n
			}
		}
	}
	return xLo, xHi
}

// simulate runs one recursion node: the subinterval [tStart-implicit,
// +tau] over the given active reactions, each already holding a sampled
// event count in counts.
func (e *Engine) simulate(ctx context.Context, active []int, counts map[int]uint64, tau float64, stream *rng.Stream) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Bound expansion: xLo/xHi bound every species over the subinterval
	// by assuming, worst-case, that all consumption happens before any
	// production and vice versa.
	xLo, xHi := e.expandBounds(active, counts)

	data := make(map[int]reactiondata.Data, len(active))
	stable := true
	for _, r := range active {
		aLo, err := e.net.Propensity(r, xLo)
		if err != nil {
			return err
		}
		aHi, err := e.net.Propensity(r, xHi)
		if err != nil {
			return err
		}
		if aHi < aLo {
			aLo, aHi = aHi, aLo
		}

		d := reactiondata.Data{XLo: xLo, XHi: xHi, ALo: aLo, AHi: aHi, N: counts[r]}
		var rStable bool
		if e.cfg.Linear {
			d.Slope = (aHi - aLo) / tau
			rStable = reactiondata.StabilityTestLinear(aLo, aHi, d.Slope, tau, e.cfg.Stability)
		} else {
			rStable = reactiondata.StabilityTest(aLo, aHi, tau, e.cfg.Stability)
		}
		d.Stable = rStable
		data[r] = d
		if !rStable {
			stable = false
		}
	}

	if stable {
		if err := e.commitCombined(active, counts); err != nil {
			if !errors.Is(err, network.ErrNegativeCount) {
				return err
			}
			// An over-consuming leap triggers an immediate split rather
			// than surfacing as fatal here: every active reaction's
			// bounds individually passed the stability test, but the
			// combined delta still underflowed, so none of them can be
			// parked at their current (unreduced) count. Force the
			// whole active set back into the split below instead, so
			// their counts get binomial-halved like any other unstable
			// reaction.
			stable = false
			for _, r := range active {
				d := data[r]
				d.Stable = false
				data[r] = d
			}
		} else {
			return e.reactivateAffected(active)
		}
	}

	// Split: halve the subinterval and park every reaction whose bounds
	// held.
	halfTau := tau / 2
	if halfTau < e.cfg.MinTau {
		return ErrSplitExhausted
	}

	e.rec.PushStage()

	var remaining []int
	leftCounts := make(map[int]uint64, len(active))
	rightCounts := make(map[int]uint64, len(active))
	for _, r := range active {
		d := data[r]
		if d.Stable {
			e.rec.Deactivate(r, d, reactantSpecies(e.net, r))
			continue
		}
		remaining = append(remaining, r)
		left := rng.Binomial(d.N, 0.5, stream.Split(fmt.Sprintf("split-%d", r)))
		leftCounts[r] = left
		rightCounts[r] = d.N - left
	}

	// Backward reactivation: entering a more tightly bounded stage may
	// invalidate a parked reaction's bounds if it depends on a species
	// any still-unstable reaction consumes or produces.
	for _, r := range remaining {
		for _, s := range touchedSpecies(e.net, r) {
			if err := e.commitReactivated(e.rec.SplitComponent(s)); err != nil {
				return err
			}
		}
	}

	leftStream := stream.Split("left")
	rightStream := stream.Split("right")

	if len(remaining) > 0 {
		if err := e.simulate(ctx, remaining, leftCounts, halfTau, leftStream); err != nil {
			return err
		}
		if err := e.simulate(ctx, remaining, rightCounts, halfTau, rightStream); err != nil {
			return err
		}
	}

	// Pop the stage, committing the reactions that stayed stable (and
	// thus parked) throughout both halves.
	popped := e.rec.PopStage()
	for _, p := range popped {
		if err := e.commitOne(p.Reaction, p.Data.N); err != nil {
			return err
		}
	}
	return nil
}

// commitCombined applies every active reaction's event count as one
// combined, atomic state update (the combined delta is the sum over
// reactions of N_i * net_stoichiometry_i): the combined delta is checked
// for feasibility before any of it is applied, so a would-be negative
// count leaves x untouched.
func (e *Engine) commitCombined(active []int, counts map[int]uint64) error {
	delta := make([]int64, e.net.NumSpecies())
	for _, r := range active {
		n := counts[r]
		if n == 0 {
			continue
		}
		for s, d := range e.net.NetChange(r) {
			delta[s] += d * int64(n)
		}
	}

	for s, d := range delta {
		if d < 0 && uint64(-d) > e.x[s] {
			return fmt.Errorf("%w: species %d", network.ErrNegativeCount, s)
		}
	}

	var fired uint64
	for _, r := range active {
		fired += counts[r]
	}
	for s, d := range delta {
		if d < 0 {
			e.x[s] -= uint64(-d)
		} else if d > 0 {
			e.x[s] += uint64(d)
		}
	}
	e.fired += fired
	return nil
}

// commitOne applies a single reaction's retained event count, used when
// popping a stage or folding in a reactivated reaction.
func (e *Engine) commitOne(r int, n uint64) error {
	if n == 0 {
		return nil
	}
	if err := e.net.ApplyTimes(r, e.x, n); err != nil {
		return err
	}
	e.fired += n
	return e.reactivateAffected([]int{r})
}

// commitReactivated commits every reaction returned by a reactivation
// call: a reaction woken by forward/backward reactivation has already
// held its count stable since it was parked, so its first reactivation is
// also its closing commit.
func (e *Engine) commitReactivated(reactivated []recursion.Reactivated) error {
	for _, r := range reactivated {
		if err := e.commitOne(r.Reaction, r.Data.N); err != nil {
			return err
		}
	}
	return nil
}

// reactivateAffected implements forward reactivation: after committing
// reactions whose firing may have changed other reactions' propensities,
// wake any inactive reaction depending on the touched species.
func (e *Engine) reactivateAffected(committed []int) error {
	seen := make(map[int]bool)
	for _, r := range committed {
		for _, s := range touchedSpecies(e.net, r) {
			if seen[s] {
				continue
			}
			seen[s] = true
			if err := e.commitReactivated(e.rec.SplitComponent(s)); err != nil {
				return err
			}
		}
	}
	return nil
}

// touchedSpecies returns every species whose count changes when reaction r
// fires (its net stoichiometry), the set forward/backward reactivation
// checks against.
func touchedSpecies(net *network.Network, r int) []int {
	var species []int
	for s, delta := range net.NetChange(r) {
		if delta != 0 {
			species = append(species, s)
		}
	}
	return species
}

// reactantSpecies returns the species reaction r consumes, the set
// [recursion.Data.SplitComponent] indexes parked reactions by.
func reactantSpecies(net *network.Network, r int) []int {
	reaction := net.Reaction(r)
	species := make([]int, len(reaction.Reactants))
	for i, t := range reaction.Reactants {
		species[i] = t.Species
	}
	return species
}

var _ engine.Engine = (*Engine)(nil)
