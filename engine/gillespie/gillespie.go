// Package gillespie implements the exact stochastic simulation algorithm
// (SSA) used throughout the package as the reference engine against which
// the Tau-Split engines are checked.
package gillespie

import (
	"context"
	"math"

	"github.com/ormorni/tausplit/engine"
	"github.com/ormorni/tausplit/network"
	"github.com/ormorni/tausplit/rng"
)

// Engine is the exact SSA reference engine: one reaction firing per step,
// drawn exactly from the instantaneous propensities.
type Engine struct {
	net    *network.Network
	x      []uint64
	t      float64
	stream *rng.Stream
	fired  uint64
	a      []float64 // current propensity per reaction, updated incrementally
	a0     float64    // sum of a; kept in sync with a by refreshAll/refreshAffected
	fresh  bool       // whether a/a0 reflect the current x
}

// New returns a Gillespie Engine over net, starting at state x0 (copied),
// drawing from stream.
func New(net *network.Network, x0 []uint64, stream *rng.Stream) *Engine {
	x := append([]uint64(nil), x0...)
	return &Engine{
		net:    net,
		x:      x,
		stream: stream,
		a:      make([]float64, net.NumReactions()),
	}
}

// State returns a copy of the engine's current species counts.
func (e *Engine) State() []uint64 {
	return append([]uint64(nil), e.x...)
}

// Time returns the current simulated time.
func (e *Engine) Time() float64 { return e.t }

// ReactionCount returns the number of reaction firings applied so far.
func (e *Engine) ReactionCount() uint64 { return e.fired }

// Advance runs the exact SSA forward until simulated time reaches until:
// each step computes a0 = sum of propensities; if a0 is zero the system is
// quiescent and time jumps directly to until; otherwise it draws an
// exponential waiting time and an inverse-CDF-selected reaction, applies
// it, and updates a_j for j in the dependency graph's affects(i) rather
// than recomputing every propensity from scratch.
func (e *Engine) Advance(ctx context.Context, until float64) error {
	for e.t < until {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !e.fresh {
			if err := e.refreshAll(); err != nil {
				return err
			}
		}

		if e.a0 == 0 {
			e.t = until
			return nil
		}

		dt := -math.Log(rng.Uniform(e.stream)) / e.a0
		if e.t+dt >= until {
			e.t = until
			return nil
		}
		e.t += dt

		i := e.selectReaction()
		if err := e.net.Apply(i, e.x); err != nil {
			return err
		}
		e.fired++
		if err := e.refreshAffected(i); err != nil {
			return err
		}
	}
	return nil
}

// refreshAll recomputes every reaction's propensity against the current
// state, used once to seed e.a/e.a0 after construction.
func (e *Engine) refreshAll() error {
	e.a0 = 0
	for i := 0; i < e.net.NumReactions(); i++ {
		a, err := e.net.Propensity(i, e.x)
		if err != nil {
			return err
		}
		e.a[i] = a
		e.a0 += a
	}
	e.fresh = true
	return nil
}

// refreshAffected recomputes only the propensities of reactions whose
// reactant set intersects the species reaction i just changed, folding
// each delta into the running total a0 rather than resumming from scratch.
func (e *Engine) refreshAffected(i int) error {
	for _, j := range e.net.Affects(i) {
		a, err := e.net.Propensity(j, e.x)
		if err != nil {
			return err
		}
		e.a0 += a - e.a[j]
		e.a[j] = a
	}
	return nil
}

// selectReaction draws a reaction index proportional to its propensity,
// given the current e.a/e.a0.
func (e *Engine) selectReaction() int {
	r := rng.Uniform(e.stream) * e.a0
	var cum float64
	for i, a := range e.a {
		cum += a
		if r < cum {
			return i
		}
	}
	return len(e.a) - 1 // guards against floating-point rounding at the boundary
}

var _ engine.Engine = (*Engine)(nil)
