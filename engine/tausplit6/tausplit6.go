// Package tausplit6 implements the tau-split6 refinement: the same
// recursion driver as [engine/tausplit], but every leap's initial event
// counts are drawn against the time-integrated linear propensity a(t) =
// a0 + slope*t over the subinterval rather than the constant endpoint
// value a0, and stability is judged by [reactiondata.StabilityTestLinear],
// which applies the base stability test plus a drift check on the
// propensity's bound-width slope, so it accepts no subinterval that the
// base variant would reject. The linear leap reduces the dominant error
// term from O(a*tau^2) to O(a*tau^3).
package tausplit6

import (
	"github.com/ormorni/tausplit/engine"
	"github.com/ormorni/tausplit/engine/tausplit"
	"github.com/ormorni/tausplit/internal/reactiondata"
	"github.com/ormorni/tausplit/network"
	"github.com/ormorni/tausplit/rng"
)

// Config holds tausplit6's tuning parameters, identical to
// [tausplit.Config] except that Linear is always forced on.
type Config struct {
	LeapFactor float64
	MinTau     float64
	Stability  reactiondata.Config
}

// DefaultConfig returns the tausplit6 defaults.
func DefaultConfig() Config {
	base := tausplit.DefaultConfig()
	return Config{LeapFactor: base.LeapFactor, MinTau: base.MinTau, Stability: base.Stability}
}

func (c Config) toBase() tausplit.Config {
	return tausplit.Config{
		LeapFactor: c.LeapFactor,
		MinTau:     c.MinTau,
		Stability:  c.Stability,
		Linear:     true,
	}
}

// Engine wraps a [tausplit.Engine] configured for the linear-propensity
// leap. It embeds rather than reimplements the recursion driver: the only
// difference between tausplit and tausplit6 is which sampling mean and
// stability predicate the driver consults, both of which
// tausplit.Config.Linear already selects.
type Engine struct {
	*tausplit.Engine
}

// New returns a tausplit6 Engine over net, starting at state x0, drawing
// from stream.
func New(net *network.Network, x0 []uint64, stream *rng.Stream, cfg Config) *Engine {
	return &Engine{Engine: tausplit.New(net, x0, stream, cfg.toBase())}
}

var _ engine.Engine = (*Engine)(nil)
