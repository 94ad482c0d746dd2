// Package network implements the reaction network model: species,
// reactions, mass-action propensities, and the reaction dependency graph.
package network

import (
	"errors"
	"fmt"
	"math"
)

// ErrNegativeCount is returned by [Network.Apply] when applying a reaction
// would drive a species count below zero.
var ErrNegativeCount = errors.New("network: reaction would drive species count negative")

// ErrNumeric is returned when a propensity computation overflows or
// produces a non-finite value.
var ErrNumeric = errors.New("network: propensity is not finite")

// Term is one (species, stoichiometric coefficient) pair on one side of a
// reaction.
type Term struct {
	Species int
	Coeff   uint64
}

// Reaction is a single reaction: reactants, products, and a mass-action rate
// constant. Reactants appearing on both sides are permitted; [Network.Apply]
// and [Network.NetChange] compute net stoichiometry from the difference.
type Reaction struct {
	Reactants []Term
	Products  []Term
	Rate      float64
}

// Network is an immutable reaction network: a species count and a list of
// reactions, together with the precomputed dependency graph used by
// [Network.Affects].
//
// Network is read-only after construction and may be shared by reference
// among engines running different seeds or initial states.
type Network struct {
	numSpecies int
	reactions  []Reaction
	netChange  [][]int64 // netChange[i][s] is the signed change to species s when reaction i fires once
	affects    [][]int   // affects[i] is the set of reactions whose propensity may change when i fires
}

// Builder accumulates species and reactions before producing an immutable
// [Network]. It exists so an external parser can validate species
// declarations incrementally without the core depending on any particular
// input format.
type Builder struct {
	numSpecies int
	reactions  []Reaction
}

// NewBuilder returns a Builder for a network with the given number of
// species, indexed 0..numSpecies-1.
func NewBuilder(numSpecies int) *Builder {
	return &Builder{numSpecies: numSpecies}
}

// AddReaction appends a reaction to the network under construction. It
// returns an error if any term references a species index out of range or
// the rate constant is negative or not finite. A rate of 0 is accepted; such
// a reaction has zero propensity and never fires.
func (b *Builder) AddReaction(r Reaction) error {
	for _, t := range append(append([]Term{}, r.Reactants...), r.Products...) {
		if t.Species < 0 || t.Species >= b.numSpecies {
			return fmt.Errorf("network: species index %d out of range [0, %d)", t.Species, b.numSpecies)
		}
	}
	if r.Rate < 0 || math.IsNaN(r.Rate) || math.IsInf(r.Rate, 0) {
		return fmt.Errorf("%w: rate %v", ErrNumeric, r.Rate)
	}
	b.reactions = append(b.reactions, r)
	return nil
}

// Build finalizes the network, computing net stoichiometry and the
// dependency graph once.
func (b *Builder) Build() *Network {
	n := &Network{
		numSpecies: b.numSpecies,
		reactions:  b.reactions,
	}
	n.netChange = make([][]int64, len(n.reactions))
	for i, r := range n.reactions {
		change := make([]int64, n.numSpecies)
		for _, t := range r.Reactants {
			change[t.Species] -= int64(t.Coeff)
		}
		for _, t := range r.Products {
			change[t.Species] += int64(t.Coeff)
		}
		n.netChange[i] = change
	}
	n.affects = make([][]int, len(n.reactions))
	for i := range n.reactions {
		n.affects[i] = n.computeAffects(i)
	}
	return n
}

// computeAffects returns the reactions whose reactant set intersects any
// species with nonzero net change under reaction i.
func (n *Network) computeAffects(i int) []int {
	touched := make(map[int]bool)
	for s, delta := range n.netChange[i] {
		if delta != 0 {
			touched[s] = true
		}
	}
	var affected []int
	for j, r := range n.reactions {
		for _, t := range r.Reactants {
			if touched[t.Species] {
				affected = append(affected, j)
				break
			}
		}
	}
	return affected
}

// NumSpecies returns the number of species in the network.
func (n *Network) NumSpecies() int { return n.numSpecies }

// NumReactions returns the number of reactions in the network.
func (n *Network) NumReactions() int { return len(n.reactions) }

// Reaction returns the i-th reaction.
func (n *Network) Reaction(i int) Reaction { return n.reactions[i] }

// NetChange returns reaction i's signed per-species stoichiometric change,
// indexed by species.
func (n *Network) NetChange(i int) []int64 { return n.netChange[i] }

// Affects returns the indices of reactions whose propensity may change when
// reaction i fires.
func (n *Network) Affects(i int) []int { return n.affects[i] }

// Propensity computes reaction i's mass-action rate given state x:
// k_i times the product, over each reactant (species, coefficient) pair, of
// the falling factorial C(x[s], coeff).
func (n *Network) Propensity(i int, x []uint64) (float64, error) {
	r := n.reactions[i]
	a := r.Rate
	for _, t := range r.Reactants {
		a *= fallingFactorial(x[t.Species], t.Coeff)
		if a == 0 {
			return 0, nil
		}
	}
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, fmt.Errorf("%w: reaction %d at state %v", ErrNumeric, i, x)
	}
	return a, nil
}

// Apply fires reaction i once against x in place, subtracting reactant
// stoichiometry and adding product stoichiometry. It returns
// [ErrNegativeCount] without mutating x if any reactant would underflow.
func (n *Network) Apply(i int, x []uint64) error {
	return n.applyTimes(i, x, 1)
}

// ApplyTimes fires reaction i count times against x in place, atomically:
// either the full update is applied, or (on underflow) x is left unchanged
// and [ErrNegativeCount] is returned. The Tau-Split recursion driver uses it
// to commit a single parked reaction's retained event count in one step.
func (n *Network) ApplyTimes(i int, x []uint64, count uint64) error {
	return n.applyTimes(i, x, count)
}

func (n *Network) applyTimes(i int, x []uint64, count uint64) error {
	if count == 0 {
		return nil
	}
	change := n.netChange[i]
	for s, delta := range change {
		if delta < 0 {
			consumed := uint64(-delta) * count
			if consumed > x[s] {
				return fmt.Errorf("%w: reaction %d, species %d, count %d", ErrNegativeCount, i, s, count)
			}
		}
	}
	for s, delta := range change {
		if delta == 0 {
			continue
		}
		if delta < 0 {
			x[s] -= uint64(-delta) * count
		} else {
			x[s] += uint64(delta) * count
		}
	}
	return nil
}

// fallingFactorial computes n*(n-1)*...*(n-c+1)/c! , i.e. C(n, c), the
// number of ways to draw c molecules from a pool of n. It returns 0 when
// n < c and 1 when c == 0.
func fallingFactorial(n uint64, c uint64) float64 {
	if c == 0 {
		return 1
	}
	if n < c {
		return 0
	}
	result := 1.0
	for k := uint64(0); k < c; k++ {
		result *= float64(n-k) / float64(k+1)
	}
	return result
}
