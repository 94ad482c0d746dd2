package tausplit6

import (
	"context"
	"math"
	"testing"

	"github.com/ormorni/tausplit/network"
	"github.com/ormorni/tausplit/rng"
)

func synthesisNetwork(rate float64) *network.Network {
	b := network.NewBuilder(1)
	if err := b.AddReaction(network.Reaction{
		Products: []network.Term{{Species: 0, Coeff: 1}},
		Rate:     rate,
	}); err != nil {
		panic(err)
	}
	return b.Build()
}

func TestSynthesisMean(t *testing.T) {
	net := synthesisNetwork(2.0)
	const trials = 2000
	var sum uint64
	for trial := 0; trial < trials; trial++ {
		eng := New(net, []uint64{0}, rng.New(uint64(trial)+1), DefaultConfig())
		if err := eng.Advance(context.Background(), 5); err != nil {
			t.Fatal(err)
		}
		sum += eng.State()[0]
	}
	mean := float64(sum) / trials
	if math.Abs(mean-10) > 1.5 {
		t.Fatalf("mean A = %v, want close to 10", mean)
	}
}

func TestReversibleConservesTotal(t *testing.T) {
	b := network.NewBuilder(2)
	if err := b.AddReaction(network.Reaction{
		Reactants: []network.Term{{Species: 0, Coeff: 1}},
		Products:  []network.Term{{Species: 1, Coeff: 1}},
		Rate:      1.0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddReaction(network.Reaction{
		Reactants: []network.Term{{Species: 1, Coeff: 1}},
		Products:  []network.Term{{Species: 0, Coeff: 1}},
		Rate:      1.0,
	}); err != nil {
		t.Fatal(err)
	}
	net := b.Build()

	eng := New(net, []uint64{50, 50}, rng.New(7), DefaultConfig())
	for i := 1; i <= 10; i++ {
		if err := eng.Advance(context.Background(), float64(i)*10); err != nil {
			t.Fatal(err)
		}
		x := eng.State()
		if x[0]+x[1] != 100 {
			t.Fatalf("A+B = %d, want 100", x[0]+x[1])
		}
	}
}

func TestDeterministicGivenSeed(t *testing.T) {
	net := synthesisNetwork(2.0)
	run := func() uint64 {
		eng := New(net, []uint64{0}, rng.New(99), DefaultConfig())
		if err := eng.Advance(context.Background(), 5); err != nil {
			t.Fatal(err)
		}
		return eng.State()[0]
	}
	if run() != run() {
		t.Fatal("identical seed should produce identical output")
	}
}

func TestEmbeddedEngineSatisfiesInterface(t *testing.T) {
	net := synthesisNetwork(1.0)
	eng := New(net, []uint64{0}, rng.New(1), DefaultConfig())
	if eng.Time() != 0 {
		t.Fatalf("Time() = %v, want 0", eng.Time())
	}
	if err := eng.Advance(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if eng.Time() != 1 {
		t.Fatalf("Time() = %v, want 1", eng.Time())
	}
}
