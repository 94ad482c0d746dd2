package recursion

import (
	"testing"

	"github.com/ormorni/tausplit/internal/reactiondata"
)

func TestNewAllActive(t *testing.T) {
	d := New(3, 2)
	for r := 0; r < 3; r++ {
		if !d.IsActive(r) {
			t.Fatalf("reaction %d should start active", r)
		}
	}
	if d.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0", d.Depth())
	}
}

func TestDeactivateReactivate(t *testing.T) {
	d := New(3, 2)
	d.PushStage()

	data := reactiondata.Data{N: 7}
	d.Deactivate(1, data, []int{0})

	if d.IsActive(1) {
		t.Fatal("reaction 1 should be inactive after Deactivate")
	}
	if !d.IsActive(0) || !d.IsActive(2) {
		t.Fatal("only reaction 1 should be inactive")
	}

	freed, ok := d.Reactivate(1)
	if !ok {
		t.Fatal("Reactivate should succeed for a parked reaction")
	}
	if freed.N != 7 {
		t.Fatalf("freed.N = %d, want 7", freed.N)
	}
	if !d.IsActive(1) {
		t.Fatal("reaction 1 should be active after Reactivate")
	}

	if _, ok := d.Reactivate(1); ok {
		t.Fatal("Reactivate on an already-active reaction should report ok=false")
	}
}

func TestSwapRemovePatchesDisplacedIndex(t *testing.T) {
	d := New(4, 1)
	d.PushStage()

	d.Deactivate(0, reactiondata.Data{N: 10}, nil)
	d.Deactivate(1, reactiondata.Data{N: 20}, nil)
	d.Deactivate(2, reactiondata.Data{N: 30}, nil)

	// Reactivating the middle entry forces a swap with the last entry (2);
	// reaction 2's recorded position must be patched to the vacated slot.
	freed, ok := d.Reactivate(1)
	if !ok || freed.N != 20 {
		t.Fatalf("Reactivate(1) = %+v, %v", freed, ok)
	}

	freed2, ok := d.Reactivate(2)
	if !ok || freed2.N != 30 {
		t.Fatalf("Reactivate(2) after swap = %+v, %v; index was not patched correctly", freed2, ok)
	}

	freed0, ok := d.Reactivate(0)
	if !ok || freed0.N != 10 {
		t.Fatalf("Reactivate(0) = %+v, %v", freed0, ok)
	}
}

func TestPopStageReactivatesRemainder(t *testing.T) {
	d := New(3, 1)
	d.PushStage()
	d.Deactivate(0, reactiondata.Data{N: 1}, nil)
	d.Deactivate(1, reactiondata.Data{N: 2}, nil)

	reactivated := d.PopStage()
	if len(reactivated) != 2 {
		t.Fatalf("PopStage returned %d entries, want 2", len(reactivated))
	}
	for _, r := range reactivated {
		if !d.IsActive(r.Reaction) {
			t.Fatalf("reaction %d should be active after PopStage", r.Reaction)
		}
	}
	if d.Depth() != 0 {
		t.Fatalf("Depth() = %d after pop, want 0", d.Depth())
	}
}

func TestNestedStages(t *testing.T) {
	d := New(4, 1)

	d.PushStage() // depth 0
	d.Deactivate(0, reactiondata.Data{N: 1}, nil)

	d.PushStage() // depth 1
	d.Deactivate(1, reactiondata.Data{N: 2}, nil)

	if !d.IsActive(2) || !d.IsActive(3) {
		t.Fatal("reactions 2 and 3 were never deactivated")
	}

	// Reactivation at the inner depth must not disturb the outer stage.
	if _, ok := d.Reactivate(1); !ok {
		t.Fatal("expected reaction 1 to be reactivatable")
	}
	if d.IsActive(0) {
		t.Fatal("reaction 0, parked at the outer stage, should remain inactive")
	}

	reactivated := d.PopStage() // drains the now-empty inner stage
	if len(reactivated) != 0 {
		t.Fatalf("expected an empty inner stage, got %d entries", len(reactivated))
	}

	reactivated = d.PopStage() // drains the outer stage
	if len(reactivated) != 1 || reactivated[0].Reaction != 0 {
		t.Fatalf("PopStage() = %v, want [{0 ...}]", reactivated)
	}
}

func TestSplitComponentReactivatesDependents(t *testing.T) {
	d := New(3, 2)
	d.PushStage()

	// Reactions 0 and 1 both consume species 0; reaction 2 consumes species 1.
	d.Deactivate(0, reactiondata.Data{N: 5}, []int{0})
	d.Deactivate(1, reactiondata.Data{N: 6}, []int{0})
	d.Deactivate(2, reactiondata.Data{N: 7}, []int{1})

	reactivated := d.SplitComponent(0)
	if len(reactivated) != 2 {
		t.Fatalf("SplitComponent(0) reactivated %d reactions, want 2", len(reactivated))
	}
	if !d.IsActive(0) || !d.IsActive(1) {
		t.Fatal("reactions 0 and 1 should be active after SplitComponent(0)")
	}
	if d.IsActive(2) {
		t.Fatal("reaction 2, which does not depend on species 0, should remain inactive")
	}
}

func TestSplitComponentToleratesStaleEntries(t *testing.T) {
	d := New(2, 1)
	d.PushStage()
	d.Deactivate(0, reactiondata.Data{N: 1}, []int{0})
	d.Deactivate(1, reactiondata.Data{N: 2}, []int{0})

	// Reactivate reaction 0 directly; byComponent[0] still references it.
	if _, ok := d.Reactivate(0); !ok {
		t.Fatal("expected reaction 0 to be reactivatable")
	}

	// SplitComponent must skip the now-stale reference to reaction 0
	// without error, and still reactivate reaction 1.
	reactivated := d.SplitComponent(0)
	if len(reactivated) != 1 || reactivated[0].Reaction != 1 {
		t.Fatalf("SplitComponent(0) = %v, want [{1 ...}]", reactivated)
	}
}

func TestSplitComponentIsIdempotent(t *testing.T) {
	d := New(1, 1)
	d.PushStage()
	d.Deactivate(0, reactiondata.Data{N: 1}, []int{0})

	first := d.SplitComponent(0)
	if len(first) != 1 {
		t.Fatalf("first SplitComponent(0) = %v, want 1 entry", first)
	}
	second := d.SplitComponent(0)
	if len(second) != 0 {
		t.Fatalf("second SplitComponent(0) = %v, want 0 entries (already active)", second)
	}
}
