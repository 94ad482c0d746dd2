// Package recursion implements RecursionData: the structure tracking, at
// each depth of the Tau-Split recursive subdivision, which reactions are
// active (being refined at the current depth) and which are inactive
// (parked, stable, at some shallower depth) — with O(1) amortised
// reactivation.
//
// The design uses index-based back-pointers rather than owned references:
// the arena is the per-stage entry slice, positions are indices, and
// swap-remove keeps them valid in O(1). There are no ownership cycles to
// manage.
package recursion

import "github.com/ormorni/tausplit/internal/reactiondata"

// Reactivated pairs a reaction index with the bookkeeping data it held while
// inactive, returned to the caller so it can resume refining (or directly
// reuse) that reaction's state.
type Reactivated struct {
	Reaction int
	Data     reactiondata.Data
}

type entry struct {
	reaction int
	data     reactiondata.Data
}

type componentRef struct {
	reaction int
}

// stageMark demarcates the slice of a species' byComponent entries
// contributed by one stage: [Data.PopStage] truncates back to start,
// since stages nest like a stack and every entry contributed by a popping
// stage is reactivated (directly or earlier) by the time it pops.
// SplitComponent still tolerates stale entries within an open stage,
// since this index does not support random-access removal mid-stage.
type stageMark struct {
	depth int
	start int
}

type location struct {
	active bool
	depth  int
	pos    int
}

// Data is RecursionData: the active/inactive tracking structure owned by
// the Tau-Split engine.
type Data struct {
	stages          [][]entry
	byComponent     [][]componentRef
	componentStages [][]stageMark
	index           []location
	numSpecies      int
}

// New returns an empty Data for a network with numReactions reactions and
// numSpecies species. All reactions start active.
func New(numReactions, numSpecies int) *Data {
	idx := make([]location, numReactions)
	for i := range idx {
		idx[i] = location{active: true}
	}
	return &Data{
		byComponent:     make([][]componentRef, numSpecies),
		componentStages: make([][]stageMark, numSpecies),
		index:           idx,
		numSpecies:      numSpecies,
	}
}

// Depth returns the current recursion depth (number of stages pushed).
func (d *Data) Depth() int { return len(d.stages) }

// PushStage adds a new, empty recursion stage on top of the stack.
func (d *Data) PushStage() {
	depth := len(d.stages)
	d.stages = append(d.stages, nil)
	for s := 0; s < d.numSpecies; s++ {
		d.componentStages[s] = append(d.componentStages[s], stageMark{depth: depth, start: len(d.byComponent[s])})
	}
}

// Deactivate parks reaction r, with its current bookkeeping data, at the
// top stage. touchedSpecies lists the species r's propensity depends on
// (its reactant species), used to populate the per-species view consulted
// by [Data.SplitComponent].
func (d *Data) Deactivate(r int, data reactiondata.Data, touchedSpecies []int) {
	depth := len(d.stages) - 1
	pos := len(d.stages[depth])
	d.stages[depth] = append(d.stages[depth], entry{reaction: r, data: data})
	d.index[r] = location{active: false, depth: depth, pos: pos}
	for _, s := range touchedSpecies {
		d.byComponent[s] = append(d.byComponent[s], componentRef{reaction: r})
	}
}

// Reactivate removes reaction r from wherever it is parked via an O(1)
// swap-remove, patching the displaced entry's index, and returns its freed
// bookkeeping data. ok is false, and the zero Data is returned, if r is
// already active.
func (d *Data) Reactivate(r int) (data reactiondata.Data, ok bool) {
	loc := d.index[r]
	if loc.active {
		return reactiondata.Data{}, false
	}

	stage := d.stages[loc.depth]
	last := len(stage) - 1
	freed := stage[loc.pos].data

	if loc.pos != last {
		stage[loc.pos] = stage[last]
		d.index[stage[loc.pos].reaction] = location{active: false, depth: loc.depth, pos: loc.pos}
	}
	d.stages[loc.depth] = stage[:last]
	d.index[r] = location{active: true}

	return freed, true
}

// PopStage drains the top stage, reactivating every reaction still parked
// there (their bounds held for the whole stage, so their N_i remains
// valid) and removing the stage from the stack.
func (d *Data) PopStage() []Reactivated {
	depth := len(d.stages) - 1
	stage := d.stages[depth]

	reactivated := make([]Reactivated, len(stage))
	for i, e := range stage {
		reactivated[i] = Reactivated{Reaction: e.reaction, Data: e.data}
		d.index[e.reaction] = location{active: true}
	}
	d.stages = d.stages[:depth]

	// Every byComponent entry appended during this stage belongs to a
	// reaction that has just been reactivated above (directly, or earlier
	// via SplitComponent while the stage was still open), so the whole
	// span recorded by this stage's mark is stale: truncate it back to
	// where PushStage found each species' slice. Pushes and pops nest
	// like a stack, so the mark's start index is still exactly where this
	// stage's entries begin.
	for s := 0; s < d.numSpecies; s++ {
		marks := d.componentStages[s]
		if len(marks) > 0 && marks[len(marks)-1].depth == depth {
			mark := marks[len(marks)-1]
			d.componentStages[s] = marks[:len(marks)-1]
			d.byComponent[s] = d.byComponent[s][:mark.start]
		}
	}

	return reactivated
}

// SplitComponent reactivates every currently-inactive reaction previously
// parked while depending on species s — used when s's bounds are found to
// have changed and every reaction consuming it must be re-examined.
// byComponent[s] is append-only within a stage and compacted by
// [Data.PopStage] rather than by random-access removal, so a reaction
// reactivated mid-stage (by an earlier SplitComponent call) leaves a stale
// entry behind until its stage pops; those are skipped rather than
// treated as an error.
func (d *Data) SplitComponent(s int) []Reactivated {
	var reactivated []Reactivated
	for _, ref := range d.byComponent[s] {
		if d.index[ref.reaction].active {
			continue
		}
		if data, ok := d.Reactivate(ref.reaction); ok {
			reactivated = append(reactivated, Reactivated{Reaction: ref.reaction, Data: data})
		}
	}
	return reactivated
}

// IsActive reports whether reaction r is currently active (not parked at
// any stage).
func (d *Data) IsActive(r int) bool {
	return d.index[r].active
}
