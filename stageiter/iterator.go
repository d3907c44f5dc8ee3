// Package stageiter implements the Stage Iterator of spec.md §4.4 (C5):
// given a set of pipelines, produce stage slices grouped by ascending
// stage number. A slice groups every (Stage, Pipeline) pair across the
// input pipelines whose Stage.Number equals the current minimum among
// pipelines still contributing stages.
//
// Grounded on the small strategy-object-over-a-slice style of the
// teacher's pipeline/stage/router_strategies.go: a focused helper over
// []Stage-shaped input rather than a container/heap-based priority queue.
package stageiter

import "github.com/flowforge/ruleflow/message"

// Pair is one (Stage, Pipeline) member of a slice.
type Pair struct {
	Stage    *message.Stage
	Pipeline *message.Pipeline
}

// Iterator yields stage slices in strictly ascending stage-number order.
// Iteration order within a slice is unspecified (spec.md §4.4, §9).
type Iterator struct {
	cursor []int // next stage index to consider, per pipeline
	pipes  []*message.Pipeline
}

// New builds an Iterator over the given pipeline set.
func New(pipelines []*message.Pipeline) *Iterator {
	return &Iterator{
		cursor: make([]int, len(pipelines)),
		pipes:  pipelines,
	}
}

// Next returns the next stage slice and true, or (nil, false) once every
// pipeline has been exhausted.
func (it *Iterator) Next() ([]Pair, bool) {
	min, found := 0, false
	for i, p := range it.pipes {
		if it.cursor[i] >= len(p.Stages) {
			continue
		}
		n := p.Stages[it.cursor[i]].Number
		if !found || n < min {
			min, found = n, true
		}
	}
	if !found {
		return nil, false
	}

	var slice []Pair
	for i, p := range it.pipes {
		if it.cursor[i] >= len(p.Stages) {
			continue
		}
		st := p.Stages[it.cursor[i]]
		if st.Number != min {
			continue
		}
		slice = append(slice, Pair{Stage: st, Pipeline: p})
		it.cursor[i]++
	}
	return slice, true
}

// All drains the Iterator into a slice of slices, for tests and callers
// that don't need streaming semantics.
func All(pipelines []*message.Pipeline) [][]Pair {
	it := New(pipelines)
	var out [][]Pair
	for {
		slice, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, slice)
	}
	return out
}
