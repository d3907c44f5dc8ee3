// Package store implements the Rule/Pipeline Store of spec.md §4.3 (C4): a
// single atomic cell holding the current, immutable ProgramSnapshot.
// Readers acquire the snapshot with one atomic load; writers replace the
// cell atomically. No locks guard the read path (spec.md §9).
package store

import (
	"sync/atomic"

	"github.com/flowforge/ruleflow/message"
)

// Store holds the current program snapshot. The zero value is not usable;
// use New.
type Store struct {
	cell atomic.Pointer[message.ProgramSnapshot]
}

// New creates a Store seeded with an empty snapshot (spec.md §8 scenario 1).
func New() *Store {
	s := &Store{}
	s.cell.Store(message.EmptySnapshot())
	return s
}

// Snapshot returns the current, immutable program image. The returned
// pointer remains valid for the caller's entire use even if a concurrent
// Publish swaps the cell afterward (spec.md §4.3, §5, §8's hot-swap
// linearizability invariant).
func (s *Store) Snapshot() *message.ProgramSnapshot {
	return s.cell.Load()
}

// Publish atomically replaces the current snapshot. Called only by the
// Reload controller (spec.md §4.7 step 5).
func (s *Store) Publish(snap *message.ProgramSnapshot) {
	s.cell.Store(snap)
}
