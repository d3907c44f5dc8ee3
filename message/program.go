package message

import (
	"fmt"
	"sort"
)

// Evaluator is implemented by every ast.Expression. Declared here (not in
// package ast) so message.Rule can hold a predicate without an import
// cycle between message and ast.
type Evaluator interface {
	Evaluate(ctx EvalContext) (Value, error)
}

// Executor is implemented by every ast.Statement.
type Executor interface {
	Execute(ctx EvalContext) error
}

// EvalContext is the minimal surface ast nodes need from an
// evalctx.Context, declared here to avoid an import cycle.
type EvalContext interface {
	Message() *Message
	GetVar(name string) Value
	SetVar(name string, v Value)
	CreateMessage(m *Message)
}

// Rule is a named when/then pair (spec.md §3). `When` is of static type
// Boolean; `Then` runs in declaration order against the same context.
type Rule struct {
	ID       string
	Name     string
	SourceID string
	When     Evaluator
	Then     []Executor

	// Reason is set on the sentinel rule produced when a rule fails to
	// parse or link, per spec.md §3/§7; empty for a normally parsed rule.
	Reason string
}

type alwaysFalseExpr struct{}

func (alwaysFalseExpr) Evaluate(EvalContext) (Value, error) { return Bool(false), nil }

// AlwaysFalse builds the sentinel rule substituted for a Parse/LinkError.
func AlwaysFalse(name, reason string) *Rule {
	return &Rule{
		Name:   name,
		When:   alwaysFalseExpr{},
		Then:   nil,
		Reason: reason,
	}
}

// Stage is a set of rules evaluated together under a match-quorum policy
// (spec.md §3). RuleReferences are the authored names; Rules holds the
// resolved list after the Reload controller's link step.
type Stage struct {
	Number         int
	MatchAll       bool
	RuleReferences []string
	Rules          []*Rule
}

// Pipeline is an ordered sequence of Stages keyed by ascending stage
// number (spec.md §3).
type Pipeline struct {
	ID       string
	Name     string
	SourceID string
	Stages   []*Stage

	// Reason is set on the sentinel pipeline produced when a pipeline
	// fails to parse, per spec.md §3/§7; empty for a normally parsed
	// pipeline.
	Reason string
}

// Empty builds the sentinel pipeline substituted for a pipeline ParseError.
func Empty(id, reason string) *Pipeline {
	return &Pipeline{ID: id, Name: id, Stages: nil, Reason: reason}
}

// Validate enforces the stage-numbering invariant of spec.md §3: strictly
// increasing stage numbers within a pipeline.
func (p *Pipeline) Validate() error {
	for i := 1; i < len(p.Stages); i++ {
		if p.Stages[i].Number <= p.Stages[i-1].Number {
			return fmt.Errorf("pipeline %q: stage %d does not strictly increase after stage %d",
				p.ID, p.Stages[i].Number, p.Stages[i-1].Number)
		}
	}
	return nil
}

// ProgramSnapshot is the unit of hot-swap (spec.md §3, §4.3, §9):
// pipelines by id, stream assignments, and every field mutually consistent
// within the snapshot.
type ProgramSnapshot struct {
	PipelinesByID     map[string]*Pipeline
	StreamAssignments map[string][]*Pipeline
	Version           string // semver, stamped by the Reload controller
	ContentHash       uint64 // xxhash of the canonical encoding, for idempotence checks
}

// EmptySnapshot returns a ProgramSnapshot with no pipelines — the concrete
// scenario 1 of spec.md §8.
func EmptySnapshot() *ProgramSnapshot {
	return &ProgramSnapshot{
		PipelinesByID:     map[string]*Pipeline{},
		StreamAssignments: map[string][]*Pipeline{},
	}
}

// PipelinesForStream returns the pipelines assigned to the given stream id,
// or nil if none are assigned.
func (s *ProgramSnapshot) PipelinesForStream(streamID string) []*Pipeline {
	return s.StreamAssignments[streamID]
}

// SortedStreamIDs returns the snapshot's stream ids in deterministic order,
// useful for logging and tests.
func (s *ProgramSnapshot) SortedStreamIDs() []string {
	ids := make([]string, 0, len(s.StreamAssignments))
	for id := range s.StreamAssignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
