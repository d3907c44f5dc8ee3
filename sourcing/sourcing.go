// Package sourcing declares the external collaborator contracts spec.md
// §6 lists as consumed, not implemented, by the engine: the
// source-of-truth services, the rule-language parser, and the journal.
// This repo ships only in-memory fakes of the services (for tests) and a
// small real Parser (see sourcing/parser) to exercise the AST end to end.
package sourcing

import (
	"fmt"

	"github.com/flowforge/ruleflow/message"
)

// SourceDocument is one named rule or pipeline source, as loaded from the
// source-of-truth.
type SourceDocument struct {
	ID     string
	Source string
}

// RuleSourceService loads every rule source document.
type RuleSourceService interface {
	LoadAll() ([]SourceDocument, error)
}

// PipelineSourceService loads every pipeline source document.
type PipelineSourceService interface {
	LoadAll() ([]SourceDocument, error)
}

// StreamAssignment is one stream's pipeline assignment.
type StreamAssignment struct {
	StreamID    string
	PipelineIDs []string
}

// PipelineStreamAssignmentService loads the full stream→pipelines
// assignment.
type PipelineStreamAssignmentService interface {
	LoadAll() ([]StreamAssignment, error)
}

// ParseError carries the position of a parse failure, per spec.md §6.
type ParseError struct {
	SourceID string
	Line     int
	Column   int
	Message  string
}

func (e *ParseError) Error() string {
	if e.Line == 0 && e.Column == 0 {
		return fmt.Sprintf("%s: %s", e.SourceID, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.SourceID, e.Line, e.Column, e.Message)
}

// Parser turns rule/pipeline source text into AST, per spec.md §6. The
// interpreter is agnostic to surface syntax; Parser is the seam.
type Parser interface {
	ParseRule(sourceID, source string) (*message.Rule, error)
	ParsePipeline(sourceID, source string) (*message.Pipeline, error)
}

// Journal commits the host's message-log offset. Consumed only to mark
// offsets committed for dropped messages (spec.md §4.5 step 4, §6).
type Journal interface {
	MarkOffsetCommitted(offset string)
}
