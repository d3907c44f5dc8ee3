// Package engineerrors provides the contextual error type used across the
// engine, adapted from the teacher's pkg/errors.ContextualError.
package engineerrors

import "fmt"

// ContextualError captures which component/operation produced an error,
// plus the underlying cause, so logs can attribute failures precisely.
// The reload controller wraps its source-loading failures in this type;
// parse, link and evaluation failures are logged without it.
type ContextualError struct {
	Component string
	Operation string
	Details   map[string]any
	Cause     error
}

// New creates a ContextualError with the given component, operation, and
// cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{Component: component, Operation: operation, Cause: cause}
}

func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

func (e *ContextualError) Unwrap() error { return e.Cause }

// WithDetails returns e with Details set, for chaining at the call site.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}
