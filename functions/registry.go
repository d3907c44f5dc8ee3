// Package functions implements the Function Registry of spec.md §4.2 (C3):
// a process-wide, immutable-after-startup name→callable map invoked from
// ast.FunctionCall nodes.
//
// Grounded on the teacher's tools.Registry: a name-keyed cache populated at
// construction and read thereafter, with no locking needed once built
// (spec.md §4.2: "Registration is complete before the interpreter accepts
// messages").
package functions

import (
	"fmt"

	"github.com/flowforge/ruleflow/ast"
	"github.com/flowforge/ruleflow/message"
)

// Param describes one declared parameter of a built-in function.
type Param struct {
	Name     string
	Required bool
}

// Fn is the native callable signature of spec.md §4.2.
type Fn func(ctx message.EvalContext, positional []message.Value, named map[string]message.Value) (message.Value, error)

// Descriptor is a registered function: its declared parameter list plus
// implementation.
type Descriptor struct {
	Name     string
	Params   []Param
	Mutating bool // true if the function has side effects (spec.md §4.1)
	Call     Fn
}

// Registry is the process-wide Function Registry.
type Registry struct {
	byName map[string]*Descriptor
}

// NewRegistry creates an empty registry. Use NewDefaultRegistry for one
// pre-populated with the built-in library of SPEC_FULL.md §6.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds a function descriptor. Intended to be called only during
// startup, before the interpreter accepts messages (spec.md §4.2).
func (r *Registry) Register(d *Descriptor) {
	r.byName[d.Name] = d
}

// Lookup returns the descriptor for name, or nil if unregistered.
func (r *Registry) Lookup(name string) *Descriptor {
	return r.byName[name]
}

// Names returns every registered function name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// Call implements ast.FunctionRegistry: resolves name, binds arguments,
// and invokes the callable. Matches spec.md §4.1's FunctionCall error
// taxonomy: ErrUnknownFunction, ErrArityMismatch, ErrTypeMismatch.
func (r *Registry) Call(ctx message.EvalContext, name string, positional []message.Value, named map[string]message.Value) (message.Value, error) {
	d := r.Lookup(name)
	if d == nil {
		return message.Null, fmt.Errorf("%w: %q", ast.ErrUnknownFunction, name)
	}

	if err := bindArity(d, positional, named); err != nil {
		return message.Null, err
	}

	return d.Call(ctx, positional, named)
}

// bindArity checks that every required parameter not satisfiable by a
// positional slot is present among named arguments, and that there are no
// more positional arguments than declared parameters.
func bindArity(d *Descriptor, positional []message.Value, named map[string]message.Value) error {
	if len(positional) > len(d.Params) {
		return fmt.Errorf("%w: %s takes at most %d positional argument(s), got %d",
			ast.ErrArityMismatch, d.Name, len(d.Params), len(positional))
	}
	for i, p := range d.Params {
		if i < len(positional) {
			continue
		}
		if _, ok := named[p.Name]; ok {
			continue
		}
		if p.Required {
			return fmt.Errorf("%w: %s missing required argument %q", ast.ErrTypeMismatch, d.Name, p.Name)
		}
	}
	return nil
}

// Arg resolves the value of parameter index/name, trying the positional
// slot first, falling back to the named map, then to message.Null.
// Convenience for Fn implementations.
func Arg(params []Param, idx int, positional []message.Value, named map[string]message.Value) message.Value {
	if idx < len(positional) {
		return positional[idx]
	}
	if idx < len(params) {
		if v, ok := named[params[idx].Name]; ok {
			return v
		}
	}
	return message.Null
}
