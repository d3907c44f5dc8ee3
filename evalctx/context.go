// Package evalctx implements the per-(message,stage) EvaluationContext of
// spec.md §4.6 (C2): variable bindings, newly created messages, and a
// reference to the message under evaluation. A fresh Context is created
// for every (message, stage) pair and discarded after the stage completes
// — bindings never leak across stages.
package evalctx

import (
	"github.com/flowforge/ruleflow/ast"
	"github.com/flowforge/ruleflow/message"
)

// Registry is the minimal surface a Context needs from a function
// registry; satisfied by functions.Registry.
type Registry = ast.FunctionRegistry

// Context is the concrete evalctx.Context: message.EvalContext plus a
// Registry() accessor so ast.FunctionCall can resolve calls without an
// import cycle (see ast.registryCarrier).
type Context struct {
	message  *message.Message
	bindings map[string]message.Value
	created  []*message.Message
	registry Registry
}

// New creates a fresh EvaluationContext for one (message, stage) pair.
func New(msg *message.Message, registry Registry) *Context {
	return &Context{
		message:  msg,
		bindings: make(map[string]message.Value),
		registry: registry,
	}
}

func (c *Context) Message() *message.Message { return c.message }

func (c *Context) GetVar(name string) message.Value {
	v, ok := c.bindings[name]
	if !ok {
		return message.Null
	}
	return v
}

func (c *Context) SetVar(name string, v message.Value) {
	c.bindings[name] = v
}

func (c *Context) CreateMessage(m *message.Message) {
	c.created = append(c.created, m)
}

// CreatedMessages returns the messages created during this context's
// lifetime.
func (c *Context) CreatedMessages() []*message.Message {
	return c.created
}

// ClearCreatedMessages drains the created-messages buffer, per spec.md
// §4.5 step 2's "message creation drain".
func (c *Context) ClearCreatedMessages() {
	c.created = nil
}

// Registry exposes the function registry to ast.FunctionCall via the
// registryCarrier interface it expects.
func (c *Context) Registry() ast.FunctionRegistry {
	return c.registry
}
