// Package ast implements the tagged-variant expression and statement
// nodes of spec.md §3/§4.1: every node is immutable after construction and
// evaluates deterministically against an evalctx.Context.
//
// Dispatch is one method per concrete type rather than a type switch or a
// class hierarchy, following the single-dispatch style of
// workflow.StateMachine in the teacher repository.
package ast

import (
	"fmt"
	"math"
	"strconv"

	"github.com/flowforge/ruleflow/message"
)

// Expression is implemented by every AST expression node.
type Expression interface {
	message.Evaluator
	// StaticType reports the node's declared type where known; TypeUnknown
	// otherwise. Nothing checks a `when` predicate's static type: the
	// interpreter treats any truthy predicate value as a match.
	StaticType() TypeTag
}

// TypeTag is the static type a node declares for itself.
type TypeTag int

const (
	TypeUnknown TypeTag = iota
	TypeLong
	TypeDouble
	TypeBoolean
	TypeString
)

// Constant wraps a literal Long, Double, Bool, or String value.
type Constant struct {
	Value message.Value
}

func (c Constant) Evaluate(message.EvalContext) (message.Value, error) { return c.Value, nil }

func (c Constant) StaticType() TypeTag {
	switch c.Value.Kind() {
	case message.KindLong:
		return TypeLong
	case message.KindDouble:
		return TypeDouble
	case message.KindBool:
		return TypeBoolean
	case message.KindString:
		return TypeString
	default:
		return TypeUnknown
	}
}

// VarRef resolves a bare identifier: a `let` binding shadows a same-named
// message field, and an identifier bound to neither yields Null rather
// than failing (spec.md §4.1).
type VarRef struct {
	Name string
}

func (v VarRef) Evaluate(ctx message.EvalContext) (message.Value, error) {
	if bound := ctx.GetVar(v.Name); bound.Kind() != message.KindNull {
		return bound, nil
	}
	return ctx.Message().Field(v.Name), nil
}

func (v VarRef) StaticType() TypeTag { return TypeUnknown }

// FieldAccess reads a named field off a Map or Message handle. Null
// targets yield Null without error (spec.md §4.1).
type FieldAccess struct {
	Target Expression
	Field  string
}

func (f FieldAccess) Evaluate(ctx message.EvalContext) (message.Value, error) {
	target, err := f.Target.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}
	return accessField(target, f.Field)
}

func accessField(target message.Value, field string) (message.Value, error) {
	switch target.Kind() {
	case message.KindNull:
		return message.Null, nil
	case message.KindMap:
		m, _ := target.AsMap()
		v, ok := m[field]
		if !ok {
			return message.Null, nil
		}
		return v, nil
	case message.KindMessage:
		msg, _ := target.AsMessage()
		return msg.Field(field), nil
	default:
		return message.Null, fmt.Errorf("%w: cannot access field %q on %s", ErrTypeMismatch, field, target.Kind())
	}
}

func (f FieldAccess) StaticType() TypeTag { return TypeUnknown }

// Indexed reads a value by a computed key. On a Map the key is coerced to
// string; on a List the key must be an integral index.
type Indexed struct {
	Target Expression
	Key    Expression
}

func (ix Indexed) Evaluate(ctx message.EvalContext) (message.Value, error) {
	target, err := ix.Target.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}
	key, err := ix.Key.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}

	switch target.Kind() {
	case message.KindNull:
		return message.Null, nil
	case message.KindMap:
		return accessField(target, key.String())
	case message.KindList:
		list, _ := target.AsList()
		if !key.IsIntegral() {
			return message.Null, fmt.Errorf("%w: list index must be integral, got %s", ErrTypeMismatch, key.Kind())
		}
		idx, _ := key.AsLong()
		if idx < 0 || int(idx) >= len(list) {
			return message.Null, nil
		}
		return list[idx], nil
	case message.KindMessage:
		return accessField(target, key.String())
	default:
		return message.Null, fmt.Errorf("%w: cannot index into %s", ErrTypeMismatch, target.Kind())
	}
}

func (ix Indexed) StaticType() TypeTag { return TypeUnknown }

// FunctionCall resolves Name in the Function Registry and binds
// positional then named arguments (spec.md §4.1).
type FunctionCall struct {
	Name       string
	Positional []Expression
	Named      map[string]Expression
}

// FunctionRegistry is the minimal surface ast.FunctionCall needs; declared
// here to avoid an import cycle with package functions, which depends on
// ast for its error sentinels.
type FunctionRegistry interface {
	Call(ctx message.EvalContext, name string, positional []message.Value, named map[string]message.Value) (message.Value, error)
}

// Call resolves and invokes the function using the given registry. This is
// used by Evaluate via a context-carried registry (see evalctx.Context).
func (f FunctionCall) Call(ctx message.EvalContext, reg FunctionRegistry) (message.Value, error) {
	positional := make([]message.Value, len(f.Positional))
	for i, p := range f.Positional {
		v, err := p.Evaluate(ctx)
		if err != nil {
			return message.Null, err
		}
		positional[i] = v
	}
	named := make(map[string]message.Value, len(f.Named))
	for name, expr := range f.Named {
		v, err := expr.Evaluate(ctx)
		if err != nil {
			return message.Null, err
		}
		named[name] = v
	}
	return reg.Call(ctx, f.Name, positional, named)
}

// Evaluate returns an ErrUnknownFunction error unless the context also
// implements registryCarrier; see evalctx.Context.Registry, which every
// real evaluation context provides.
func (f FunctionCall) Evaluate(ctx message.EvalContext) (message.Value, error) {
	rc, ok := ctx.(registryCarrier)
	if !ok {
		return message.Null, fmt.Errorf("%w: function %q: evaluation context has no function registry", ErrUnknownFunction, f.Name)
	}
	return f.Call(ctx, rc.Registry())
}

type registryCarrier interface {
	Registry() FunctionRegistry
}

func (f FunctionCall) StaticType() TypeTag { return TypeUnknown }

// BinaryOp identifies an arithmetic binary operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Binary implements arithmetic `+ - * / %` (spec.md §4.1).
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (b Binary) Evaluate(ctx message.EvalContext) (message.Value, error) {
	left, err := b.Left.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}
	right, err := b.Right.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}

	if b.Op == OpAdd && (left.Kind() == message.KindString || right.Kind() == message.KindString) {
		return message.String(left.String() + right.String()), nil
	}

	if !left.IsNumeric() || !right.IsNumeric() {
		return message.Null, fmt.Errorf("%w: arithmetic operand is not numeric (%s, %s)", ErrTypeMismatch, left.Kind(), right.Kind())
	}

	if left.IsIntegral() && right.IsIntegral() {
		l, _ := left.AsLong()
		r, _ := right.AsLong()
		switch b.Op {
		case OpAdd:
			return message.Long(l + r), nil
		case OpSub:
			return message.Long(l - r), nil
		case OpMul:
			return message.Long(l * r), nil
		case OpDiv:
			if r == 0 {
				return message.Null, ErrDivisionByZero
			}
			return message.Long(l / r), nil
		case OpMod:
			if r == 0 {
				return message.Null, ErrDivisionByZero
			}
			return message.Long(l % r), nil
		}
	}

	l, _ := left.AsDouble()
	r, _ := right.AsDouble()
	switch b.Op {
	case OpAdd:
		return message.Double(l + r), nil
	case OpSub:
		return message.Double(l - r), nil
	case OpMul:
		return message.Double(l * r), nil
	case OpDiv:
		return message.Double(l / r), nil
	case OpMod:
		return message.Double(math.Mod(l, r)), nil
	}
	return message.Null, fmt.Errorf("%w: unknown binary operator", ErrTypeMismatch)
}

func (b Binary) StaticType() TypeTag { return TypeUnknown }

// UnaryOp identifies a unary operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

// Unary implements numeric negation and boolean not.
type Unary struct {
	Op      UnaryOp
	Operand Expression
}

func (u Unary) Evaluate(ctx message.EvalContext) (message.Value, error) {
	v, err := u.Operand.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}
	switch u.Op {
	case OpNeg:
		if v.IsIntegral() {
			l, _ := v.AsLong()
			return message.Long(-l), nil
		}
		if v.IsNumeric() {
			d, _ := v.AsDouble()
			return message.Double(-d), nil
		}
		return message.Null, fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, v.Kind())
	case OpNot:
		return message.Bool(!v.Truthy()), nil
	default:
		return message.Null, fmt.Errorf("%w: unknown unary operator", ErrTypeMismatch)
	}
}

func (u Unary) StaticType() TypeTag {
	if u.Op == OpNot {
		return TypeBoolean
	}
	return TypeUnknown
}

// CompareOp identifies a comparison operator.
type CompareOp int

const (
	CmpLT CompareOp = iota
	CmpLE
	CmpGT
	CmpGE
	CmpEQ
	CmpNE
)

// Comparison implements `< <= > >= == !=` (spec.md §4.1): numeric
// comparisons promote integral to double when mixed; `==` between numeric
// and non-numeric is false without error.
type Comparison struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

func (c Comparison) Evaluate(ctx message.EvalContext) (message.Value, error) {
	left, err := c.Left.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}
	right, err := c.Right.Evaluate(ctx)
	if err != nil {
		return message.Null, err
	}

	if c.Op == CmpEQ {
		return message.Bool(left.Equal(right)), nil
	}
	if c.Op == CmpNE {
		return message.Bool(!left.Equal(right)), nil
	}

	if !left.IsNumeric() || !right.IsNumeric() {
		return message.Null, fmt.Errorf("%w: ordering comparison requires numeric operands (%s, %s)", ErrTypeMismatch, left.Kind(), right.Kind())
	}
	l, _ := left.AsDouble()
	r, _ := right.AsDouble()
	var result bool
	switch c.Op {
	case CmpLT:
		result = l < r
	case CmpLE:
		result = l <= r
	case CmpGT:
		result = l > r
	case CmpGE:
		result = l >= r
	}
	return message.Bool(result), nil
}

func (c Comparison) StaticType() TypeTag { return TypeBoolean }

// LogicalOp identifies a logical operator.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
	OpNotLogical
)

// Logical implements short-circuit `and`/`or`/`not` (spec.md §4.1).
type Logical struct {
	Op        LogicalOp
	Operands  []Expression
}

func (l Logical) Evaluate(ctx message.EvalContext) (message.Value, error) {
	switch l.Op {
	case OpAnd:
		result := true
		for _, operand := range l.Operands {
			v, err := operand.Evaluate(ctx)
			if err != nil {
				return message.Null, err
			}
			if !v.Truthy() {
				return message.Bool(false), nil
			}
			result = result && v.Truthy()
		}
		return message.Bool(result), nil
	case OpOr:
		for _, operand := range l.Operands {
			v, err := operand.Evaluate(ctx)
			if err != nil {
				return message.Null, err
			}
			if v.Truthy() {
				return message.Bool(true), nil
			}
		}
		return message.Bool(false), nil
	case OpNotLogical:
		if len(l.Operands) != 1 {
			return message.Null, fmt.Errorf("%w: not takes exactly one operand", ErrArityMismatch)
		}
		v, err := l.Operands[0].Evaluate(ctx)
		if err != nil {
			return message.Null, err
		}
		return message.Bool(!v.Truthy()), nil
	default:
		return message.Null, fmt.Errorf("%w: unknown logical operator", ErrTypeMismatch)
	}
}

func (l Logical) StaticType() TypeTag { return TypeBoolean }

// ParseLongLiteral parses a literal integer token into a Constant. Used by
// sourcing/parser.
func ParseLongLiteral(text string) (Constant, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Constant{}, err
	}
	return Constant{Value: message.Long(v)}, nil
}

// ParseDoubleLiteral parses a literal float token into a Constant.
func ParseDoubleLiteral(text string) (Constant, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Constant{}, err
	}
	return Constant{Value: message.Double(v)}, nil
}
