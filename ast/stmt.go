package ast

import "github.com/flowforge/ruleflow/message"

// Statement is implemented by every AST statement node.
type Statement interface {
	message.Executor
}

// Let binds the result of an expression to a context-local variable.
type Let struct {
	Name string
	Expr Expression
}

func (l Let) Execute(ctx message.EvalContext) error {
	v, err := l.Expr.Evaluate(ctx)
	if err != nil {
		return err
	}
	ctx.SetVar(l.Name, v)
	return nil
}

// ExprStatement evaluates an expression for its side effects and discards
// the result.
type ExprStatement struct {
	Expr Expression
}

func (e ExprStatement) Execute(ctx message.EvalContext) error {
	_, err := e.Expr.Evaluate(ctx)
	return err
}

// FunctionCallStatement evaluates a function call for its side effects.
// Distinguished from ExprStatement so rule authors can write a call as a
// bare statement without an intervening expression wrapper, matching
// spec.md §3's Statement variant list.
type FunctionCallStatement struct {
	Call FunctionCall
}

func (f FunctionCallStatement) Execute(ctx message.EvalContext) error {
	_, err := f.Call.Evaluate(ctx)
	return err
}
