package parser

import (
	"fmt"

	"github.com/flowforge/ruleflow/ast"
	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/sourcing"
)

// Parser implements sourcing.Parser with the grammar described in lexer.go.
type Parser struct{}

// New returns a ready-to-use Parser. It carries no state between calls.
func New() *Parser { return &Parser{} }

var _ sourcing.Parser = (*Parser)(nil)

type parseState struct {
	sourceID string
	toks     []token
	pos      int
}

func tokenize(sourceID, src string) ([]token, error) {
	lx := newLexer(src)
	var toks []token
	for {
		t, err := lx.next()
		if err != nil {
			return nil, &sourcing.ParseError{SourceID: sourceID, Message: err.Error()}
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	return toks, nil
}

func (p *parseState) fail(format string, args ...any) error {
	tok := p.cur()
	return &sourcing.ParseError{
		SourceID: p.sourceID,
		Line:     tok.line,
		Column:   tok.column,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (p *parseState) cur() token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *parseState) advance() token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parseState) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parseState) isSymbol(s string) bool {
	t := p.cur()
	return t.kind == tokSymbol && t.text == s
}

func (p *parseState) isKeyword(k string) bool {
	t := p.cur()
	return t.kind == tokKeyword && t.text == k
}

func (p *parseState) expectSymbol(s string) (token, error) {
	if !p.isSymbol(s) {
		return token{}, p.fail("expected %q, got %q", s, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parseState) expectKeyword(k string) (token, error) {
	if !p.isKeyword(k) {
		return token{}, p.fail("expected keyword %q, got %q", k, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parseState) expectString() (string, error) {
	t := p.cur()
	if t.kind != tokString {
		return "", p.fail("expected string literal, got %q", t.text)
	}
	p.advance()
	return t.text, nil
}

func (p *parseState) expectIdent() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", p.fail("expected identifier, got %q", t.text)
	}
	p.advance()
	return t.text, nil
}

// ParseRule parses a single `rule "name" { when ... then ...; }` block.
func (p *Parser) ParseRule(sourceID, source string) (*message.Rule, error) {
	toks, err := tokenize(sourceID, source)
	if err != nil {
		return nil, err
	}
	st := &parseState{sourceID: sourceID, toks: toks}
	rule, err := st.parseRuleBlock()
	if err != nil {
		return nil, err
	}
	if !st.atEOF() {
		return nil, st.fail("unexpected trailing input after rule")
	}
	rule.SourceID = sourceID
	return rule, nil
}

// ParsePipeline parses a single `pipeline "name" { stage ... }` block.
func (p *Parser) ParsePipeline(sourceID, source string) (*message.Pipeline, error) {
	toks, err := tokenize(sourceID, source)
	if err != nil {
		return nil, err
	}
	st := &parseState{sourceID: sourceID, toks: toks}
	pipeline, err := st.parsePipelineBlock()
	if err != nil {
		return nil, err
	}
	if !st.atEOF() {
		return nil, st.fail("unexpected trailing input after pipeline")
	}
	pipeline.SourceID = sourceID
	if err := pipeline.Validate(); err != nil {
		return nil, &sourcing.ParseError{SourceID: sourceID, Message: err.Error()}
	}
	return pipeline, nil
}

func (p *parseState) parseRuleBlock() (*message.Rule, error) {
	if _, err := p.expectKeyword("rule"); err != nil {
		return nil, err
	}
	name, err := p.expectString()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("when"); err != nil {
		return nil, err
	}
	when, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	var stmts []message.Executor
	for !p.isSymbol("}") {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if _, err := p.expectSymbol(";"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return &message.Rule{Name: name, When: when, Then: stmts}, nil
}

func (p *parseState) parsePipelineBlock() (*message.Pipeline, error) {
	if _, err := p.expectKeyword("pipeline"); err != nil {
		return nil, err
	}
	name, err := p.expectString()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var stages []*message.Stage
	for p.isKeyword("stage") {
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	if _, err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return &message.Pipeline{ID: name, Name: name, Stages: stages}, nil
}

func (p *parseState) parseStage() (*message.Stage, error) {
	if _, err := p.expectKeyword("stage"); err != nil {
		return nil, err
	}
	numTok := p.cur()
	if numTok.kind != tokNumber {
		return nil, p.fail("expected stage number, got %q", numTok.text)
	}
	p.advance()
	var number int
	if _, err := fmt.Sscanf(numTok.text, "%d", &number); err != nil {
		return nil, p.fail("invalid stage number %q", numTok.text)
	}
	if _, err := p.expectKeyword("match"); err != nil {
		return nil, err
	}
	matchAll := false
	switch {
	case p.isKeyword("all"):
		matchAll = true
		p.advance()
	case p.isKeyword("any"):
		p.advance()
	default:
		return nil, p.fail("expected 'all' or 'any', got %q", p.cur().text)
	}
	var refs []string
	for p.isKeyword("rule") {
		p.advance()
		name, err := p.expectString()
		if err != nil {
			return nil, err
		}
		refs = append(refs, name)
		if _, err := p.expectSymbol(";"); err != nil {
			return nil, err
		}
	}
	return &message.Stage{Number: number, MatchAll: matchAll, RuleReferences: refs}, nil
}

func (p *parseState) parseStatement() (message.Executor, error) {
	if p.isKeyword("let") {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.Let{Name: name, Expr: expr}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if call, ok := expr.(ast.FunctionCall); ok {
		return ast.FunctionCallStatement{Call: call}, nil
	}
	return ast.ExprStatement{Expr: expr}, nil
}

func (p *parseState) parseExpr() (ast.Expression, error) { return p.parseOr() }

func (p *parseState) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []ast.Expression{left}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return ast.Logical{Op: ast.OpOr, Operands: operands}, nil
}

func (p *parseState) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []ast.Expression{left}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return ast.Logical{Op: ast.OpAnd, Operands: operands}, nil
}

func (p *parseState) parseNot() (ast.Expression, error) {
	if p.isKeyword("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return ast.Logical{Op: ast.OpNotLogical, Operands: []ast.Expression{operand}}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]ast.CompareOp{
	"<": ast.CmpLT, "<=": ast.CmpLE, ">": ast.CmpGT, ">=": ast.CmpGE,
	"==": ast.CmpEQ, "!=": ast.CmpNE,
}

func (p *parseState) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	t := p.cur()
	if t.kind == tokSymbol {
		if op, ok := compareOps[t.text]; ok {
			p.advance()
			right, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			return ast.Comparison{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parseState) parseAdd() (ast.Expression, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("+") || p.isSymbol("-") {
		op := ast.OpAdd
		if p.isSymbol("-") {
			op = ast.OpSub
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parseState) parseMul() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("*") || p.isSymbol("/") || p.isSymbol("%") {
		var op ast.BinaryOp
		switch {
		case p.isSymbol("*"):
			op = ast.OpMul
		case p.isSymbol("/"):
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parseState) parseUnary() (ast.Expression, error) {
	if p.isSymbol("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.OpNeg, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parseState) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isSymbol("."):
			p.advance()
			field, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			expr = ast.FieldAccess{Target: expr, Field: field}
		case p.isSymbol("["):
			p.advance()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			expr = ast.Indexed{Target: expr, Key: key}
		default:
			return expr, nil
		}
	}
}

func (p *parseState) parsePrimary() (ast.Expression, error) {
	t := p.cur()
	switch {
	case t.kind == tokNumber:
		p.advance()
		if containsDot(t.text) {
			c, err := ast.ParseDoubleLiteral(t.text)
			if err != nil {
				return nil, p.fail("invalid number literal %q", t.text)
			}
			return c, nil
		}
		c, err := ast.ParseLongLiteral(t.text)
		if err != nil {
			return nil, p.fail("invalid number literal %q", t.text)
		}
		return c, nil

	case t.kind == tokString:
		p.advance()
		return ast.Constant{Value: message.String(t.text)}, nil

	case t.kind == tokKeyword && t.text == "true":
		p.advance()
		return ast.Constant{Value: message.Bool(true)}, nil

	case t.kind == tokKeyword && t.text == "false":
		p.advance()
		return ast.Constant{Value: message.Bool(false)}, nil

	case t.kind == tokKeyword && t.text == "null":
		p.advance()
		return ast.Constant{Value: message.Null}, nil

	case t.kind == tokIdent:
		p.advance()
		if p.isSymbol("(") {
			return p.parseCallArgs(t.text)
		}
		return ast.VarRef{Name: t.text}, nil

	case t.kind == tokSymbol && t.text == "(":
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.fail("unexpected token %q", t.text)
	}
}

func (p *parseState) parseCallArgs(name string) (ast.Expression, error) {
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var positional []ast.Expression
	named := map[string]ast.Expression{}
	for !p.isSymbol(")") {
		if p.cur().kind == tokIdent && p.peekIsColon() {
			argName, _ := p.expectIdent()
			if _, err := p.expectSymbol(":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			named[argName] = val
		} else {
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			positional = append(positional, val)
		}
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return ast.FunctionCall{Name: name, Positional: positional, Named: named}, nil
}

func (p *parseState) peekIsColon() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	next := p.toks[p.pos+1]
	return next.kind == tokSymbol && next.text == ":"
}

func containsDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}
