// Package expr parses and evaluates the boolean conditions of `{{#if ...}}`
// blocks.
//
// Conditions are parsed into a small AST and walked directly; nothing is ever
// compiled or executed as code. Grammar, loosest binding first:
//
//	or      := and ( ("or" | "||") and )*
//	and     := compare ( ("and" | "&&") compare )*
//	compare := unary ( ("==" | "!=" | ">" | "<" | ">=" | "<=") unary )*
//	unary   := ("not" | "!") unary | primary
//	primary := literal | "-" number | var:name[:modifier] | "(" or ")"
package expr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"studyfeedback/domain/result"
	"studyfeedback/internal/feedback/coerce"
	"studyfeedback/internal/feedback/syntax"
	"studyfeedback/internal/feedback/variables"
)

// safeText is the character whitelist for condition text, checked on the
// author's text and again on every substituted value
var safeText = regexp.MustCompile(`^[\w\s+\-*/%<>=!&|().'",]*$`)

// Node is an expression tree node
type Node interface {
	node()
}

// Literal is a number, string, boolean or null
type Literal struct {
	Value interface{}
}

// VarRef reads one representative value of a variable
type VarRef struct {
	Name     string
	Modifier string
}

// Not negates its operand's truthiness
type Not struct {
	Operand Node
}

// Comparison applies a comparison operator
type Comparison struct {
	Op          string
	Left, Right Node
}

// Logical is a short-circuit && or ||
type Logical struct {
	Op          string
	Left, Right Node
}

func (Literal) node()    {}
func (VarRef) node()     {}
func (Not) node()        {}
func (Comparison) node() {}
func (Logical) node()    {}

// Logical operator spellings
const (
	OpAnd = "&&"
	OpOr  = "||"
)

// Safe reports whether the text outside var references stays inside the whitelist
func Safe(src string) bool {
	stripped := []byte(src)
	for _, atom := range syntax.FindAtoms(src) {
		for i := atom.Start; i < atom.End; i++ {
			stripped[i] = ' '
		}
	}
	return safeText.Match(stripped)
}

// Parse builds the expression tree for src
func Parse(src string) (Node, error) {
	if !Safe(src) {
		return nil, fmt.Errorf("condition contains disallowed characters")
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
	return node, nil
}

// Evaluate evaluates a condition against one participant's data. Any failure
// evaluates to false.
func Evaluate(src string, data *result.EnrichedResult) bool {
	return EvaluateWith(src, variables.Extract(data))
}

// EvaluateWith evaluates a condition against an already extracted variable set
func EvaluateWith(src string, vars variables.Set) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	node, err := Parse(src)
	if err != nil {
		return false
	}
	if !SubstitutionsSafe(node, vars) {
		return false
	}
	return coerce.Truthy(Eval(node, vars))
}

// SubstitutionsSafe reports whether every variable value in n, written out as
// a literal, stays inside the whitelist. A participant answer such as
// "Great study?" makes the whole condition false.
func SubstitutionsSafe(n Node, vars variables.Set) bool {
	switch t := n.(type) {
	case VarRef:
		return safeText.MatchString(literalForm(resolve(t, vars)))
	case Not:
		return SubstitutionsSafe(t.Operand, vars)
	case Comparison:
		return SubstitutionsSafe(t.Left, vars) && SubstitutionsSafe(t.Right, vars)
	case Logical:
		return SubstitutionsSafe(t.Left, vars) && SubstitutionsSafe(t.Right, vars)
	default:
		return true
	}
}

// literalForm writes v the way it would appear as a literal in the condition.
// Strings are quoted and escaped, so an embedded quote yields a backslash.
func literalForm(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "\x00"
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Eval walks the tree. Logical operators return an operand, as in most
// scripting languages; callers apply truthiness to the final value.
func Eval(n Node, vars variables.Set) interface{} {
	switch t := n.(type) {
	case Literal:
		return t.Value
	case VarRef:
		return resolve(t, vars)
	case Not:
		return !coerce.Truthy(Eval(t.Operand, vars))
	case Comparison:
		return coerce.Compare(Eval(t.Left, vars), t.Op, Eval(t.Right, vars))
	case Logical:
		left := Eval(t.Left, vars)
		if t.Op == OpAnd {
			if !coerce.Truthy(left) {
				return left
			}
			return Eval(t.Right, vars)
		}
		if coerce.Truthy(left) {
			return left
		}
		return Eval(t.Right, vars)
	default:
		return nil
	}
}

// resolve picks the last value for the last modifier and the first value
// otherwise; conditions never see a whole list.
func resolve(ref VarRef, vars variables.Set) interface{} {
	series, ok := vars.Get(ref.Name)
	if !ok {
		return nil
	}
	var v interface{}
	if ref.Modifier == syntax.ModifierLast {
		v, _ = series.Last()
	} else {
		v, _ = series.First()
	}
	return v
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Logical{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left = Logical{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseCompare() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokCompare {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Comparison{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokLiteral:
		return Literal{Value: tok.value}, nil
	case tokVar:
		return VarRef{Name: tok.name, Modifier: tok.modifier}, nil
	case tokMinus:
		num := p.next()
		f, ok := num.value.(float64)
		if num.kind != tokLiteral || !ok {
			return nil, fmt.Errorf("expected number after '-' at %d", tok.pos)
		}
		return Literal{Value: -f}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("expected ')' at %d", closing.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of condition")
	default:
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
}
