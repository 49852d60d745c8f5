// Package expr evaluates the integer constant expressions behind #if and
// #elif. It receives a token stream that already had `defined` resolved
// and stray identifiers replaced by 0, and computes a signed 64-bit
// result with precedence climbing.
package expr

import (
	"strconv"
	"strings"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/token"
)

// binPrec orders binary operators; higher binds tighter.
var binPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// Eval computes the value of a constant expression. The anchor token
// locates diagnostics for conditions the stream itself cannot place,
// such as an entirely empty expression.
func Eval(rep *diag.Reporter, anchor *token.Token, toks []*token.Token) (int64, error) {
	if len(toks) == 0 || toks[0].Kind == token.EOF {
		return 0, rep.Errorf(anchor, diag.EmptyConstExpr, "")
	}
	p := &parser{rep: rep, anchor: anchor, toks: toks}
	val, err := p.binary(1)
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t != nil && t.Kind != token.EOF {
		return 0, rep.Errorf(t, diag.InvalidDirective, "extra token %q in constant expression", t.Text)
	}
	return val, nil
}

type parser struct {
	rep    *diag.Reporter
	anchor *token.Token
	toks   []*token.Token
	i      int
}

// at locates a diagnostic, falling back to the anchor when the stream
// ran out.
func (p *parser) at(t *token.Token) *token.Token {
	if t == nil {
		return p.anchor
	}
	return t
}

func (p *parser) peek() *token.Token {
	if p.i >= len(p.toks) {
		return nil
	}
	return p.toks[p.i]
}

func (p *parser) binary(minPrec int) (int64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op == nil || op.Kind != token.Punct {
			return lhs, nil
		}
		prec, ok := binPrec[op.Text]
		if !ok || prec < minPrec {
			return lhs, nil
		}
		p.i++
		rhs, err := p.binary(prec + 1)
		if err != nil {
			return 0, err
		}
		lhs, err = apply(p.rep, op, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
}

func apply(rep *diag.Reporter, op *token.Token, lhs, rhs int64) (int64, error) {
	switch op.Text {
	case "||":
		return b2i(lhs != 0 || rhs != 0), nil
	case "&&":
		return b2i(lhs != 0 && rhs != 0), nil
	case "|":
		return lhs | rhs, nil
	case "^":
		return lhs ^ rhs, nil
	case "&":
		return lhs & rhs, nil
	case "==":
		return b2i(lhs == rhs), nil
	case "!=":
		return b2i(lhs != rhs), nil
	case "<":
		return b2i(lhs < rhs), nil
	case "<=":
		return b2i(lhs <= rhs), nil
	case ">":
		return b2i(lhs > rhs), nil
	case ">=":
		return b2i(lhs >= rhs), nil
	case "<<":
		return lhs << uint64(rhs&63), nil
	case ">>":
		return lhs >> uint64(rhs&63), nil
	case "+":
		return lhs + rhs, nil
	case "-":
		return lhs - rhs, nil
	case "*":
		return lhs * rhs, nil
	case "/":
		if rhs == 0 {
			return 0, rep.Errorf(op, diag.DivisionByZero, "")
		}
		return lhs / rhs, nil
	case "%":
		if rhs == 0 {
			return 0, rep.Errorf(op, diag.DivisionByZero, "")
		}
		return lhs % rhs, nil
	}
	return 0, rep.Errorf(op, diag.InvalidDirective, "unexpected operator %q", op.Text)
}

func (p *parser) unary() (int64, error) {
	t := p.peek()
	if t == nil || t.Kind == token.EOF {
		return 0, p.rep.Errorf(p.at(t), diag.InvalidDirective, "unexpected end of constant expression")
	}
	if t.Kind == token.Punct {
		switch t.Text {
		case "!":
			p.i++
			v, err := p.unary()
			return b2i(v == 0), err
		case "~":
			p.i++
			v, err := p.unary()
			return ^v, err
		case "-":
			p.i++
			v, err := p.unary()
			return -v, err
		case "+":
			p.i++
			return p.unary()
		}
	}
	return p.primary()
}

func (p *parser) primary() (int64, error) {
	t := p.peek()
	switch {
	case t == nil || t.Kind == token.EOF:
		return 0, p.rep.Errorf(p.at(t), diag.InvalidDirective, "unexpected end of constant expression")
	case t.IsPunct("("):
		p.i++
		v, err := p.binary(1)
		if err != nil {
			return 0, err
		}
		if c := p.peek(); c == nil || !c.IsPunct(")") {
			return 0, p.rep.Errorf(t, diag.MismatchedParens, "missing ')'")
		}
		p.i++
		return v, nil
	case t.Kind == token.Num:
		p.i++
		return t.Val, nil
	case t.Kind == token.PPNum:
		p.i++
		return ppNumValue(p.rep, t)
	case t.Kind == token.Ident:
		// undefined identifiers in a constant expression are always 0
		p.i++
		return 0, nil
	}
	return 0, p.rep.Errorf(t, diag.InvalidDirective, "unexpected token %q in constant expression", t.Text)
}

// ppNumValue converts a preprocessing number to an integer, honoring
// 0x/0b/0 prefixes and stripping integer suffixes.
func ppNumValue(rep *diag.Reporter, t *token.Token) (int64, error) {
	s := strings.TrimRight(t.Text, "uUlL")
	if s == "" {
		return 0, rep.Errorf(t, diag.InvalidPPNumber, "%q", t.Text)
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, rep.Errorf(t, diag.InvalidPPNumber, "%q", t.Text)
	}
	return int64(v), nil
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
