// Package cond tracks nested conditional directives. Each #if/#ifdef/
// #ifndef pushes an entry recording which phase of the chain is active
// and whether any branch has been taken yet; skipping an excluded branch
// is a flat scan that counts nesting without evaluating anything.
package cond

import (
	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/expr"
	"github.com/aoweichenn/cc11/internal/token"
)

// Ctx is the phase of a conditional chain.
type Ctx int

const (
	InThen Ctx = iota
	InElif
	InElse
)

// Entry is one open conditional.
type Entry struct {
	Ctx      Ctx
	Tok      *token.Token // the directive name token that opened the chain
	Included bool         // a branch of this chain has been taken
}

// Stack is the open-conditional stack.
type Stack struct {
	rep     *diag.Reporter
	entries []*Entry
}

func NewStack(rep *diag.Reporter) *Stack {
	return &Stack{rep: rep}
}

func (s *Stack) Push(tok *token.Token, included bool) *Entry {
	e := &Entry{Tok: tok, Included: included}
	s.entries = append(s.entries, e)
	return e
}

// Pop closes the innermost conditional. Popping an empty stack is a
// stray #endif.
func (s *Stack) Pop(at *token.Token) error {
	if len(s.entries) == 0 {
		return s.rep.Errorf(at, diag.InvalidDirective, "stray #endif")
	}
	s.entries = s.entries[:len(s.entries)-1]
	return nil
}

// Top returns the innermost open conditional, or nil.
func (s *Stack) Top() *Entry {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

func (s *Stack) Empty() bool { return len(s.entries) == 0 }

func (s *Stack) Depth() int { return len(s.entries) }

// Unclosed returns the directive token of the innermost conditional still
// open, for the end-of-input diagnostic.
func (s *Stack) Unclosed() *token.Token {
	if e := s.Top(); e != nil {
		return e.Tok
	}
	return nil
}

// Skip advances past an excluded branch starting at toks[i]. Nested
// conditionals are counted, not evaluated. On a depth-zero #elif or
// #else the cursor stops at the "#" so the dispatcher sees the directive;
// a depth-zero #endif is consumed and closed=true tells the caller to
// pop. Hitting end of input is a missing #endif.
func (s *Stack) Skip(anchor *token.Token, toks []*token.Token, i int) (next int, closed bool, err error) {
	depth := 0
	for i < len(toks) {
		t := toks[i]
		if t.Kind == token.EOF {
			break
		}
		if !t.IsHash() || !t.AtBOL {
			i++
			continue
		}
		d := toks[i+1]
		switch {
		case d.Equals("if") || d.Equals("ifdef") || d.Equals("ifndef"):
			depth++
			i += 2
		case d.Equals("elif") || d.Equals("else"):
			if depth == 0 {
				return i, false, nil
			}
			i += 2
		case d.Equals("endif"):
			if depth == 0 {
				return i + 2, true, nil
			}
			depth--
			i += 2
		default:
			i++
		}
	}
	return 0, false, s.rep.Errorf(anchor, diag.UnterminatedConditional, "opened here")
}

// MacroExpander is the slice of the macro engine conditionals need.
type MacroExpander interface {
	IsDefined(name string) bool
	ExpandAll(toks []*token.Token) ([]*token.Token, error)
}

// EvalConstExpr evaluates the controlling expression of #if/#elif, with
// toks[i] the first expression token. The line is copied out, `defined`
// is resolved before macro expansion, surviving identifiers become 0,
// then the result is computed. next indexes the first token after the
// directive line in the original stream.
func (s *Stack) EvalConstExpr(anchor *token.Token, macros MacroExpander, toks []*token.Token, i int) (int64, int, error) {
	line, next := token.CopyLine(toks, i)

	resolved := make([]*token.Token, 0, len(line)+1)
	for j := 0; j < len(line); {
		t := line[j]
		if t.Equals("defined") {
			name, adv, err := s.definedOperand(line, j)
			if err != nil {
				return 0, 0, err
			}
			v := int64(0)
			if macros.IsDefined(name) {
				v = 1
			}
			resolved = append(resolved, numTok(t, v))
			j = adv
			continue
		}
		resolved = append(resolved, t)
		j++
	}
	resolved = append(resolved, token.NewEOF(nil))

	expanded, err := macros.ExpandAll(resolved)
	if err != nil {
		return 0, 0, err
	}
	// remaining identifiers are undefined macros and evaluate to 0
	for _, t := range expanded {
		if t.Kind == token.Ident {
			t.Kind = token.Num
			t.Val = 0
		}
	}

	val, err := expr.Eval(s.rep, anchor, expanded)
	if err != nil {
		return 0, 0, err
	}
	return val, next, nil
}

// definedOperand parses `defined NAME` or `defined(NAME)` with j at
// "defined", returning the name and the index past the form.
func (s *Stack) definedOperand(line []*token.Token, j int) (string, int, error) {
	if j+1 < len(line) && line[j+1].IsPunct("(") {
		if j+2 >= len(line) || line[j+2].Kind != token.Ident {
			return "", 0, s.rep.Errorf(line[j], diag.InvalidDirective,
				"macro name must be an identifier")
		}
		if j+3 >= len(line) || !line[j+3].IsPunct(")") {
			return "", 0, s.rep.Errorf(line[j], diag.MismatchedParens,
				"missing ')' after defined(%s", line[j+2].Text)
		}
		return line[j+2].Text, j + 4, nil
	}
	if j+1 >= len(line) || line[j+1].Kind != token.Ident {
		return "", 0, s.rep.Errorf(line[j], diag.InvalidDirective,
			"macro name must be an identifier")
	}
	return line[j+1].Text, j + 2, nil
}

func numTok(at *token.Token, val int64) *token.Token {
	text := "0"
	if val != 0 {
		text = "1"
	}
	t := token.New(token.Num, text, at.GetFile(), at.Line)
	t.Val = val
	t.HasSpace = at.HasSpace
	return t
}
