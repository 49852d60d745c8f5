// Package directive routes "#" lines to their handlers. Dispatch is a
// table lookup on the directive name; each handler consumes its operand
// line and returns the (possibly respliced) token stream together with
// the index to continue scanning from.
package directive

import (
	"strconv"
	"strings"

	"github.com/aoweichenn/cc11/internal/cond"
	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/include"
	"github.com/aoweichenn/cc11/internal/macro"
	"github.com/aoweichenn/cc11/internal/token"
)

// handler processes one directive with di at the directive name token.
type handler func(d *Dispatcher, toks []*token.Token, di int) ([]*token.Token, int, error)

var handlers = map[string]handler{
	"include":      (*Dispatcher).include,
	"include_next": (*Dispatcher).includeNext,
	"define":       (*Dispatcher).define,
	"undef":        (*Dispatcher).undef,
	"if":           (*Dispatcher).ifDirective,
	"ifdef":        (*Dispatcher).ifdef,
	"ifndef":       (*Dispatcher).ifndef,
	"elif":         (*Dispatcher).elif,
	"else":         (*Dispatcher).elseDirective,
	"endif":        (*Dispatcher).endif,
	"pragma":       (*Dispatcher).pragma,
	"line":         (*Dispatcher).line,
	"error":        (*Dispatcher).errorDirective,
}

// Dispatcher wires the directive table to the engine components.
type Dispatcher struct {
	rep    *diag.Reporter
	macros *macro.Manager
	conds  *cond.Stack
	incs   *include.Manager
}

func New(rep *diag.Reporter, macros *macro.Manager, conds *cond.Stack, incs *include.Manager) *Dispatcher {
	return &Dispatcher{rep: rep, macros: macros, conds: conds, incs: incs}
}

// Dispatch handles the directive whose "#" sits at toks[i]. The null
// directive (a lone "#") is the caller's business; here toks[i+1] must
// name a known directive.
func (d *Dispatcher) Dispatch(toks []*token.Token, i int) ([]*token.Token, int, error) {
	name := toks[i+1]
	if name.Kind != token.Ident {
		return nil, 0, d.rep.Errorf(name, diag.InvalidDirective, "%q", name.Text)
	}
	h, ok := handlers[name.Text]
	if !ok {
		return nil, 0, d.rep.Errorf(name, diag.InvalidDirective, "#%s", name.Text)
	}
	return h(d, toks, i+1)
}

// skipLine advances to the next logical line, warning once about any
// unconsumed operand tokens.
func (d *Dispatcher) skipLine(toks []*token.Token, i int) int {
	if i < len(toks) && toks[i].Kind != token.EOF && !toks[i].AtBOL {
		d.rep.Warnf(toks[i], "extra token %q after directive", toks[i].Text)
	}
	return lineEnd(toks, i)
}

func lineEnd(toks []*token.Token, i int) int {
	for ; i < len(toks); i++ {
		if toks[i].Kind == token.EOF || toks[i].AtBOL {
			break
		}
	}
	return i
}

func (d *Dispatcher) include(toks []*token.Token, di int) ([]*token.Token, int, error) {
	return d.includeWith(toks, di, false)
}

func (d *Dispatcher) includeNext(toks []*token.Token, di int) ([]*token.Token, int, error) {
	return d.includeWith(toks, di, true)
}

func (d *Dispatcher) includeWith(toks []*token.Token, di int, next bool) ([]*token.Token, int, error) {
	name, angled, after, err := d.incs.ReadFilename(d.macros, toks, di+1)
	if err != nil {
		return nil, 0, err
	}
	after = d.skipLine(toks, after)
	if name == "" {
		// unusable operand, already warned
		return toks, after, nil
	}

	var body []*token.Token
	if next {
		body, err = d.incs.IncludeNext(d.macros, toks[di], name)
	} else {
		body, err = d.incs.Include(d.macros, toks[di], name, angled)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(body) == 0 {
		return toks, after, nil
	}
	return append(body, toks[after:]...), 0, nil
}

func (d *Dispatcher) define(toks []*token.Token, di int) ([]*token.Token, int, error) {
	name := toks[di+1]
	if name.Kind != token.Ident || name.AtBOL {
		return nil, 0, d.rep.Errorf(toks[di], diag.InvalidDirective,
			"macro name must be an identifier")
	}

	// "(" immediately after the name (no whitespace) opens a parameter
	// list; otherwise the rest of the line is an object-like body
	if di+2 < len(toks) && toks[di+2].IsPunct("(") && !toks[di+2].HasSpace && !toks[di+2].AtBOL {
		params, vaName, bodyStart, err := d.readParams(toks, di+3)
		if err != nil {
			return nil, 0, err
		}
		body, next := token.CopyLine(toks, bodyStart)
		d.macros.DefineFunction(name.Text, params, vaName, body)
		return toks, next, nil
	}

	body, next := token.CopyLine(toks, di+2)
	d.macros.DefineObject(name.Text, body)
	return toks, next, nil
}

// readParams parses a function-like macro's parameter list, with i just
// past the opening "(". Returns the parameter names, the variadic
// binding name ("" when non-variadic) and the body start index.
func (d *Dispatcher) readParams(toks []*token.Token, i int) ([]string, string, int, error) {
	var params []string
	vaName := ""
	seen := make(map[string]bool)

	expectComma := false
	for {
		t := toks[i]
		if t.Kind == token.EOF || t.AtBOL {
			return nil, "", 0, d.rep.Errorf(t, diag.MismatchedParens,
				"missing ')' in macro parameter list")
		}
		if t.IsPunct(")") {
			return params, vaName, i + 1, nil
		}
		if expectComma {
			if !t.IsPunct(",") {
				return nil, "", 0, d.rep.Errorf(t, diag.InvalidDirective,
					"expected ',' or ')' in macro parameter list, got %q", t.Text)
			}
			expectComma = false
			i++
			continue
		}
		if vaName != "" {
			return nil, "", 0, d.rep.Errorf(t, diag.InvalidDirective,
				"'...' must be the last macro parameter")
		}
		switch {
		case t.IsPunct("..."):
			vaName = "__VA_ARGS__"
		case t.Kind == token.Ident:
			if seen[t.Text] {
				return nil, "", 0, d.rep.Errorf(t, diag.DuplicateMacroParam, "%q", t.Text)
			}
			seen[t.Text] = true
			if i+1 < len(toks) && toks[i+1].IsPunct("...") {
				// named variadic parameter, GNU style
				vaName = t.Text
				i++
			} else {
				params = append(params, t.Text)
			}
		default:
			return nil, "", 0, d.rep.Errorf(t, diag.InvalidDirective,
				"invalid macro parameter %q", t.Text)
		}
		expectComma = true
		i++
	}
}

func (d *Dispatcher) undef(toks []*token.Token, di int) ([]*token.Token, int, error) {
	name := toks[di+1]
	if name.Kind != token.Ident || name.AtBOL {
		return nil, 0, d.rep.Errorf(toks[di], diag.InvalidDirective,
			"macro name must be an identifier")
	}
	d.macros.Undef(name.Text)
	return toks, d.skipLine(toks, di+2), nil
}

func (d *Dispatcher) ifDirective(toks []*token.Token, di int) ([]*token.Token, int, error) {
	anchor := toks[di]
	val, next, err := d.conds.EvalConstExpr(anchor, d.macros, toks, di+1)
	if err != nil {
		return nil, 0, err
	}
	d.conds.Push(anchor, val != 0)
	if val != 0 {
		return toks, next, nil
	}
	return d.skipBranch(toks, anchor, next)
}

func (d *Dispatcher) ifdef(toks []*token.Token, di int) ([]*token.Token, int, error) {
	return d.ifDefined(toks, di, true)
}

func (d *Dispatcher) ifndef(toks []*token.Token, di int) ([]*token.Token, int, error) {
	return d.ifDefined(toks, di, false)
}

func (d *Dispatcher) ifDefined(toks []*token.Token, di int, want bool) ([]*token.Token, int, error) {
	anchor := toks[di]
	name := toks[di+1]
	if name.Kind != token.Ident || name.AtBOL {
		return nil, 0, d.rep.Errorf(anchor, diag.InvalidDirective,
			"macro name must be an identifier")
	}
	next := d.skipLine(toks, di+2)
	included := d.macros.IsDefined(name.Text) == want
	d.conds.Push(anchor, included)
	if included {
		return toks, next, nil
	}
	return d.skipBranch(toks, anchor, next)
}

func (d *Dispatcher) elif(toks []*token.Token, di int) ([]*token.Token, int, error) {
	anchor := toks[di]
	top := d.conds.Top()
	if top == nil || top.Ctx == cond.InElse {
		return nil, 0, d.rep.Errorf(anchor, diag.InvalidDirective, "stray #elif")
	}
	top.Ctx = cond.InElif
	if top.Included {
		// the chain already took a branch; the condition is not evaluated
		next, closed, err := d.conds.Skip(anchor, toks, lineEnd(toks, di+1))
		if err != nil {
			return nil, 0, err
		}
		return d.afterSkip(toks, anchor, next, closed)
	}
	val, next, err := d.conds.EvalConstExpr(anchor, d.macros, toks, di+1)
	if err != nil {
		return nil, 0, err
	}
	if val != 0 {
		top.Included = true
		return toks, next, nil
	}
	return d.skipBranch(toks, anchor, next)
}

func (d *Dispatcher) elseDirective(toks []*token.Token, di int) ([]*token.Token, int, error) {
	anchor := toks[di]
	top := d.conds.Top()
	if top == nil || top.Ctx == cond.InElse {
		return nil, 0, d.rep.Errorf(anchor, diag.InvalidDirective, "stray #else")
	}
	top.Ctx = cond.InElse
	next := d.skipLine(toks, di+1)
	if top.Included {
		nxt, closed, err := d.conds.Skip(anchor, toks, next)
		if err != nil {
			return nil, 0, err
		}
		return d.afterSkip(toks, anchor, nxt, closed)
	}
	top.Included = true
	return toks, next, nil
}

func (d *Dispatcher) endif(toks []*token.Token, di int) ([]*token.Token, int, error) {
	if err := d.conds.Pop(toks[di]); err != nil {
		return nil, 0, err
	}
	return toks, d.skipLine(toks, di+1), nil
}

// skipBranch jumps past an excluded branch. The cursor lands either on
// the "#" of the next elif/else for redispatch, or past a consumed
// #endif with the conditional popped.
func (d *Dispatcher) skipBranch(toks []*token.Token, anchor *token.Token, i int) ([]*token.Token, int, error) {
	next, closed, err := d.conds.Skip(anchor, toks, i)
	if err != nil {
		return nil, 0, err
	}
	return d.afterSkip(toks, anchor, next, closed)
}

func (d *Dispatcher) afterSkip(toks []*token.Token, anchor *token.Token, next int, closed bool) ([]*token.Token, int, error) {
	if closed {
		if err := d.conds.Pop(anchor); err != nil {
			return nil, 0, err
		}
		next = d.skipLine(toks, next)
	}
	return toks, next, nil
}

func (d *Dispatcher) pragma(toks []*token.Token, di int) ([]*token.Token, int, error) {
	t := toks[di+1]
	if t.Equals("once") {
		d.incs.MarkOnce(toks[di].GetFile().Name)
		return toks, d.skipLine(toks, di+2), nil
	}
	if t.Kind == token.EOF || t.AtBOL {
		d.rep.Warnf(toks[di], "%s", d.rep.Registry().Message(diag.UnknownPragma))
		return toks, lineEnd(toks, di+1), nil
	}
	d.rep.Warnf(t, "%s (#pragma %s)", d.rep.Registry().Message(diag.UnknownPragma), t.Text)
	return toks, lineEnd(toks, di+1), nil
}

// line implements #line: subsequent lines of the current file report as
// if the next one were the given number, optionally under a new name.
func (d *Dispatcher) line(toks []*token.Token, di int) ([]*token.Token, int, error) {
	anchor := toks[di]
	operand, next := token.CopyLine(toks, di+1)
	operand = append(operand, token.NewEOF(nil))
	expanded, err := d.macros.ExpandAll(operand)
	if err != nil {
		return nil, 0, err
	}

	if len(expanded) == 0 || (expanded[0].Kind != token.PPNum && expanded[0].Kind != token.Num) {
		return nil, 0, d.rep.Errorf(anchor, diag.InvalidLineDirective, "")
	}
	n, convErr := strconv.Atoi(expanded[0].Text)
	if convErr != nil || n < 0 {
		return nil, 0, d.rep.Errorf(anchor, diag.InvalidLineDirective, "%q", expanded[0].Text)
	}

	file := anchor.GetFile()
	file.LineDelta = n - anchor.Line - 1
	if len(expanded) > 1 && expanded[1].Kind == token.Str {
		file.Display = expanded[1].Str
	} else if len(expanded) > 1 && expanded[1].Kind != token.EOF {
		return nil, 0, d.rep.Errorf(anchor, diag.InvalidLineDirective,
			"expected file name, got %q", expanded[1].Text)
	}
	return toks, next, nil
}

func (d *Dispatcher) errorDirective(toks []*token.Token, di int) ([]*token.Token, int, error) {
	line, _ := token.CopyLine(toks, di+1)
	var b strings.Builder
	for k, t := range line {
		if k > 0 && t.HasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return nil, 0, d.rep.Errorf(toks[di], diag.UserErrorDirective, "%s", b.String())
}
