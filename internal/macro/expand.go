package macro

import (
	"strings"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/token"
)

// ExpandAll rescans a token stream until no macro invocation remains.
// The stream must be EOF-terminated. Each replacement is spliced in
// front of the unread remainder and scanning restarts, so names produced
// by one expansion can complete a call started by another.
func (m *Manager) ExpandAll(toks []*token.Token) ([]*token.Token, error) {
	for i := 0; i < len(toks); {
		if toks[i].Kind != token.Ident {
			i++
			continue
		}
		repl, next, ok, err := m.ExpandAt(toks, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			i++
			continue
		}
		toks = append(repl, toks[next:]...)
		i = 0
	}
	return toks, nil
}

// ExpandAt expands a single macro invocation starting at toks[i]. It
// reports ok=false when toks[i] does not start an invocation: not a
// defined macro name, hidden by its own hideset, or a function-like
// macro name without a following "(". next is the index of the first
// token after the consumed invocation.
func (m *Manager) ExpandAt(toks []*token.Token, i int) (repl []*token.Token, next int, ok bool, err error) {
	tok := toks[i]
	if tok.Kind != token.Ident || tok.Hidden(tok.Text) {
		return nil, 0, false, nil
	}
	mac, found := m.Find(tok.Text)
	if !found {
		return nil, 0, false, nil
	}

	switch mac := mac.(type) {
	case *Builtin:
		if err := m.charge(tok); err != nil {
			return nil, 0, false, err
		}
		repl = mac.Handler(tok)
		for _, r := range repl {
			r.HideFrom(tok)
			r.Hide(mac.Name)
		}
		adoptPosition(repl, tok)
		return repl, i + 1, true, nil

	case *Object:
		if err := m.charge(tok); err != nil {
			return nil, 0, false, err
		}
		repl, err = m.pasteAll(mac.Body)
		if err != nil {
			return nil, 0, false, err
		}
		for _, r := range repl {
			r.HideFrom(tok)
			r.Hide(mac.Name)
		}
		adoptPosition(repl, tok)
		return repl, i + 1, true, nil

	case *Function:
		if i+1 >= len(toks) || !toks[i+1].IsPunct("(") {
			// a bare function-like macro name is not an invocation
			return nil, 0, false, nil
		}
		if err := m.charge(tok); err != nil {
			return nil, 0, false, err
		}
		args, rparen, next, err := m.collectArgs(tok, mac, toks, i+2)
		if err != nil {
			return nil, 0, false, err
		}
		repl, err = m.subst(mac, args)
		if err != nil {
			return nil, 0, false, err
		}
		// Prosser: the result hideset is the intersection of the hidesets
		// at the macro name and at the closing paren, plus the name.
		inter := intersect(tok, rparen)
		for _, r := range repl {
			r.Hide(inter...)
			r.Hide(mac.Name)
		}
		adoptPosition(repl, tok)
		return repl, next, true, nil
	}
	return nil, 0, false, nil
}

// charge consumes one unit of the expansion budget.
func (m *Manager) charge(tok *token.Token) error {
	m.expansions++
	if m.expansions > m.Limit {
		return m.rep.Errorf(tok, diag.MacroRecursionLimit, "expanding %q", tok.Text)
	}
	return nil
}

// adoptPosition transfers the invocation's line placement onto the first
// replacement token so directives and output rendering stay aligned.
func adoptPosition(repl []*token.Token, tok *token.Token) {
	if len(repl) > 0 {
		repl[0].AtBOL = tok.AtBOL
		repl[0].HasSpace = tok.HasSpace
	}
}

func intersect(a, b *token.Token) []string {
	inB := make(map[string]bool)
	for _, n := range b.Hideset() {
		inB[n] = true
	}
	var out []string
	for _, n := range a.Hideset() {
		if inB[n] {
			out = append(out, n)
		}
	}
	return out
}

// collectArgs reads a function-like macro's arguments, with i just past
// the opening "(". Commas nested in parentheses do not separate
// arguments. Arity is checked strictly against the parameter list; the
// variadic tail may be empty.
func (m *Manager) collectArgs(name *token.Token, fm *Function, toks []*token.Token, i int) (map[string]*Arg, *token.Token, int, error) {
	args := make(map[string]*Arg, len(fm.Params)+1)
	pos := i

	for k, p := range fm.Params {
		if k > 0 {
			switch {
			case toks[pos].IsPunct(","):
				pos++
			case toks[pos].Kind == token.EOF:
				return nil, nil, 0, m.unterminated(name)
			default:
				return nil, nil, 0, m.rep.Errorf(toks[pos], diag.TooFewArgs,
					"macro %q takes %d argument(s)", fm.Name, len(fm.Params))
			}
		}
		arg := &Arg{Name: p}
		var err error
		arg.Toks, pos, err = m.readArg(name, toks, pos, false)
		if err != nil {
			return nil, nil, 0, err
		}
		args[p] = arg
	}

	if fm.VaName != "" {
		if len(fm.Params) > 0 && toks[pos].IsPunct(",") {
			pos++
		}
		va := &Arg{Name: fm.VaName, Variadic: true}
		var err error
		va.Toks, pos, err = m.readArg(name, toks, pos, true)
		if err != nil {
			return nil, nil, 0, err
		}
		args[fm.VaName] = va
	}

	switch {
	case toks[pos].IsPunct(")"):
	case toks[pos].Kind == token.EOF:
		return nil, nil, 0, m.unterminated(name)
	default:
		return nil, nil, 0, m.rep.Errorf(toks[pos], diag.TooManyArgs,
			"macro %q takes %d argument(s)", fm.Name, len(fm.Params))
	}
	return args, toks[pos], pos + 1, nil
}

// readArg reads one argument's raw tokens. A variadic read swallows
// top-level commas and stops only at the closing paren.
func (m *Manager) readArg(name *token.Token, toks []*token.Token, pos int, variadic bool) ([]*token.Token, int, error) {
	depth := 0
	var out []*token.Token
	for {
		t := toks[pos]
		if t.Kind == token.EOF {
			return nil, 0, m.unterminated(name)
		}
		if depth == 0 && t.IsPunct(")") {
			return out, pos, nil
		}
		if depth == 0 && !variadic && t.IsPunct(",") {
			return out, pos, nil
		}
		if t.IsPunct("(") {
			depth++
		}
		if t.IsPunct(")") {
			depth--
		}
		out = append(out, t.Copy())
		pos++
	}
}

func (m *Manager) unterminated(name *token.Token) error {
	return m.rep.Errorf(name, diag.MismatchedParens, "unterminated call to macro %q", name.Text)
}

// subst rewrites a function-like macro body with its arguments applied.
// "#" stringizes the raw argument, "##" pastes adjacent tokens using raw
// arguments, plain parameters substitute their fully expanded argument.
func (m *Manager) subst(fm *Function, args map[string]*Arg) ([]*token.Token, error) {
	body := fm.Body
	var out []*token.Token
	for j := 0; j < len(body); {
		t := body[j]

		if t.IsHash() {
			arg := argOf(args, at(body, j+1))
			if arg == nil {
				return nil, m.rep.Errorf(t, diag.InvalidDirective,
					"'#' is not followed by a macro parameter")
			}
			out = append(out, stringize(t, arg.Toks))
			j += 2
			continue
		}

		// GNU comma deletion: ",##__VA_ARGS__" drops the comma when the
		// variadic argument is empty.
		if t.IsPunct(",") && j+2 < len(body) && body[j+1].IsPunct("##") {
			if arg := argOf(args, body[j+2]); arg != nil && arg.Variadic {
				if len(arg.Toks) == 0 {
					j += 3
				} else {
					out = append(out, t.Copy())
					j += 2
				}
				continue
			}
		}

		if t.IsPunct("##") {
			if len(out) == 0 {
				return nil, m.rep.Errorf(t, diag.InvalidDirective,
					"'##' cannot appear at start of macro body")
			}
			rhs := at(body, j+1)
			if rhs == nil {
				return nil, m.rep.Errorf(t, diag.InvalidDirective,
					"'##' cannot appear at end of macro body")
			}
			if arg := argOf(args, rhs); arg != nil {
				if len(arg.Toks) > 0 {
					pasted, err := m.paste(t, out[len(out)-1], arg.Toks[0])
					if err != nil {
						return nil, err
					}
					out[len(out)-1] = pasted
					for _, a := range arg.Toks[1:] {
						out = append(out, a.Copy())
					}
				}
				j += 2
				continue
			}
			pasted, err := m.paste(t, out[len(out)-1], rhs)
			if err != nil {
				return nil, err
			}
			out[len(out)-1] = pasted
			j += 2
			continue
		}

		// parameter on the left of "##" contributes its raw tokens
		if arg := argOf(args, t); arg != nil && j+1 < len(body) && body[j+1].IsPunct("##") {
			if len(arg.Toks) == 0 {
				rhs := at(body, j+2)
				if rhs == nil {
					return nil, m.rep.Errorf(body[j+1], diag.InvalidDirective,
						"'##' cannot appear at end of macro body")
				}
				if arg2 := argOf(args, rhs); arg2 != nil {
					for _, a := range arg2.Toks {
						out = append(out, a.Copy())
					}
				} else {
					out = append(out, rhs.Copy())
				}
				j += 3
				continue
			}
			for _, a := range arg.Toks {
				out = append(out, a.Copy())
			}
			j++ // the "##" itself pastes on the next iteration
			continue
		}

		if arg := argOf(args, t); arg != nil {
			exp, err := m.expandArg(arg)
			if err != nil {
				return nil, err
			}
			for k, e := range exp {
				c := e.Copy()
				c.AtBOL = false
				if k == 0 {
					c.HasSpace = t.HasSpace
				}
				out = append(out, c)
			}
			j++
			continue
		}

		out = append(out, t.Copy())
		j++
	}
	return out, nil
}

// expandArg fully macro-expands an argument's raw tokens, caching the
// result for repeated parameter uses.
func (m *Manager) expandArg(arg *Arg) ([]*token.Token, error) {
	if arg.done {
		return arg.expanded, nil
	}
	in := copyToks(arg.Toks)
	in = append(in, token.NewEOF(nil))
	out, err := m.ExpandAll(in)
	if err != nil {
		return nil, err
	}
	if n := len(out); n > 0 && out[n-1].Kind == token.EOF {
		out = out[:n-1]
	}
	arg.expanded, arg.done = out, true
	return out, nil
}

// pasteAll applies "##" within an object-like macro body.
func (m *Manager) pasteAll(body []*token.Token) ([]*token.Token, error) {
	var out []*token.Token
	for j := 0; j < len(body); {
		t := body[j]
		if t.IsPunct("##") && len(out) > 0 && j+1 < len(body) {
			pasted, err := m.paste(t, out[len(out)-1], body[j+1])
			if err != nil {
				return nil, err
			}
			out[len(out)-1] = pasted
			j += 2
			continue
		}
		out = append(out, t.Copy())
		j++
	}
	return out, nil
}

// paste concatenates the texts of two tokens and re-scans the result,
// which must form exactly one token.
func (m *Manager) paste(op, lhs, rhs *token.Token) (*token.Token, error) {
	text := lhs.Text + rhs.Text
	toks, err := m.lex.Tokenize(lhs.GetFile(), text)
	if err != nil || len(toks) != 2 || toks[1].Kind != token.EOF {
		return nil, m.rep.Errorf(op, diag.IllegalPastedToken,
			"%q and %q form %q", lhs.Text, rhs.Text, text)
	}
	t := toks[0]
	t.Line = lhs.Line
	t.AtBOL = lhs.AtBOL
	t.HasSpace = lhs.HasSpace
	t.HideFrom(lhs)
	return t, nil
}

// stringize renders argument tokens as a string literal, preserving one
// space wherever the source had whitespace.
func stringize(hash *token.Token, toks []*token.Token) *token.Token {
	raw := joinTokens(toks)
	t := token.New(token.Str, quoteLiteral(raw), hash.GetFile(), hash.Line)
	t.Str = raw
	t.Typ = token.Basic(token.TyStr, len(raw)+1)
	t.HasSpace = hash.HasSpace
	return t
}

func joinTokens(toks []*token.Token) string {
	var b strings.Builder
	for k, t := range toks {
		if k > 0 && t.HasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

func quoteLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

func argOf(args map[string]*Arg, t *token.Token) *Arg {
	if t == nil || t.Kind != token.Ident {
		return nil
	}
	return args[t.Text]
}

func at(toks []*token.Token, i int) *token.Token {
	if i < len(toks) {
		return toks[i]
	}
	return nil
}
