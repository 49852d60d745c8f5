// Package macro implements macro storage and expansion. Expansion follows
// the Prosser hideset algorithm so self-referential macros terminate
// without a recursion counter doing the real work; a global expansion
// budget still caps pathological mutual recursion.
package macro

import (
	"strconv"
	"strings"
	"time"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/token"
)

// DefaultLimit caps the number of macro replacements per top-level line.
const DefaultLimit = 4096

// Macro is a stored macro definition.
type Macro interface {
	MacroName() string
	ObjectLike() bool
}

// Object is an object-like macro: every occurrence of the name is
// replaced by the body.
type Object struct {
	Name string
	Body []*token.Token
}

func (m *Object) MacroName() string { return m.Name }
func (m *Object) ObjectLike() bool  { return true }

// Function is a function-like macro. VaName is the identifier the
// variadic tail binds to ("__VA_ARGS__" for an unnamed "..." parameter)
// and is empty for non-variadic macros.
type Function struct {
	Name   string
	Params []string
	VaName string
	Body   []*token.Token
}

func (m *Function) MacroName() string { return m.Name }
func (m *Function) ObjectLike() bool  { return false }

// Builtin is a dynamic object-like macro whose replacement is computed
// from the token being expanded, such as __LINE__.
type Builtin struct {
	Name    string
	Handler func(tok *token.Token) []*token.Token
}

func (m *Builtin) MacroName() string { return m.Name }
func (m *Builtin) ObjectLike() bool  { return true }

// Arg is one collected macro argument. Toks holds the raw call-site
// tokens; the expanded form is computed on first use and cached.
type Arg struct {
	Name     string
	Variadic bool
	Toks     []*token.Token

	expanded []*token.Token
	done     bool
}

// Manager owns the macro table and the expansion machinery.
type Manager struct {
	rep    *diag.Reporter
	lex    token.Lexer
	macros map[string]Macro

	counter    int64 // __COUNTER__ state
	expansions int
	Limit      int
}

func NewManager(rep *diag.Reporter, lex token.Lexer) *Manager {
	return &Manager{
		rep:    rep,
		lex:    lex,
		macros: make(map[string]Macro),
		Limit:  DefaultLimit,
	}
}

// DefineObject installs an object-like macro, replacing any previous
// definition of the name. Body tokens are detached copies.
func (m *Manager) DefineObject(name string, body []*token.Token) {
	m.macros[name] = &Object{Name: name, Body: copyToks(body)}
}

// DefineFunction installs a function-like macro.
func (m *Manager) DefineFunction(name string, params []string, vaName string, body []*token.Token) {
	m.macros[name] = &Function{Name: name, Params: params, VaName: vaName, Body: copyToks(body)}
}

// DefineBuiltin installs a dynamic macro.
func (m *Manager) DefineBuiltin(name string, handler func(*token.Token) []*token.Token) {
	m.macros[name] = &Builtin{Name: name, Handler: handler}
}

// Undef removes a macro. Undefining an unknown name is not an error.
func (m *Manager) Undef(name string) {
	delete(m.macros, name)
}

func (m *Manager) Find(name string) (Macro, bool) {
	mac, ok := m.macros[name]
	return mac, ok
}

func (m *Manager) IsDefined(name string) bool {
	_, ok := m.macros[name]
	return ok
}

// ResetBudget rearms the expansion budget. The caller resets it once per
// top-level source line so the limit bounds a single expansion cascade.
func (m *Manager) ResetBudget() { m.expansions = 0 }

// InstallBuiltins registers the dynamic standard macros.
func (m *Manager) InstallBuiltins() {
	m.DefineBuiltin("__LINE__", func(tok *token.Token) []*token.Token {
		return []*token.Token{numToken(tok, int64(tok.ReportedLine()))}
	})
	m.DefineBuiltin("__FILE__", func(tok *token.Token) []*token.Token {
		name := strings.Trim(tok.Display(), "\"<>")
		return []*token.Token{strToken(tok, name)}
	})
	m.DefineBuiltin("__COUNTER__", func(tok *token.Token) []*token.Token {
		n := m.counter
		m.counter++
		return []*token.Token{numToken(tok, n)}
	})
	m.DefineBuiltin("__DATE__", func(tok *token.Token) []*token.Token {
		return []*token.Token{strToken(tok, time.Now().Format("Jan _2 2006"))}
	})
	m.DefineBuiltin("__TIME__", func(tok *token.Token) []*token.Token {
		return []*token.Token{strToken(tok, time.Now().Format("15:04:05"))}
	})
}

func numToken(at *token.Token, val int64) *token.Token {
	t := token.New(token.Num, strconv.FormatInt(val, 10), at.GetFile(), at.Line)
	t.Val = val
	t.Typ = token.Basic(token.TyInt, 4)
	return t
}

func strToken(at *token.Token, s string) *token.Token {
	t := token.New(token.Str, strconv.Quote(s), at.GetFile(), at.Line)
	t.Str = s
	t.Typ = token.Basic(token.TyStr, len(s)+1)
	return t
}

func copyToks(toks []*token.Token) []*token.Token {
	out := make([]*token.Token, len(toks))
	for i, t := range toks {
		out[i] = t.Copy()
	}
	return out
}
