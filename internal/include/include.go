// Package include resolves #include directives. It searches the include
// directory list with an LRU-memoized lookup, canonicalizes paths, and
// suppresses reinclusion through #pragma once marks and detected include
// guards. #include_next resumes the directory search where the previous
// hit for the same header name left off.
package include

import (
	"os"
	"path/filepath"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/lru"
	"github.com/aoweichenn/cc11/internal/token"
)

// pathCacheSize bounds the memoized header-name lookups.
const pathCacheSize = 64

// guardWindow is how many tokens before end of file the closing #endif
// of an include guard may sit.
const guardWindow = 20

// MacroIndex is the slice of the macro engine the include machinery
// needs: guard checks and expansion of computed #include lines.
type MacroIndex interface {
	IsDefined(name string) bool
	ExpandAll(toks []*token.Token) ([]*token.Token, error)
}

// Manager owns include resolution state for one preprocessing run.
type Manager struct {
	rep  *diag.Reporter
	lex  token.Lexer
	dirs []string

	nextIdx   map[string]int    // header name -> next dir index for include_next
	once      map[string]bool   // canonical paths marked by #pragma once
	guards    map[string]string // canonical path -> guard macro name
	pathCache *lru.Cache[string, string]
}

func NewManager(rep *diag.Reporter, lex token.Lexer, dirs []string) (*Manager, error) {
	cache, err := lru.New[string, string](pathCacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		rep:       rep,
		lex:       lex,
		dirs:      dirs,
		nextIdx:   make(map[string]int),
		once:      make(map[string]bool),
		guards:    make(map[string]string),
		pathCache: cache,
	}, nil
}

// ReadFilename parses the operand of #include, with toks[i] its first
// token. Three forms are accepted: "file", <file>, and a macro that
// expands to one of the first two. For the macro form the whole line is
// expanded and re-parsed once; if that still yields no filename a
// warning is issued and name is returned empty. next indexes the first
// token after the operand in the original stream.
func (inc *Manager) ReadFilename(macros MacroIndex, toks []*token.Token, i int) (name string, angled bool, next int, err error) {
	t := toks[i]
	switch {
	case t.Kind == token.Str:
		// raw spelling, escapes do not apply to include paths
		return t.Text[1 : len(t.Text)-1], false, i + 1, nil

	case t.IsPunct("<"):
		name, next, err = inc.angledName(toks, i)
		return name, true, next, err

	case t.Kind == token.Ident:
		line, end := token.CopyLine(toks, i)
		line = append(line, token.NewEOF(nil))
		expanded, err := macros.ExpandAll(line)
		if err != nil {
			return "", false, 0, err
		}
		if len(expanded) > 0 {
			switch {
			case expanded[0].Kind == token.Str:
				return expanded[0].Text[1 : len(expanded[0].Text)-1], false, end, nil
			case expanded[0].IsPunct("<"):
				name, _, err = inc.angledName(expanded, 0)
				return name, true, end, err
			}
		}
		inc.rep.Warnf(t, "#include expects \"file\" or <file>, got %q", t.Text)
		return "", false, end, nil
	}
	return "", false, 0, inc.rep.Errorf(t, diag.InvalidIncludePath,
		"expected \"file\" or <file>")
}

// angledName joins token texts between "<" and ">" on one line.
func (inc *Manager) angledName(toks []*token.Token, i int) (string, int, error) {
	open := toks[i]
	name := ""
	for j := i + 1; j < len(toks); j++ {
		t := toks[j]
		if t.Kind == token.EOF || t.AtBOL {
			break
		}
		if t.IsPunct(">") {
			return name, j + 1, nil
		}
		name += t.Text
	}
	return "", 0, inc.rep.Errorf(open, diag.InvalidIncludePath, "missing '>'")
}

// Include resolves and tokenizes one included file. The quote form
// probes the including file's own directory before the search list.
// A file suppressed by #pragma once or a satisfied include guard yields
// a nil token stream without touching the file again.
func (inc *Manager) Include(macros MacroIndex, at *token.Token, name string, angled bool) ([]*token.Token, error) {
	path := ""
	if !angled {
		if p := filepath.Join(filepath.Dir(at.GetFile().Name), name); fileExists(p) {
			path = p
		}
	}
	if path == "" {
		p, ok := inc.Search(name)
		if !ok {
			return nil, inc.rep.Errorf(at, diag.InvalidIncludePath, "%q", name)
		}
		path = p
	}
	return inc.load(macros, path, name, angled)
}

// IncludeNext resolves #include_next: the search resumes after the
// directory that satisfied the previous lookup of the same name.
func (inc *Manager) IncludeNext(macros MacroIndex, at *token.Token, name string) ([]*token.Token, error) {
	path, ok := inc.searchFrom(name, inc.nextIdx[name])
	if !ok {
		return nil, inc.rep.Errorf(at, diag.InvalidIncludePath, "%q (include_next)", name)
	}
	return inc.load(macros, path, name, true)
}

func (inc *Manager) load(macros MacroIndex, path, name string, angled bool) ([]*token.Token, error) {
	canon := canonical(path)
	if inc.once[canon] {
		return nil, nil
	}
	if g, ok := inc.guards[canon]; ok && macros.IsDefined(g) {
		return nil, nil
	}

	display := "\"" + name + "\""
	if angled {
		display = "<" + name + ">"
	}
	toks, err := inc.lex.TokenizeFile(path, display)
	if err != nil {
		return nil, err
	}
	if g := detectGuard(toks); g != "" {
		inc.guards[canon] = g
	}
	if n := len(toks); n > 0 && toks[n-1].Kind == token.EOF {
		toks = toks[:n-1]
	}
	return toks, nil
}

// Search looks a header name up in the directory list, memoizing hits.
func (inc *Manager) Search(name string) (string, bool) {
	if p, ok := inc.pathCache.Get(name); ok {
		return p, true
	}
	p, ok := inc.searchFrom(name, 0)
	if ok {
		inc.pathCache.Put(name, p)
	}
	return p, ok
}

func (inc *Manager) searchFrom(name string, start int) (string, bool) {
	for k := start; k < len(inc.dirs); k++ {
		p := filepath.Join(inc.dirs[k], name)
		if fileExists(p) {
			inc.nextIdx[name] = k + 1
			return p, true
		}
	}
	return "", false
}

// MarkOnce records a #pragma once for the given file path.
func (inc *Manager) MarkOnce(path string) {
	inc.once[canonical(path)] = true
}

// detectGuard recognizes the conventional include guard shape: the file
// opens with #ifndef G followed by #define G, and a #endif sits within
// the trailing token window. Returns the guard macro name or "".
func detectGuard(toks []*token.Token) string {
	if len(toks) < 7 {
		return ""
	}
	if !toks[0].IsHash() || !toks[0].AtBOL || !toks[1].Equals("ifndef") ||
		toks[2].Kind != token.Ident {
		return ""
	}
	g := toks[2].Text
	if !toks[3].IsHash() || !toks[3].AtBOL || !toks[4].Equals("define") ||
		!toks[5].Equals(g) {
		return ""
	}
	lo := len(toks) - guardWindow
	if lo < 1 {
		lo = 1
	}
	for k := len(toks) - 1; k >= lo; k-- {
		if toks[k].Equals("endif") && toks[k-1].IsHash() && toks[k-1].AtBOL {
			return g
		}
	}
	return ""
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
