/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cc11 is a C-style text preprocessor: macro definition and
// hygienic expansion, conditional compilation, include resolution with
// reinclusion suppression, and the usual auxiliary directives. Input and
// output are token streams; Text renders a stream back to source form.
package cc11

import (
	"io"
	"strings"

	"github.com/aoweichenn/cc11/internal/cond"
	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/directive"
	"github.com/aoweichenn/cc11/internal/include"
	"github.com/aoweichenn/cc11/internal/lexer"
	"github.com/aoweichenn/cc11/internal/macro"
	"github.com/aoweichenn/cc11/internal/token"
)

// Config configures a Preprocessor.
type Config struct {
	// IncludeDirs is the search list for #include, in priority order.
	IncludeDirs []string
	// Defines are command-line macros, each "NAME" or "NAME=VALUE".
	// A bare NAME defines it as 1.
	Defines []string
	// Undefines removes macro names after Defines are installed.
	Undefines []string
	// Warnings receives warning diagnostics; defaults to os.Stderr.
	Warnings io.Writer
	// Registry overrides diagnostic message texts; nil uses the defaults.
	Registry *diag.Registry
}

// Preprocessor drives one preprocessing session. Macro definitions,
// conditional state and include bookkeeping persist across calls, so
// one Preprocessor handles one translation unit.
type Preprocessor struct {
	rep    *diag.Reporter
	lex    *lexer.Lexer
	macros *macro.Manager
	conds  *cond.Stack
	incs   *include.Manager
	disp   *directive.Dispatcher
}

func New(cfg Config) (*Preprocessor, error) {
	rep := diag.NewReporter(cfg.Registry, cfg.Warnings)
	lex := lexer.New(rep)
	macros := macro.NewManager(rep, lex)
	macros.InstallBuiltins()
	conds := cond.NewStack(rep)
	incs, err := include.NewManager(rep, lex, cfg.IncludeDirs)
	if err != nil {
		return nil, err
	}
	p := &Preprocessor{
		rep:    rep,
		lex:    lex,
		macros: macros,
		conds:  conds,
		incs:   incs,
		disp:   directive.New(rep, macros, conds, incs),
	}
	for _, def := range cfg.Defines {
		if err := p.Define(def); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Undefines {
		p.macros.Undef(name)
	}
	return p, nil
}

// Define installs a command-line style macro, "NAME" or "NAME=VALUE".
func (p *Preprocessor) Define(def string) error {
	name, val, found := strings.Cut(def, "=")
	if !found {
		val = "1"
	}
	if !validMacroName(name) {
		return diag.Newf(diag.InvalidDirective, "macro name must be an identifier, got %q", name)
	}
	toks, err := p.lex.TokenizeString("<command line>", val)
	if err != nil {
		return err
	}
	if n := len(toks); n > 0 && toks[n-1].Kind == token.EOF {
		toks = toks[:n-1]
	}
	for _, t := range toks {
		t.AtBOL = false
	}
	p.macros.DefineObject(name, toks)
	return nil
}

// Undefine removes a macro definition.
func (p *Preprocessor) Undefine(name string) {
	p.macros.Undef(name)
}

// IsDefined reports whether a macro is currently defined.
func (p *Preprocessor) IsDefined(name string) bool {
	return p.macros.IsDefined(name)
}

// PreprocessFile preprocesses one source file.
func (p *Preprocessor) PreprocessFile(path string) ([]*token.Token, error) {
	toks, err := p.lex.TokenizeFile(path, "")
	if err != nil {
		return nil, err
	}
	return p.Preprocess(toks)
}

// PreprocessString preprocesses an in-memory buffer under the given name.
func (p *Preprocessor) PreprocessString(name, src string) ([]*token.Token, error) {
	toks, err := p.lex.TokenizeString(name, src)
	if err != nil {
		return nil, err
	}
	return p.Preprocess(toks)
}

// Preprocess runs the main scan over an EOF-terminated token stream:
// macro invocations are replaced in place and rescanned, "#" lines at
// beginning of line are dispatched, everything else passes through. The
// result is again EOF-terminated.
func (p *Preprocessor) Preprocess(toks []*token.Token) ([]*token.Token, error) {
	var out []*token.Token
	for i := 0; i < len(toks); {
		tok := toks[i]
		if tok.Kind == token.EOF {
			break
		}
		if tok.AtBOL {
			p.macros.ResetBudget()
		}

		if tok.Kind == token.Ident {
			repl, next, ok, err := p.macros.ExpandAt(toks, i)
			if err != nil {
				return nil, err
			}
			if ok {
				toks = append(repl, toks[next:]...)
				i = 0
				continue
			}
		}

		if tok.IsHash() && tok.AtBOL {
			if next := toks[i+1]; next.Kind == token.EOF || next.AtBOL {
				// null directive
				i++
				continue
			}
			var err error
			toks, i, err = p.disp.Dispatch(toks, i)
			if err != nil {
				return nil, err
			}
			continue
		}

		out = append(out, tok)
		i++
	}

	if !p.conds.Empty() {
		return nil, p.rep.Errorf(p.conds.Unclosed(), diag.UnterminatedConditional, "")
	}
	out = append(out, token.NewEOF(nil))
	return out, nil
}

// Text renders a token stream back to source text, one line per logical
// line with single spaces where the source had whitespace.
func Text(toks []*token.Token) string {
	var b strings.Builder
	for k, t := range toks {
		if t.Kind == token.EOF {
			break
		}
		if k > 0 && t.AtBOL {
			b.WriteByte('\n')
		} else if k > 0 && t.HasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func validMacroName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9')
		if !ok {
			return false
		}
	}
	return true
}
