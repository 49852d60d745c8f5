// Package lexer scans source text into preprocessing tokens. It tracks
// beginning-of-line and leading-space flags, splices backslash-newline
// continuations and decodes string literals. The preprocessor core calls
// back into it for included files and for validating pasted tokens.
package lexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/token"
)

// puncts lists multi-character punctuators, longest first so that ">>="
// wins over ">>" and ">".
var puncts = []string{
	"<<=", ">>=", "...", "==", "!=", "<=", ">=", "&&", "||", "<<", ">>",
	"->", "++", "--", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "::",
}

// Lexer turns source text into token streams. Safe for use from a single
// preprocessing run; the file counter is guarded for shared lexers.
type Lexer struct {
	rep *diag.Reporter

	mu     sync.Mutex
	fileNo int
}

func New(rep *diag.Reporter) *Lexer {
	return &Lexer{rep: rep}
}

// NewFileInfo registers a fresh file record with a process-unique id.
func (l *Lexer) NewFileInfo(name, display string) *token.FileInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fileNo++
	return &token.FileInfo{Name: name, Display: display, No: l.fileNo}
}

// TokenizeFile reads and scans path. The display name backs diagnostics
// and __FILE__; when empty it defaults to the path itself.
func (l *Lexer) TokenizeFile(path, display string) ([]*token.Token, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	if display == "" {
		display = path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return l.Tokenize(l.NewFileInfo(abs, display), string(src))
}

// TokenizeString scans an in-memory buffer under a synthetic file name.
func (l *Lexer) TokenizeString(name, src string) ([]*token.Token, error) {
	return l.Tokenize(l.NewFileInfo(name, name), src)
}

// Tokenize scans src into a token stream terminated by an EOF token.
func (l *Lexer) Tokenize(file *token.FileInfo, src string) ([]*token.Token, error) {
	s := &scanner{lex: l, file: file, src: src, line: 1, atBOL: true}
	return s.run()
}

type scanner struct {
	lex      *Lexer
	file     *token.FileInfo
	src      string
	pos      int
	line     int
	atBOL    bool
	hasSpace bool
}

func (s *scanner) run() ([]*token.Token, error) {
	var toks []*token.Token
	for s.pos < len(s.src) {
		c := s.src[s.pos]

		switch {
		case c == '\n':
			s.pos++
			s.line++
			s.atBOL = true
			s.hasSpace = false
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f':
			s.pos++
			s.hasSpace = true
			continue
		case c == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '\n':
			// line continuation joins the logical line
			s.pos += 2
			s.line++
			s.hasSpace = true
			continue
		case strings.HasPrefix(s.src[s.pos:], "//"):
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
			s.hasSpace = true
			continue
		case strings.HasPrefix(s.src[s.pos:], "/*"):
			if err := s.blockComment(); err != nil {
				return nil, err
			}
			continue
		}

		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		tok.AtBOL = s.atBOL
		tok.HasSpace = s.hasSpace
		s.atBOL = false
		s.hasSpace = false
		toks = append(toks, tok)
	}

	eof := token.NewEOF(s.file)
	eof.Line = s.line
	toks = append(toks, eof)
	return toks, nil
}

func (s *scanner) blockComment() error {
	line := s.line
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end < 0 {
		return s.errorAt(line, diag.InvalidDirective, "unclosed block comment")
	}
	s.line += strings.Count(s.src[s.pos:s.pos+2+end+2], "\n")
	s.pos += 2 + end + 2
	s.hasSpace = true
	return nil
}

func (s *scanner) next() (*token.Token, error) {
	c := s.src[s.pos]

	switch {
	case isIdentStart(c):
		start := s.pos
		for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
			s.pos++
		}
		return token.New(token.Ident, s.src[start:s.pos], s.file, s.line), nil

	case isDigit(c) || (c == '.' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1])):
		return s.ppNumber(), nil

	case c == '"':
		return s.stringLiteral()

	case c == '\'':
		return s.charLiteral()

	case c == '#':
		if s.pos+1 < len(s.src) && s.src[s.pos+1] == '#' {
			s.pos += 2
			return token.New(token.Punct, "##", s.file, s.line), nil
		}
		s.pos++
		return token.New(token.Hash, "#", s.file, s.line), nil
	}

	for _, p := range puncts {
		if strings.HasPrefix(s.src[s.pos:], p) {
			s.pos += len(p)
			return token.New(token.Punct, p, s.file, s.line), nil
		}
	}
	s.pos++
	return token.New(token.Punct, string(c), s.file, s.line), nil
}

// ppNumber scans a preprocessing number: digits extended with identifier
// characters, '.' and sign-bearing exponents. Lexically broader than a
// final numeric literal; conversion happens at evaluation time.
func (s *scanner) ppNumber() *token.Token {
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if (c == 'e' || c == 'E' || c == 'p' || c == 'P') &&
			s.pos+1 < len(s.src) && (s.src[s.pos+1] == '+' || s.src[s.pos+1] == '-') {
			s.pos += 2
			continue
		}
		if isIdentPart(c) || c == '.' {
			s.pos++
			continue
		}
		break
	}
	return token.New(token.PPNum, s.src[start:s.pos], s.file, s.line)
}

func (s *scanner) stringLiteral() (*token.Token, error) {
	start := s.pos
	line := s.line
	s.pos++ // opening quote
	var val strings.Builder
	for {
		if s.pos >= len(s.src) || s.src[s.pos] == '\n' {
			return nil, s.errorAt(line, diag.UnterminatedString, "")
		}
		c := s.src[s.pos]
		if c == '"' {
			s.pos++
			break
		}
		if c == '\\' {
			dec, err := s.escape(line)
			if err != nil {
				return nil, err
			}
			val.WriteByte(dec)
			continue
		}
		val.WriteByte(c)
		s.pos++
	}
	t := token.New(token.Str, s.src[start:s.pos], s.file, line)
	t.Str = val.String()
	t.Typ = token.Basic(token.TyStr, val.Len()+1)
	return t, nil
}

func (s *scanner) charLiteral() (*token.Token, error) {
	start := s.pos
	line := s.line
	s.pos++ // opening quote
	if s.pos >= len(s.src) || s.src[s.pos] == '\n' {
		return nil, s.errorAt(line, diag.UnterminatedString, "unterminated character literal")
	}
	var val byte
	if s.src[s.pos] == '\\' {
		dec, err := s.escape(line)
		if err != nil {
			return nil, err
		}
		val = dec
	} else {
		val = s.src[s.pos]
		s.pos++
	}
	if s.pos >= len(s.src) || s.src[s.pos] != '\'' {
		return nil, s.errorAt(line, diag.UnterminatedString, "unterminated character literal")
	}
	s.pos++
	t := token.New(token.Num, s.src[start:s.pos], s.file, line)
	t.Val = int64(val)
	t.Typ = token.Basic(token.TyInt, 4)
	return t, nil
}

// escape decodes one backslash escape, with s.pos at the backslash.
func (s *scanner) escape(line int) (byte, error) {
	s.pos++ // backslash
	if s.pos >= len(s.src) {
		return 0, s.errorAt(line, diag.UnterminatedString, "")
	}
	c := s.src[s.pos]
	s.pos++
	switch c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return 7, nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'v':
		return '\v', nil
	case '\\', '\'', '"', '?':
		return c, nil
	case 'x':
		if s.pos >= len(s.src) || !isHexDigit(s.src[s.pos]) {
			return 0, s.errorAt(line, diag.InvalidEscapeSequence, "\\x needs hex digits")
		}
		var v int
		for s.pos < len(s.src) && isHexDigit(s.src[s.pos]) {
			v = v<<4 | hexVal(s.src[s.pos])
			s.pos++
		}
		return byte(v), nil
	}
	if c >= '0' && c <= '7' {
		v := int(c - '0')
		for n := 0; n < 2 && s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '7'; n++ {
			v = v<<3 | int(s.src[s.pos]-'0')
			s.pos++
		}
		return byte(v), nil
	}
	return 0, s.errorAt(line, diag.InvalidEscapeSequence, "\\%c", c)
}

func (s *scanner) errorAt(line int, code diag.Code, format string, args ...any) error {
	at := token.New(token.EOF, "", s.file, line)
	return s.lex.rep.Errorf(at, code, format, args...)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
