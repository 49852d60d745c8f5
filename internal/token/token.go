// Package token defines the preprocessor's token model: token kinds, the
// hideset that keeps macro expansion from recursing into itself, source
// file metadata and literal types. Token streams are plain []*Token slices
// walked with an integer cursor.
package token

import "sync"

// Kind classifies a preprocessing token.
type Kind int

const (
	EOF   Kind = iota
	Ident      // identifier (macro name, parameter, directive name)
	PPNum      // preprocessing number, e.g. 123u, 0x1f
	Num        // converted number with Val populated
	Str        // string literal with Str populated
	Hash       // "#"
	Punct      // any other punctuator, including "##"
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "IDENT"
	case PPNum:
		return "PPNUM"
	case Num:
		return "NUM"
	case Str:
		return "STR"
	case Hash:
		return "HASH"
	case Punct:
		return "PUNCT"
	}
	return "UNKNOWN"
}

// hideNode is one entry of an immutable, structurally shared hideset.
// Adding a name pushes a node; the tail is shared between every token
// copied along the same expansion lineage, so hidesets only grow.
type hideNode struct {
	name   string
	parent *hideNode
}

// Token is a single preprocessing token.
type Token struct {
	Kind     Kind
	Text     string // raw source text
	Len      int    // byte length of Text; never exceeds len(Text)
	Line     int    // 1-based baseline line in File
	AtBOL    bool   // first token on its logical line
	HasSpace bool   // preceded by whitespace
	Val      int64  // value for Num tokens
	Str      string // decoded value for Str tokens
	Typ      *Type  // literal type for Num/Str tokens
	File     *FileInfo

	mu sync.RWMutex
	hs *hideNode
}

// New creates a token. A nil file falls back to the shared placeholder.
func New(kind Kind, text string, file *FileInfo, line int) *Token {
	if file == nil {
		file = unknownFile
	}
	return &Token{Kind: kind, Text: text, Len: len(text), Line: line, File: file}
}

// NewEOF creates an end-of-input token. EOF tokens are always at the
// beginning of a (virtual) line so that line-bounded scans terminate.
func NewEOF(file *FileInfo) *Token {
	t := New(EOF, "", file, 0)
	t.AtBOL = true
	return t
}

// Copy deep-copies the token. The file info is shared by reference, the
// hideset chain is shared structurally: hiding more names on the copy
// pushes new nodes without touching the original.
func (t *Token) Copy() *Token {
	t.mu.RLock()
	hs := t.hs
	t.mu.RUnlock()
	return &Token{
		Kind:     t.Kind,
		Text:     t.Text,
		Len:      t.Len,
		Line:     t.Line,
		AtBOL:    t.AtBOL,
		HasSpace: t.HasSpace,
		Val:      t.Val,
		Str:      t.Str,
		Typ:      t.Typ,
		File:     t.File,
		hs:       hs,
	}
}

// Equals reports whether the token is an identifier with the given text.
// Non-identifier tokens never match, punctuation is compared with IsPunct.
func (t *Token) Equals(s string) bool {
	return t.Kind == Ident && t.Text == s
}

// IsHash reports whether the token is "#".
func (t *Token) IsHash() bool { return t.Kind == Hash }

// IsPunct reports whether the token is the given punctuator.
func (t *Token) IsPunct(s string) bool {
	return t.Kind == Punct && t.Text == s
}

// Hide adds macro names to the token's hideset.
func (t *Token) Hide(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		if !contains(t.hs, name) {
			t.hs = &hideNode{name: name, parent: t.hs}
		}
	}
}

// HideFrom unions another token's hideset into this one.
func (t *Token) HideFrom(src *Token) {
	t.Hide(src.Hideset()...)
}

// Hidden reports whether a macro name is in the hideset, i.e. whether
// expanding that macro on this token is suppressed.
func (t *Token) Hidden(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return contains(t.hs, name)
}

// Hideset returns a snapshot of the hideset contents.
func (t *Token) Hideset() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var names []string
	for n := t.hs; n != nil; n = n.parent {
		names = append(names, n.name)
	}
	return names
}

func contains(n *hideNode, name string) bool {
	for ; n != nil; n = n.parent {
		if n.name == name {
			return true
		}
	}
	return false
}

// GetFile returns the token's file info, falling back to the shared
// placeholder for tokens created without file context.
func (t *Token) GetFile() *FileInfo {
	if t.File == nil {
		return unknownFile
	}
	return t.File
}

// Display returns the file display name for diagnostics.
func (t *Token) Display() string { return t.GetFile().Display }

// ReportedLine is the baseline line adjusted by any #line offset.
func (t *Token) ReportedLine() int { return t.Line + t.GetFile().LineDelta }

// CopyLine copies the remainder of the current logical line starting at
// toks[i], stopping before the next beginning-of-line token or EOF. The
// second result indexes the stop position in the original stream.
func CopyLine(toks []*Token, i int) ([]*Token, int) {
	var line []*Token
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == EOF || t.AtBOL {
			break
		}
		line = append(line, t.Copy())
	}
	return line, i
}

// Lexer is the contract the external tokenizer fulfils. The core never
// scans raw bytes itself; included files and pasted token texts are handed
// back through this interface.
type Lexer interface {
	// Tokenize scans src into a token stream terminated by an EOF token.
	Tokenize(file *FileInfo, src string) ([]*Token, error)
	// TokenizeFile reads and scans a file, registering a fresh FileInfo
	// with the given display name.
	TokenizeFile(path, display string) ([]*Token, error)
}
