package macro

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/lexer"
	"github.com/aoweichenn/cc11/internal/token"
)

func setup() (*Manager, *lexer.Lexer) {
	rep := diag.NewReporter(nil, io.Discard)
	lex := lexer.New(rep)
	return NewManager(rep, lex), lex
}

func body(t *testing.T, lex *lexer.Lexer, src string) []*token.Token {
	t.Helper()
	toks, err := lex.TokenizeString("body", src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	toks = toks[:len(toks)-1] // drop EOF
	for _, tok := range toks {
		tok.AtBOL = false
	}
	return toks
}

func expand(t *testing.T, m *Manager, lex *lexer.Lexer, src string) string {
	t.Helper()
	toks, err := lex.TokenizeString("input", src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	out, err := m.ExpandAll(toks)
	if err != nil {
		t.Fatalf("expand %q: %v", src, err)
	}
	return render(out)
}

func render(toks []*token.Token) string {
	var b strings.Builder
	for k, tok := range toks {
		if tok.Kind == token.EOF {
			break
		}
		if k > 0 && tok.HasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

func TestObjectMacro(t *testing.T) {
	m, lex := setup()
	m.DefineObject("FOO", body(t, lex, "42"))
	if got := expand(t, m, lex, "FOO + FOO"); got != "42 + 42" {
		t.Errorf("got %q", got)
	}
}

func TestFunctionMacro(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("FOO", []string{"x"}, "", body(t, lex, "((x)+1)"))
	if got := expand(t, m, lex, "FOO(2)"); got != "((2)+1)" {
		t.Errorf("got %q", got)
	}
}

func TestBareFunctionMacroNameIsNotInvoked(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("FOO", []string{"x"}, "", body(t, lex, "x"))
	if got := expand(t, m, lex, "FOO + 1"); got != "FOO + 1" {
		t.Errorf("got %q", got)
	}
}

func TestSelfReferenceTerminates(t *testing.T) {
	m, lex := setup()
	m.DefineObject("FOO", body(t, lex, "FOO"))
	if got := expand(t, m, lex, "FOO"); got != "FOO" {
		t.Errorf("got %q", got)
	}
}

func TestMutualReferenceTerminates(t *testing.T) {
	m, lex := setup()
	m.DefineObject("A", body(t, lex, "B"))
	m.DefineObject("B", body(t, lex, "A"))
	// A -> B -> A, then A is hidden and survives
	if got := expand(t, m, lex, "A"); got != "A" {
		t.Errorf("got %q", got)
	}
}

func TestArgumentsAreExpandedBeforeSubstitution(t *testing.T) {
	m, lex := setup()
	m.DefineObject("ONE", body(t, lex, "1"))
	m.DefineFunction("ID", []string{"x"}, "", body(t, lex, "x"))
	if got := expand(t, m, lex, "ID(ONE)"); got != "1" {
		t.Errorf("got %q", got)
	}
}

func TestNestedCalls(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("ADD", []string{"a", "b"}, "", body(t, lex, "(a+b)"))
	if got := expand(t, m, lex, "ADD(ADD(1,2),3)"); got != "((1+2)+3)" {
		t.Errorf("got %q", got)
	}
}

func TestCommaInParensDoesNotSplitArgument(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("FIRST", []string{"a", "b"}, "", body(t, lex, "a"))
	if got := expand(t, m, lex, "FIRST(f(1,2), 3)"); got != "f(1,2)" {
		t.Errorf("got %q", got)
	}
}

func TestEmptyArgument(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("E", []string{"x"}, "", body(t, lex, "[x]"))
	if got := expand(t, m, lex, "E()"); got != "[]" {
		t.Errorf("got %q", got)
	}
}

func TestStringize(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("S", []string{"x"}, "", body(t, lex, "#x"))
	toks, err := lex.TokenizeString("input", `S(a b)`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.ExpandAll(toks)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Kind != token.Str {
		t.Fatalf("kind = %v", out[0].Kind)
	}
	if diff := cmp.Diff("a b", out[0].Str); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(`"a b"`, out[0].Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestStringizeEscapes(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("S", []string{"x"}, "", body(t, lex, "#x"))
	toks, err := lex.TokenizeString("input", `S("hi")`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.ExpandAll(toks)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(`"\"hi\""`, out[0].Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestPaste(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("CAT", []string{"a", "b"}, "", body(t, lex, "a##b"))

	if got := expand(t, m, lex, "CAT(foo, bar)"); got != "foobar" {
		t.Errorf("ident paste: got %q", got)
	}
	if got := expand(t, m, lex, "CAT(1, 2)"); got != "12" {
		t.Errorf("number paste: got %q", got)
	}
	if got := expand(t, m, lex, "CAT(, foo)"); got != "foo" {
		t.Errorf("empty lhs: got %q", got)
	}
	if got := expand(t, m, lex, "CAT(foo,)"); got != "foo" {
		t.Errorf("empty rhs: got %q", got)
	}
}

func TestPasteInObjectMacro(t *testing.T) {
	m, lex := setup()
	m.DefineObject("AB", body(t, lex, "a ## b"))
	if got := expand(t, m, lex, "AB"); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestPasteProducesMacroName(t *testing.T) {
	m, lex := setup()
	m.DefineObject("foobar", body(t, lex, "42"))
	m.DefineFunction("CAT", []string{"a", "b"}, "", body(t, lex, "a##b"))
	// the pasted name is rescanned and expands
	if got := expand(t, m, lex, "CAT(foo, bar)"); got != "42" {
		t.Errorf("got %q", got)
	}
}

func TestIllegalPaste(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("CAT", []string{"a", "b"}, "", body(t, lex, "a##b"))
	toks, err := lex.TokenizeString("input", "CAT(+, -)")
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.ExpandAll(toks)
	if code, ok := diag.CodeOf(err); !ok || code != diag.IllegalPastedToken {
		t.Errorf("code = %v (%v)", code, err)
	}
}

func TestVariadic(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("V", []string{"fmt"}, "__VA_ARGS__",
		body(t, lex, "f(fmt, __VA_ARGS__)"))
	if got := expand(t, m, lex, `V("x", 1, 2)`); got != `f("x", 1, 2)` {
		t.Errorf("got %q", got)
	}
}

func TestGNUCommaDeletion(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("W", []string{"fmt"}, "__VA_ARGS__",
		body(t, lex, "f(fmt ,##__VA_ARGS__)"))
	if got := expand(t, m, lex, `W("x")`); got != `f("x")` {
		t.Errorf("empty tail: got %q", got)
	}
	if got := expand(t, m, lex, `W("x", 1)`); got != `f("x" ,1)` {
		t.Errorf("non-empty tail: got %q", got)
	}
}

func TestNamedVariadic(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("L", nil, "args", body(t, lex, "list(args)"))
	if got := expand(t, m, lex, "L(1, 2, 3)"); got != "list(1, 2, 3)" {
		t.Errorf("got %q", got)
	}
}

func TestArity(t *testing.T) {
	m, lex := setup()
	m.DefineFunction("F", []string{"a", "b"}, "", body(t, lex, "a b"))

	for _, tt := range []struct {
		input string
		code  diag.Code
	}{
		{"F(1)", diag.TooFewArgs},
		{"F(1, 2, 3)", diag.TooManyArgs},
		{"F(1, 2", diag.MismatchedParens},
	} {
		toks, err := lex.TokenizeString("input", tt.input)
		if err != nil {
			t.Fatal(err)
		}
		_, err = m.ExpandAll(toks)
		if code, ok := diag.CodeOf(err); !ok || code != tt.code {
			t.Errorf("%s: code = %v (%v), want %v", tt.input, code, err, tt.code)
		}
	}
}

func TestUndef(t *testing.T) {
	m, lex := setup()
	m.DefineObject("FOO", body(t, lex, "1"))
	m.Undef("FOO")
	if got := expand(t, m, lex, "FOO"); got != "FOO" {
		t.Errorf("got %q", got)
	}
	m.Undef("NEVER_DEFINED") // no-op
}

func TestExpansionBudget(t *testing.T) {
	m, lex := setup()
	m.Limit = 2
	m.DefineObject("A", body(t, lex, "1"))
	toks, err := lex.TokenizeString("input", "A A A")
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.ExpandAll(toks)
	if code, ok := diag.CodeOf(err); !ok || code != diag.MacroRecursionLimit {
		t.Errorf("code = %v (%v)", code, err)
	}
}

func TestCounterBuiltin(t *testing.T) {
	m, lex := setup()
	m.InstallBuiltins()
	if got := expand(t, m, lex, "__COUNTER__ __COUNTER__ __COUNTER__"); got != "0 1 2" {
		t.Errorf("got %q", got)
	}
}

func TestLineAndFileBuiltins(t *testing.T) {
	m, lex := setup()
	m.InstallBuiltins()
	toks, err := lex.TokenizeString("main.c", "\n\n__LINE__ __FILE__")
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.ExpandAll(toks)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Text != "3" || out[0].Val != 3 {
		t.Errorf("__LINE__ = %q (%d)", out[0].Text, out[0].Val)
	}
	if out[1].Kind != token.Str || out[1].Str != "main.c" {
		t.Errorf("__FILE__ = %q", out[1].Str)
	}
}
