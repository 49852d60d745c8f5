package expr

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aoweichenn/cc11/internal/diag"
	"github.com/aoweichenn/cc11/internal/lexer"
	"github.com/aoweichenn/cc11/internal/token"
)

func eval(t *testing.T, src string) (int64, error) {
	t.Helper()
	rep := diag.NewReporter(nil, io.Discard)
	toks, err := lexer.New(rep).TokenizeString("expr", src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	anchor := token.New(token.Ident, "if", nil, 1)
	return Eval(rep, anchor, toks)
}

var evalTests = []struct {
	input string
	want  int64
}{
	{"1", 1},
	{"0", 0},
	{"1 + 2 * 3", 7},
	{"(1 + 2) * 3", 9},
	{"10 / 3", 3},
	{"10 % 3", 1},
	{"1 << 4", 16},
	{"256 >> 4", 16},
	{"1 | 6", 7},
	{"7 & 5", 5},
	{"7 ^ 5", 2},
	{"1 && 0", 0},
	{"1 && 2", 1},
	{"0 || 0", 0},
	{"0 || 3", 1},
	{"1 == 1", 1},
	{"1 != 1", 0},
	{"2 < 3", 1},
	{"3 <= 3", 1},
	{"4 > 5", 0},
	{"5 >= 5", 1},
	{"!0", 1},
	{"!5", 0},
	{"~0", -1},
	{"-3 + 5", 2},
	{"+3", 3},
	{"- -2", 2},
	{"0x10", 16},
	{"0x1fUL", 31},
	{"010", 8},
	{"123u", 123},
	{"UNDEFINED_NAME", 0},
	{"1 + UNDEFINED_NAME", 1},
	{"'A'", 65},
	{"2 + 3 == 5 && 1", 1},
	{"1 << 2 | 1", 5},
}

func TestEval(t *testing.T) {
	for _, tt := range evalTests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := eval(t, tt.input)
			if err != nil {
				t.Fatalf("eval error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

var evalErrTests = []struct {
	input string
	code  diag.Code
}{
	{"", diag.EmptyConstExpr},
	{"1 / 0", diag.DivisionByZero},
	{"1 % 0", diag.DivisionByZero},
	{"(1 + 2", diag.MismatchedParens},
	{"1 +", diag.InvalidDirective},
	{"1 2", diag.InvalidDirective},
	{"1 ? 2 : 3", diag.InvalidDirective},
	{"0xZZ", diag.InvalidPPNumber},
	{"1.5", diag.InvalidPPNumber},
}

func TestEvalErrors(t *testing.T) {
	for _, tt := range evalErrTests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := eval(t, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if code, ok := diag.CodeOf(err); !ok || code != tt.code {
				t.Errorf("code = %v (%v), want %v", code, err, tt.code)
			}
		})
	}
}
