package token

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestHidesetGrowsAndIsShared(t *testing.T) {
	file := &FileInfo{Name: "/tmp/a.h", Display: "a.h"}
	orig := New(Ident, "FOO", file, 3)
	orig.Hide("FOO")

	cp := orig.Copy()
	cp.Hide("BAR")

	if !orig.Hidden("FOO") || orig.Hidden("BAR") {
		t.Errorf("original hideset changed: %v", orig.Hideset())
	}
	if !cp.Hidden("FOO") || !cp.Hidden("BAR") {
		t.Errorf("copy hideset wrong: %v", cp.Hideset())
	}
}

func TestHideIsIdempotent(t *testing.T) {
	tok := New(Ident, "X", nil, 1)
	tok.Hide("A", "A", "B")
	tok.Hide("A")
	want := []string{"A", "B"}
	got := tok.Hideset()
	less := func(a, b string) bool { return a < b }
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(less)); diff != "" {
		t.Errorf("hideset mismatch (-want +got):\n%s", diff)
	}
}

func TestHideFrom(t *testing.T) {
	a := New(Ident, "a", nil, 1)
	a.Hide("M", "N")
	b := New(Ident, "b", nil, 1)
	b.HideFrom(a)
	if !b.Hidden("M") || !b.Hidden("N") {
		t.Errorf("b hideset = %v", b.Hideset())
	}
}

func TestEqualsMatchesIdentifiersOnly(t *testing.T) {
	if !New(Ident, "define", nil, 1).Equals("define") {
		t.Error("identifier should match its own text")
	}
	if New(Punct, "<", nil, 1).Equals("<") {
		t.Error("punctuator must not match via Equals")
	}
	if !New(Punct, "<", nil, 1).IsPunct("<") {
		t.Error("IsPunct failed")
	}
	if New(Hash, "#", nil, 1).IsPunct("#") {
		t.Error("hash is not a Punct")
	}
}

func TestReportedLineAppliesDelta(t *testing.T) {
	file := &FileInfo{Name: "x.c", Display: "x.c"}
	tok := New(Ident, "x", file, 10)
	if got := tok.ReportedLine(); got != 10 {
		t.Errorf("ReportedLine = %d, want 10", got)
	}
	file.LineDelta = 90
	if got := tok.ReportedLine(); got != 100 {
		t.Errorf("ReportedLine after #line = %d, want 100", got)
	}
}

func TestNilFileFallsBack(t *testing.T) {
	tok := New(Ident, "x", nil, 1)
	if tok.Display() != "<unknown>" {
		t.Errorf("Display = %q", tok.Display())
	}
}

func TestCopyLineStopsAtBOL(t *testing.T) {
	file := &FileInfo{Name: "x.c", Display: "x.c"}
	a := New(Ident, "a", file, 1)
	b := New(Ident, "b", file, 1)
	c := New(Ident, "c", file, 2)
	c.AtBOL = true
	toks := []*Token{a, b, c, NewEOF(file)}

	line, next := CopyLine(toks, 0)
	if len(line) != 2 || line[0].Text != "a" || line[1].Text != "b" {
		t.Errorf("line = %v", texts(line))
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
}

func TestNewArray(t *testing.T) {
	elem := Basic(TyInt, 4)
	arr, err := NewArray(elem, 8)
	if err != nil {
		t.Fatal(err)
	}
	if arr.Size != 32 || arr.ArrayLen != 8 || arr.Kind != TyArray {
		t.Errorf("array = %+v", arr)
	}
	if _, err := NewArray(nil, 8); err == nil {
		t.Error("nil base should be rejected")
	}
}

func texts(toks []*Token) []string {
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out
}
