package report

import (
	"strings"
	"testing"
)

func TestDiffIdentical(t *testing.T) {
	for _, pair := range [][2]string{
		{"", ""},
		{"alpha\nbeta", "alpha\nbeta"},
		{"alpha\nbeta", "alpha\nbeta\n"},
	} {
		r := Diff(pair[0], pair[1])
		if r.Modified {
			t.Errorf("Diff(%q, %q).Modified = true", pair[0], pair[1])
		}
		if len(r.Lines) != 0 {
			t.Errorf("Diff(%q, %q) has %d lines, want none", pair[0], pair[1], len(r.Lines))
		}
	}
}

func TestDiffLines(t *testing.T) {
	r := Diff("alpha\nbeta", "alpha\ngamma")
	if !r.Modified {
		t.Fatal("expected modified report")
	}
	added, removed := r.Counts()
	if added != 1 || removed != 1 {
		t.Errorf("Counts = (%d, %d), want (1, 1)", added, removed)
	}
	if r.Lines[0].Type != LineUnchanged || r.Lines[0].Text != "alpha" {
		t.Errorf("first line = %+v, want unchanged alpha", r.Lines[0])
	}
	if len(r.Lines) != 3 {
		t.Errorf("Lines = %v, want 3 entries", r.Lines)
	}
	if r.WhitespaceOnly() {
		t.Error("WhitespaceOnly should be false")
	}
}

func TestDiffDocumentOrder(t *testing.T) {
	r := Diff("a\nb\nc", "a\nc")
	want := []Line{
		{Type: LineUnchanged, Text: "a", OldLine: 1, NewLine: 1},
		{Type: LineRemoved, Text: "b", OldLine: 2},
		{Type: LineUnchanged, Text: "c", OldLine: 3, NewLine: 2},
	}
	if len(r.Lines) != len(want) {
		t.Fatalf("Lines = %+v, want %+v", r.Lines, want)
	}
	for i := range want {
		if r.Lines[i] != want[i] {
			t.Errorf("Lines[%d] = %+v, want %+v", i, r.Lines[i], want[i])
		}
	}
}

func TestDiffWhitespaceOnly(t *testing.T) {
	r := Diff("<root><a>x</a></root>", "<root>\n  <a>x</a>\n</root>")
	if !r.Modified {
		t.Fatal("expected modified report")
	}
	if !r.WhitespaceOnly() {
		t.Error("WhitespaceOnly should be true")
	}
	if got := r.Render(); got != "whitespace changes only\n" {
		t.Errorf("Render = %q", got)
	}
}

func TestRender(t *testing.T) {
	r := Diff("keep\nold", "keep\nnew")
	out := r.Render()
	for _, want := range []string{"  keep\n", "- old\n", "+ new\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render missing %q:\n%s", want, out)
		}
	}

	if got := Diff("same", "same").Render(); got != "no changes\n" {
		t.Errorf("unmodified Render = %q", got)
	}
	var nilReport *Report
	if got := nilReport.Render(); got != "no changes\n" {
		t.Errorf("nil Render = %q", got)
	}
}
