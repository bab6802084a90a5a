package upsert

import (
	"errors"
	"strings"
	"testing"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
	"github.com/FocuswithJustin/promptfix/core/xml"
)

func mustParse(t *testing.T, text string) *xml.Document {
	t.Helper()
	doc, err := xml.ParseStrict(text)
	if err != nil {
		t.Fatalf("ParseStrict(%q) failed: %v", text, err)
	}
	return doc
}

func compact(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		b.WriteString(strings.TrimSpace(line))
	}
	return b.String()
}

// TestValidName verifies which tag names are accepted.
func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"artist", true},
		{"general_tags", true},
		{"_x", true},
		{"a.b-c1", true},
		{"", false},
		{"1abc", false},
		{"a b", false},
		{"ns:tag", false},
		{"a'b", false},
	}

	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestTree verifies update, creation priority, and skip behavior on a tree.
func TestTree(t *testing.T) {
	tests := []struct {
		name          string
		doc           string
		spec          FieldSpec
		want          string
		wantAction    Action
		wantPlacement Placement
		wantCount     int
	}{
		{
			name:       "updates every occurrence",
			doc:        `<img><style>a</style><group><Style>b</Style></group></img>`,
			spec:       FieldSpec{Tag: "style", Text: "ink"},
			want:       `<img><style>ink</style><group><Style>ink</Style></group></img>`,
			wantAction: ActionUpdated,
			wantCount:  2,
		},
		{
			name:          "creates in container",
			doc:           `<img><general_tags><style>x</style></general_tags><artist>y</artist></img>`,
			spec:          FieldSpec{Tag: "mood", Text: "calm", Anchor: "artist"},
			want:          `<img><general_tags><style>x</style><mood>calm</mood></general_tags><artist>y</artist></img>`,
			wantAction:    ActionCreated,
			wantPlacement: PlacementContainer,
		},
		{
			name:          "creates after anchor",
			doc:           `<img><artist>y</artist><tail/></img>`,
			spec:          FieldSpec{Tag: "style", Text: "ink", Anchor: "artist"},
			want:          `<img><artist>y</artist><style>ink</style><tail/></img>`,
			wantAction:    ActionCreated,
			wantPlacement: PlacementAnchor,
		},
		{
			name:          "root is not an anchor",
			doc:           `<img><a/></img>`,
			spec:          FieldSpec{Tag: "style", Text: "ink", Anchor: "img"},
			want:          `<img><a/><style>ink</style></img>`,
			wantAction:    ActionCreated,
			wantPlacement: PlacementEnd,
		},
		{
			name:          "appends to root",
			doc:           `<img><a/></img>`,
			spec:          FieldSpec{Tag: "style", Text: "  ink  "},
			want:          `<img><a/><style>ink</style></img>`,
			wantAction:    ActionCreated,
			wantPlacement: PlacementEnd,
		},
		{
			name:       "empty value skipped",
			doc:        `<img><style>keep</style></img>`,
			spec:       FieldSpec{Tag: "style", Text: " \n\t"},
			want:       `<img><style>keep</style></img>`,
			wantAction: ActionSkipped,
		},
		{
			name:       "invalid name",
			doc:        `<img/>`,
			spec:       FieldSpec{Tag: "bad name", Text: "x"},
			want:       `<img/>`,
			wantAction: ActionInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.doc)
			out := Tree(doc, tt.spec, DefaultContainer)

			if out.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", out.Action, tt.wantAction)
			}
			if out.Placement != tt.wantPlacement {
				t.Errorf("Placement = %q, want %q", out.Placement, tt.wantPlacement)
			}
			if out.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", out.Count, tt.wantCount)
			}
			if got := compact(xml.Render(doc, "")); got != tt.want {
				t.Errorf("document = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestTreeOutcomeErrors verifies informational errors on outcomes.
func TestTreeOutcomeErrors(t *testing.T) {
	doc := mustParse(t, `<img/>`)
	out := Tree(doc, FieldSpec{Tag: "style", Text: "ink", Anchor: "missing"}, DefaultContainer)
	if !errors.Is(out.Err, perrors.ErrAnchorNotFound) {
		t.Errorf("Err = %v, want ErrAnchorNotFound", out.Err)
	}

	out = Tree(doc, FieldSpec{Tag: "<x>", Text: "ink"}, DefaultContainer)
	var ve *perrors.ValidationError
	if !errors.As(out.Err, &ve) {
		t.Errorf("Err = %v, want ValidationError", out.Err)
	}
}

// TestTreeIdempotent verifies a second application changes nothing.
func TestTreeIdempotent(t *testing.T) {
	doc := mustParse(t, `<img><general_tags/></img>`)
	spec := FieldSpec{Tag: "artist", Text: "vanGogh"}

	Tree(doc, spec, DefaultContainer)
	first := xml.Render(doc, "")
	out := Tree(doc, spec, DefaultContainer)
	second := xml.Render(doc, "")

	if first != second {
		t.Errorf("second application changed the document:\n%s\n%s", first, second)
	}
	if out.Action != ActionUpdated || out.Count != 1 {
		t.Errorf("second outcome = %+v, want one update", out)
	}
	if n := len(Locate(doc, "artist")); n != 1 {
		t.Errorf("artist count = %d, want 1", n)
	}
}

// TestLocateText verifies raw-text occurrence matching.
func TestLocateText(t *testing.T) {
	text := `<style>a</style> <STYLE k="1">b</STYLE> <style/> <styles>no</styles> <style k="a/b">c</style>`
	spans := LocateText(text, "style")
	if len(spans) != 4 {
		t.Fatalf("LocateText found %d spans, want 4", len(spans))
	}
	if !spans[2].SelfClosed {
		t.Error("third span should be self-closed")
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End {
			t.Errorf("spans overlap or are unordered: %+v", spans)
		}
	}
	if got := text[spans[3].OpenEnd:spans[3].CloseStart]; got != "c" {
		t.Errorf("content of last span = %q, want c", got)
	}
}

// TestText verifies the raw-text tier.
func TestText(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		spec          FieldSpec
		want          string
		wantAction    Action
		wantPlacement Placement
	}{
		{
			name:       "replaces all occurrences",
			text:       "<x><style>a</style><style>b</style></x",
			spec:       FieldSpec{Tag: "style", Text: "ink & wash"},
			want:       "<x><style>ink &amp; wash</style><style>ink &amp; wash</style></x",
			wantAction: ActionUpdated,
		},
		{
			name:       "expands self-closed occurrence",
			text:       "<x><style/>",
			spec:       FieldSpec{Tag: "style", Text: "ink"},
			want:       "<x><style>ink</style>",
			wantAction: ActionUpdated,
		},
		{
			name:          "inserts before container close",
			text:          "<general_tags><a>1</a></general_tags><broken",
			spec:          FieldSpec{Tag: "artist", Text: "vanGogh"},
			want:          "<general_tags><a>1</a><artist>vanGogh</artist></general_tags><broken",
			wantAction:    ActionCreated,
			wantPlacement: PlacementContainer,
		},
		{
			name:          "inserts after anchor close",
			text:          "<artist>x</artist><<",
			spec:          FieldSpec{Tag: "style", Text: "ink", Anchor: "artist"},
			want:          "<artist>x</artist><style>ink</style><<",
			wantAction:    ActionCreated,
			wantPlacement: PlacementAnchor,
		},
		{
			name:          "appends to plain text",
			text:          "a watercolor of a fox",
			spec:          FieldSpec{Tag: "style", Text: "ink"},
			want:          "a watercolor of a fox\n<style>ink</style>",
			wantAction:    ActionCreated,
			wantPlacement: PlacementEnd,
		},
		{
			name:          "appends to empty text",
			text:          "",
			spec:          FieldSpec{Tag: "style", Text: "ink"},
			want:          "<style>ink</style>",
			wantAction:    ActionCreated,
			wantPlacement: PlacementEnd,
		},
		{
			name:       "empty value leaves text alone",
			text:       "<style>a</style",
			spec:       FieldSpec{Tag: "style", Text: ""},
			want:       "<style>a</style",
			wantAction: ActionSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, out := Text(tt.text, tt.spec, DefaultContainer)
			if got != tt.want {
				t.Errorf("Text = %q, want %q", got, tt.want)
			}
			if out.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", out.Action, tt.wantAction)
			}
			if out.Placement != tt.wantPlacement {
				t.Errorf("Placement = %q, want %q", out.Placement, tt.wantPlacement)
			}
		})
	}
}

// TestTextIdempotent verifies re-applying the same spec to raw text is stable.
func TestTextIdempotent(t *testing.T) {
	spec := FieldSpec{Tag: "artist", Text: "vanGogh"}
	first, _ := Text("stray <b>words", spec, DefaultContainer)
	second, out := Text(first, spec, DefaultContainer)
	if first != second {
		t.Errorf("second application changed text:\n%q\n%q", first, second)
	}
	if out.Action != ActionUpdated {
		t.Errorf("Action = %s, want updated", out.Action)
	}
}
