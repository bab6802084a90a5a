package xml

import (
	"errors"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
)

// TestParseStrictValid verifies parsing of well-formed documents.
func TestParseStrictValid(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantRoot string
	}{
		{"simple", `<root><style>x</style></root>`, "root"},
		{"declaration", "<?xml version=\"1.0\"?>\n<img><artist>a</artist></img>", "img"},
		{"surrounding whitespace", "\n  <root/>\n", "root"},
		{"comment before root", "<!-- draft --><root/>", "root"},
		{"predefined entities", `<root><style>salt &amp; pepper</style></root>`, "root"},
		{"unicode names", `<画像><キャラ>少女</キャラ></画像>`, "画像"},
		{"distinct attributes", `<root k="1" K="2"/>`, "root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseStrict(tt.text)
			if err != nil {
				t.Fatalf("ParseStrict failed: %v", err)
			}
			if got := doc.Root().Data; got != tt.wantRoot {
				t.Errorf("Root = %q, want %q", got, tt.wantRoot)
			}
		})
	}
}

// TestParseStrictRejects verifies malformed input fails with the structural sentinel.
func TestParseStrictRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"plain text", "just words"},
		{"unclosed tag", "<root><style>x</root>"},
		{"unterminated", "<root><style>x"},
		{"mismatched tags", "<root></other>"},
		{"multiple roots", "<artist>a</artist><style>b</style>"},
		{"text after root", "<root/>trailing words"},
		{"invalid chars", "<root>\x00</root>"},
		{"unknown entity", "<root>&nbsp;</root>"},
		{"duplicate attribute", `<root k="1" k="2"/>`},
		{"duplicate nested attribute", `<root><a x='1' y='2' x='3'>v</a></root>`},
		{"name with two colons", "<a:b:c/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStrict(tt.text)
			if err == nil {
				t.Fatal("ParseStrict should fail")
			}
			if !errors.Is(err, perrors.ErrStructuralParseFailed) {
				t.Errorf("error %v should unwrap to ErrStructuralParseFailed", err)
			}
			var pe *perrors.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error %T should be a ParseError", err)
			}
		})
	}
}

// TestSelectCaseInsensitive verifies compiled queries run against the tree.
func TestSelectCaseInsensitive(t *testing.T) {
	doc, err := ParseStrict(`<root><Style>a</Style><group><style>b</style></group></root>`)
	if err != nil {
		t.Fatalf("ParseStrict failed: %v", err)
	}

	expr := xpath.MustCompile(`//*[translate(local-name(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz')='style']`)
	nodes := doc.Select(expr)
	if len(nodes) != 2 {
		t.Fatalf("Select returned %d nodes, want 2", len(nodes))
	}
	if DirectText(nodes[0]) != "a" || DirectText(nodes[1]) != "b" {
		t.Errorf("nodes out of document order: %q, %q", DirectText(nodes[0]), DirectText(nodes[1]))
	}
}

// TestSetTextKeepsChildren verifies only character content is replaced.
func TestSetTextKeepsChildren(t *testing.T) {
	doc, err := ParseStrict(`<root><artist>old<note>keep</note>tail</artist></root>`)
	if err != nil {
		t.Fatalf("ParseStrict failed: %v", err)
	}
	artist := doc.Root().FirstChild

	SetText(artist, "new")
	if got := DirectText(artist); got != "new" {
		t.Errorf("DirectText = %q, want %q", got, "new")
	}
	if artist.FirstChild.Type != xmlquery.TextNode {
		t.Error("new text should be the first child")
	}
	if artist.LastChild.Type != xmlquery.ElementNode || artist.LastChild.Data != "note" {
		t.Error("child element should be kept")
	}
}

// TestInsertAfter verifies sibling linking in the middle and at the end.
func TestInsertAfter(t *testing.T) {
	doc, err := ParseStrict(`<root><a/><c/></root>`)
	if err != nil {
		t.Fatalf("ParseStrict failed: %v", err)
	}
	root := doc.Root()
	a := root.FirstChild
	c := root.LastChild

	InsertAfter(a, NewElement("b", ""))
	InsertAfter(c, NewElement("d", "text"))

	var names []string
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		names = append(names, child.Data)
	}
	want := []string{"a", "b", "c", "d"}
	if len(names) != len(want) {
		t.Fatalf("children = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("children = %v, want %v", names, want)
		}
	}
	if root.LastChild.Data != "d" {
		t.Errorf("LastChild = %q, want d", root.LastChild.Data)
	}
	if root.LastChild.Parent != root {
		t.Error("inserted node should point at its parent")
	}
}

// TestVerify verifies the well-formedness gate used before returning a tree.
func TestVerify(t *testing.T) {
	if err := Verify("<root><a>x</a></root>"); err != nil {
		t.Errorf("Verify(valid) = %v", err)
	}
	if err := Verify("<root><a>x</root>"); err == nil {
		t.Error("Verify(invalid) should fail")
	}
}
