package xml

import (
	"strings"
	"testing"
)

// TestRenderCanonicalLayout verifies the exact canonical form.
func TestRenderCanonicalLayout(t *testing.T) {
	in := `<?xml version="1.0"?><img lang="en"><general_tags><artist>vanGogh</artist><style>  oil,   impasto </style></general_tags><empty></empty><caption>a &amp; b</caption></img>`
	want := strings.Join([]string{
		`<img lang="en">`,
		`  <general_tags>`,
		`    <artist>vanGogh</artist>`,
		`    <style>oil,   impasto</style>`,
		`  </general_tags>`,
		`  <empty/>`,
		`  <caption>a &amp; b</caption>`,
		`</img>`,
	}, "\n")

	doc, err := ParseStrict(in)
	if err != nil {
		t.Fatalf("ParseStrict failed: %v", err)
	}
	if got := Render(doc, ""); got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
}

// TestRenderWithTabs verifies the indentation unit is configurable.
func TestRenderWithTabs(t *testing.T) {
	doc, err := ParseStrict(`<root><child>x</child></root>`)
	if err != nil {
		t.Fatalf("ParseStrict failed: %v", err)
	}
	if got := Render(doc, "\t"); got != "<root>\n\t<child>x</child>\n</root>" {
		t.Errorf("Render = %q", got)
	}
}

// TestRenderMixedContent verifies text beside elements is placed on its own line.
func TestRenderMixedContent(t *testing.T) {
	doc, err := ParseStrict(`<root>lead<a>x</a><!--note--></root>`)
	if err != nil {
		t.Fatalf("ParseStrict failed: %v", err)
	}
	want := "<root>\n  lead\n  <a>x</a>\n  <!--note-->\n</root>"
	if got := Render(doc, ""); got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
}

// TestRenderIdempotent verifies render(parse(render(x))) == render(x).
func TestRenderIdempotent(t *testing.T) {
	inputs := []string{
		`<root><a>x</a></root>`,
		"<root>\n\t<a>  spaced  </a>\n\tloose text\n\t<b k=\"v&amp;w\"/>\n</root>",
		`<root>lead<a>x</a>tail<!-- c --></root>`,
		`<root><a><b><c>deep</c></b></a></root>`,
	}

	for _, in := range inputs {
		doc, err := ParseStrict(in)
		if err != nil {
			t.Fatalf("ParseStrict(%q) failed: %v", in, err)
		}
		first := Render(doc, "")

		again, err := ParseStrict(first)
		if err != nil {
			t.Fatalf("canonical form of %q does not re-parse: %v", in, err)
		}
		second := Render(again, "")
		if first != second {
			t.Errorf("render not idempotent for %q:\nfirst:\n%s\nsecond:\n%s", in, first, second)
		}
	}
}

// TestRenderNilDocument verifies nil input renders as empty text.
func TestRenderNilDocument(t *testing.T) {
	if got := Render(nil, ""); got != "" {
		t.Errorf("Render(nil) = %q", got)
	}
}
