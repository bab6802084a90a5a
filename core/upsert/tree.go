package upsert

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/promptfix/core/xml"
)

const (
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
)

// compileName builds a case-insensitive descendant-or-self query for name.
func compileName(name string) (*xpath.Expr, error) {
	return xpath.Compile("//*[translate(local-name(), '" + upperLetters + "', '" + lowerLetters + "')='" + strings.ToLower(name) + "']")
}

// Locate returns every element named name anywhere in doc, in document
// order. Matching ignores case. Invalid names match nothing.
func Locate(doc *xml.Document, name string) []*xmlquery.Node {
	if doc == nil || !ValidName(name) {
		return nil
	}
	expr, err := compileName(name)
	if err != nil {
		return nil
	}
	return doc.Select(expr)
}

// Tree applies spec to doc in place. Existing occurrences are all rewritten;
// otherwise one tag is created as the last child of the first container,
// else right after the first anchor, else as the last child of the root.
func Tree(doc *xml.Document, spec FieldSpec, container string) Outcome {
	text, out, ok := prepare(spec)
	if !ok {
		return out
	}

	if nodes := Locate(doc, spec.Tag); len(nodes) > 0 {
		for _, n := range nodes {
			xml.SetText(n, text)
		}
		out.Action = ActionUpdated
		out.Count = len(nodes)
		return out
	}

	el := xml.NewElement(spec.Tag, text)
	out.Action = ActionCreated

	if container != "" {
		if found := Locate(doc, container); len(found) > 0 {
			xml.AppendChild(found[0], el)
			out.Placement = PlacementContainer
			return out
		}
	}

	if spec.Anchor != "" {
		for _, anchor := range Locate(doc, spec.Anchor) {
			// The root cannot take a sibling without breaking single-rootedness.
			if anchor.Parent == nil || anchor.Parent.Type != xmlquery.ElementNode {
				continue
			}
			xml.InsertAfter(anchor, el)
			out.Placement = PlacementAnchor
			return out
		}
	}

	xml.AppendChild(doc.Root(), el)
	out.Placement = PlacementEnd
	out.Err = anchorMissing(spec.Tag)
	return out
}
