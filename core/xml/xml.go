// Package xml provides the tree model of a tagged prompt document: a strict
// parser, a recovering parser for damaged input, and a canonical renderer.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities by default, and we explicitly
//     disable entity expansion during the well-formedness pass.
//   - The xmlquery library is used for the strict tree, which uses Go's
//     encoding/xml internally and inherits its security properties.
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
)

// Document is a parsed tagged document with exactly one root element.
// A Document is private to one engine call; nothing shares its nodes.
type Document struct {
	top *xmlquery.Node
}

// NewDocument wraps an xmlquery document node.
func NewDocument(top *xmlquery.Node) *Document {
	return &Document{top: top}
}

// Root returns the root element of the document.
func (d *Document) Root() *xmlquery.Node {
	if d == nil || d.top == nil {
		return nil
	}
	for child := d.top.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// Select returns every node matching the compiled expression, in document order.
func (d *Document) Select(expr *xpath.Expr) []*xmlquery.Node {
	if d == nil || d.top == nil {
		return nil
	}
	return xmlquery.QuerySelectorAll(d.top, expr)
}

// ParseStrict parses text under the full XML grammar. It fails on any
// well-formedness error, when the text holds zero or several top-level
// elements, and when non-whitespace text appears outside the root.
// Every failure unwraps to errors.ErrStructuralParseFailed.
func ParseStrict(text string) (*Document, error) {
	if err := checkWellFormed(text); err != nil {
		return nil, err
	}

	top, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil, perrors.NewParse("XML", 0, err.Error(), perrors.ErrStructuralParseFailed)
	}
	doc := NewDocument(top)
	if doc.Root() == nil {
		return nil, perrors.NewParse("XML", 0, "no root element", perrors.ErrStructuralParseFailed)
	}
	return doc, nil
}

// Verify reports whether text is a single well-formed element tree.
func Verify(text string) error {
	_, err := ParseStrict(text)
	return err
}

// checkWellFormed walks the token stream once so structural problems are
// reported with a line number before any tree is built.
func checkWellFormed(text string) error {
	decoder := xml.NewDecoder(bytes.NewReader([]byte(text)))
	decoder.Strict = true

	// XXE Protection (CWE-611): no entity expansion beyond the predefined five.
	decoder.Entity = map[string]string{}

	depth := 0
	roots := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				line = syn.Line
			}
			return perrors.NewParse("XML", line, err.Error(), perrors.ErrStructuralParseFailed)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if name, dup := duplicateAttr(t.Attr); dup {
				line, _ := decoder.InputPos()
				return perrors.NewParse("XML", line, "duplicate attribute "+name+" on <"+t.Name.Local+">", perrors.ErrStructuralParseFailed)
			}
			if depth == 0 {
				roots++
				if roots > 1 {
					line, _ := decoder.InputPos()
					return perrors.NewParse("XML", line, "multiple root elements", perrors.ErrStructuralParseFailed)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := decoder.InputPos()
				return perrors.NewParse("XML", line, "text outside root element", perrors.ErrStructuralParseFailed)
			}
		}
	}

	if roots == 0 {
		return perrors.NewParse("XML", 0, "no root element", perrors.ErrStructuralParseFailed)
	}
	return nil
}

// duplicateAttr reports the first attribute name that appears twice.
// encoding/xml does not check this itself.
func duplicateAttr(attrs []xml.Attr) (string, bool) {
	for i := 1; i < len(attrs); i++ {
		for j := 0; j < i; j++ {
			if attrs[i].Name == attrs[j].Name {
				if attrs[i].Name.Space != "" {
					return attrs[i].Name.Space + ":" + attrs[i].Name.Local, true
				}
				return attrs[i].Name.Local, true
			}
		}
	}
	return "", false
}

// AppendChild links n as the last child of parent.
func AppendChild(parent, n *xmlquery.Node) {
	detach(n)
	xmlquery.AddChild(parent, n)
}

// InsertAfter links n as the sibling immediately following anchor.
func InsertAfter(anchor, n *xmlquery.Node) {
	detach(n)
	parent := anchor.Parent
	n.Parent = parent
	n.PrevSibling = anchor
	n.NextSibling = anchor.NextSibling
	if anchor.NextSibling != nil {
		anchor.NextSibling.PrevSibling = n
	} else if parent != nil {
		parent.LastChild = n
	}
	anchor.NextSibling = n
}

// PrependChild links n as the first child of parent.
func PrependChild(parent, n *xmlquery.Node) {
	detach(n)
	n.Parent = parent
	n.NextSibling = parent.FirstChild
	if parent.FirstChild != nil {
		parent.FirstChild.PrevSibling = n
	} else {
		parent.LastChild = n
	}
	parent.FirstChild = n
}

func detach(n *xmlquery.Node) {
	parent := n.Parent
	if parent != nil {
		if parent.FirstChild == n {
			parent.FirstChild = n.NextSibling
		}
		if parent.LastChild == n {
			parent.LastChild = n.PrevSibling
		}
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// NewElement creates a detached element node holding text.
func NewElement(name, text string) *xmlquery.Node {
	el := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	if text != "" {
		AppendChild(el, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	}
	return el
}

// SetText replaces the direct character content of el with text. Child
// elements and comments are kept, and the new text becomes the first child.
func SetText(el *xmlquery.Node, text string) {
	var drop []*xmlquery.Node
	for child := el.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.TextNode || child.Type == xmlquery.CharDataNode {
			drop = append(drop, child)
		}
	}
	for _, child := range drop {
		detach(child)
	}
	if text != "" {
		PrependChild(el, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	}
}

// DirectText returns the trimmed character content of el, ignoring descendants.
func DirectText(el *xmlquery.Node) string {
	var b strings.Builder
	for child := el.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.TextNode || child.Type == xmlquery.CharDataNode {
			b.WriteString(child.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// QualifiedName returns the element name including any namespace prefix.
func QualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}
