package xml

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/promptfix/core/encoding"
)

// DefaultIndent is the indentation unit used when none is configured.
const DefaultIndent = "  "

// Render serializes the document in canonical layout: one element per line,
// indentation per depth, leaf elements inline, empty elements self-closed,
// text trimmed, attributes and children in tree order. The XML declaration
// is not emitted. Rendering an unchanged tree twice yields identical text,
// and rendering the strict parse of Render's output reproduces it.
func Render(doc *Document, indent string) string {
	if doc == nil || doc.top == nil {
		return ""
	}
	if indent == "" {
		indent = DefaultIndent
	}

	var w strings.Builder
	for child := doc.top.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			formatNode(&w, child, 0, indent)
		case xmlquery.CommentNode:
			writeComment(&w, child.Data, 0, indent)
		}
	}
	return strings.TrimRight(w.String(), "\n")
}

// formatNode recursively formats an element node.
func formatNode(w *strings.Builder, n *xmlquery.Node, depth int, indent string) {
	name := QualifiedName(n)

	// Opening tag
	writeIndent(w, depth, indent)
	w.WriteString("<")
	w.WriteString(name)

	// Attributes
	for _, attr := range n.Attr {
		w.WriteString(" ")
		if attr.Name.Space != "" {
			w.WriteString(attr.Name.Space)
			w.WriteString(":")
		}
		w.WriteString(attr.Name.Local)
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString("\"")
	}

	hasContent := false
	hasBlockChildren := false
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.CommentNode:
			hasContent = true
			hasBlockChildren = true
		case xmlquery.CharDataNode:
			hasContent = true
		case xmlquery.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				hasContent = true
			}
		}
	}

	if !hasContent {
		w.WriteString("/>\n")
		return
	}

	if !hasBlockChildren {
		w.WriteString(">")
		writeInline(w, n)
		w.WriteString("</")
		w.WriteString(name)
		w.WriteString(">\n")
		return
	}

	w.WriteString(">\n")
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			formatNode(w, child, depth+1, indent)
		case xmlquery.TextNode:
			text := strings.TrimSpace(child.Data)
			if text != "" {
				writeIndent(w, depth+1, indent)
				w.WriteString(encoding.EscapeXMLText(text))
				w.WriteString("\n")
			}
		case xmlquery.CharDataNode:
			writeIndent(w, depth+1, indent)
			writeCDATA(w, child.Data)
			w.WriteString("\n")
		case xmlquery.CommentNode:
			writeComment(w, child.Data, depth+1, indent)
		}
	}

	// Closing tag
	writeIndent(w, depth, indent)
	w.WriteString("</")
	w.WriteString(name)
	w.WriteString(">\n")
}

// writeInline writes the character content of a leaf element. Adjacent text
// nodes are joined before trimming so a split value renders as one run.
func writeInline(w *strings.Builder, n *xmlquery.Node) {
	var pending strings.Builder
	flush := func() {
		if text := strings.TrimSpace(pending.String()); text != "" {
			w.WriteString(encoding.EscapeXMLText(text))
		}
		pending.Reset()
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.TextNode:
			pending.WriteString(child.Data)
		case xmlquery.CharDataNode:
			flush()
			writeCDATA(w, child.Data)
		}
	}
	flush()
}

func writeCDATA(w *strings.Builder, data string) {
	// A literal "]]>" cannot live inside one section; split it across two.
	data = strings.ReplaceAll(data, "]]>", "]]]]><![CDATA[>")
	w.WriteString("<![CDATA[")
	w.WriteString(data)
	w.WriteString("]]>")
}

func writeComment(w *strings.Builder, data string, depth int, indent string) {
	for strings.Contains(data, "--") {
		data = strings.ReplaceAll(data, "--", "- -")
	}
	if strings.HasSuffix(data, "-") {
		data += " "
	}
	writeIndent(w, depth, indent)
	w.WriteString("<!--")
	w.WriteString(data)
	w.WriteString("-->\n")
}

func writeIndent(w *strings.Builder, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}
