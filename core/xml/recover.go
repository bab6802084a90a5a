package xml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/promptfix/core/encoding"
	perrors "github.com/FocuswithJustin/promptfix/core/errors"
)

// RepairKind classifies one correction made by the recovering parser.
type RepairKind string

const (
	RepairAutoClosed    RepairKind = "auto_closed"
	RepairOrphanClose   RepairKind = "orphan_close_dropped"
	RepairStrayMarkup   RepairKind = "stray_markup_dropped"
	RepairInvalidChars  RepairKind = "invalid_chars_dropped"
	RepairStrayText     RepairKind = "stray_text_dropped"
	RepairDuplicateAttr RepairKind = "duplicate_attr_dropped"
	RepairDirective     RepairKind = "directive_dropped"
	RepairRenamed       RepairKind = "name_renamed"
	RepairWrapped       RepairKind = "wrapped_in_root"
)

// Repair records one correction and where in the input it happened.
type Repair struct {
	Kind   RepairKind
	Tag    string
	Line   int
	Detail string
}

func (r Repair) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("line %d: %s", r.Line, r.Detail)
	}
	return r.Detail
}

// RecoverOptions controls the recovering parser.
type RecoverOptions struct {
	// Wrapper names the synthetic root created when the input holds more
	// than one top-level element. Defaults to "root".
	Wrapper string
}

// DefaultWrapper is the synthetic root name used when none is configured.
const DefaultWrapper = "root"

// namePattern matches XML names: a letter or underscore, then letters,
// digits, combining marks and "_.:-" or the middle dot.
const namePattern = `[\p{L}_][\p{L}\p{Nd}\p{M}_.:\-\x{B7}]*`

// markupLexer splits tag soup into markup and text. Rules are tried in
// order; anything that starts with "<" but fits no markup rule is lexed as
// a Stray token, so lexing never fails.
var markupLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `<!--(?s:.*?)-->`},
	{Name: "CData", Pattern: `<!\[CDATA\[(?s:.*?)\]\]>`},
	{Name: "ProcInst", Pattern: `<\?(?s:.*?)\?>`},
	{Name: "Directive", Pattern: `<![A-Za-z][^>]*>`},
	{Name: "EndTag", Pattern: `</` + namePattern + `\s*>`},
	{Name: "StartTag", Pattern: `<` + namePattern + `(?:\s+[^<>]*)?/?>`},
	{Name: "Text", Pattern: `[^<]+`},
	{Name: "Stray", Pattern: `<`},
})

var (
	tagNamePattern = regexp.MustCompile(`^</?\s*(` + namePattern + `)`)
	attrPattern    = regexp.MustCompile(`(` + namePattern + `)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'=<>` + "`" + `/]+))`)
)

type recoverer struct {
	top     *xmlquery.Node
	stack   []*xmlquery.Node
	roots   int
	repairs []Repair
	symbols map[string]lexer.TokenType
}

// ParseRecover builds a best-effort tree from damaged markup. Tags left open
// are closed at end of input or by the close tag of an enclosing element,
// close tags with no matching open tag are discarded, and characters that
// cannot appear in XML are dropped. It fails with
// errors.ErrRecoveryInconclusive only when no element at all can be built.
func ParseRecover(text string, opts RecoverOptions) (*Document, []Repair, error) {
	lex, err := markupLexer.LexString("", text)
	if err != nil {
		return nil, nil, perrors.NewParse("XML", 0, err.Error(), perrors.ErrRecoveryInconclusive)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, nil, perrors.NewParse("XML", 0, err.Error(), perrors.ErrRecoveryInconclusive)
	}

	r := &recoverer{
		top:     &xmlquery.Node{Type: xmlquery.DocumentNode},
		symbols: markupLexer.Symbols(),
	}
	for _, tok := range tokens {
		if tok.EOF() {
			break
		}
		r.consume(tok)
	}
	for len(r.stack) > 0 {
		open := r.pop()
		r.note(RepairAutoClosed, open.Data, 0, fmt.Sprintf("closed <%s> left open at end of input", open.Data))
		r.release(open, 0)
	}

	if r.roots == 0 {
		return nil, r.repairs, perrors.NewParse("XML", 0, "no element could be recovered", perrors.ErrRecoveryInconclusive)
	}
	if r.roots > 1 {
		wrapper := opts.Wrapper
		if wrapper == "" {
			wrapper = DefaultWrapper
		}
		r.wrap(wrapper)
	}
	return NewDocument(r.top), r.repairs, nil
}

func (r *recoverer) consume(tok lexer.Token) {
	line := tok.Pos.Line
	switch tok.Type {
	case r.symbols["StartTag"]:
		r.startTag(tok.Value, line)
	case r.symbols["EndTag"]:
		r.endTag(tok.Value, line)
	case r.symbols["Text"]:
		r.text(tok.Value, line)
	case r.symbols["CData"]:
		inner := strings.TrimSuffix(strings.TrimPrefix(tok.Value, "<![CDATA["), "]]>")
		r.appendText(r.clean(inner, line), line)
	case r.symbols["Comment"]:
		inner := strings.TrimSuffix(strings.TrimPrefix(tok.Value, "<!--"), "-->")
		r.attach(&xmlquery.Node{Type: xmlquery.CommentNode, Data: r.clean(inner, line)})
	case r.symbols["ProcInst"]:
		// Declarations carry nothing the canonical form keeps.
	case r.symbols["Directive"]:
		r.note(RepairDirective, "", line, "dropped directive "+truncate(tok.Value, 40))
	default:
		r.note(RepairStrayMarkup, "", line, "dropped stray '<'")
	}
}

func (r *recoverer) startTag(raw string, line int) {
	m := tagNamePattern.FindStringSubmatch(raw)
	if m == nil {
		r.note(RepairStrayMarkup, "", line, "dropped malformed tag "+truncate(raw, 40))
		return
	}
	name := r.name(m[1], elementName, line)
	selfClosing := strings.HasSuffix(raw, "/>")

	el := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	el.Attr = r.attributes(raw[len(m[0]):], name, line)
	if r.current() == nil {
		r.roots++
	}
	r.attach(el)
	if !selfClosing {
		r.stack = append(r.stack, el)
	}
}

func (r *recoverer) endTag(raw string, line int) {
	m := tagNamePattern.FindStringSubmatch(raw)
	if m == nil {
		r.note(RepairStrayMarkup, "", line, "dropped malformed close tag "+truncate(raw, 40))
		return
	}
	name := elementName(m[1])

	for i := len(r.stack) - 1; i >= 0; i-- {
		if !strings.EqualFold(r.stack[i].Data, name) {
			continue
		}
		for len(r.stack) > i+1 {
			inner := r.pop()
			r.note(RepairAutoClosed, inner.Data, line, fmt.Sprintf("closed <%s> left open before </%s>", inner.Data, name))
			r.release(inner, line)
		}
		r.pop()
		return
	}
	r.note(RepairOrphanClose, name, line, fmt.Sprintf("dropped </%s> with no matching open tag", name))
}

func (r *recoverer) text(raw string, line int) {
	r.appendText(r.clean(encoding.UnescapeXMLText(raw), line), line)
}

func (r *recoverer) appendText(text string, line int) {
	if text == "" {
		return
	}
	open := r.current()
	if open == nil {
		if strings.TrimSpace(text) != "" {
			r.note(RepairStrayText, "", line, "dropped text outside root: "+truncate(strings.TrimSpace(text), 40))
		}
		return
	}
	AppendChild(open, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}

func (r *recoverer) attributes(raw, tag string, line int) []xmlquery.Attr {
	var attrs []xmlquery.Attr
	seen := make(map[string]bool)
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		key := r.name(m[1], attrName, line)
		if seen[key] {
			r.note(RepairDuplicateAttr, tag, line, fmt.Sprintf("dropped duplicate attribute %s on <%s>", key, tag))
			continue
		}
		seen[key] = true

		value := m[2] + m[3] + m[4]
		name := xml.Name{Local: key}
		if i := strings.IndexByte(key, ':'); i > 0 {
			name = xml.Name{Space: key[:i], Local: key[i+1:]}
		}
		attrs = append(attrs, xmlquery.Attr{
			Name:  name,
			Value: r.clean(encoding.UnescapeXMLText(value), line),
		})
	}
	return attrs
}

// clean drops characters XML cannot carry and records the repair.
func (r *recoverer) clean(s string, line int) string {
	out, dropped := encoding.StripInvalidXMLChars(s)
	if dropped > 0 {
		r.note(RepairInvalidChars, "", line, fmt.Sprintf("dropped %d invalid character(s)", dropped))
	}
	return out
}

func (r *recoverer) attach(n *xmlquery.Node) {
	if open := r.current(); open != nil {
		AppendChild(open, n)
		return
	}
	if n.Type == xmlquery.ElementNode || n.Type == xmlquery.CommentNode {
		AppendChild(r.top, n)
	}
}

func (r *recoverer) wrap(name string) {
	wrapper := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	var children []*xmlquery.Node
	for child := r.top.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	for _, child := range children {
		AppendChild(wrapper, child)
	}
	AppendChild(r.top, wrapper)
	r.note(RepairWrapped, name, 0, fmt.Sprintf("wrapped %d top-level elements in <%s>", r.roots, name))
}

func (r *recoverer) current() *xmlquery.Node {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

func (r *recoverer) pop() *xmlquery.Node {
	open := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return open
}

func (r *recoverer) note(kind RepairKind, tag string, line int, detail string) {
	r.repairs = append(r.repairs, Repair{Kind: kind, Tag: tag, Line: line, Detail: detail})
}

// release runs when open was closed implicitly. An element that starts with
// text is a field whose close tag went missing, so element children that
// follow the text become its siblings. The root keeps its children.
func (r *recoverer) release(open *xmlquery.Node, line int) {
	if open.Parent == nil || open.Parent == r.top {
		return
	}
	first := fieldTail(open)
	if first == nil {
		return
	}
	var moved []*xmlquery.Node
	for n := first; n != nil; n = n.NextSibling {
		moved = append(moved, n)
	}
	at := open
	for _, n := range moved {
		InsertAfter(at, n)
		at = n
	}
	r.note(RepairAutoClosed, open.Data, line, fmt.Sprintf("moved %d node(s) after unclosed <%s>", len(moved), open.Data))
}

// fieldTail returns the first child element of el when non-blank text
// precedes it, and nil otherwise.
func fieldTail(el *xmlquery.Node) *xmlquery.Node {
	hasText := false
	for child := el.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			if hasText {
				return child
			}
			return nil
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(child.Data) != "" {
				hasText = true
			}
		}
	}
	return nil
}

// name returns raw as fixed by fix and records a repair when it changed.
func (r *recoverer) name(raw string, fix func(string) string, line int) string {
	fixed := fix(raw)
	if fixed != raw {
		r.note(RepairRenamed, fixed, line, fmt.Sprintf("renamed %s to %s", raw, fixed))
	}
	return fixed
}

// elementName replaces colons with underscores. Damaged input carries no
// usable namespace declarations, and an undeclared prefix fails strict
// parsing.
func elementName(raw string) string {
	return strings.ReplaceAll(raw, ":", "_")
}

// attrName keeps at most one colon, and only between a non-empty prefix and
// a non-empty local part. Other colons become underscores.
func attrName(raw string) string {
	prefix, local, found := strings.Cut(raw, ":")
	if !found {
		return raw
	}
	local = strings.ReplaceAll(local, ":", "_")
	if prefix == "" || local == "" {
		return strings.ReplaceAll(raw, ":", "_")
	}
	return prefix + ":" + local
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
