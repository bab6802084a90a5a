package upsert

import (
	"regexp"
	"sort"
	"strings"

	"github.com/FocuswithJustin/promptfix/core/encoding"
)

// Span is a byte range in raw text. Open and Close are the ranges of the
// opening and closing tags; for a self-closed tag both equal the whole match.
type Span struct {
	Start, End           int
	OpenStart, OpenEnd   int
	CloseStart, CloseEnd int
	SelfClosed           bool
}

func pairPattern(name string) *regexp.Regexp {
	q := regexp.QuoteMeta(name)
	return regexp.MustCompile(`(?is)(<` + q + `(?:\s[^<>]*[^<>/])?\s*>)(.*?)(</` + q + `\s*>)`)
}

func emptyPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<` + regexp.QuoteMeta(name) + `(?:\s[^<>]*?)?\s*/>`)
}

func closePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)</` + regexp.QuoteMeta(name) + `\s*>`)
}

// LocateText finds every non-overlapping occurrence of name in raw text,
// ordered by position. Both paired and self-closed forms are matched;
// matching ignores case. Invalid names match nothing.
func LocateText(text, name string) []Span {
	if !ValidName(name) {
		return nil
	}
	var spans []Span
	for _, m := range pairPattern(name).FindAllStringSubmatchIndex(text, -1) {
		spans = append(spans, Span{
			Start: m[0], End: m[1],
			OpenStart: m[2], OpenEnd: m[3],
			CloseStart: m[6], CloseEnd: m[7],
		})
	}
	for _, m := range emptyPattern(name).FindAllStringIndex(text, -1) {
		if within(spans, m[0]) {
			continue
		}
		spans = append(spans, Span{
			Start: m[0], End: m[1],
			OpenStart: m[0], OpenEnd: m[1],
			CloseStart: m[0], CloseEnd: m[1],
			SelfClosed: true,
		})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

func within(spans []Span, pos int) bool {
	for _, s := range spans {
		if pos >= s.Start && pos < s.End {
			return true
		}
	}
	return false
}

// Text applies spec to raw markup without building a tree. The content of
// every occurrence is replaced. With no occurrence, one tag is inserted
// before the container's closing tag, else after the first anchor's closing
// tag, else appended to the end of text. The value is escaped.
func Text(text string, spec FieldSpec, container string) (string, Outcome) {
	value, out, ok := prepare(spec)
	if !ok {
		return text, out
	}
	escaped := encoding.EscapeXMLText(value)

	if spans := LocateText(text, spec.Tag); len(spans) > 0 {
		var b strings.Builder
		last := 0
		for _, s := range spans {
			b.WriteString(text[last:s.Start])
			if s.SelfClosed {
				b.WriteString("<" + spec.Tag + ">" + escaped + "</" + spec.Tag + ">")
			} else {
				b.WriteString(text[s.OpenStart:s.OpenEnd])
				b.WriteString(escaped)
				b.WriteString(text[s.CloseStart:s.CloseEnd])
			}
			last = s.End
		}
		b.WriteString(text[last:])
		out.Action = ActionUpdated
		out.Count = len(spans)
		return b.String(), out
	}

	field := "<" + spec.Tag + ">" + escaped + "</" + spec.Tag + ">"
	out.Action = ActionCreated

	if ValidName(container) {
		if loc := closePattern(container).FindStringIndex(text); loc != nil {
			out.Placement = PlacementContainer
			return text[:loc[0]] + field + text[loc[0]:], out
		}
		if loc := emptyPattern(container).FindStringIndex(text); loc != nil {
			out.Placement = PlacementContainer
			return text[:loc[0]] + "<" + container + ">" + field + "</" + container + ">" + text[loc[1]:], out
		}
	}

	if ValidName(spec.Anchor) {
		if loc := closePattern(spec.Anchor).FindStringIndex(text); loc != nil {
			out.Placement = PlacementAnchor
			return text[:loc[1]] + field + text[loc[1]:], out
		}
		if loc := emptyPattern(spec.Anchor).FindStringIndex(text); loc != nil {
			out.Placement = PlacementAnchor
			return text[:loc[1]] + field + text[loc[1]:], out
		}
	}

	out.Placement = PlacementEnd
	out.Err = anchorMissing(spec.Tag)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + field, out
}
