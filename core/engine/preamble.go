package engine

import (
	"regexp"
	"strings"
)

var firstTag = regexp.MustCompile(`<[A-Za-z_]`)

// SplitPreamble separates free text written before the first start tag from
// the structural block. The preamble is trimmed; the body starts at the
// first "<" followed by a letter or underscore. Text with no start tag is
// all preamble.
func SplitPreamble(text string) (preamble, body string) {
	loc := firstTag.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(text[:loc[0]]), text[loc[0]:]
}

func joinPreamble(preamble, block string) string {
	switch {
	case preamble == "":
		return block
	case block == "":
		return preamble
	default:
		return preamble + "\n" + block
	}
}
