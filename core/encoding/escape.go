// Package encoding provides shared text encoding and escaping utilities.
package encoding

import (
	"html"
	"strings"
	"unicode/utf8"
)

// EscapeXMLText escapes only the basic XML entities for text content.
func EscapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeXMLAttr escapes text for use in XML attributes.
// Includes quote escaping in addition to basic XML entities.
func EscapeXMLAttr(s string) string {
	s = EscapeXMLText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// UnescapeXMLText decodes character and entity references found in raw
// markup text. References that cannot be decoded are left as written, so a
// bare "&" survives and is escaped again on output.
func UnescapeXMLText(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}

// IsXMLChar reports whether r is allowed by the XML 1.0 Char production.
func IsXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// StripInvalidXMLChars removes runes that cannot appear in an XML document,
// including invalid UTF-8 sequences. It returns the cleaned string and the
// number of runes dropped.
func StripInvalidXMLChars(s string) (string, int) {
	clean := true
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || !IsXMLChar(r) {
			clean = false
			break
		}
		i += size
	}
	if clean {
		return s, 0
	}

	var b strings.Builder
	b.Grow(len(s))
	dropped := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if (r == utf8.RuneError && size == 1) || !IsXMLChar(r) {
			dropped++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), dropped
}
