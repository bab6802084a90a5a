package engine

import (
	"regexp"
	"strings"
)

var xmlFence = regexp.MustCompile("(?s)```xml\\s*(.*?)\\s*```")

// ExtractFenced pulls the first ```xml fenced block out of a language-model
// reply. It returns the block content and the rest of the reply as
// commentary, both trimmed. When the reply has no such block, the whole
// reply is returned as the document and found is false.
func ExtractFenced(reply string) (document, commentary string, found bool) {
	loc := xmlFence.FindStringSubmatchIndex(reply)
	if loc == nil {
		return reply, "", false
	}
	document = strings.TrimSpace(reply[loc[2]:loc[3]])
	commentary = strings.TrimSpace(reply[:loc[0]] + reply[loc[1]:])
	return document, commentary, true
}
