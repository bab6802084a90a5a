// Package report computes line-level differences between an input document
// and its repaired form.
package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line types.
const (
	LineUnchanged = "unchanged"
	LineAdded     = "added"
	LineRemoved   = "removed"
)

// Line is one aligned line of the diff.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// Report is the ordered line alignment of two texts.
type Report struct {
	Modified bool   `json:"modified"`
	Lines    []Line `json:"lines,omitempty"`

	whitespaceOnly bool
}

// Diff aligns original and repaired line by line. When the texts are
// line-identical the report is unmodified and holds no lines.
func Diff(original, repaired string) *Report {
	before := terminate(original)
	after := terminate(repaired)
	if before == after {
		return &Report{}
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine := 1
	newLine := 1
	for _, diff := range diffs {
		chunkLines := strings.Split(diff.Text, "\n")
		if len(chunkLines) > 0 && chunkLines[len(chunkLines)-1] == "" {
			chunkLines = chunkLines[:len(chunkLines)-1]
		}
		for _, line := range chunkLines {
			switch diff.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineUnchanged, Text: line, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: line, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: line, NewLine: newLine})
				newLine++
			}
		}
	}

	return &Report{
		Modified:       true,
		Lines:          lines,
		whitespaceOnly: squeeze(original) == squeeze(repaired),
	}
}

// Counts returns the number of added and removed lines.
func (r *Report) Counts() (added, removed int) {
	if r == nil {
		return 0, 0
	}
	for _, l := range r.Lines {
		switch l.Type {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		}
	}
	return added, removed
}

// WhitespaceOnly reports whether the texts differ only in whitespace.
func (r *Report) WhitespaceOnly() bool {
	return r != nil && r.Modified && r.whitespaceOnly
}

// Render formats the report for logs: "+ " for added lines, "- " for
// removed lines and two spaces for unchanged lines.
func (r *Report) Render() string {
	if r == nil || !r.Modified {
		return "no changes\n"
	}
	if r.whitespaceOnly {
		return "whitespace changes only\n"
	}
	var b strings.Builder
	for _, l := range r.Lines {
		switch l.Type {
		case LineAdded:
			b.WriteString("+ ")
		case LineRemoved:
			b.WriteString("- ")
		default:
			b.WriteString("  ")
		}
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func terminate(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

func squeeze(s string) string {
	return strings.Join(strings.Fields(s), "")
}
