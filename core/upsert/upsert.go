// Package upsert locates named tags in a prompt document and rewrites or
// creates them. Tree operations work on a parsed document; text operations
// work on raw markup when no tree could be built.
package upsert

import (
	"regexp"
	"strings"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
)

// DefaultContainer is the tag that receives synthesized fields when present.
const DefaultContainer = "general_tags"

// FieldSpec describes one upsert request. Specs are applied in order, so a
// later spec sees tags created by earlier ones.
type FieldSpec struct {
	Tag    string
	Text   string
	Anchor string
}

// Action is what an upsert did to the document.
type Action string

const (
	ActionUpdated Action = "updated"
	ActionCreated Action = "created"
	ActionSkipped Action = "skipped"
	ActionInvalid Action = "invalid"
)

// Placement is where a created tag was put.
type Placement string

const (
	PlacementContainer Placement = "container"
	PlacementAnchor    Placement = "anchor"
	PlacementEnd       Placement = "end"
)

// Outcome reports the effect of one FieldSpec.
type Outcome struct {
	Tag       string
	Action    Action
	Count     int       // occurrences rewritten, for ActionUpdated
	Placement Placement // for ActionCreated
	Err       error     // informational: anchor not found, invalid name
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ValidName reports whether name can be used as a tag name in queries and
// patterns. Namespaced names are not accepted.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// prepare validates spec and returns the value to write. ok is false when
// the spec must not touch the document.
func prepare(spec FieldSpec) (string, Outcome, bool) {
	out := Outcome{Tag: spec.Tag}
	if !ValidName(spec.Tag) {
		out.Action = ActionInvalid
		out.Err = perrors.NewValidation("tag", spec.Tag, "invalid tag name")
		return "", out, false
	}
	text := strings.TrimSpace(spec.Text)
	if text == "" {
		out.Action = ActionSkipped
		return "", out, false
	}
	return text, out, true
}

func anchorMissing(tag string) error {
	return perrors.Wrapf(perrors.ErrAnchorNotFound, "<%s> appended at end of document", tag)
}
