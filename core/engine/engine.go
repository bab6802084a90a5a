// Package engine applies field upserts to tagged prompt documents, choosing
// the least destructive strategy that yields a well-formed result.
//
// Strategies are tried in order: strict parse, recovering parse, and text
// patterns on the raw input. Whatever tier succeeds, the result is rendered
// in canonical form and diffed against the input. Apply never returns an
// error and never panics; the worst outcome is the input returned unchanged
// with StrategyNone.
package engine

import (
	"strings"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
	"github.com/FocuswithJustin/promptfix/core/report"
	"github.com/FocuswithJustin/promptfix/core/upsert"
	"github.com/FocuswithJustin/promptfix/core/xml"
)

// Strategy names the tier that produced a result.
type Strategy string

const (
	StrategyStrict    Strategy = "strict"
	StrategyRecovered Strategy = "recovered"
	StrategyPattern   Strategy = "pattern"
	StrategyNone      Strategy = "none"
)

// NoteKind classifies a note.
type NoteKind string

const (
	NoteStructuralParseFailed NoteKind = "structural_parse_failed"
	NoteRecoveryInconclusive  NoteKind = "recovery_inconclusive"
	NoteRepair                NoteKind = "repair"
	NoteVerifyFailed          NoteKind = "verify_failed"
	NoteAnchorNotFound        NoteKind = "anchor_not_found"
	NoteInvalidField          NoteKind = "invalid_field"
	NoteEmptyValue            NoteKind = "empty_value_skipped"
	NoteNoSafeEdit            NoteKind = "no_safe_edit"
)

// Note is a structured diagnostic returned to the caller instead of being
// logged. Err, when set, wraps one of the core/errors sentinels.
type Note struct {
	Kind    NoteKind
	Field   string
	Message string
	Err     error
}

// Options configures one Apply call. Zero values select the defaults.
type Options struct {
	Container string            // preferred parent for created fields
	Wrapper   string            // synthetic root for several top-level elements
	Indent    string            // canonical indentation unit
	Anchors   map[string]string // default anchor per field when a spec has none
}

func (o Options) withDefaults() Options {
	if o.Container == "" {
		o.Container = upsert.DefaultContainer
	}
	if o.Wrapper == "" {
		o.Wrapper = xml.DefaultWrapper
	}
	if o.Indent == "" {
		o.Indent = xml.DefaultIndent
	}
	return o
}

// Result is the outcome of one Apply call.
type Result struct {
	Text     string
	Modified bool
	Strategy Strategy
	Report   *report.Report
	Notes    []Note
	Outcomes []upsert.Outcome
}

// Apply upserts specs into text in order. Later specs see the fields
// created by earlier ones. With no specs, Apply only repairs and
// canonicalizes the document.
func Apply(text string, specs []upsert.FieldSpec, opts Options) (res Result) {
	a := &applier{opts: opts.withDefaults()}
	defer func() {
		if r := recover(); r != nil {
			res = noSafeEdit(text, a.notes, perrors.Wrapf(perrors.ErrNoSafeEdit, "edit aborted: %v", r))
		}
	}()

	opts = a.opts
	specs = withAnchors(specs, opts.Anchors)
	preamble, body := SplitPreamble(text)

	doc, err := xml.ParseStrict(body)
	if err == nil {
		if out, ok := a.tree(doc, specs); ok {
			return a.finish(text, joinPreamble(preamble, out), StrategyStrict)
		}
	} else {
		a.note(NoteStructuralParseFailed, "", err)
	}

	doc, repairs, err := xml.ParseRecover(body, xml.RecoverOptions{Wrapper: opts.Wrapper})
	if err == nil {
		a.repairs(repairs)
		if out, ok := a.tree(doc, specs); ok {
			return a.finish(text, joinPreamble(preamble, out), StrategyRecovered)
		}
	} else {
		a.note(NoteRecoveryInconclusive, "", err)
	}

	out, err := a.pattern(text, specs)
	if err != nil {
		return noSafeEdit(text, a.notes, err)
	}
	return a.finish(text, out, StrategyPattern)
}

type applier struct {
	opts     Options
	notes    []Note
	outcomes []upsert.Outcome
}

// tree applies specs to doc and renders it. ok is false when the rendered
// text does not pass strict verification.
func (a *applier) tree(doc *xml.Document, specs []upsert.FieldSpec) (string, bool) {
	outcomes := make([]upsert.Outcome, 0, len(specs))
	for _, spec := range specs {
		outcomes = append(outcomes, upsert.Tree(doc, spec, a.opts.Container))
	}

	out := xml.Render(doc, a.opts.Indent)
	if err := xml.Verify(out); err != nil {
		a.note(NoteVerifyFailed, "", err)
		return "", false
	}
	a.outcome(outcomes)
	return out, true
}

// pattern edits the raw text and then canonicalizes whatever structure the
// edits produced. It fails when the edited text cannot be rendered as a
// well-formed document.
func (a *applier) pattern(text string, specs []upsert.FieldSpec) (string, error) {
	outcomes := make([]upsert.Outcome, 0, len(specs))
	for _, spec := range specs {
		var out upsert.Outcome
		text, out = upsert.Text(text, spec, a.opts.Container)
		outcomes = append(outcomes, out)
	}
	a.outcome(outcomes)

	preamble, body := SplitPreamble(text)
	doc, err := xml.ParseStrict(body)
	if err != nil {
		var repairs []xml.Repair
		if doc, repairs, err = xml.ParseRecover(body, xml.RecoverOptions{Wrapper: a.opts.Wrapper}); err != nil {
			return "", perrors.Wrap(perrors.ErrNoSafeEdit, "edited text has no recoverable structure")
		}
		a.repairs(repairs)
	}
	out := xml.Render(doc, a.opts.Indent)
	if err := xml.Verify(out); err != nil {
		a.note(NoteVerifyFailed, "", err)
		return "", perrors.Wrap(perrors.ErrNoSafeEdit, "edited text does not render well-formed")
	}
	return joinPreamble(preamble, out), nil
}

// finish builds the result. Modified follows the report, so a missing
// trailing newline alone does not count as a change.
func (a *applier) finish(original, out string, strategy Strategy) Result {
	rep := report.Diff(original, out)
	return Result{
		Text:     out,
		Modified: rep.Modified,
		Strategy: strategy,
		Report:   rep,
		Notes:    a.notes,
		Outcomes: a.outcomes,
	}
}

func (a *applier) outcome(outcomes []upsert.Outcome) {
	a.outcomes = outcomes
	for _, o := range outcomes {
		switch o.Action {
		case upsert.ActionInvalid:
			a.note(NoteInvalidField, o.Tag, o.Err)
		case upsert.ActionSkipped:
			a.notes = append(a.notes, Note{Kind: NoteEmptyValue, Field: o.Tag, Message: "empty value; field left untouched"})
		case upsert.ActionCreated:
			if o.Err != nil {
				a.note(NoteAnchorNotFound, o.Tag, o.Err)
			}
		}
	}
}

func (a *applier) repairs(repairs []xml.Repair) {
	for _, r := range repairs {
		a.notes = append(a.notes, Note{Kind: NoteRepair, Field: r.Tag, Message: r.String()})
	}
}

func (a *applier) note(kind NoteKind, field string, err error) {
	a.notes = append(a.notes, Note{Kind: kind, Field: field, Message: err.Error(), Err: err})
}

func noSafeEdit(text string, notes []Note, err error) Result {
	notes = append(notes, Note{Kind: NoteNoSafeEdit, Message: err.Error(), Err: err})
	return Result{
		Text:     text,
		Strategy: StrategyNone,
		Report:   report.Diff(text, text),
		Notes:    notes,
	}
}

// withAnchors fills missing anchors from the per-field defaults. The
// caller's slice is not modified.
func withAnchors(specs []upsert.FieldSpec, anchors map[string]string) []upsert.FieldSpec {
	if len(anchors) == 0 {
		return specs
	}
	out := make([]upsert.FieldSpec, len(specs))
	for i, spec := range specs {
		if spec.Anchor == "" {
			spec.Anchor = anchors[strings.ToLower(spec.Tag)]
		}
		out[i] = spec
	}
	return out
}
