package engine

import (
	"github.com/FocuswithJustin/promptfix/core/styles"
	"github.com/FocuswithJustin/promptfix/core/upsert"
)

// Field names written by InjectStyle.
const (
	FieldArtist = "artist"
	FieldStyle  = "style"
)

// StyleRequest selects a preset and the caller's additive values.
type StyleRequest struct {
	Preset       string
	Artist       string
	Style        string
	ArtistAnchor string
	StyleAnchor  string
}

// StyleSpecs resolves req against idx into ordered field specs: artist
// first, then style. Each value is the additive text merged with the
// preset's text.
func StyleSpecs(idx *styles.Index, req StyleRequest) []upsert.FieldSpec {
	preset := idx.Lookup(req.Preset)
	return []upsert.FieldSpec{
		{Tag: FieldArtist, Text: styles.Combine(req.Artist, preset.Artist), Anchor: req.ArtistAnchor},
		{Tag: FieldStyle, Text: styles.Combine(req.Style, preset.Style), Anchor: req.StyleAnchor},
	}
}

// InjectStyle applies the preset and additive values in req to text.
func InjectStyle(text string, idx *styles.Index, req StyleRequest, opts Options) Result {
	return Apply(text, StyleSpecs(idx, req), opts)
}
