package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/promptfix/core/engine"
	"github.com/FocuswithJustin/promptfix/core/upsert"
	"github.com/FocuswithJustin/promptfix/internal/logging"
)

// InjectCmd merges a preset and additive artist/style values into a document.
type InjectCmd struct {
	File         string `arg:"" optional:"" help:"Document to edit (default stdin)" type:"path"`
	Preset       string `help:"Style preset name" default:"none"`
	Artist       string `help:"Artist text placed before the preset's artist"`
	Style        string `help:"Style text placed before the preset's style"`
	ArtistAnchor string `name:"artist-anchor" help:"Tag to place a new artist after when no container exists"`
	StyleAnchor  string `name:"style-anchor" help:"Tag to place a new style after when no container exists"`
	Fenced       bool   `help:"Input is a model reply; edit its fenced xml block"`
	Diff         bool   `help:"Print the change report to stderr"`
}

func (c *InjectCmd) Run(app *App) error {
	input, err := readDocument(app, c.File, c.Fenced)
	if err != nil {
		return err
	}
	loaded := app.Loaded()
	if !loaded.Index.Has(c.Preset) {
		logging.Warn("unknown_preset", "preset", c.Preset)
	}
	specs := engine.StyleSpecs(loaded.Index, engine.StyleRequest{
		Preset:       c.Preset,
		Artist:       c.Artist,
		Style:        c.Style,
		ArtistAnchor: c.ArtistAnchor,
		StyleAnchor:  c.StyleAnchor,
	})
	app.Apply(input, specs, loaded.Config.EngineOptions(), c.Diff)
	return nil
}

// SetCmd upserts arbitrary tag=value pairs.
type SetCmd struct {
	Fields []string          `arg:"" help:"Fields as tag=value, applied in order"`
	File   string            `short:"f" help:"Document to edit (default stdin)" type:"path"`
	Anchor map[string]string `help:"Anchor per field as tag=anchor"`
	Fenced bool              `help:"Input is a model reply; edit its fenced xml block"`
	Diff   bool              `help:"Print the change report to stderr"`
}

func (c *SetCmd) Run(app *App) error {
	specs, err := parseFields(c.Fields, c.Anchor)
	if err != nil {
		return err
	}
	input, err := readDocument(app, c.File, c.Fenced)
	if err != nil {
		return err
	}
	app.Apply(input, specs, app.Loaded().Config.EngineOptions(), c.Diff)
	return nil
}

// parseFields turns tag=value arguments into field specs. Name validation
// is left to the engine so invalid names surface as notes.
func parseFields(fields []string, anchors map[string]string) ([]upsert.FieldSpec, error) {
	specs := make([]upsert.FieldSpec, 0, len(fields))
	for _, f := range fields {
		tag, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("field %q: expected tag=value", f)
		}
		tag = strings.TrimSpace(tag)
		specs = append(specs, upsert.FieldSpec{Tag: tag, Text: value, Anchor: anchors[tag]})
	}
	return specs, nil
}

// RepairCmd canonicalizes a document without editing any field.
type RepairCmd struct {
	File   string `arg:"" optional:"" help:"Document to repair (default stdin)" type:"path"`
	Fenced bool   `help:"Input is a model reply; repair its fenced xml block"`
	Diff   bool   `help:"Print the change report to stderr"`
}

func (c *RepairCmd) Run(app *App) error {
	input, err := readDocument(app, c.File, c.Fenced)
	if err != nil {
		return err
	}
	app.Apply(input, nil, app.Loaded().Config.EngineOptions(), c.Diff)
	return nil
}

// ExtractCmd prints the fenced xml block of a model reply.
type ExtractCmd struct {
	File       string `arg:"" optional:"" help:"Model reply (default stdin)" type:"path"`
	Commentary bool   `help:"Print the commentary outside the fence to stderr"`
}

func (c *ExtractCmd) Run(app *App) error {
	reply, err := app.ReadInput(c.File)
	if err != nil {
		return err
	}
	doc, commentary, found := engine.ExtractFenced(reply)
	if !found {
		logging.Warn("fence_not_found", "using", "whole reply")
	}
	fmt.Fprintln(app.Out, strings.TrimRight(doc, "\n"))
	if c.Commentary && commentary != "" {
		fmt.Fprintln(app.Err, commentary)
	}
	return nil
}

func readDocument(app *App, path string, fenced bool) (string, error) {
	input, err := app.ReadInput(path)
	if err != nil || !fenced {
		return input, err
	}
	doc, _, found := engine.ExtractFenced(input)
	if !found {
		logging.Warn("fence_not_found", "using", "whole reply")
	}
	return doc, nil
}

// StylesListCmd lists presets.
type StylesListCmd struct {
	JSON bool `help:"Output as JSON"`
}

func (c *StylesListCmd) Run(app *App) error {
	idx := app.Loaded().Index
	if c.JSON {
		out := make(map[string]any, idx.Len())
		for _, name := range idx.Names() {
			out[name] = idx.Lookup(name)
		}
		return writeJSON(app, out)
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tARTIST\tSTYLE")
	for _, name := range idx.Names() {
		p := idx.Lookup(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, p.Artist, p.Style)
	}
	return w.Flush()
}

// StylesShowCmd prints one preset.
type StylesShowCmd struct {
	Name string `arg:"" help:"Preset name"`
	JSON bool   `help:"Output as JSON"`
}

func (c *StylesShowCmd) Run(app *App) error {
	idx := app.Loaded().Index
	if !idx.Has(c.Name) {
		return fmt.Errorf("unknown preset %q (available: %s)", c.Name, strings.Join(idx.Names(), ", "))
	}
	p := idx.Lookup(c.Name)
	if c.JSON {
		return writeJSON(app, p)
	}
	fmt.Fprintf(app.Out, "artist: %s\nstyle: %s\n", p.Artist, p.Style)
	return nil
}

// RunsListCmd lists audited runs.
type RunsListCmd struct {
	Limit int  `short:"n" help:"Maximum number of runs" default:"20"`
	JSON  bool `help:"Output as JSON"`
}

func (c *RunsListCmd) Run(app *App) error {
	store, err := app.AuditStore()
	if err != nil {
		return err
	}
	records, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(app, records)
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTIME\tSTRATEGY\tMODIFIED\tNOTES")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\n", r.RunID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Strategy, r.Modified, len(r.Notes))
	}
	return w.Flush()
}

// RunsShowCmd prints one audited run.
type RunsShowCmd struct {
	RunID string `arg:"" name:"run-id" help:"Run ID"`
	JSON  bool   `help:"Output as JSON"`
}

func (c *RunsShowCmd) Run(app *App) error {
	store, err := app.AuditStore()
	if err != nil {
		return err
	}
	rec, err := store.Get(context.Background(), c.RunID)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(app, rec)
	}

	fmt.Fprintf(app.Out, "run:      %s\n", rec.RunID)
	fmt.Fprintf(app.Out, "time:     %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(app.Out, "strategy: %s\n", rec.Strategy)
	fmt.Fprintf(app.Out, "modified: %v\n", rec.Modified)
	for _, n := range rec.Notes {
		fmt.Fprintf(app.Out, "note:     %s\n", n)
	}
	fmt.Fprintf(app.Out, "\n%s", rec.Diff)
	return nil
}

func writeJSON(app *App, v any) error {
	enc := json.NewEncoder(app.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
