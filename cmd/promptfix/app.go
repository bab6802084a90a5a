package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/FocuswithJustin/promptfix/core/engine"
	"github.com/FocuswithJustin/promptfix/core/upsert"
	"github.com/FocuswithJustin/promptfix/internal/audit"
	"github.com/FocuswithJustin/promptfix/internal/config"
	"github.com/FocuswithJustin/promptfix/internal/logging"
)

// App carries what every command needs: I/O streams, configuration,
// logging, and the optional audit store.
type App struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Logger *slog.Logger

	store     *config.Store
	auditPath string
	audit     *audit.Store
}

// NewApp loads configuration and sets up logging. Flags in g take
// precedence over the configuration file.
func NewApp(g Globals, in io.Reader, out, errOut io.Writer) (*App, error) {
	store := config.NewStore(g.Config, slog.New(slog.NewTextHandler(errOut, nil)))
	loaded, _ := store.Current()

	levelName := loaded.Config.Logging.Level
	if g.LogLevel != "" {
		levelName = g.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	formatName := loaded.Config.Logging.Format
	if g.LogFormat != "" {
		formatName = g.LogFormat
	}
	format, err := logging.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	logging.InitLoggerWithWriter(errOut, level, format)

	auditPath := loaded.Config.Audit.Path
	if g.Audit != "" {
		auditPath = g.Audit
	}

	return &App{
		In:        in,
		Out:       out,
		Err:       errOut,
		Logger:    logging.GetLogger(),
		store:     store,
		auditPath: auditPath,
	}, nil
}

// Close releases the audit store if one was opened.
func (a *App) Close() error {
	if a.audit != nil {
		return a.audit.Close()
	}
	return nil
}

// Loaded returns the current configuration, reloading it if the file changed.
func (a *App) Loaded() *config.Loaded {
	loaded, _ := a.store.Current()
	return loaded
}

// ReadInput reads path, or standard input when path is empty or "-".
func (a *App) ReadInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(a.In)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// Apply runs the engine, logs its notes and outcome, records the run when
// auditing is enabled, and writes the document to Out.
func (a *App) Apply(input string, specs []upsert.FieldSpec, opts engine.Options, showDiff bool) engine.Result {
	ctx, runID := logging.StartRun(context.Background())

	res := engine.Apply(input, specs, opts)

	for _, n := range res.Notes {
		logging.RepairNote(ctx, string(n.Kind), n.Field, n.Message, warnWorthy(n.Kind))
	}
	added, removed := res.Report.Counts()
	logging.RepairOutcome(ctx, string(res.Strategy), res.Modified, added, removed,
		"notes", len(res.Notes), "whitespace_only", res.Report.WhitespaceOnly())

	a.record(ctx, audit.FromResult(runID, input, res))

	fmt.Fprintln(a.Out, strings.TrimRight(res.Text, "\n"))
	if showDiff {
		fmt.Fprint(a.Err, res.Report.Render())
	}
	return res
}

func (a *App) record(ctx context.Context, rec audit.Record) {
	if a.auditPath == "" {
		return
	}
	store, err := a.AuditStore()
	if err != nil {
		logging.WarnContext(ctx, "audit_disabled", "path", a.auditPath, "error", err.Error())
		a.auditPath = ""
		return
	}
	if err := store.Append(ctx, rec); err != nil {
		logging.WarnContext(ctx, "audit_write_failed", "path", a.auditPath, "error", err.Error())
		return
	}
	logging.AuditRecorded(ctx, a.auditPath, "strategy", rec.Strategy)
}

// AuditStore opens the audit store on first use.
func (a *App) AuditStore() (*audit.Store, error) {
	if a.audit != nil {
		return a.audit, nil
	}
	if a.auditPath == "" {
		return nil, fmt.Errorf("no audit database configured (use --audit or audit.path)")
	}
	store, err := audit.Open(a.auditPath)
	if err != nil {
		return nil, err
	}
	a.audit = store
	return store, nil
}

func warnWorthy(kind engine.NoteKind) bool {
	switch kind {
	case engine.NoteNoSafeEdit, engine.NoteVerifyFailed, engine.NoteInvalidField:
		return true
	}
	return false
}
