// Command promptfix merges field values into tagged image-prompt documents
// and repairs documents that are not well-formed.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/promptfix/core/sqlite"
)

const version = "0.1.0"

// CLI defines the command-line interface for promptfix.
type CLI struct {
	Globals

	Inject  InjectCmd   `cmd:"" help:"Merge a style preset and extra values into a document"`
	Set     SetCmd      `cmd:"" help:"Upsert arbitrary fields given as tag=value"`
	Repair  RepairCmd   `cmd:"" help:"Repair and canonicalize a document without editing fields"`
	Extract ExtractCmd  `cmd:"" help:"Extract the fenced xml block from a language-model reply"`
	Styles  StylesGroup `cmd:"" help:"Style preset operations"`
	Runs    RunsGroup   `cmd:"" help:"Audit log of previous runs"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"Configuration file (YAML or JSON)" type:"path" env:"PROMPTFIX_CONFIG"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error (default from config)"`
	LogFormat string `name:"log-format" help:"Log format: json, text (default from config)"`
	Audit     string `name:"audit" help:"SQLite audit database (overrides config)" type:"path"`
}

// StylesGroup contains preset operations.
type StylesGroup struct {
	List StylesListCmd `cmd:"" help:"List style presets"`
	Show StylesShowCmd `cmd:"" help:"Show one style preset"`
}

// RunsGroup contains audit log operations.
type RunsGroup struct {
	List RunsListCmd `cmd:"" help:"List recent runs"`
	Show RunsShowCmd `cmd:"" help:"Show one run with its documents"`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(app.Out, "promptfix version %s\n", version)
	fmt.Fprintf(app.Out, "  sqlite driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("promptfix"),
		kong.Description("Resilient tag injection and repair for image-prompt documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	app, err := NewApp(cli.Globals, os.Stdin, os.Stdout, os.Stderr)
	ctx.FatalIfErrorf(err)
	defer app.Close()

	err = ctx.Run(app)
	ctx.FatalIfErrorf(err)
}
