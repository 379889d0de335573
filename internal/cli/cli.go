// Package cli defines the rounds command line.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/config"
	"github.com/vburojevic/rounds/internal/logging"
	"github.com/vburojevic/rounds/internal/output"
)

// Set by the linker.
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command.
type CLI struct {
	Format  string `short:"f" enum:"auto,ndjson,text" default:"${config_format}" help:"Output format (auto picks text on a terminal, ndjson otherwise)"`
	Level   string `short:"l" default:"${config_level}" help:"Log level (debug, info, warn, error)"`
	Quiet   bool   `short:"q" help:"Print only errors and the final record"`
	Verbose bool   `short:"v" help:"Debug logging to stderr"`

	Run     RunCmd     `cmd:"" help:"Run a session in this terminal, reading commands from stdin"`
	UI      UICmd      `cmd:"" name:"ui" help:"Run a session in a full-screen timer"`
	Serve   ServeCmd   `cmd:"" help:"Run a session controlled over HTTP"`
	History HistoryCmd `cmd:"" help:"List finished sessions"`
	Presets PresetsCmd `cmd:"" help:"List session presets"`
	Config  ConfigCmd  `cmd:"" help:"Inspect configuration"`
	Schema  SchemaCmd  `cmd:"" help:"Print JSON Schema for NDJSON output"`
	Version VersionCmd `cmd:"" help:"Show version"`
}

// Globals carries resolved global flags and I/O to every command.
type Globals struct {
	Format  string
	Level   string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Stdin   io.Reader
	Config  *config.Config

	logger *zap.Logger
}

// NewGlobalsWithConfig resolves flags against config. "auto" becomes text on a terminal.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:  c.Format,
		Level:   c.Level,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Stdin:   os.Stdin,
		Config:  cfg,
	}
	if g.Format == "" || g.Format == "auto" {
		g.Format = detectFormat(os.Stdout)
	}
	return g
}

func detectFormat(f *os.File) string {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return "text"
	}
	return "ndjson"
}

// Writer renders events in the selected format.
func (g *Globals) Writer() output.Writer {
	if g.Format == "text" {
		return output.NewTextWriter(g.Stdout, g.Stderr)
	}
	return output.NewNDJSONWriter(g.Stdout)
}

// Logger builds the process logger once. A bad level falls back to info.
func (g *Globals) Logger() *zap.Logger {
	if g.logger != nil {
		return g.logger
	}
	l, err := logging.New(g.Level, g.Verbose, g.Quiet)
	if err != nil {
		l, _ = logging.New("info", g.Verbose, g.Quiet)
	}
	if l == nil {
		l = zap.NewNop()
	}
	g.logger = l
	return l
}

// Debug logs a formatted debug message when verbose.
func (g *Globals) Debug(format string, args ...any) {
	if !g.Verbose {
		return
	}
	g.Logger().Sugar().Debugf(format, args...)
}
