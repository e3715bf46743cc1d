// Package cli wires the kong command tree. Commands receive a Globals with
// injected streams so tests can capture output.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/mzagar/bnw/internal/config"
)

// CLI is the root command tree.
type CLI struct {
	Format  string `help:"Output format: text or ndjson" enum:"text,ndjson" default:"${config_format}"`
	Quiet   bool   `short:"q" help:"Suppress informational output"`
	Verbose bool   `short:"v" help:"Enable verbose debug logging"`

	Run    RunCmd    `cmd:"" help:"Run the supervisor loop for one worker node"`
	Once   OnceCmd   `cmd:"" help:"Evaluate a single supervision tick and exit"`
	Status StatusCmd `cmd:"" help:"Show worker session, process and pause state"`
	Stop   StopCmd   `cmd:"" help:"Tear down the worker session and processes"`
	Config ConfigCmd `cmd:"" help:"Show, locate or generate configuration"`
}

// Globals carries cross-command state.
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config

	logger *agentLogger
}

// NewGlobalsWithConfig builds Globals from parsed flags and loaded config.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	g := &Globals{
		Format:  c.Format,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	// Agents piping output get ndjson unless told otherwise.
	if g.Format == "" {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			g.Format = "text"
		} else {
			g.Format = "ndjson"
		}
	}
	g.logger = newAgentLogger(g)
	return g
}

// Debug logs a verbose diagnostic line.
func (g *Globals) Debug(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Debug(format, args...)
	}
}
