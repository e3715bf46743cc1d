package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/mzagar/bnw/internal/cli"
	"github.com/mzagar/bnw/internal/config"
)

const quickStart = `bnw - betting worker node watchdog

Quick start:
  bnw run                               Supervise the configured node
  bnw status                            Show worker/session state
  bnw once --dry-run                    Evaluate one tick without acting

For help:
  bnw --help                            All commands and flags
  bnw config generate                   Print a sample config file
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing; CLI flags override them.
	vars := kong.Vars{
		"config_format": cfg.Format,
	}

	ctx := kong.Parse(&c,
		kong.Name("bnw"),
		kong.Description("BetNodeWatcher: supervise a betting worker node inside a detached tmux session"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
