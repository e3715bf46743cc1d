package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/ledger"
	"github.com/mzagar/bnw/internal/oracle"
	"github.com/mzagar/bnw/internal/output"
	"github.com/mzagar/bnw/internal/policy"
	"github.com/mzagar/bnw/internal/probe"
	"github.com/mzagar/bnw/internal/proc"
	"github.com/mzagar/bnw/internal/restart"
	"github.com/mzagar/bnw/internal/runlog"
	"github.com/mzagar/bnw/internal/supervisor"
	"github.com/mzagar/bnw/internal/tmuxctl"
)

// RunCmd runs the supervisor loop until interrupted.
type RunCmd struct {
	Node    string `short:"n" help:"Node name (overrides config)"`
	WorkDir string `short:"d" help:"Worker working directory (overrides config)"`
}

// Run executes the run command.
func (c *RunCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if c.Node != "" {
		cfg.Node.Name = c.Node
	}
	if c.WorkDir != "" {
		cfg.Node.WorkDir = c.WorkDir
	}
	if err := cfg.Validate(); err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error())
	}

	log, err := newSupervisorLogger(globals.Verbose)
	if err != nil {
		return outputErrorCommon(globals, "LOGGER_FAILED", err.Error())
	}
	defer log.Sync()

	if !tmuxctl.IsTmuxAvailable() {
		return outputErrorCommon(globals, "TMUX_NOT_FOUND", "tmux binary not found on PATH")
	}
	sessions, err := tmuxctl.NewManager()
	if err != nil {
		return outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error())
	}

	scanner := runlog.New(cfg.RuntimeLogPath(), cfg.Pause.ErrorSignatures)
	bets := ledger.New(cfg.LedgerPath())
	statusOracle := oracle.New(cfg.Status.URL, cfg.StatusTimeout())
	inspector := proc.NewSystemInspector()

	var resource probe.ResourceFunc
	threshold := cfg.Probe.Threshold
	switch cfg.Probe.Signal {
	case "gpu":
		resource = probe.NvidiaSMI()
	case "cpu":
		// Probe falls back to CPU percent from the inspector.
	default:
		threshold = 0
	}
	liveness := probe.New(inspector, resource, threshold, log)

	// The betting param is always recomputed here, at execution time, from
	// a fresh snapshot and ledger state.
	paramFn := func(ctx context.Context) domain.BetParam {
		snapshot := statusOracle.FetchStatus(ctx)
		hasRecord := false
		if snapshot.Known() {
			if rec, err := bets.HasRecordedAction(snapshot.GameID, snapshot.RoundID); err == nil {
				hasRecord = rec
			} else {
				log.Warnw("ledger check failed during param computation", "error", err)
			}
		}
		return policy.ComputeRestartParam(snapshot, hasRecord)
	}

	orchestrator := restart.New(restart.Options{
		Identity:          cfg.Identity(),
		LauncherSignature: cfg.Launch.LauncherSignature,
		Activate:          cfg.Launch.Activate,
		Entrypoint:        cfg.Launch.Entrypoint,
		Answers:           cfg.Launch.Answers,
		RuntimeLogPath:    cfg.RuntimeLogPath(),
		SettleDelay:       cfg.SettleDelay(),
		GracePeriod:       cfg.GracePeriod(),
	}, inspector, sessions, paramFn, clock.New(), log)

	var events output.EventWriter
	if globals.Format == "ndjson" {
		events = output.NewNDJSONWriter(globals.Stdout)
	} else if !globals.Quiet {
		events = output.NewTextWriter(globals.Stdout)
	}

	loop := supervisor.New(supervisor.Options{
		Identity:          cfg.Identity(),
		HealthInterval:    cfg.HealthInterval(),
		GameCheckInterval: cfg.GameCheckInterval(),
		BetStatusInterval: cfg.BetStatusInterval(),
		InterruptCode:     cfg.Pause.InterruptCode,
	}, liveness, statusOracle, bets, orchestrator, scanner, events, clock.New(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		// The marker tells the next run how this one ended.
		if sig == syscall.SIGINT {
			loop.SetExitCode(130)
		} else {
			loop.SetExitCode(143)
		}
		cancel()
	}()

	if !globals.Quiet && globals.Format != "ndjson" {
		fmt.Fprintf(globals.Stderr, "Supervising node %s in %s (session %s)\n",
			cfg.Node.Name, cfg.Node.WorkDir, cfg.Node.Session)
		fmt.Fprintf(globals.Stderr, "Attach with: %s\n", tmuxctl.AttachCommand(cfg.Node.Session))
		fmt.Fprintln(globals.Stderr, "Press Ctrl+C to stop")
	}

	log.Infow("supervisor starting",
		"node", cfg.Node.Name,
		"work_dir", cfg.Node.WorkDir,
		"health_interval", cfg.HealthInterval(),
		"game_check_interval", cfg.GameCheckInterval(),
		"bet_status_interval", cfg.BetStatusInterval())

	return loop.Run(ctx)
}
