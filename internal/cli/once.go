package cli

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/ledger"
	"github.com/mzagar/bnw/internal/oracle"
	"github.com/mzagar/bnw/internal/output"
	"github.com/mzagar/bnw/internal/policy"
	"github.com/mzagar/bnw/internal/probe"
	"github.com/mzagar/bnw/internal/proc"
	"github.com/mzagar/bnw/internal/restart"
	"github.com/mzagar/bnw/internal/tmuxctl"
)

// OnceCmd evaluates one supervision cycle and exits. With --dry-run the
// decisions are printed but never applied, which makes it safe to poke at a
// live node.
type OnceCmd struct {
	DryRun bool `help:"Print decisions without applying them"`
}

// Run executes the once command.
func (c *OnceCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if err := cfg.Validate(); err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error())
	}
	log, err := newSupervisorLogger(globals.Verbose)
	if err != nil {
		return outputErrorCommon(globals, "LOGGER_FAILED", err.Error())
	}
	defer log.Sync()

	ctx := context.Background()
	inspector := proc.NewSystemInspector()
	statusOracle := oracle.New(cfg.Status.URL, cfg.StatusTimeout())
	bets := ledger.New(cfg.LedgerPath())

	var resource probe.ResourceFunc
	threshold := cfg.Probe.Threshold
	switch cfg.Probe.Signal {
	case "gpu":
		resource = probe.NvidiaSMI()
	case "cpu":
	default:
		threshold = 0
	}
	liveness := probe.New(inspector, resource, threshold, log)

	var events output.EventWriter
	if globals.Format == "ndjson" {
		events = output.NewNDJSONWriter(globals.Stdout)
	} else {
		events = output.NewTextWriter(globals.Stdout)
	}

	alive := liveness.CheckAlive(cfg.Identity())
	snapshot := statusOracle.FetchStatus(ctx)
	hasRecord := false
	if snapshot.Known() {
		if rec, lerr := bets.HasRecordedAction(snapshot.GameID, snapshot.RoundID); lerr == nil {
			hasRecord = rec
		}
	}

	// A single invocation has no prior memory: the game-change path reports
	// a first observation unless the worker is already down.
	healthDecision, _ := policy.Decide(domain.Memory{}, alive, snapshot, false, policy.ModeHealth, hasRecord)
	gameDecision, _ := policy.Decide(domain.Memory{}, alive, snapshot, false, policy.ModeGameChange, hasRecord)

	events.WriteEvent(domain.NewDecisionEvent("health", healthDecision, snapshot))
	events.WriteEvent(domain.NewDecisionEvent("game_change", gameDecision, snapshot))

	needsRestart := healthDecision.Action == domain.ActionRestart ||
		gameDecision.Action == domain.ActionRestartAndRebet

	if !needsRestart {
		return nil
	}
	if c.DryRun {
		param := policy.ComputeRestartParam(snapshot, hasRecord)
		if globals.Format != "ndjson" {
			fmt.Fprintf(globals.Stdout, "dry run: restart skipped (param would be %s)\n", param)
		}
		return nil
	}

	if !tmuxctl.IsTmuxAvailable() {
		return outputErrorCommon(globals, "TMUX_NOT_FOUND", "tmux binary not found on PATH")
	}
	sessions, err := tmuxctl.NewManager()
	if err != nil {
		return outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error())
	}

	paramFn := func(ctx context.Context) domain.BetParam {
		s := statusOracle.FetchStatus(ctx)
		rec := false
		if s.Known() {
			if r, lerr := bets.HasRecordedAction(s.GameID, s.RoundID); lerr == nil {
				rec = r
			}
		}
		return policy.ComputeRestartParam(s, rec)
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

	param, killed, err := orchestrator.Restart(ctx)
	if err != nil {
		return outputErrorCommon(globals, "RESTART_FAILED", err.Error())
	}
	events.WriteEvent(domain.NewRestartEvent(cfg.Node.Session, param, killed))
	return nil
}
