package cli

import (
	"fmt"

	"github.com/mzagar/bnw/internal/proc"
	"github.com/mzagar/bnw/internal/runlog"
	"github.com/mzagar/bnw/internal/tmuxctl"
)

// StopCmd tears down the worker: kills matching processes, removes the tmux
// session and appends the operator-interrupt marker so a later run treats
// the stop as intentional rather than a crash.
type StopCmd struct {
	NoMark bool `help:"Do not append the interrupt marker to the runtime log"`
}

// Run executes the stop command.
func (c *StopCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg.Node.WorkDir == "" || cfg.Launch.Signature == "" {
		return outputErrorCommon(globals, "INVALID_CONFIG", "node.work_dir and launch.signature are required")
	}

	inspector := proc.NewSystemInspector()
	killed := 0
	for _, signature := range []string{cfg.Launch.Signature, cfg.Launch.LauncherSignature} {
		if signature == "" {
			continue
		}
		procs, err := inspector.Find(proc.Filter{
			CmdlineContains: signature,
			WorkDir:         cfg.Node.WorkDir,
		})
		if err != nil {
			continue
		}
		for _, p := range procs {
			if err := inspector.Kill(p.PID); err == nil {
				killed++
			}
		}
	}

	if tmuxctl.IsTmuxAvailable() {
		if sessions, err := tmuxctl.NewManager(); err == nil {
			sessions.KillSession(cfg.Node.Session)
		}
	}

	if !c.NoMark {
		scanner := runlog.New(cfg.RuntimeLogPath(), cfg.Pause.ErrorSignatures)
		if err := scanner.AppendExitMarker(cfg.Pause.InterruptCode); err != nil {
			return outputErrorCommon(globals, "MARKER_FAILED", err.Error())
		}
	}

	if globals.Format == "ndjson" {
		fmt.Fprintf(globals.Stdout, `{"type":"stopped","killed":%d,"session":"%s"}`+"\n", killed, cfg.Node.Session)
	} else if !globals.Quiet {
		fmt.Fprintf(globals.Stdout, "Stopped session %s (%d processes killed)\n", cfg.Node.Session, killed)
	}
	return nil
}
