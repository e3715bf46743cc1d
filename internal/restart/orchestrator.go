// Package restart tears down and relaunches the worker inside a detached tmux
// session. Every step before the launch is independently idempotent: targets
// that are already gone count as success.
package restart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/proc"
	"github.com/mzagar/bnw/internal/runlog"
	"github.com/mzagar/bnw/internal/tmuxctl"
)

// ParamFunc recomputes the betting answer at execution time. The decision
// that triggered the restart may be stale by the time the old worker is gone.
type ParamFunc func(ctx context.Context) domain.BetParam

// Options configure an Orchestrator.
type Options struct {
	Identity domain.WorkerIdentity
	// LauncherSignature matches lingering wrapper processes for the same
	// directory, e.g. the shell that fed the worker its answers.
	LauncherSignature string
	// Activate is the command that prepares the node environment.
	Activate string
	// Entrypoint starts the worker.
	Entrypoint string
	// Answers are the scripted replies fed to the worker's prompts, in
	// order. The computed betting param is appended as the final answer.
	Answers []string
	// RuntimeLogPath receives the worker's combined output, append mode.
	RuntimeLogPath string
	// SettleDelay lets the OS reclaim resources between teardown and launch.
	SettleDelay time.Duration
	// GracePeriod blocks the orchestrator after launch so the worker can
	// reach a stable state before the next liveness check.
	GracePeriod time.Duration
}

// Orchestrator executes worker restarts.
type Orchestrator struct {
	opts      Options
	inspector proc.Inspector
	sessions  tmuxctl.SessionManager
	paramFn   ParamFunc
	clock     clock.Clock
	log       *zap.SugaredLogger
}

// New creates an Orchestrator.
func New(opts Options, inspector proc.Inspector, sessions tmuxctl.SessionManager, paramFn ParamFunc, clk clock.Clock, log *zap.SugaredLogger) *Orchestrator {
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		opts:      opts,
		inspector: inspector,
		sessions:  sessions,
		paramFn:   paramFn,
		clock:     clk,
		log:       log,
	}
}

// Restart performs one full restart cycle and returns the recomputed param
// and the number of processes terminated. Teardown failures are tolerated;
// a launch failure is returned as an error and leaves the worker down until
// the next attempt.
func (o *Orchestrator) Restart(ctx context.Context) (domain.BetParam, int, error) {
	killed := o.terminateWorkers()
	killed += o.terminateLaunchers()

	if err := o.sessions.KillSession(o.opts.Identity.SessionName); err != nil {
		o.log.Warnw("session teardown failed, continuing", "error", err)
	}

	if o.opts.SettleDelay > 0 {
		o.clock.Sleep(o.opts.SettleDelay)
	}

	param := o.paramFn(ctx)
	command := o.LaunchCommand(param)

	o.log.Infow("launching worker",
		"session", o.opts.Identity.SessionName,
		"param", param)
	if err := o.sessions.NewDetachedSession(o.opts.Identity.SessionName, o.opts.Identity.WorkDir, command); err != nil {
		return param, killed, fmt.Errorf("launch worker session: %w", err)
	}

	if o.opts.GracePeriod > 0 {
		o.clock.Sleep(o.opts.GracePeriod)
	}
	return param, killed, nil
}

// terminateWorkers kills every process matching the worker's exact launch
// signature under the expected directory. Best effort.
func (o *Orchestrator) terminateWorkers() int {
	return o.killMatching(proc.Filter{
		CmdlineContains: o.opts.Identity.Signature,
		WorkDir:         o.opts.Identity.WorkDir,
	})
}

// terminateLaunchers kills lingering wrapper processes for the directory.
func (o *Orchestrator) terminateLaunchers() int {
	if o.opts.LauncherSignature == "" {
		return 0
	}
	return o.killMatching(proc.Filter{
		CmdlineContains: o.opts.LauncherSignature,
		WorkDir:         o.opts.Identity.WorkDir,
	})
}

func (o *Orchestrator) killMatching(f proc.Filter) int {
	procs, err := o.inspector.Find(f)
	if err != nil {
		o.log.Warnw("process lookup failed during teardown", "error", err)
		return 0
	}
	killed := 0
	for _, p := range procs {
		if err := o.inspector.Kill(p.PID); err != nil {
			o.log.Warnw("kill failed", "pid", p.PID, "error", err)
			continue
		}
		killed++
	}
	return killed
}

// LaunchCommand builds the shell command hosted by the tmux session: activate
// the environment, feed the scripted answers plus the betting param into the
// entrypoint, append combined output to the runtime log, and record the
// worker's exit code behind it. Append mode keeps history across restarts for
// the pause error scan.
func (o *Orchestrator) LaunchCommand(param domain.BetParam) string {
	answers := make([]string, 0, len(o.opts.Answers)+1)
	for _, a := range o.opts.Answers {
		answers = append(answers, shellQuote(a))
	}
	answers = append(answers, shellQuote(string(param)))

	var b strings.Builder
	fmt.Fprintf(&b, "cd %s", shellQuote(o.opts.Identity.WorkDir))
	if o.opts.Activate != "" {
		fmt.Fprintf(&b, " && %s", o.opts.Activate)
	}
	fmt.Fprintf(&b, " && printf '%%s\\n' %s | %s >> %s 2>&1; echo \"%s $?\" >> %s",
		strings.Join(answers, " "),
		o.opts.Entrypoint,
		shellQuote(o.opts.RuntimeLogPath),
		runlog.ExitMarker,
		shellQuote(o.opts.RuntimeLogPath))
	return b.String()
}

// shellQuote single-quotes a string for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
