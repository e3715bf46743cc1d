// Package supervisor runs the top-level control loop: one goroutine, fixed
// health-interval ticks, with the longer game-change and betting-status
// checks folded into the same tick as elapsed-time checks. No failure inside
// a tick ever escapes it; the loop is immortal until its context is canceled.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/output"
	"github.com/mzagar/bnw/internal/policy"
	"github.com/mzagar/bnw/internal/runlog"
)

// StatusFetcher queries the external status endpoint.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) domain.StatusSnapshot
}

// LedgerChecker looks up placed-bet records.
type LedgerChecker interface {
	HasRecordedAction(gameID, roundID string) (bool, error)
}

// LivenessProbe checks whether the worker runs and is healthy.
type LivenessProbe interface {
	CheckAlive(id domain.WorkerIdentity) bool
}

// Restarter relaunches the worker, recomputing the betting param itself.
type Restarter interface {
	Restart(ctx context.Context) (domain.BetParam, int, error)
}

// Options configure a Loop.
type Options struct {
	Identity          domain.WorkerIdentity
	HealthInterval    time.Duration
	GameCheckInterval time.Duration
	BetStatusInterval time.Duration
	// InterruptCode marks an operator-initiated stop in the runtime log.
	InterruptCode int
}

// Loop is the supervisor's single thread of control. It owns the memory and
// the ACTIVE/PAUSED state machine; nothing else mutates them.
type Loop struct {
	opts    Options
	probe   LivenessProbe
	oracle  StatusFetcher
	ledger  LedgerChecker
	restart Restarter
	scanner *runlog.Scanner
	events  output.EventWriter
	clock   clock.Clock
	log     *zap.SugaredLogger

	mem domain.Memory
	// lastGameCheck and lastBetStatus implement the longer cadences inside
	// the health tick. Zero values make both checks due on the first tick.
	lastGameCheck time.Time
	lastBetStatus time.Time
	// handledMarkerOffset is the position of the last exit marker already
	// acted on, so one interrupt does not re-pause after recovery.
	handledMarkerOffset int64
	exitCode            atomic.Int64
}

// New creates a Loop. A nil events writer disables event emission.
func New(opts Options, probe LivenessProbe, oracle StatusFetcher, ledger LedgerChecker, restarter Restarter, scanner *runlog.Scanner, events output.EventWriter, clk clock.Clock, log *zap.SugaredLogger) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		opts:                opts,
		probe:               probe,
		oracle:              oracle,
		ledger:              ledger,
		restart:             restarter,
		scanner:             scanner,
		events:              events,
		clock:               clk,
		log:                 log,
		handledMarkerOffset: -1,
	}
}

// Memory returns a copy of the current supervisor memory.
func (l *Loop) Memory() domain.Memory {
	return l.mem
}

// SetExitCode records the code appended to the runtime log when Run returns.
func (l *Loop) SetExitCode(code int) {
	l.exitCode.Store(int64(code))
}

// Run ticks until the context is canceled. On every exit path it appends an
// exit-code marker to the runtime log so the next supervisor run can tell how
// this one ended.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		code := int(l.exitCode.Load())
		if err := l.scanner.AppendExitMarker(code); err != nil {
			l.log.Errorw("failed to append exit marker", "error", err)
		}
	}()

	ticker := l.clock.Ticker(l.opts.HealthInterval)
	defer ticker.Stop()

	l.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick evaluates one supervision cycle. Exported so the once command can
// drive a single cycle. Panics are contained: every tick completes.
func (l *Loop) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("tick panicked", "panic", r)
		}
	}()

	if l.consumeExitMarker() {
		return
	}
	if l.mem.PausedByOperator {
		l.pausedTick()
		return
	}

	now := l.clock.Now()
	l.healthTick(ctx)

	gameDue := now.Sub(l.lastGameCheck) >= l.opts.GameCheckInterval
	betDue := l.opts.BetStatusInterval > 0 && now.Sub(l.lastBetStatus) >= l.opts.BetStatusInterval
	if gameDue || betDue {
		l.gameChangeTick(ctx)
		if gameDue {
			l.lastGameCheck = now
		}
		if betDue {
			l.lastBetStatus = now
		}
	}
}

// consumeExitMarker reacts to a newly appended exit marker. An operator
// interrupt flips the loop to PAUSED and records the log watermark. Returns
// true when the tick should stop here.
func (l *Loop) consumeExitMarker() bool {
	code, offset, found, err := l.scanner.LastExitCode()
	if err != nil {
		l.log.Warnw("exit-code scan failed", "error", err)
		return false
	}
	if !found || offset <= l.handledMarkerOffset {
		return false
	}
	l.handledMarkerOffset = offset

	if code != l.opts.InterruptCode {
		l.log.Infow("worker exit recorded", "code", code)
		return false
	}

	size, err := l.scanner.Size()
	if err != nil {
		l.log.Warnw("watermark read failed", "error", err)
		size = offset
	}
	l.mem.PausedByOperator = true
	l.mem.LogWatermark = size
	l.log.Infow("operator interrupt detected, pausing supervision",
		"code", code, "watermark", size)
	l.emit(domain.NewPauseEvent("paused", "operator interrupt", size))
	return true
}

// pausedTick scans only content appended after the watermark for error
// signatures. Elapsed time alone never un-pauses: an operator stop is
// intentional until evidence of an actual fault appears.
func (l *Loop) pausedTick() {
	sig, offset, err := l.scanner.ScanForSignatures(l.mem.LogWatermark)
	if err != nil {
		l.log.Warnw("pause scan failed", "error", err)
		return
	}
	l.mem.LogWatermark = offset
	if sig == "" {
		l.log.Debugw("paused, no fault evidence yet")
		return
	}
	l.mem.PausedByOperator = false
	l.log.Infow("error signature found, resuming supervision", "signature", sig)
	l.emit(domain.NewPauseEvent("active", "error signature: "+sig, offset))
}

func (l *Loop) healthTick(ctx context.Context) {
	alive := l.probe.CheckAlive(l.opts.Identity)
	decision, mem := policy.Decide(l.mem, alive, domain.StatusSnapshot{}, false, policy.ModeHealth, false)
	l.mem = mem

	l.logDecision("health", decision, domain.StatusSnapshot{})
	if decision.Action == domain.ActionRestart {
		l.applyRestart(ctx)
	}
}

func (l *Loop) gameChangeTick(ctx context.Context) {
	snapshot := l.oracle.FetchStatus(ctx)

	hasRecord := false
	if snapshot.Known() {
		var err error
		hasRecord, err = l.ledger.HasRecordedAction(snapshot.GameID, snapshot.RoundID)
		if err != nil {
			l.log.Warnw("ledger check failed, assuming no record", "error", err)
			hasRecord = false
		}
	}

	decision, mem := policy.Decide(l.mem, true, snapshot, false, policy.ModeGameChange, hasRecord)
	l.mem = mem

	l.logDecision("game_change", decision, snapshot)
	if decision.Action == domain.ActionRestartAndRebet {
		l.applyRestart(ctx)
	}
}

// applyRestart executes a restart. The betting param is recomputed inside
// the restarter at execution time; failures are logged and the loop moves on,
// leaving the worker down until the next attempt.
func (l *Loop) applyRestart(ctx context.Context) {
	param, killed, err := l.restart.Restart(ctx)
	if err != nil {
		l.log.Errorw("restart failed", "error", err)
		if l.events != nil {
			l.events.WriteError("RESTART_FAILED", err.Error())
		}
		return
	}
	l.log.Infow("worker restarted",
		"session", l.opts.Identity.SessionName,
		"param", param,
		"killed", killed)
	l.emit(domain.NewRestartEvent(l.opts.Identity.SessionName, param, killed))
}

func (l *Loop) logDecision(tick string, d domain.Decision, s domain.StatusSnapshot) {
	l.log.Infow("decision",
		"tick", tick,
		"action", d.Action,
		"reason", d.Reason,
		"game", s.GameID,
		"round", s.RoundID,
		"status", s.Status)
	l.emit(domain.NewDecisionEvent(tick, d, s))
}

func (l *Loop) emit(v any) {
	if l.events == nil {
		return
	}
	if err := l.events.WriteEvent(v); err != nil {
		l.log.Warnw("event emission failed", "error", err)
	}
}
