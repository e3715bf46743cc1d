// Package policy holds the supervision decision logic as pure functions.
// Everything here is deterministic over its inputs: liveness, the latest
// status snapshot, the supervisor's memory and the pause flag.
package policy

import (
	"fmt"

	"github.com/mzagar/bnw/internal/domain"
)

// Mode distinguishes the two periodic call sites sharing Decide.
type Mode string

const (
	// ModeHealth is the short-interval liveness check.
	ModeHealth Mode = "health"
	// ModeGameChange is the longer-interval game/round change check.
	ModeGameChange Mode = "game_change"
)

// Decide combines liveness, status and memory into an action. It returns the
// updated memory alongside the decision: memory tracking always reflects the
// observed reality regardless of whether a restart is ordered.
//
// hasRecord is the bet-ledger lookup result for the snapshot's game/round;
// it is only consulted on the game-change path when the round changed while
// the game is active.
func Decide(mem domain.Memory, alive bool, s domain.StatusSnapshot, paused bool, mode Mode, hasRecord bool) (domain.Decision, domain.Memory) {
	if paused {
		return domain.Decision{
			Action: domain.ActionStayPaused,
			Reason: "paused by operator",
		}, mem
	}

	switch mode {
	case ModeHealth:
		return healthTick(mem, alive)
	case ModeGameChange:
		return gameChangeTick(mem, s, hasRecord)
	default:
		return domain.Decision{
			Action: domain.ActionNone,
			Reason: fmt.Sprintf("unknown mode %q", mode),
		}, mem
	}
}

func healthTick(mem domain.Memory, alive bool) (domain.Decision, domain.Memory) {
	if !alive {
		return domain.Decision{
			Action:       domain.ActionRestart,
			Reason:       "not running",
			RestartParam: domain.BetEnable,
		}, mem
	}
	return domain.Decision{Action: domain.ActionNone, Reason: "worker alive"}, mem
}

func gameChangeTick(mem domain.Memory, s domain.StatusSnapshot, hasRecord bool) (domain.Decision, domain.Memory) {
	// Never restart on missing information.
	if !s.Known() {
		return domain.Decision{
			Action: domain.ActionNone,
			Reason: "status unknown",
		}, mem
	}

	if !mem.HasObservation() {
		return domain.Decision{
			Action: domain.ActionNone,
			Reason: "first observation",
		}, mem.Observe(s.GameID, s.RoundID)
	}

	if mem.SameRound(s) {
		return domain.Decision{
			Action: domain.ActionNone,
			Reason: "game/round unchanged",
		}, mem
	}

	// The round moved: track it no matter what we decide below.
	mem = mem.Observe(s.GameID, s.RoundID)

	if s.Status != domain.GameActive {
		return domain.Decision{
			Action: domain.ActionNone,
			Reason: "changed but inactive",
		}, mem
	}

	if hasRecord {
		return domain.Decision{
			Action: domain.ActionNone,
			Reason: "already acted this round",
		}, mem
	}

	return domain.Decision{
		Action:       domain.ActionRestartAndRebet,
		Reason:       fmt.Sprintf("new active round: game %s round %s", s.GameID, s.RoundID),
		RestartParam: domain.BetEnable,
	}, mem
}

// ComputeRestartParam decides the betting answer at execution time, from a
// fresh snapshot. It is never carried over from the triggering tick: time
// passes between decision and relaunch and the external state may have moved.
//
// Fail open: an unreachable endpoint yields enable so the worker's primary
// function is never silently disabled by a flaky dependency.
func ComputeRestartParam(s domain.StatusSnapshot, hasRecord bool) domain.BetParam {
	if !s.Known() {
		return domain.BetEnable
	}
	if s.Status != domain.GameActive {
		return domain.BetDisable
	}
	if hasRecord {
		return domain.BetDisable
	}
	return domain.BetEnable
}
