package domain

import "time"

// GameStatus is the normalized state of the game as reported by the status endpoint.
type GameStatus string

const (
	GameActive   GameStatus = "active"
	GameInactive GameStatus = "inactive"
	// GameUnknown means the endpoint was unreachable or returned malformed data.
	// It must never be treated as "game ended".
	GameUnknown GameStatus = "unknown"
)

// StatusSnapshot is an immutable view of the external game state at one point in time.
type StatusSnapshot struct {
	GameID     string
	RoundID    string
	Status     GameStatus
	ObtainedAt time.Time
}

// UnknownSnapshot returns a snapshot representing an unreachable or malformed response.
func UnknownSnapshot(at time.Time) StatusSnapshot {
	return StatusSnapshot{Status: GameUnknown, ObtainedAt: at}
}

// Known reports whether the snapshot carries usable game/round information.
func (s StatusSnapshot) Known() bool {
	return s.Status != GameUnknown
}

// Action is what the supervisor should do after a tick.
type Action string

const (
	ActionNone            Action = "none"
	ActionRestart         Action = "restart"
	ActionRestartAndRebet Action = "restart_and_rebet"
	ActionStayPaused      Action = "stay_paused"
)

// BetParam is the answer fed to the worker's betting prompt at launch.
type BetParam string

const (
	BetEnable  BetParam = "enable"
	BetDisable BetParam = "disable"
)

// Decision is the immutable output of the decision policy for one tick.
// RestartParam is advisory only: the orchestrator recomputes the param at
// execution time because external state can move between decision and restart.
type Decision struct {
	Action       Action
	Reason       string
	RestartParam BetParam
}

// WorkerIdentity describes how to find and host the supervised worker.
// The worker is never cached in memory: the orchestrator re-resolves it
// from the OS and the session manager on every use.
type WorkerIdentity struct {
	// Signature is the exact command line the worker is launched with.
	Signature string
	// WorkDir disambiguates sibling nodes sharing the same command line.
	WorkDir string
	// SessionName is the tmux session hosting the worker.
	SessionName string
}

// Memory is the supervisor's only persistent state, threaded through every tick.
// GameID and RoundID are either both empty or both set.
type Memory struct {
	GameID           string
	RoundID          string
	PausedByOperator bool
	// LogWatermark is the runtime-log byte offset recorded when the
	// supervisor entered the paused state.
	LogWatermark int64
}

// HasObservation reports whether a prior game/round pair has been recorded.
func (m Memory) HasObservation() bool {
	return m.GameID != "" && m.RoundID != ""
}

// Observe returns a copy of the memory with the game/round pair replaced.
// Empty ids are ignored so the both-or-neither invariant holds.
func (m Memory) Observe(gameID, roundID string) Memory {
	if gameID == "" || roundID == "" {
		return m
	}
	m.GameID = gameID
	m.RoundID = roundID
	return m
}

// SameRound reports whether the snapshot matches the remembered game/round pair.
func (m Memory) SameRound(s StatusSnapshot) bool {
	return m.GameID == s.GameID && m.RoundID == s.RoundID
}
