package domain

import "time"

// SchemaVersion is bumped when any emitted event shape changes.
const SchemaVersion = 1

// DecisionEvent is emitted after every evaluated tick.
type DecisionEvent struct {
	Type          string `json:"type"`          // "decision"
	SchemaVersion int    `json:"schemaVersion"` // 1
	Tick          string `json:"tick"`          // "health" | "game_change"
	Action        string `json:"action"`
	Reason        string `json:"reason"`
	GameID        string `json:"game_id,omitempty"`
	RoundID       string `json:"round_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Timestamp     string `json:"timestamp"` // ISO8601
}

// RestartEvent is emitted when the orchestrator relaunches the worker.
type RestartEvent struct {
	Type          string `json:"type"`          // "restart"
	SchemaVersion int    `json:"schemaVersion"` // 1
	Session       string `json:"session"`
	Param         string `json:"param"`
	Killed        int    `json:"killed"` // processes terminated before relaunch
	Timestamp     string `json:"timestamp"`
}

// PauseEvent is emitted on ACTIVE<->PAUSED transitions.
type PauseEvent struct {
	Type          string `json:"type"`          // "pause"
	SchemaVersion int    `json:"schemaVersion"` // 1
	State         string `json:"state"`         // "paused" | "active"
	Reason        string `json:"reason"`
	Watermark     int64  `json:"watermark,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// NewDecisionEvent builds a DecisionEvent from a tick result.
func NewDecisionEvent(tick string, d Decision, s StatusSnapshot) *DecisionEvent {
	return &DecisionEvent{
		Type:          "decision",
		SchemaVersion: SchemaVersion,
		Tick:          tick,
		Action:        string(d.Action),
		Reason:        d.Reason,
		GameID:        s.GameID,
		RoundID:       s.RoundID,
		Status:        string(s.Status),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// NewRestartEvent builds a RestartEvent.
func NewRestartEvent(session string, param BetParam, killed int) *RestartEvent {
	return &RestartEvent{
		Type:          "restart",
		SchemaVersion: SchemaVersion,
		Session:       session,
		Param:         string(param),
		Killed:        killed,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// NewPauseEvent builds a PauseEvent.
func NewPauseEvent(state, reason string, watermark int64) *PauseEvent {
	return &PauseEvent{
		Type:          "pause",
		SchemaVersion: SchemaVersion,
		State:         state,
		Reason:        reason,
		Watermark:     watermark,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}
