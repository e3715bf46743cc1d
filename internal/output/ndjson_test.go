package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzagar/bnw/internal/domain"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(buf)
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestNDJSONDecisionEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	d := domain.Decision{Action: domain.ActionRestartAndRebet, Reason: "new active round"}
	s := domain.StatusSnapshot{GameID: "7", RoundID: "4", Status: domain.GameActive}
	require.NoError(t, w.WriteEvent(domain.NewDecisionEvent("game_change", d, s)))

	m := decodeLine(t, buf)
	require.Equal(t, "decision", m["type"])
	require.EqualValues(t, 1, m["schemaVersion"])
	assert.Equal(t, "game_change", m["tick"])
	assert.Equal(t, "restart_and_rebet", m["action"])
	assert.Equal(t, "7", m["game_id"])
	assert.Equal(t, "4", m["round_id"])
	assert.NotEmpty(t, m["timestamp"])
}

func TestNDJSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteError("RESTART_FAILED", "tmux server unavailable"))

	m := decodeLine(t, buf)
	require.Equal(t, "error", m["type"])
	assert.Equal(t, "RESTART_FAILED", m["code"])
	assert.Equal(t, "tmux server unavailable", m["message"])
}

func TestTextWriter(t *testing.T) {
	t.Run("decision line", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewTextWriter(buf)
		d := domain.Decision{Action: domain.ActionRestart, Reason: "not running"}
		require.NoError(t, w.WriteEvent(domain.NewDecisionEvent("health", d, domain.StatusSnapshot{})))
		assert.Contains(t, buf.String(), "[health] restart: not running")
	})

	t.Run("pause line", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewTextWriter(buf)
		require.NoError(t, w.WriteEvent(domain.NewPauseEvent("paused", "operator interrupt", 120)))
		assert.Contains(t, buf.String(), "pause state=paused reason=operator interrupt")
	})

	t.Run("error line", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewTextWriter(buf)
		require.NoError(t, w.WriteError("BAD", "boom"))
		assert.Contains(t, buf.String(), "error [BAD]: boom")
	})
}
