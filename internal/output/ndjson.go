// Package output emits supervisor events in machine-readable (ndjson) or
// human (text) form. The audit trail is the only observability surface, so
// every decision and failure flows through here.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mzagar/bnw/internal/domain"
)

// EventWriter receives supervisor events.
type EventWriter interface {
	WriteEvent(v any) error
	WriteError(code, message string) error
}

// NDJSONWriter writes one JSON object per line.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates an NDJSONWriter.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

// WriteEvent encodes any event struct as a single line.
func (w *NDJSONWriter) WriteEvent(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// errorEvent is the ndjson shape for failures.
type errorEvent struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// WriteError emits a machine-readable failure.
func (w *NDJSONWriter) WriteError(code, message string) error {
	return w.WriteEvent(&errorEvent{
		Type:          "error",
		SchemaVersion: domain.SchemaVersion,
		Code:          code,
		Message:       message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// TextWriter renders events as timestamped human-readable lines.
type TextWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// WriteEvent renders known event types; anything else falls back to JSON.
func (t *TextWriter) WriteEvent(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp := time.Now().Format("2006-01-02 15:04:05")
	switch e := v.(type) {
	case *domain.DecisionEvent:
		_, err := fmt.Fprintf(t.w, "%s [%s] %s: %s\n", stamp, e.Tick, e.Action, e.Reason)
		return err
	case *domain.RestartEvent:
		_, err := fmt.Fprintf(t.w, "%s restart session=%s param=%s killed=%d\n", stamp, e.Session, e.Param, e.Killed)
		return err
	case *domain.PauseEvent:
		_, err := fmt.Fprintf(t.w, "%s pause state=%s reason=%s\n", stamp, e.State, e.Reason)
		return err
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(t.w, "%s %s\n", stamp, b)
		return err
	}
}

// WriteError renders a failure line.
func (t *TextWriter) WriteError(code, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%s error [%s]: %s\n", time.Now().Format("2006-01-02 15:04:05"), code, message)
	return err
}

var (
	_ EventWriter = (*NDJSONWriter)(nil)
	_ EventWriter = (*TextWriter)(nil)
)
