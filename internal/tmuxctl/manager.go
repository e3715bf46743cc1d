// Package tmuxctl hosts the worker in a detached tmux session. The session is
// the only handle the supervisor keeps to the worker: it is looked up by name
// on every use, never cached.
package tmuxctl

import (
	"fmt"
	"os/exec"
	"sync"

	gotmux "github.com/GianlucaP106/gotmux/gotmux"
)

// SessionManager abstracts the terminal session manager so the restart
// orchestrator can be tested without a live tmux server.
type SessionManager interface {
	// HasSession reports whether a session with the given name exists.
	HasSession(name string) (bool, error)
	// NewDetachedSession creates a detached session running shellCommand
	// in workDir.
	NewDetachedSession(name, workDir, shellCommand string) error
	// KillSession tears down the named session. A session that does not
	// exist counts as success.
	KillSession(name string) error
	// ListSessions returns the names of all live sessions.
	ListSessions() ([]string, error)
}

// IsTmuxAvailable reports whether the tmux binary is on PATH.
func IsTmuxAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// Manager implements SessionManager on top of gotmux.
type Manager struct {
	mu   sync.Mutex
	tmux *gotmux.Tmux
}

// NewManager connects to the default tmux server socket.
func NewManager() (*Manager, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("connect to tmux: %w", err)
	}
	return &Manager{tmux: tmux}, nil
}

// HasSession implements SessionManager.
func (m *Manager) HasSession(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.tmux.GetSessionByName(name)
	if err != nil {
		return false, fmt.Errorf("query session %q: %w", name, err)
	}
	return session != nil, nil
}

// NewDetachedSession implements SessionManager.
func (m *Manager) NewDetachedSession(name, workDir, shellCommand string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.tmux.NewSession(&gotmux.SessionOptions{
		Name:           name,
		StartDirectory: workDir,
		ShellCommand:   shellCommand,
	})
	if err != nil {
		return fmt.Errorf("create session %q: %w", name, err)
	}
	return nil
}

// KillSession implements SessionManager. Missing sessions are tolerated.
func (m *Manager) KillSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.tmux.GetSessionByName(name)
	if err != nil || session == nil {
		return nil
	}
	if err := session.Kill(); err != nil {
		// Racing teardown: the session may be gone by the time we kill it.
		if again, qerr := m.tmux.GetSessionByName(name); qerr == nil && again == nil {
			return nil
		}
		return fmt.Errorf("kill session %q: %w", name, err)
	}
	return nil
}

// ListSessions implements SessionManager.
func (m *Manager) ListSessions() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.tmux.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.Name)
	}
	return names, nil
}

// AttachCommand returns the shell command an operator can use to attach.
func AttachCommand(name string) string {
	return fmt.Sprintf("tmux attach -t %s", name)
}

var _ SessionManager = (*Manager)(nil)
