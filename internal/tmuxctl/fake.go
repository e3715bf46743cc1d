package tmuxctl

import "sync"

// FakeManager is an in-memory SessionManager used by tests.
type FakeManager struct {
	mu       sync.Mutex
	sessions map[string]string // name -> shell command
	// CreateErr forces NewDetachedSession to fail when set.
	CreateErr error
	// KillCalls records every session name passed to KillSession.
	KillCalls []string
}

// NewFakeManager creates an empty FakeManager.
func NewFakeManager() *FakeManager {
	return &FakeManager{sessions: make(map[string]string)}
}

// HasSession implements SessionManager.
func (f *FakeManager) HasSession(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[name]
	return ok, nil
}

// NewDetachedSession implements SessionManager.
func (f *FakeManager) NewDetachedSession(name, workDir, shellCommand string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.sessions[name] = shellCommand
	return nil
}

// KillSession implements SessionManager.
func (f *FakeManager) KillSession(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KillCalls = append(f.KillCalls, name)
	delete(f.sessions, name)
	return nil
}

// ListSessions implements SessionManager.
func (f *FakeManager) ListSessions() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.sessions))
	for name := range f.sessions {
		names = append(names, name)
	}
	return names, nil
}

// Command returns the shell command a fake session was created with.
func (f *FakeManager) Command(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[name]
}

var _ SessionManager = (*FakeManager)(nil)
