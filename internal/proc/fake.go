package proc

import (
	"strings"
	"sync"
)

// FakeInspector is an in-memory Inspector used by tests across packages.
type FakeInspector struct {
	mu        sync.Mutex
	processes map[int32]Process
	cpu       map[int32]float64
	// FindErr, KillErr and CPUErr force failures when set.
	FindErr error
	KillErr error
	CPUErr  error
	// KillCalls records every pid passed to Kill.
	KillCalls []int32
}

// NewFakeInspector creates an empty FakeInspector.
func NewFakeInspector() *FakeInspector {
	return &FakeInspector{
		processes: make(map[int32]Process),
		cpu:       make(map[int32]float64),
	}
}

// Add registers a fake process.
func (f *FakeInspector) Add(p Process, cpuPercent float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processes[p.PID] = p
	f.cpu[p.PID] = cpuPercent
}

// Find implements Inspector.
func (f *FakeInspector) Find(filter Filter) ([]Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	var out []Process
	for _, p := range f.processes {
		if filter.CmdlineContains != "" && !strings.Contains(p.Cmdline, filter.CmdlineContains) {
			continue
		}
		if filter.WorkDir != "" && p.WorkDir != filter.WorkDir {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Kill implements Inspector. Removing a pid that is not present succeeds.
func (f *FakeInspector) Kill(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KillCalls = append(f.KillCalls, pid)
	if f.KillErr != nil {
		return f.KillErr
	}
	delete(f.processes, pid)
	delete(f.cpu, pid)
	return nil
}

// CPUPercent implements Inspector.
func (f *FakeInspector) CPUPercent(pid int32) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CPUErr != nil {
		return 0, f.CPUErr
	}
	return f.cpu[pid], nil
}

// Count returns the number of live fake processes.
func (f *FakeInspector) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processes)
}

var _ Inspector = (*FakeInspector)(nil)
