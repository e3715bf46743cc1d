// Package proc abstracts OS process inspection behind a small interface so
// the probe and the restart orchestrator can be tested without spawning
// real processes.
package proc

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/process"
)

// Process is a minimal view of a running OS process.
type Process struct {
	PID     int32
	Cmdline string
	WorkDir string
}

// Filter selects processes by command-line substring and working directory.
// Empty fields match everything. The working directory match is what keeps a
// supervisor from killing a sibling node that shares the same command line.
type Filter struct {
	CmdlineContains string
	WorkDir         string
}

// Inspector queries and terminates OS processes.
type Inspector interface {
	// Find returns all processes matching the filter.
	Find(f Filter) ([]Process, error)
	// Kill forcibly terminates a process. Killing an already-gone
	// process is not an error.
	Kill(pid int32) error
	// CPUPercent returns the process's CPU utilization.
	CPUPercent(pid int32) (float64, error)
}

// SystemInspector implements Inspector on top of gopsutil.
type SystemInspector struct{}

// NewSystemInspector creates an Inspector backed by the local OS.
func NewSystemInspector() *SystemInspector {
	return &SystemInspector{}
}

// Find enumerates all processes and keeps the ones matching the filter.
// Processes whose cmdline or cwd cannot be read (gone, or not ours) are
// skipped rather than reported as errors.
func (s *SystemInspector) Find(f Filter) ([]Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var out []Process
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if f.CmdlineContains != "" && !strings.Contains(cmdline, f.CmdlineContains) {
			continue
		}
		cwd, err := p.Cwd()
		if err != nil {
			continue
		}
		if f.WorkDir != "" && cwd != f.WorkDir {
			continue
		}
		out = append(out, Process{PID: p.Pid, Cmdline: cmdline, WorkDir: cwd})
	}
	return out, nil
}

// Kill sends SIGKILL. A process that is already gone counts as success.
func (s *SystemInspector) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil {
		if exists, _ := process.PidExists(pid); !exists {
			return nil
		}
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

// CPUPercent returns the CPU utilization of the given pid.
func (s *SystemInspector) CPUPercent(pid int32) (float64, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("pid %d: %w", pid, err)
	}
	return p.CPUPercent()
}

// PIDs is a convenience for logging.
func PIDs(procs []Process) []int32 {
	return lo.Map(procs, func(p Process, _ int) int32 { return p.PID })
}
