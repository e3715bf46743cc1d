package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/mzagar/bnw/internal/proc"
	"github.com/mzagar/bnw/internal/runlog"
	"github.com/mzagar/bnw/internal/tmuxctl"
)

// StatusCmd shows the worker's session, matching processes and the pause
// state a supervisor would infer from the runtime log.
type StatusCmd struct{}

type statusReport struct {
	Type          string  `json:"type"` // "status"
	SchemaVersion int     `json:"schemaVersion"`
	Node          string  `json:"node"`
	SessionName   string  `json:"session_name"`
	SessionUp     bool    `json:"session_up"`
	Processes     int     `json:"processes"`
	PIDs          []int32 `json:"pids,omitempty"`
	LastExitCode  *int    `json:"last_exit_code,omitempty"`
	Paused        bool    `json:"paused"`
	AttachCommand string  `json:"attach_command"`
}

// Run executes the status command.
func (c *StatusCmd) Run(globals *Globals) error {
	cfg := globals.Config

	report := statusReport{
		Type:          "status",
		SchemaVersion: 1,
		Node:          cfg.Node.Name,
		SessionName:   cfg.Node.Session,
		AttachCommand: tmuxctl.AttachCommand(cfg.Node.Session),
	}

	if tmuxctl.IsTmuxAvailable() {
		if sessions, err := tmuxctl.NewManager(); err == nil {
			if up, err := sessions.HasSession(cfg.Node.Session); err == nil {
				report.SessionUp = up
			}
		}
	}

	inspector := proc.NewSystemInspector()
	procs, err := inspector.Find(proc.Filter{
		CmdlineContains: cfg.Launch.Signature,
		WorkDir:         cfg.Node.WorkDir,
	})
	if err == nil {
		report.Processes = len(procs)
		report.PIDs = proc.PIDs(procs)
	}

	scanner := runlog.New(cfg.RuntimeLogPath(), cfg.Pause.ErrorSignatures)
	if code, _, found, err := scanner.LastExitCode(); err == nil && found {
		report.LastExitCode = &code
		report.Paused = code == cfg.Pause.InterruptCode
	}

	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(&report)
	}

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("Field", "Value")
	table.Append([]string{"Node", report.Node})
	table.Append([]string{"Session", report.SessionName})
	table.Append([]string{"Session up", strconv.FormatBool(report.SessionUp)})
	table.Append([]string{"Worker processes", strconv.Itoa(report.Processes)})
	if len(report.PIDs) > 0 {
		pids := make([]string, 0, len(report.PIDs))
		for _, pid := range report.PIDs {
			pids = append(pids, strconv.Itoa(int(pid)))
		}
		table.Append([]string{"PIDs", strings.Join(pids, ", ")})
	}
	if report.LastExitCode != nil {
		table.Append([]string{"Last exit code", strconv.Itoa(*report.LastExitCode)})
	}
	table.Append([]string{"Paused", strconv.FormatBool(report.Paused)})
	table.Render()

	if !globals.Quiet {
		fmt.Fprintf(globals.Stdout, "Attach with: %s\n", report.AttachCommand)
	}
	return nil
}
