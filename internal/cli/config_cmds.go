package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mzagar/bnw/internal/config"
)

// ConfigCmd groups configuration subcommands.
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" help:"Show current configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show config file path"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample config file"`
}

// ConfigShowCmd prints the effective configuration.
type ConfigShowCmd struct{}

// Run executes the config show command.
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config

	if globals.Format == "ndjson" {
		out := map[string]interface{}{
			"type":      "config",
			"format":    cfg.Format,
			"node":      cfg.Node,
			"intervals": cfg.Intervals,
			"status":    cfg.Status,
			"probe":     cfg.Probe,
			"launch":    cfg.Launch,
			"pause":     cfg.Pause,
		}
		return json.NewEncoder(globals.Stdout).Encode(out)
	}

	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintf(globals.Stdout, "  format: %s\n", cfg.Format)
	fmt.Fprintln(globals.Stdout, "  Node:")
	fmt.Fprintf(globals.Stdout, "    name: %s\n", cfg.Node.Name)
	fmt.Fprintf(globals.Stdout, "    work_dir: %s\n", cfg.Node.WorkDir)
	fmt.Fprintf(globals.Stdout, "    session: %s\n", cfg.Node.Session)
	fmt.Fprintf(globals.Stdout, "    runtime_log: %s\n", cfg.Node.RuntimeLog)
	fmt.Fprintf(globals.Stdout, "    ledger: %s\n", cfg.Node.Ledger)
	fmt.Fprintln(globals.Stdout, "  Intervals:")
	fmt.Fprintf(globals.Stdout, "    health: %s\n", cfg.Intervals.Health)
	fmt.Fprintf(globals.Stdout, "    game_check: %s\n", cfg.Intervals.GameCheck)
	fmt.Fprintf(globals.Stdout, "    bet_status: %s\n", cfg.Intervals.BetStatus)
	fmt.Fprintf(globals.Stdout, "    grace_period: %s\n", cfg.Intervals.GracePeriod)
	fmt.Fprintf(globals.Stdout, "  Status endpoint: %s (timeout %s)\n", cfg.Status.URL, cfg.Status.Timeout)
	fmt.Fprintf(globals.Stdout, "  Probe: signal=%s threshold=%g\n", cfg.Probe.Signal, cfg.Probe.Threshold)
	fmt.Fprintf(globals.Stdout, "  Pause: interrupt_code=%d signatures=%s\n",
		cfg.Pause.InterruptCode, strings.Join(cfg.Pause.ErrorSignatures, ", "))
	return nil
}

// ConfigPathCmd prints where configuration was loaded from.
type ConfigPathCmd struct{}

// Run executes the config path command.
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(map[string]string{
			"type": "config_path",
			"path": path,
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (using defaults)")
	} else {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}
	return nil
}

// ConfigGenerateCmd prints a commented sample configuration.
type ConfigGenerateCmd struct{}

// Run executes the config generate command.
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	sample := `# bnw configuration file
# Place in ./bnw.yaml, ~/.bnw/bnw.yaml or /etc/bnw/bnw.yaml

format: text

node:
  name: node1
  work_dir: /opt/node1
  session: bnw-node1
  # Paths resolve relative to work_dir unless absolute.
  runtime_log: runtime.log
  ledger: bets.log

intervals:
  health: 5m
  game_check: 20m
  bet_status: 30m
  grace_period: 90s
  settle_delay: 5s

status:
  url: http://dashboard.example/api/status
  timeout: 5s

probe:
  # gpu (nvidia-smi memory, MiB), cpu (percent) or none
  signal: gpu
  # 0 disables the resource check: process existence alone suffices
  threshold: 0

launch:
  signature: python run_worker.py
  launcher_signature: ""
  activate: source venv/bin/activate
  entrypoint: python run_worker.py
  # Scripted interactive answers, in prompt order. The betting param
  # (enable/disable) is appended automatically as the final answer.
  answers:
    - "n"
    - ""

pause:
  interrupt_code: 130
  # Best-effort substrings; matching any of these in new runtime-log
  # content un-pauses the supervisor.
  error_signatures:
    - "Traceback (most recent call last)"
    - "Error"
    - "CUDA out of memory"
    - "OutOfMemory"
    - "Killed process"
`
	fmt.Fprint(globals.Stdout, sample)
	return nil
}
