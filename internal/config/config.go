// Package config loads the supervisor's immutable per-instance configuration.
// Everything is provided once at start; an invalid config refuses to start.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/runlog"
)

// Config holds all supervisor instance parameters.
type Config struct {
	// Global output settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Node      NodeConfig      `mapstructure:"node"`
	Intervals IntervalsConfig `mapstructure:"intervals"`
	Status    StatusConfig    `mapstructure:"status"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Launch    LaunchConfig    `mapstructure:"launch"`
	Pause     PauseConfig     `mapstructure:"pause"`
}

// NodeConfig identifies the supervised node. One supervisor instance owns
// exactly one node; isolation between nodes is by directory and session
// namespacing, not locking.
type NodeConfig struct {
	Name       string `mapstructure:"name"`
	WorkDir    string `mapstructure:"work_dir"`
	Session    string `mapstructure:"session"`
	RuntimeLog string `mapstructure:"runtime_log"`
	Ledger     string `mapstructure:"ledger"`
}

// IntervalsConfig holds the tick cadences as duration strings.
type IntervalsConfig struct {
	Health      string `mapstructure:"health"`
	GameCheck   string `mapstructure:"game_check"`
	BetStatus   string `mapstructure:"bet_status"`
	GracePeriod string `mapstructure:"grace_period"`
	SettleDelay string `mapstructure:"settle_delay"`
}

// StatusConfig points at the external status endpoint.
type StatusConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

// ProbeConfig tunes the liveness resource check.
type ProbeConfig struct {
	// Signal selects the health signal: "gpu", "cpu" or "none".
	Signal string `mapstructure:"signal"`
	// Threshold is the minimum signal value (MiB for gpu, percent for
	// cpu). Zero disables the resource check.
	Threshold float64 `mapstructure:"threshold"`
}

// LaunchConfig describes how the worker is found and started.
type LaunchConfig struct {
	// Signature is the exact command line the worker runs with.
	Signature string `mapstructure:"signature"`
	// LauncherSignature matches the wrapper process, if any.
	LauncherSignature string `mapstructure:"launcher_signature"`
	// Activate prepares the node environment before the entrypoint.
	Activate string `mapstructure:"activate"`
	// Entrypoint starts the worker.
	Entrypoint string `mapstructure:"entrypoint"`
	// Answers are the scripted interactive replies, in prompt order. The
	// computed betting param is appended as the final answer.
	Answers []string `mapstructure:"answers"`
}

// PauseConfig tunes the operator-pause state machine.
type PauseConfig struct {
	// InterruptCode is the exit code meaning "stopped by operator".
	InterruptCode int `mapstructure:"interrupt_code"`
	// ErrorSignatures are the substrings that un-pause the supervisor
	// when found in new runtime-log content. Best-effort heuristics.
	ErrorSignatures []string `mapstructure:"error_signatures"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Format: "text",
		Node: NodeConfig{
			Session:    "bnw-worker",
			RuntimeLog: "runtime.log",
			Ledger:     "bets.log",
		},
		Intervals: IntervalsConfig{
			Health:      "5m",
			GameCheck:   "20m",
			BetStatus:   "30m",
			GracePeriod: "90s",
			SettleDelay: "5s",
		},
		Status: StatusConfig{
			Timeout: "5s",
		},
		Probe: ProbeConfig{
			Signal:    "gpu",
			Threshold: 0,
		},
		Launch: LaunchConfig{
			Answers: []string{"n", ""},
		},
		Pause: PauseConfig{
			InterruptCode:   130,
			ErrorSignatures: runlog.DefaultSignatures(),
		},
	}
}

// Load loads configuration from files and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("bnw")
	v.SetConfigType("yaml")

	// Config paths in order of precedence, lowest first.
	v.AddConfigPath("/etc/bnw/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "bnw"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".bnw"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("BNW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "BNW_FORMAT")
	v.BindEnv("quiet", "BNW_QUIET")
	v.BindEnv("verbose", "BNW_VERBOSE")
	v.BindEnv("node.name", "BNW_NODE")
	v.BindEnv("node.work_dir", "BNW_WORK_DIR")
	v.BindEnv("status.url", "BNW_STATUS_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found; use defaults.
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("node.session", cfg.Node.Session)
	v.SetDefault("node.runtime_log", cfg.Node.RuntimeLog)
	v.SetDefault("node.ledger", cfg.Node.Ledger)
	v.SetDefault("intervals.health", cfg.Intervals.Health)
	v.SetDefault("intervals.game_check", cfg.Intervals.GameCheck)
	v.SetDefault("intervals.bet_status", cfg.Intervals.BetStatus)
	v.SetDefault("intervals.grace_period", cfg.Intervals.GracePeriod)
	v.SetDefault("intervals.settle_delay", cfg.Intervals.SettleDelay)
	v.SetDefault("status.timeout", cfg.Status.Timeout)
	v.SetDefault("probe.signal", cfg.Probe.Signal)
	v.SetDefault("probe.threshold", cfg.Probe.Threshold)
	v.SetDefault("launch.answers", cfg.Launch.Answers)
	v.SetDefault("pause.interrupt_code", cfg.Pause.InterruptCode)
	v.SetDefault("pause.error_signatures", cfg.Pause.ErrorSignatures)
}

// Validate checks the parts without which the supervisor cannot run.
// A validation failure is fatal: the supervisor refuses to start.
func (c *Config) Validate() error {
	var errs []error
	if c.Node.Name == "" {
		errs = append(errs, errors.New("node.name is required"))
	}
	if c.Node.WorkDir == "" {
		errs = append(errs, errors.New("node.work_dir is required"))
	}
	if c.Node.Session == "" {
		errs = append(errs, errors.New("node.session is required"))
	}
	if c.Launch.Signature == "" {
		errs = append(errs, errors.New("launch.signature is required"))
	}
	if c.Launch.Entrypoint == "" {
		errs = append(errs, errors.New("launch.entrypoint is required"))
	}
	if c.Status.URL == "" {
		errs = append(errs, errors.New("status.url is required"))
	}
	for name, value := range map[string]string{
		"intervals.health":       c.Intervals.Health,
		"intervals.game_check":   c.Intervals.GameCheck,
		"intervals.bet_status":   c.Intervals.BetStatus,
		"intervals.grace_period": c.Intervals.GracePeriod,
		"intervals.settle_delay": c.Intervals.SettleDelay,
		"status.timeout":         c.Status.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", name))
		}
	}
	if d, err := time.ParseDuration(c.Intervals.Health); err == nil && d <= 0 {
		errs = append(errs, errors.New("intervals.health: must be positive"))
	}
	return errors.Join(errs...)
}

// Identity builds the worker identity from the node and launch settings.
func (c *Config) Identity() domain.WorkerIdentity {
	return domain.WorkerIdentity{
		Signature:   c.Launch.Signature,
		WorkDir:     c.Node.WorkDir,
		SessionName: c.Node.Session,
	}
}

// RuntimeLogPath resolves the runtime log relative to the work dir.
func (c *Config) RuntimeLogPath() string {
	return c.resolve(c.Node.RuntimeLog)
}

// LedgerPath resolves the bet ledger relative to the work dir.
func (c *Config) LedgerPath() string {
	return c.resolve(c.Node.Ledger)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Node.WorkDir, path)
}

// Duration helpers: validated configs never fail these parses.

// HealthInterval returns the health tick cadence.
func (c *Config) HealthInterval() time.Duration { return mustDuration(c.Intervals.Health) }

// GameCheckInterval returns the game-change check cadence.
func (c *Config) GameCheckInterval() time.Duration { return mustDuration(c.Intervals.GameCheck) }

// BetStatusInterval returns the betting-status check cadence.
func (c *Config) BetStatusInterval() time.Duration { return mustDuration(c.Intervals.BetStatus) }

// GracePeriod returns the post-launch stabilization window.
func (c *Config) GracePeriod() time.Duration { return mustDuration(c.Intervals.GracePeriod) }

// SettleDelay returns the teardown-to-launch pause.
func (c *Config) SettleDelay() time.Duration { return mustDuration(c.Intervals.SettleDelay) }

// StatusTimeout bounds a single status fetch.
func (c *Config) StatusTimeout() time.Duration { return mustDuration(c.Status.Timeout) }

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// ConfigFile returns the path of the config file in use, if any.
func ConfigFile() string {
	v := viper.New()
	v.SetConfigName("bnw")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/bnw/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "bnw"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".bnw"))
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}
	return ""
}
