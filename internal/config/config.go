// Package config provides Viper-based configuration loading for the
// behaviour-tree runner.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BEHAVE_RUNNER_TREE_PATH.
const EnvPrefix = "BEHAVE"

// RunnerConfig holds tree and tick-loop settings.
type RunnerConfig struct {
	// TreePath is the DSL file to load.
	TreePath string `mapstructure:"tree_path"`
	// TickInterval is the period between ticks.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// MaxTicks stops the runner after this many ticks; 0 runs until cancelled.
	MaxTicks int `mapstructure:"max_ticks"`
	// StopOnResult stops the runner on the first Success or Failure.
	StopOnResult bool `mapstructure:"stop_on_result"`
	// Owner is the name the runner reports to nodes and logs.
	Owner string `mapstructure:"owner"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is a zap sink: "stderr", "stdout" or a file path.
	Output string `mapstructure:"output"`
}

// ScriptingConfig holds Lua settings.
type ScriptingConfig struct {
	// ScriptDir holds *.lua files loaded into the global VM; empty disables Lua.
	ScriptDir string `mapstructure:"script_dir"`
	// InstructionLimit caps opcodes per load or hook call; 0 uses the default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Enabled reports whether Lua scripting is configured.
func (s ScriptingConfig) Enabled() bool { return s.ScriptDir != "" }

// LeavesConfig holds leaf catalog settings.
type LeavesConfig struct {
	// CatalogDir holds *.yaml leaf catalogs; empty registers builtins only.
	CatalogDir string `mapstructure:"catalog_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Runner    RunnerConfig    `mapstructure:"runner"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Leaves    LeavesConfig    `mapstructure:"leaves"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateRunner(c.Runner); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateScripting(c.Scripting); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRunner(r RunnerConfig) error {
	var errs []string
	if r.TreePath == "" {
		errs = append(errs, "runner.tree_path must not be empty")
	}
	if r.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("runner.tick_interval must be > 0, got %s", r.TickInterval))
	}
	if r.MaxTicks < 0 {
		errs = append(errs, fmt.Sprintf("runner.max_ticks must be >= 0, got %d", r.MaxTicks))
	}
	if r.Owner == "" {
		errs = append(errs, "runner.owner must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.Output == "" {
		return errors.New("logging.output must not be empty")
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and BEHAVE_ environment
// overrides applied. Callers may bind flags to it before LoadFromViper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runner.tree_path", "content/trees/guard.bt")
	v.SetDefault("runner.tick_interval", "100ms")
	v.SetDefault("runner.max_ticks", 0)
	v.SetDefault("runner.stop_on_result", false)
	v.SetDefault("runner.owner", "npc")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scripting.script_dir", "")
	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("leaves.catalog_dir", "")
}
