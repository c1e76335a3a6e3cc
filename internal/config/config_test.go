package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Runner: RunnerConfig{
			TreePath:     "trees/guard.bt",
			TickInterval: 100 * time.Millisecond,
			Owner:        "npc",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Scripting: ScriptingConfig{
			ScriptDir:        "scripts",
			InstructionLimit: 1000,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Scripting.Enabled())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
runner:
  tree_path: trees/patrol.bt
  tick_interval: 250ms
  max_ticks: 40
  stop_on_result: true
  owner: sentry
logging:
  level: debug
  format: console
scripting:
  script_dir: scripts
  instruction_limit: 5000
leaves:
  catalog_dir: catalog
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "trees/patrol.bt", cfg.Runner.TreePath)
	assert.Equal(t, 250*time.Millisecond, cfg.Runner.TickInterval)
	assert.Equal(t, 40, cfg.Runner.MaxTicks)
	assert.True(t, cfg.Runner.StopOnResult)
	assert.Equal(t, "sentry", cfg.Runner.Owner)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output, "default applies")
	assert.Equal(t, "scripts", cfg.Scripting.ScriptDir)
	assert.Equal(t, 5000, cfg.Scripting.InstructionLimit)
	assert.Equal(t, "catalog", cfg.Leaves.CatalogDir)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Runner.TickInterval)
	assert.Equal(t, 0, cfg.Runner.MaxTicks)
	assert.Equal(t, "npc", cfg.Runner.Owner)
	assert.False(t, cfg.Scripting.Enabled())
	assert.Empty(t, cfg.Leaves.CatalogDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BEHAVE_RUNNER_OWNER", "gatekeeper")
	t.Setenv("BEHAVE_LOGGING_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gatekeeper", cfg.Runner.Owner)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidateRunner(t *testing.T) {
	cfg := validConfig()
	cfg.Runner.TreePath = ""
	cfg.Runner.TickInterval = 0
	cfg.Runner.MaxTicks = -1
	cfg.Runner.Owner = ""
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"runner.tree_path", "runner.tick_interval", "runner.max_ticks", "runner.owner"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingOutput(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Output = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Runner.Owner = ""
	cfg.Logging.Format = "xml"
	cfg.Scripting.InstructionLimit = -5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner.owner")
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "scripting.instruction_limit")
}

func TestPropertyTickIntervalMustBePositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(-10_000, 10_000).Draw(t, "ms")
		cfg := validConfig()
		cfg.Runner.TickInterval = time.Duration(ms) * time.Millisecond
		err := cfg.Validate()
		if ms > 0 && err != nil {
			t.Fatalf("interval %dms should be valid: %v", ms, err)
		}
		if ms <= 0 && err == nil {
			t.Fatalf("interval %dms should be invalid", ms)
		}
	})
}

func TestPropertyMaxTicksNonNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(-1000, 1000).Draw(t, "max_ticks")
		cfg := validConfig()
		cfg.Runner.MaxTicks = n
		err := cfg.Validate()
		if (n >= 0) != (err == nil) {
			t.Fatalf("max_ticks=%d: err=%v", n, err)
		}
	})
}
