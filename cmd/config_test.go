package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsim/shopsim/sim"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_ShippedDefaultsMatchBuiltIns(t *testing.T) {
	// GIVEN the defaults.yaml shipped at the repository root
	path := "../defaults.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("defaults.yaml not found, skipping")
	}

	// WHEN it is loaded
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// THEN it describes exactly the built-in configuration
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "simulation:\n  conversation_perod: 3\n")

	_, err := LoadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation_perod")
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	// GIVEN a file that only overrides two values and has no cast section
	path := writeConfig(t, "simulation:\n  seed: 7\ndialogue:\n  temperature: 0.3\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// THEN overridden keys change and everything else keeps its default
	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.InDelta(t, 0.3, cfg.Dialogue.Temperature, 1e-9)
	assert.Equal(t, sim.DefaultConfig().ServePeriod, cfg.Simulation.ServePeriod)
	assert.Equal(t, sim.DefaultCast(), cfg.Cast)
}

func TestLoadConfig_CastSectionReplacesWholeCast(t *testing.T) {
	path := writeConfig(t, `cast:
  - name: Pat
    row: 3
    col: 66
    owner: true
  - name: Quinn
    row: 9
    col: 9
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Cast, 2)
	assert.Equal(t, "Pat", cfg.Cast[0].Name)
	assert.True(t, cfg.Cast[0].Owner)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EmptyFileIsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOrDefault_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	// An implicit default path may be absent.
	cfg, err := loadConfigOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// A path the user named must exist.
	_, err = loadConfigOrDefault(missing, true)
	assert.Error(t, err)
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad period", func(c *Config) { c.Simulation.ServePeriod = 0 }, "simulation"},
		{"bad temperature", func(c *Config) { c.Dialogue.Temperature = 3 }, "dialogue"},
		{"two owners", func(c *Config) { c.Cast[1].Owner = true }, "owner"},
		{"unknown trace level", func(c *Config) { c.Trace.Level = "verbose" }, "trace"},
		{"negative max records", func(c *Config) { c.Trace.MaxRecords = -1 }, "max_records"},
		{"negative timeout", func(c *Config) { c.LLM.Timeout = -1 }, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
