package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shopsim/shopsim/sim"
	"github.com/shopsim/shopsim/sim/dialogue"
	"github.com/shopsim/shopsim/sim/llm"
	"github.com/shopsim/shopsim/sim/trace"
)

// defaultsFilePath is where run and watch look for configuration when --config is not given.
const defaultsFilePath = "defaults.yaml"

// TraceConfig selects what gets recorded and where it is exported.
type TraceConfig struct {
	Level        string `yaml:"level"`         // none, conversations or all
	MaxRecords   int    `yaml:"max_records"`   // in-memory cap per record type
	Dir          string `yaml:"dir"`           // zstd JSONL export directory; empty disables
	TranscriptDB string `yaml:"transcript_db"` // SQLite transcript path; empty disables
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Simulation sim.Config       `yaml:"simulation"`
	Dialogue   dialogue.Config  `yaml:"dialogue"`
	LLM        llm.ClientConfig `yaml:"llm"`
	Trace      TraceConfig      `yaml:"trace"`
	Cast       []sim.CastMember `yaml:"cast"`
}

// DefaultConfig is the configuration used when no defaults file exists.
// Sections missing from a loaded file keep these values.
func DefaultConfig() Config {
	return Config{
		Simulation: sim.DefaultConfig(),
		Dialogue:   dialogue.DefaultConfig(),
		// Base URL and model stay empty so the environment can supply them.
		LLM:   llm.ClientConfig{Timeout: llm.DefaultTimeout},
		Trace: TraceConfig{Level: string(trace.TraceLevelAll), MaxRecords: 10000},
		Cast:  sim.DefaultCast(),
	}
}

// LoadConfig reads path over DefaultConfig with strict field checking,
// so typos in the file cause errors instead of silently using defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := decodeConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// loadConfigOrDefault behaves like LoadConfig except that a missing file at
// the implicit default path is not an error.
func loadConfigOrDefault(path string, explicit bool) (Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

func decodeConfig(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	castBefore := cfg.Cast
	cfg.Cast = nil
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	// An omitted cast section keeps the built-in cast; a present one replaces it whole.
	if cfg.Cast == nil {
		cfg.Cast = castBefore
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Dialogue.Validate(); err != nil {
		return fmt.Errorf("dialogue: %w", err)
	}
	if err := sim.ValidateCast(c.Cast); err != nil {
		return err
	}
	if !trace.IsValidTraceLevel(c.Trace.Level) {
		return fmt.Errorf("trace: unknown level %q (want none, conversations or all)", c.Trace.Level)
	}
	if c.Trace.MaxRecords < 0 {
		return fmt.Errorf("trace: max_records must be non-negative, got %d", c.Trace.MaxRecords)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm: timeout must be non-negative, got %s", c.LLM.Timeout)
	}
	return nil
}
