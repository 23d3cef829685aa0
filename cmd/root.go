package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shopsim/shopsim/sim/llm"
)

var (
	// Shared flags
	configPath   string        // Path to defaults.yaml
	seed         int64         // Seed for movement, lifecycle, mood and dialogue randomness
	logLevel     string        // Log verbosity level
	noLLM        bool          // Use template lines only
	llmBaseURL   string        // OpenAI-compatible endpoint
	llmModel     string        // Model name sent with every request
	llmTimeout   time.Duration // Per-request timeout
	traceDir     string        // zstd JSONL export directory
	transcriptDB string        // SQLite transcript path
	traceLevel   string        // none, conversations or all

	// run flags
	ticks    int64         // Number of ticks to simulate
	interval time.Duration // Wall-clock pause between ticks
	verbose  bool          // Log the source and topic of every line
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "shopsim",
	Short: "Convenience-store simulation with language-model dialogue",
}

// runCmd executes a headless simulation and prints metrics at the end
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the store simulation without a UI",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := mustLoadConfig(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := newSession(ctx, cfg, !noLLM)
		if err != nil {
			logrus.Fatalf("unable to start simulation: %v", err)
		}
		sess.Sim.Log.OnAppend = func(entry string) { logrus.Info(entry) }

		logrus.Infof("Starting simulation: seed=%d ticks=%d cast=%d", cfg.Simulation.Seed, ticks, len(cfg.Cast))
		startTime := time.Now()
		runTicks(ctx, sess, ticks, interval, verbose)
		logrus.Infof("Simulated %d ticks in %s", sess.Sim.Clock, time.Since(startTime).Round(time.Millisecond))

		sess.report(ctx)
		if err := sess.Close(); err != nil {
			logrus.Errorf("closing trace sinks: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// runTicks advances the simulation n times, stopping early when ctx is done.
func runTicks(ctx context.Context, sess *session, n int64, pause time.Duration, verbose bool) {
	for i := int64(0); i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		sess.Sim.Tick(false, verbose)
		if pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
		}
	}
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// mustLoadConfig reads the config file and lays explicitly set flags over it.
func mustLoadConfig(cmd *cobra.Command) Config {
	explicit := cmd.Flags().Changed("config")
	cfg, err := loadConfigOrDefault(configPath, explicit)
	if err != nil {
		logrus.Fatalf("unable to read config: %v", err)
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// applyFlags overrides cfg with flags the user actually set, so file values
// are not clobbered by flag defaults.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Simulation.Seed = seed
	}
	if flags.Changed("llm-base-url") {
		cfg.LLM.BaseURL = llmBaseURL
	}
	if flags.Changed("llm-model") {
		cfg.LLM.Model = llmModel
	}
	if flags.Changed("llm-timeout") {
		cfg.LLM.Timeout = llmTimeout
	}
	if flags.Changed("trace-dir") {
		cfg.Trace.Dir = traceDir
	}
	if flags.Changed("transcript-db") {
		cfg.Trace.TranscriptDB = transcriptDB
	}
	if flags.Changed("trace-level") {
		cfg.Trace.Level = traceLevel
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultsFilePath, "Path to the YAML config (simulation, dialogue, llm, trace, cast)")
	pf.Int64Var(&seed, "seed", 42, "Seed for simulation randomness")
	pf.StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	pf.BoolVar(&noLLM, "no-llm", false, "Never call the language model; use template lines only")
	pf.StringVar(&llmBaseURL, "llm-base-url", "", "OpenAI-compatible base URL (overrides env "+llm.EnvBaseURL+")")
	pf.StringVar(&llmModel, "llm-model", "", "Model name (overrides env "+llm.EnvModel+")")
	pf.DurationVar(&llmTimeout, "llm-timeout", 6*time.Second, "Per-request generation timeout")
	pf.StringVar(&traceDir, "trace-dir", "", "Directory for zstd-compressed JSONL conversation traces")
	pf.StringVar(&transcriptDB, "transcript-db", "", "SQLite file to record every line and visit")
	pf.StringVar(&traceLevel, "trace-level", "all", "Trace level (none, conversations, all)")

	runCmd.Flags().Int64Var(&ticks, "ticks", 2000, "Number of ticks to simulate")
	runCmd.Flags().DurationVar(&interval, "interval", 0, "Pause between ticks")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "Log the source and topic of every line")

	rootCmd.AddCommand(runCmd)
}
