package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
	"github.com/KaramelBytes/chartloom-cli/internal/logging"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	// Pipeline flags (override config if set)
	flagSeed      int64
	flagThreshold int
	flagCap       int
	flagNoUV      bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "chartloom",
	Short: "chartloom: turn loose tabular data into chart-ready datasets",
	Long: `chartloom normalizes pasted JSON, CSV exports and AI responses into a bounded
record set, picks the chart axes and writes a short description of the data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.chartloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "random seed for the synthetic series (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagThreshold, "threshold", 0, "aggregate datasets longer than this (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagCap, "cap", 0, "maximum aggregated groups shown (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoUV, "no-synthetic", false, "do not add the synthetic uv series")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = defaultConfig()
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("seed") {
		cfg.RandomSeed = flagSeed
	}
	if f.Changed("threshold") && flagThreshold > 0 {
		cfg.AggregationThreshold = flagThreshold
	}
	if f.Changed("cap") && flagCap > 0 {
		cfg.DisplayCap = flagCap
	}
	if f.Changed("no-synthetic") && flagNoUV {
		cfg.SyntheticSeries = false
	}
	if debug {
		cfg.LogLevel = "debug"
	}
}

func defaultConfig() *cfgpkg.Global {
	opt := pipeline.DefaultOptions()
	return &cfgpkg.Global{
		AggregationThreshold: opt.Threshold,
		DisplayCap:           opt.Cap,
		SyntheticSeries:      opt.Synthetic,
		LogLevel:             "info",
		LogFormat:            "text",
		ListenAddr:           "127.0.0.1:8750",
		BatchWorkers:         4,
		MaxInputBytes:        10 << 20,
	}
}

// newLogger builds the diagnostics logger on stderr.
func newLogger(cmd *cobra.Command) *slog.Logger {
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v\n", err)
		return logging.Nop()
	}
	return log
}

func newPipeline(cmd *cobra.Command) *pipeline.Pipeline {
	return pipeline.New(cfg.PipelineOptions(newLogger(cmd)))
}
