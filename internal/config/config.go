package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/logging"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/record"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	AggregationThreshold int    `mapstructure:"aggregation_threshold" yaml:"aggregation_threshold"`
	DisplayCap           int    `mapstructure:"display_cap" yaml:"display_cap"`
	SyntheticSeries      bool   `mapstructure:"synthetic_series" yaml:"synthetic_series"`
	RandomSeed           int64  `mapstructure:"random_seed" yaml:"random_seed"`
	LogLevel             string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat            string `mapstructure:"log_format" yaml:"log_format"`
	ListenAddr           string `mapstructure:"listen_addr" yaml:"listen_addr"`
	BatchWorkers         int    `mapstructure:"batch_workers" yaml:"batch_workers"`
	MaxInputBytes        int64  `mapstructure:"max_input_bytes" yaml:"max_input_bytes"`
	// SessionFile, when set, is where `serve` persists the committed view.
	SessionFile string `mapstructure:"session_file" yaml:"session_file"`
}

var defaults = map[string]any{
	"aggregation_threshold": record.AggregationThreshold,
	"display_cap":           record.DisplayCap,
	"synthetic_series":      true,
	"random_seed":           0,
	"log_level":             "info",
	"log_format":            "text",
	"listen_addr":           "127.0.0.1:8750",
	"batch_workers":         4,
	"max_input_bytes":       10 << 20,
	"session_file":          "",
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dir returns ~/.chartloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".chartloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.chartloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. An explicit cfgFile must exist.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CHARTLOOM")
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Global) Validate() error {
	if c.AggregationThreshold <= 0 {
		return fmt.Errorf("aggregation_threshold must be positive, got %d", c.AggregationThreshold)
	}
	if c.DisplayCap <= 0 {
		return fmt.Errorf("display_cap must be positive, got %d", c.DisplayCap)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("batch_workers must be positive, got %d", c.BatchWorkers)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Set assigns a single key from its string form. c is left unchanged when
// the value does not parse or validate.
func (c *Global) Set(key, val string) error {
	next := *c
	var err error
	switch key {
	case "aggregation_threshold":
		next.AggregationThreshold, err = cast.ToIntE(val)
	case "display_cap":
		next.DisplayCap, err = cast.ToIntE(val)
	case "synthetic_series":
		next.SyntheticSeries, err = cast.ToBoolE(val)
	case "random_seed":
		next.RandomSeed, err = cast.ToInt64E(val)
	case "log_level":
		next.LogLevel = strings.ToLower(val)
	case "log_format":
		next.LogFormat = strings.ToLower(val)
	case "listen_addr":
		next.ListenAddr = val
	case "batch_workers":
		next.BatchWorkers, err = cast.ToIntE(val)
	case "max_input_bytes":
		next.MaxInputBytes, err = cast.ToInt64E(val)
	case "session_file":
		next.SessionFile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns the string form of a key, as `config show` prints it.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "aggregation_threshold":
		return cast.ToString(c.AggregationThreshold), nil
	case "display_cap":
		return cast.ToString(c.DisplayCap), nil
	case "synthetic_series":
		return cast.ToString(c.SyntheticSeries), nil
	case "random_seed":
		return cast.ToString(c.RandomSeed), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "batch_workers":
		return cast.ToString(c.BatchWorkers), nil
	case "max_input_bytes":
		return cast.ToString(c.MaxInputBytes), nil
	case "session_file":
		return c.SessionFile, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// PipelineOptions maps the configuration onto pipeline.Options. A zero
// random_seed draws from the process-wide generator.
func (c *Global) PipelineOptions(log *slog.Logger) pipeline.Options {
	opt := pipeline.Options{
		Threshold: c.AggregationThreshold,
		Cap:       c.DisplayCap,
		Synthetic: c.SyntheticSeries,
		Logger:    log,
	}
	if c.RandomSeed != 0 {
		opt.Rand = analysis.NewSource(c.RandomSeed)
	}
	return opt
}
