// Package config loads sectriage settings from defaults, an optional YAML
// file and SECTRIAGE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/sectriage/internal/engine/compactor"
)

// DefaultPath is read when no --config flag is given. A missing default file
// is not an error.
const DefaultPath = "sectriage.yaml"

// EnvPrefix prefixes every environment override, e.g. SECTRIAGE_ENGINE_WORKERS.
const EnvPrefix = "SECTRIAGE"

// Config holds all sectriage configuration.
type Config struct {
	Connector ConnectorConfig `yaml:"connector" mapstructure:"connector"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// ConnectorConfig holds connector-specific settings.
type ConnectorConfig struct {
	Provider string            `yaml:"provider" mapstructure:"provider"`
	APIKey   string            `yaml:"api_key" mapstructure:"api_key"`
	Endpoint string            `yaml:"endpoint" mapstructure:"endpoint"` // URL, or a path for file/tail
	Extra    map[string]string `yaml:"extra" mapstructure:"extra"`
}

// EngineConfig holds classification engine settings.
type EngineConfig struct {
	Workers   int    `yaml:"workers" mapstructure:"workers"`
	Verbosity string `yaml:"verbosity" mapstructure:"verbosity"` // "minimal", "standard", "full"
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// OutputConfig holds output destination settings. Stdout is on by default;
// every other destination is enabled by setting its path or URL.
type OutputConfig struct {
	Stdout  bool          `yaml:"stdout" mapstructure:"stdout"`
	Format  string        `yaml:"format" mapstructure:"format"` // "json" or "text"
	Pretty  bool          `yaml:"pretty" mapstructure:"pretty"`
	File    FileConfig    `yaml:"file" mapstructure:"file"`
	CSV     string        `yaml:"csv" mapstructure:"csv"`
	Webhook WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	NATS    NATSConfig    `yaml:"nats" mapstructure:"nats"`
}

// FileConfig configures the NDJSON file output.
type FileConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"` // 0 disables rotation
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// WebhookConfig configures the batched HTTP output.
type WebhookConfig struct {
	URL           string            `yaml:"url" mapstructure:"url"`
	Headers       map[string]string `yaml:"headers" mapstructure:"headers"`
	MinScore      int               `yaml:"min_score" mapstructure:"min_score"`
	BatchSize     int               `yaml:"batch_size" mapstructure:"batch_size"`
	FlushInterval time.Duration     `yaml:"flush_interval" mapstructure:"flush_interval"`
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Subject string `yaml:"subject" mapstructure:"subject"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// ReportConfig sizes the end-of-run summary.
type ReportConfig struct {
	TopN          int           `yaml:"top_n" mapstructure:"top_n"`
	HighRiskLimit int           `yaml:"high_risk_limit" mapstructure:"high_risk_limit"`
	BurstWindow   time.Duration `yaml:"burst_window" mapstructure:"burst_window"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"` // text or json
	File       string `yaml:"file" mapstructure:"file"`     // optional rotated log file
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // empty disables the listener
}

// Load reads configuration from path (or DefaultPath when empty) and the
// environment. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil || explicit {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Connector.Extra = mergeExtra(cfg.Connector.Extra, loadConnectorExtra())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connector.provider", "file")
	v.SetDefault("connector.api_key", "")
	v.SetDefault("connector.endpoint", "")

	v.SetDefault("engine.workers", runtime.NumCPU())
	v.SetDefault("engine.verbosity", "full")
	v.SetDefault("engine.rules_path", "")

	v.SetDefault("output.stdout", true)
	v.SetDefault("output.format", "json")
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.file.path", "")
	v.SetDefault("output.file.max_size_mb", 0)
	v.SetDefault("output.file.max_backups", 5)
	v.SetDefault("output.file.compress", false)
	v.SetDefault("output.csv", "")
	v.SetDefault("output.webhook.url", "")
	v.SetDefault("output.webhook.min_score", 0)
	v.SetDefault("output.webhook.batch_size", 50)
	v.SetDefault("output.webhook.flush_interval", "5s")
	v.SetDefault("output.nats.url", "")
	v.SetDefault("output.nats.subject", "sectriage.findings")
	v.SetDefault("output.nats.token", "")

	v.SetDefault("report.top_n", 10)
	v.SetDefault("report.high_risk_limit", 5)
	v.SetDefault("report.burst_window", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)

	v.SetDefault("metrics.addr", "")
}

// Validate checks field values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers must be >= 1, got %d", c.Engine.Workers))
	}
	switch strings.ToLower(c.Engine.Verbosity) {
	case "minimal", "standard", "full":
	default:
		errs = append(errs, fmt.Errorf("engine.verbosity must be minimal, standard or full, got %q", c.Engine.Verbosity))
	}
	switch strings.ToLower(c.Output.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("output.format must be json or text, got %q", c.Output.Format))
	}
	if c.Report.TopN < 1 {
		errs = append(errs, fmt.Errorf("report.top_n must be >= 1, got %d", c.Report.TopN))
	}
	if c.Report.HighRiskLimit < 0 {
		errs = append(errs, fmt.Errorf("report.high_risk_limit must be >= 0, got %d", c.Report.HighRiskLimit))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Verbosity returns the parsed engine verbosity.
func (c *Config) Verbosity() compactor.Verbosity {
	return compactor.ParseVerbosity(c.Engine.Verbosity)
}

// YAML renders the effective configuration. Secrets are masked.
func (c *Config) YAML() ([]byte, error) {
	cp := *c
	cp.Connector.APIKey = mask(cp.Connector.APIKey)
	cp.Output.NATS.Token = mask(cp.Output.NATS.Token)
	data, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return data, nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// loadConnectorExtra reads provider-specific env vars into an Extra map.
func loadConnectorExtra() map[string]string {
	vars := []struct {
		envVar   string
		extraKey string
	}{
		{"SECTRIAGE_SPLUNK_SEARCH", "search"},
		{"SECTRIAGE_SPLUNK_INSECURE", "insecure"},
		{"SECTRIAGE_SPLUNK_TIMEOUT", "timeout"},
		{"SECTRIAGE_POLL_INTERVAL", "poll_interval"},
		{"SECTRIAGE_TAIL_FROM", "from"},
		{"SECTRIAGE_TAIL_POLL", "poll"},
	}

	var m map[string]string
	for _, v := range vars {
		if val := os.Getenv(v.envVar); val != "" {
			if m == nil {
				m = make(map[string]string)
			}
			m[v.extraKey] = val
		}
	}
	return m
}

// mergeExtra overlays env values on file values.
func mergeExtra(file, env map[string]string) map[string]string {
	if len(env) == 0 {
		return file
	}
	out := make(map[string]string, len(file)+len(env))
	for k, v := range file {
		out[k] = v
	}
	for k, v := range env {
		out[k] = v
	}
	return out
}
