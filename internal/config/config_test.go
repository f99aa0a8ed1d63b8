package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/sectriage/internal/engine/compactor"
)

// chdirTemp runs the test in an empty directory so a stray sectriage.yaml
// in the package dir cannot leak into the defaults.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Connector.Provider)
	assert.Empty(t, cfg.Connector.APIKey)
	assert.Nil(t, cfg.Connector.Extra)
	assert.GreaterOrEqual(t, cfg.Engine.Workers, 1)
	assert.Equal(t, "full", cfg.Engine.Verbosity)
	assert.Equal(t, compactor.Full, cfg.Verbosity())
	assert.True(t, cfg.Output.Stdout)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Output.Pretty)
	assert.Equal(t, 5, cfg.Output.File.MaxBackups)
	assert.Equal(t, 50, cfg.Output.Webhook.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Output.Webhook.FlushInterval)
	assert.Equal(t, "sectriage.findings", cfg.Output.NATS.Subject)
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.Equal(t, 5, cfg.Report.HighRiskLimit)
	assert.Equal(t, time.Minute, cfg.Report.BurstWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, dir, DefaultPath, "report:\n  top_n: 3\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Report.TopN)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	path := writeFile(t, dir, "custom.yaml", `
connector:
  provider: splunk
  endpoint: https://splunk.example.com:8089
  api_key: secret-token
  extra:
    search: "search index=wineventlog"
engine:
  workers: 2
  verbosity: full
output:
  format: text
  pretty: true
  file:
    path: /var/log/sectriage/findings.jsonl
    max_size_mb: 50
    compress: true
  csv: suspicious_events.csv
  webhook:
    url: https://hooks.example.com/x
    min_score: 3
    headers:
      Authorization: Bearer abc
  nats:
    url: nats://localhost:4222
report:
  top_n: 20
  burst_window: 30s
logging:
  level: debug
  format: json
metrics:
  addr: ":9464"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "splunk", cfg.Connector.Provider)
	assert.Equal(t, "https://splunk.example.com:8089", cfg.Connector.Endpoint)
	assert.Equal(t, "secret-token", cfg.Connector.APIKey)
	assert.Equal(t, "search index=wineventlog", cfg.Connector.Extra["search"])
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, compactor.Full, cfg.Verbosity())
	assert.Equal(t, "text", cfg.Output.Format)
	assert.True(t, cfg.Output.Pretty)
	assert.Equal(t, "/var/log/sectriage/findings.jsonl", cfg.Output.File.Path)
	assert.Equal(t, 50, cfg.Output.File.MaxSizeMB)
	assert.True(t, cfg.Output.File.Compress)
	assert.Equal(t, "suspicious_events.csv", cfg.Output.CSV)
	assert.Equal(t, 3, cfg.Output.Webhook.MinScore)
	assert.Equal(t, "Bearer abc", cfg.Output.Webhook.Headers["authorization"])
	assert.Equal(t, "nats://localhost:4222", cfg.Output.NATS.URL)
	assert.Equal(t, 20, cfg.Report.TopN)
	assert.Equal(t, 30*time.Second, cfg.Report.BurstWindow)
	assert.Equal(t, 5, cfg.Report.HighRiskLimit, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	path := writeFile(t, dir, "bad.yaml", "engine: [workers\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	path := writeFile(t, dir, "c.yaml", "engine:\n  workers: 2\nreport:\n  top_n: 4\n")

	t.Setenv("SECTRIAGE_ENGINE_WORKERS", "7")
	t.Setenv("SECTRIAGE_OUTPUT_FILE_PATH", "/tmp/out.jsonl")
	t.Setenv("SECTRIAGE_CONNECTOR_PROVIDER", "tail")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.Workers)
	assert.Equal(t, 4, cfg.Report.TopN)
	assert.Equal(t, "/tmp/out.jsonl", cfg.Output.File.Path)
	assert.Equal(t, "tail", cfg.Connector.Provider)
}

func TestLoad_ConnectorExtraFromEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := writeFile(t, dir, "c.yaml", "connector:\n  extra:\n    search: from-file\n    insecure: \"false\"\n")

	t.Setenv("SECTRIAGE_SPLUNK_SEARCH", "from-env")
	t.Setenv("SECTRIAGE_TAIL_FROM", "end")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Connector.Extra["search"])
	assert.Equal(t, "false", cfg.Connector.Extra["insecure"])
	assert.Equal(t, "end", cfg.Connector.Extra["from"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }, "engine.workers"},
		{"bad verbosity", func(c *Config) { c.Engine.Verbosity = "loud" }, "engine.verbosity"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"zero top_n", func(c *Config) { c.Report.TopN = 0 }, "report.top_n"},
		{"negative high risk", func(c *Config) { c.Report.HighRiskLimit = -1 }, "report.high_risk_limit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = 0
	cfg.Output.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.workers")
	assert.Contains(t, err.Error(), "output.format")
}

func TestYAML_MasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Connector.APIKey = "hunter2"
	cfg.Output.NATS.Token = "tok"

	data, err := cfg.YAML()
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "top_n: 10")
	assert.Equal(t, "hunter2", cfg.Connector.APIKey, "original config is untouched")
}
