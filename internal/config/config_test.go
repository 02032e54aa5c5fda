package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panelsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 0.8, cfg.LLM.Temperature)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Zero(t, cfg.LLM.Timeout)
	assert.Equal(t, 25, cfg.Runs.DefaultRespondents)
	assert.Equal(t, 500, cfg.Runs.MaxRespondents)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
http_port: 9000
shutdown_timeout: 5s
database:
  driver: sqlite
  dsn: file:test.db
llm:
  provider: mock
  model: from-file
  timeout: 90s
artifacts:
  backend: db
runs:
  default_respondents: 10
`)
	t.Setenv("LLM_MODEL", "from-env")
	t.Setenv("HTTP_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "db", cfg.Artifacts.Backend)
	assert.Equal(t, 10, cfg.Runs.DefaultRespondents)
	assert.Equal(t, 500, cfg.Runs.MaxRespondents)
}

func TestLoadPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, writeFile(t, "http_port: 7000\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.HTTPPort)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("LLM_TIMEOUT_MS", "1500")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
	assert.Equal(t, 1500*time.Millisecond, cfg.LLM.Timeout)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, "nats://localhost:4222", cfg.Notify.NATSURL)

	t.Setenv("LLM_API_KEY", "sk-llm")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-llm", cfg.LLM.APIKey)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "http_prot: 9000\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTPPort = 0 }, "http_port"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"provider", func(c *Config) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"gemini key", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.api_key"},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }, "llm.max_tokens"},
		{"backend", func(c *Config) { c.Artifacts.Backend = "s3" }, "artifacts.backend"},
		{"file dir", func(c *Config) { c.Artifacts.Dir = "" }, "artifacts.dir"},
		{"db redirect", func(c *Config) {
			c.Artifacts.Backend = "db"
			c.Artifacts.PublicBaseURL = "https://cdn"
		}, "public_base_url"},
		{"default respondents", func(c *Config) { c.Runs.DefaultRespondents = 600 }, "default_respondents"},
		{"max respondents", func(c *Config) { c.Runs.MaxRespondents = 1000 }, "runs.max_respondents 1000 must be within [1, 500]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}
