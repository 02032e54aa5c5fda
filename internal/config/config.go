// Package config provides configuration for the panelsim service.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/xiaot623/panelsim/internal/domain"
)

// EnvConfigPath names the YAML file to load when no path is given.
const EnvConfigPath = "PANELSIM_CONFIG"

// Config holds the service configuration.
type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	LogLevel        string        `yaml:"log_level"`
	PolicyFile      string        `yaml:"policy_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Database  DatabaseConfig `yaml:"database"`
	LLM       LLMConfig      `yaml:"llm"`
	Artifacts ArtifactConfig `yaml:"artifacts"`
	Notify    NotifyConfig   `yaml:"notify"`
	Runs      RunsConfig     `yaml:"runs"`
}

// DatabaseConfig selects the SQLite driver and database.
type DatabaseConfig struct {
	// Driver is "sqlite3" (mattn, CGO) or "sqlite" (modernc, pure Go).
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LLMConfig configures the generation call.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// Timeout bounds the HTTP call; zero waits indefinitely.
	Timeout time.Duration `yaml:"timeout"`
}

// ArtifactConfig selects where workbooks are stored.
type ArtifactConfig struct {
	// Backend is "file" or "db".
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// NotifyConfig enables lifecycle notifications. Empty values disable them.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// RunsConfig bounds submitted briefs.
type RunsConfig struct {
	DefaultRespondents int `yaml:"default_respondents"`
	MaxRespondents     int `yaml:"max_respondents"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:        8080,
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:panelsim.db?cache=shared&mode=rwc",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
			MaxTokens:   4096,
		},
		Artifacts: ArtifactConfig{
			Backend: "file",
			Dir:     "artifacts",
		},
		Notify: NotifyConfig{
			NATSSubject: "panelsim.runs",
		},
		Runs: RunsConfig{
			DefaultRespondents: 25,
			MaxRespondents:     500,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $PANELSIM_CONFIG when path is empty) and environment variables, in
// increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read config %s", path)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !isEmptyDocument(err) {
			return nil, eris.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.PolicyFile = getEnv("POLICY_FILE", c.PolicyFile)
	c.ShutdownTimeout = getEnvDurationMS("SHUTDOWN_TIMEOUT_MS", c.ShutdownTimeout)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.Model = getEnv("LLM_MODEL", getEnv("OPENAI_MODEL", c.LLM.Model))
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout = getEnvDurationMS("LLM_TIMEOUT_MS", c.LLM.Timeout)

	c.Artifacts.Backend = getEnv("ARTIFACT_BACKEND", c.Artifacts.Backend)
	c.Artifacts.Dir = getEnv("ARTIFACT_DIR", c.Artifacts.Dir)
	c.Artifacts.PublicBaseURL = getEnv("ARTIFACT_PUBLIC_BASE_URL", c.Artifacts.PublicBaseURL)

	c.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.NATSURL = getEnv("NATS_URL", c.Notify.NATSURL)
	c.Notify.NATSSubject = getEnv("NATS_SUBJECT", c.Notify.NATSSubject)

	c.Runs.DefaultRespondents = getEnvInt("DEFAULT_RESPONDENTS", c.Runs.DefaultRespondents)
	c.Runs.MaxRespondents = getEnvInt("MAX_RESPONDENTS", c.Runs.MaxRespondents)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		add("http_port %d out of range", c.HTTPPort)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		add("log_level %q is not a zap level", c.LogLevel)
	}
	if c.ShutdownTimeout < 0 {
		add("shutdown_timeout must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		add("database.driver %q must be sqlite3 or sqlite", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		add("database.dsn is required")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "mock":
	case "gemini":
		if c.LLM.APIKey == "" {
			add("llm.api_key is required for the gemini provider")
		}
	default:
		add("llm.provider %q must be openai, gemini or mock", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		add("llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature %v out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 1 {
		add("llm.max_tokens must be positive")
	}
	if c.LLM.Timeout < 0 {
		add("llm.timeout must not be negative")
	}

	switch c.Artifacts.Backend {
	case "file":
		if c.Artifacts.Dir == "" {
			add("artifacts.dir is required for the file backend")
		}
	case "db":
		if c.Artifacts.PublicBaseURL != "" {
			add("artifacts.public_base_url is only supported by the file backend")
		}
	default:
		add("artifacts.backend %q must be file or db", c.Artifacts.Backend)
	}

	if c.Runs.MaxRespondents < 1 || c.Runs.MaxRespondents > domain.MaxSampleSize {
		add("runs.max_respondents %d must be within [1, %d]", c.Runs.MaxRespondents, domain.MaxSampleSize)
	}
	if c.Runs.DefaultRespondents < 1 || c.Runs.DefaultRespondents > c.Runs.MaxRespondents {
		add("runs.default_respondents %d must be within [1, %d]", c.Runs.DefaultRespondents, c.Runs.MaxRespondents)
	}

	if len(problems) > 0 {
		return eris.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isEmptyDocument(err error) bool {
	return eris.Is(err, io.EOF)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationMS(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
