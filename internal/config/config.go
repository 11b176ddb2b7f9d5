package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/junyaoz/solace/backend/internal/fault"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server  ServerConfig
	Model   ModelConfig
	Session SessionConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Addr normalizes PORT into a listen address. Both "8080" and ":8080" (or a
// full host:port) are accepted.
func (c ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ModelConfig describes the GPT-compatible provider and generation defaults.
type ModelConfig struct {
	BaseURL        string        `env:"GPT_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey         string        `env:"GPT_API_KEY"`
	Name           string        `env:"GPT_MODEL" envDefault:"gpt-4o-mini"`
	Temperature    float32       `env:"GPT_TEMPERATURE" envDefault:"0.8"`
	TopP           float32       `env:"GPT_TOP_P" envDefault:"0.9"`
	MaxTokens      int           `env:"GPT_MAX_TOKENS" envDefault:"500"`
	Stream         bool          `env:"GPT_STREAM" envDefault:"true"`
	RequestTimeout time.Duration `env:"GPT_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxAttempts    int           `env:"GPT_MAX_ATTEMPTS" envDefault:"3"`

	// SystemPrompt overrides the built-in counselor prompt; SystemPromptPath
	// loads the override from a file instead.
	SystemPrompt     string `env:"SYSTEM_PROMPT"`
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`
}

// SessionConfig describes session lifecycle knobs.
type SessionConfig struct {
	Secret string `env:"SESSION_SECRET"`

	// HistoryLimit bounds how many non-system turns are sent upstream per
	// request. TranscriptCap bounds how many are kept in memory per session.
	HistoryLimit  int           `env:"HISTORY_LIMIT" envDefault:"40"`
	TranscriptCap int           `env:"TRANSCRIPT_CAP" envDefault:"200"`
	IdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
}

// Load parses configuration from the environment and validates it. A missing
// required field fails startup rather than a conversation later.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fault.New(fault.Configuration, "parse environment: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := cfg.resolveSystemPrompt(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.Model.APIKey) == "" {
		missing = append(missing, "GPT_API_KEY")
	}
	if strings.TrimSpace(c.Model.BaseURL) == "" {
		missing = append(missing, "GPT_BASE_URL")
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		missing = append(missing, "GPT_MODEL")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return fault.New(fault.Configuration, "missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Model.MaxAttempts < 1 {
		return fault.New(fault.Configuration, "GPT_MAX_ATTEMPTS must be at least 1, got %d", c.Model.MaxAttempts)
	}
	if c.Model.RequestTimeout <= 0 {
		return fault.New(fault.Configuration, "GPT_REQUEST_TIMEOUT must be positive, got %s", c.Model.RequestTimeout)
	}
	if c.Session.HistoryLimit < 0 {
		return fault.New(fault.Configuration, "HISTORY_LIMIT must not be negative, got %d", c.Session.HistoryLimit)
	}
	return nil
}

func (c *Config) resolveSystemPrompt() error {
	if c.Model.SystemPromptPath == "" {
		return nil
	}
	if c.Model.SystemPrompt != "" {
		return fault.New(fault.Configuration, "SYSTEM_PROMPT and SYSTEM_PROMPT_PATH are mutually exclusive")
	}
	data, err := os.ReadFile(c.Model.SystemPromptPath)
	if err != nil {
		return fault.New(fault.Configuration, "read system prompt file: %v", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return fault.New(fault.Configuration, "system prompt file %s is empty", c.Model.SystemPromptPath)
	}
	c.Model.SystemPrompt = prompt
	return nil
}

// String renders a redacted summary for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s model=%s base_url=%s timeout=%s attempts=%d stream=%t history_limit=%d",
		c.Server.Addr(), c.Model.Name, c.Model.BaseURL, c.Model.RequestTimeout,
		c.Model.MaxAttempts, c.Model.Stream, c.Session.HistoryLimit)
}
