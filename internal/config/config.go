// Package config loads the engine's runtime configuration from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/debate-arena/internal/domain"
)

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath     string `json:"db_path"`
	ListenAddr string `json:"listen_addr"`

	// Inference backend (any OpenAI-compatible chat completion service).
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env"`

	// Retry policy for the inference gateway.
	MaxAttempts int `json:"max_attempts"`
	RetryBaseMs int `json:"retry_base_ms"`
	RetryMaxMs  int `json:"retry_max_ms"`

	// Debate orchestration.
	WindowRounds        int     `json:"window_rounds"`
	TokenBudget         int     `json:"token_budget"`
	ExcerptTokens       int     `json:"excerpt_tokens"`
	AbortFailureRatio   float64 `json:"abort_failure_ratio"`
	AgentTimeoutSec     int     `json:"agent_timeout_sec"`
	MaxConcurrentAgents int     `json:"max_concurrent_agents"`

	// Event broadcasting.
	SubscriberBuffer int `json:"subscriber_buffer"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9820"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseMs == 0 {
		c.RetryBaseMs = 250
	}
	if c.RetryMaxMs == 0 {
		c.RetryMaxMs = 5000
	}
	if c.WindowRounds == 0 {
		c.WindowRounds = 3
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = 6000
	}
	if c.ExcerptTokens == 0 {
		c.ExcerptTokens = 1500
	}
	if c.AbortFailureRatio == 0 {
		c.AbortFailureRatio = 0.5
	}
	if c.AgentTimeoutSec == 0 {
		c.AgentTimeoutSec = 120
	}
	if c.MaxConcurrentAgents == 0 {
		c.MaxConcurrentAgents = 5
	}
	if c.SubscriberBuffer == 0 {
		c.SubscriberBuffer = 256
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.Model == "" {
		problems = append(problems, "model is required")
	}
	if c.AbortFailureRatio < 0 || c.AbortFailureRatio >= 1 {
		problems = append(problems, "abort_failure_ratio must be in [0, 1)")
	}
	if c.WindowRounds < 1 {
		problems = append(problems, "window_rounds must be at least 1")
	}
	if c.TokenBudget < 0 || c.ExcerptTokens < 0 {
		problems = append(problems, "token budgets must be non-negative")
	}

	if len(problems) > 0 {
		return &domain.ArenaError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
