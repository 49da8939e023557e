package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/debate-arena/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"db_path": "arena.db", "model": "gpt-4o-mini"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9820" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("APIKeyEnv = %q", cfg.APIKeyEnv)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
	if cfg.WindowRounds != 3 {
		t.Errorf("WindowRounds = %d", cfg.WindowRounds)
	}
	if cfg.TokenBudget != 6000 {
		t.Errorf("TokenBudget = %d", cfg.TokenBudget)
	}
	if cfg.ExcerptTokens != 1500 {
		t.Errorf("ExcerptTokens = %d", cfg.ExcerptTokens)
	}
	if cfg.AbortFailureRatio != 0.5 {
		t.Errorf("AbortFailureRatio = %f", cfg.AbortFailureRatio)
	}
	if cfg.AgentTimeoutSec != 120 {
		t.Errorf("AgentTimeoutSec = %d", cfg.AgentTimeoutSec)
	}
	if cfg.MaxConcurrentAgents != 5 {
		t.Errorf("MaxConcurrentAgents = %d", cfg.MaxConcurrentAgents)
	}
	if cfg.SubscriberBuffer != 256 {
		t.Errorf("SubscriberBuffer = %d", cfg.SubscriberBuffer)
	}
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `{
		"db_path": "arena.db",
		"model": "local-llm",
		"base_url": "http://localhost:8080/v1",
		"window_rounds": 5,
		"abort_failure_ratio": 0.25,
		"max_attempts": 7
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.WindowRounds != 5 {
		t.Errorf("WindowRounds = %d", cfg.WindowRounds)
	}
	if cfg.AbortFailureRatio != 0.25 {
		t.Errorf("AbortFailureRatio = %f", cfg.AbortFailureRatio)
	}
	if cfg.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"missing db_path", `{"model": "m"}`},
		{"missing model", `{"db_path": "arena.db"}`},
		{"ratio too high", `{"db_path": "arena.db", "model": "m", "abort_failure_ratio": 1.0}`},
		{"negative ratio", `{"db_path": "arena.db", "model": "m", "abort_failure_ratio": -0.1}`},
		{"negative window", `{"db_path": "arena.db", "model": "m", "window_rounds": -1}`},
		{"negative budget", `{"db_path": "arena.db", "model": "m", "token_budget": -100}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeConfig(t, c.json)
			_, err := Load(path)
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
