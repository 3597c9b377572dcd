// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is the full service configuration. Defaults are overridden by
// .env and the process environment.
type Config struct {
	Port      int  `env:"PORT"`
	DebugMode bool `env:"DEBUG_MODE"`

	// Provider selection: "openai" (streaming Responses endpoint) or
	// "gemini" (text-only fallback).
	Provider      string `env:"CHAT_PROVIDER"`
	Model         string `env:"CHAT_MODEL"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	// Optional directory overriding the embedded instruction templates.
	PromptDir string `env:"PROMPT_DIR"`

	StoreType string `env:"STORE_TYPE"` // sqlite|postgres
	StoreDSN  string `env:"STORE_DSN"`

	// Secret for pseudonymous student hashing; must be >= 32 bytes.
	HashSecret string `env:"HASH_SECRET"`

	RetentionDays     int    `env:"RETENTION_DAYS"` // 0 disables the sweep
	RetentionSchedule string `env:"RETENTION_SCHEDULE"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:              8000,
		Provider:          "openai",
		Model:             "gpt-4o-mini",
		StoreType:         "sqlite",
		StoreDSN:          "interactions.sqlite",
		RetentionDays:     0,
		RetentionSchedule: "0 3 * * *",
	}
}

// Load reads .env if present, then the environment, on top of defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// RetentionMaxAge converts the configured retention window to a
// duration; zero means retention is disabled.
func (c *Config) RetentionMaxAge() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
