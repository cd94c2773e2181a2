// Package config loads process configuration from an optional YAML file
// with environment variables taking precedence.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DatabaseURL selects the Postgres gateway; empty runs in-memory.
	DatabaseURL string `yaml:"database_url"`
	// RedisURL enables the cross-process change broker.
	RedisURL string `yaml:"redis_url"`
	// RealtimeURL is the websocket push endpoint for table changes.
	RealtimeURL string `yaml:"realtime_url"`
	// GeminiAPIKey enables AI quotes; empty serves fallbacks only.
	GeminiAPIKey string `yaml:"gemini_api_key"`
	// StateDir holds the persisted store snapshot.
	StateDir string `yaml:"state_dir"`
	Port     string `yaml:"port"`
}

func defaults() Config {
	return Config{StateDir: ".", Port: "8080"}
}

// Load reads the YAML file at path when it exists, then applies env
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env
		default:
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("REALTIME_URL"); v != "" {
		c.RealtimeURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string { return ":" + c.Port }
