package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client settings. Consumers either construct a Config in Go
// code, or place a dashboard.yaml next to the binary and call Load().
// Environment variables override file values.
type Config struct {
	// APIBaseURL is the marketplace REST endpoint (e.g. "https://api.renomarket.org").
	APIBaseURL string `yaml:"api_base_url"`

	// RealtimeURL is the websocket endpoint for the messaging channel.
	RealtimeURL string `yaml:"realtime_url"`

	// StatePath is the sqlite file holding client-persisted state
	// (token, cached user, redirect path and friends).
	StatePath string `yaml:"state_path"`

	// RequestTimeout bounds a single API call. Zero means 15s.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RatePerSec / RateBurst throttle outgoing API calls. Zero disables.
	RatePerSec float64 `yaml:"rate_per_sec"`
	RateBurst  int     `yaml:"rate_burst"`
}

const (
	envAPIBaseURL  = "RENOMARKET_API_URL"
	envRealtimeURL = "RENOMARKET_REALTIME_URL"
	envStatePath   = "RENOMARKET_STATE_PATH"
)

// Default returns a Config with development defaults.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:5000",
		RealtimeURL:    "ws://localhost:5000/socket",
		StatePath:      "dashboard-state.db",
		RequestTimeout: 15 * time.Second,
	}
}

// Load reads the YAML file at path when it exists, then applies env overrides.
// A missing file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env overrides
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envAPIBaseURL)); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envRealtimeURL)); v != "" {
		cfg.RealtimeURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envStatePath)); v != "" {
		cfg.StatePath = v
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if strings.TrimSpace(c.StatePath) == "" {
		return fmt.Errorf("state_path is required")
	}
	return nil
}
