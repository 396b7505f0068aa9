package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all relay server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr        string   `json:"listen_addr"`
	DBPath            string   `json:"db_path"`
	LogLevel          string   `json:"log_level"`
	GatewayURL        string   `json:"gateway_url"`
	GatewayAPIKey     string   `json:"gateway_api_key"`
	ActionTimeout     string   `json:"action_timeout"`      // Go duration
	MaxConcurrentRuns int64    `json:"max_concurrent_runs"` // 0 = unlimited
	CORSOrigins       []string `json:"cors_origins"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:        ":4200",
		DBPath:            filepath.Join(relayDir(), "relay.db"),
		LogLevel:          "info",
		GatewayURL:        "http://localhost:4000",
		ActionTimeout:     "30s",
		MaxConcurrentRuns: 16,
	}
}

func relayDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relay"
	}
	return filepath.Join(home, ".relay")
}

func settingsPath() string {
	return filepath.Join(relayDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("RELAY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("RELAY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RELAY_GATEWAY_URL"); v != "" {
		cfg.GatewayURL = v
	}
	if v := os.Getenv("RELAY_GATEWAY_API_KEY"); v != "" {
		cfg.GatewayAPIKey = v
	}
	if v := os.Getenv("RELAY_ACTION_TIMEOUT"); v != "" {
		cfg.ActionTimeout = v
	}
	if v := os.Getenv("RELAY_MAX_CONCURRENT_RUNS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxConcurrentRuns = n
		}
	}

	return cfg
}

func (c Config) actionTimeout() time.Duration {
	d, err := time.ParseDuration(c.ActionTimeout)
	if err != nil || d <= 0 {
		return 0 // runner falls back to its default
	}
	return d
}
