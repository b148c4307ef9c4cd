package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds the CLI-level configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(fusesellDir(), "fusesell.db"),
		LogLevel: "info",
	}
}

func fusesellDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fusesell"
	}
	return filepath.Join(home, ".fusesell")
}

func settingsPath() string {
	return filepath.Join(fusesellDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FUSESELL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FUSESELL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Layer 4: flags override everything.
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	return cfg
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
