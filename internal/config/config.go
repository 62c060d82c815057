// Package config loads application configuration from a .env file (when
// present) and environment variables, with validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Session  SessionConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds durable-slot settings.
type DatabaseConfig struct {
	Path string
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	SnapshotKey         string
	DefaultPollDuration time.Duration
	ChatHistoryLimit    int
	TickInterval        time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string // "debug", "info", "warn", "error"
}

// Load reads configuration with precedence env > .env file > defaults.
// A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("POLLBOARD_DB_PATH", "pollboard.db"),
		},
		Session: SessionConfig{
			SnapshotKey:         getEnv("POLLBOARD_SNAPSHOT_KEY", "classroom-session"),
			DefaultPollDuration: time.Duration(getEnvInt("POLLBOARD_DEFAULT_POLL_SECONDS", 60)) * time.Second,
			ChatHistoryLimit:    getEnvInt("POLLBOARD_CHAT_HISTORY_LIMIT", 100),
			TickInterval:        time.Duration(getEnvInt("POLLBOARD_TICK_MILLIS", 1000)) * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: getEnv("POLLBOARD_LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Session.SnapshotKey == "" {
		return fmt.Errorf("snapshot key cannot be empty")
	}
	if c.Session.DefaultPollDuration < time.Second {
		return fmt.Errorf("default poll duration must be at least 1 second, got %s", c.Session.DefaultPollDuration)
	}
	if c.Session.ChatHistoryLimit < 1 {
		return fmt.Errorf("chat history limit must be positive, got %d", c.Session.ChatHistoryLimit)
	}
	if c.Session.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("tick interval must be at least 10ms, got %s", c.Session.TickInterval)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
