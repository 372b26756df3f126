// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ortho-annotator/pkg/colorutil"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// DefaultEnvFile is read by the entry points when present.
const DefaultEnvFile = ".env.ortho"

// Config holds application configuration.
type Config struct {
	// Persistence
	StoreBackend string
	StorePath    string
	RedisURL     string
	RedisKey     string

	// Initial tool settings
	DefaultColor       string
	DefaultStrokeWidth float64
	DefaultOpacity     float64

	// Debounce before a modified case is saved
	AutosaveDelay time.Duration

	LogLevel string
}

// LoadDotEnv loads variables from path into the environment. A missing file
// is not an error; existing variables are not overridden.
func LoadDotEnv(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StoreBackend:       getEnvOrDefault("ORTHO_STORE", BackendFile),
		StorePath:          getEnvOrDefault("ORTHO_STORE_PATH", defaultStorePath()),
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisKey:           getEnvOrDefault("ORTHO_REDIS_KEY", "ortho:case"),
		DefaultColor:       getEnvOrDefault("ORTHO_DEFAULT_COLOR", colorutil.DefaultAnnotation),
		DefaultStrokeWidth: getEnvAsFloatOrDefault("ORTHO_DEFAULT_STROKE_WIDTH", 2),
		DefaultOpacity:     getEnvAsFloatOrDefault("ORTHO_DEFAULT_OPACITY", 1),
		AutosaveDelay:      time.Duration(getEnvAsIntOrDefault("ORTHO_AUTOSAVE_MS", 2500)) * time.Millisecond,
		LogLevel:           getEnvOrDefault("ORTHO_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile:
		if c.StorePath == "" {
			return fmt.Errorf("ORTHO_STORE_PATH is required for the file store")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("ORTHO_STORE must be %q or %q, got %q", BackendFile, BackendRedis, c.StoreBackend)
	}

	if _, err := colorutil.Parse(c.DefaultColor); err != nil {
		return fmt.Errorf("ORTHO_DEFAULT_COLOR: %w", err)
	}
	if c.DefaultStrokeWidth <= 0 || c.DefaultStrokeWidth > 50 {
		return fmt.Errorf("ORTHO_DEFAULT_STROKE_WIDTH must be in (0, 50], got %v", c.DefaultStrokeWidth)
	}
	if c.DefaultOpacity < 0 || c.DefaultOpacity > 1 {
		return fmt.Errorf("ORTHO_DEFAULT_OPACITY must be in [0, 1], got %v", c.DefaultOpacity)
	}
	if c.AutosaveDelay < 0 {
		return fmt.Errorf("ORTHO_AUTOSAVE_MS must not be negative")
	}
	return nil
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ortho-case.json"
	}
	return filepath.Join(dir, "ortho-annotator", "case.json")
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
