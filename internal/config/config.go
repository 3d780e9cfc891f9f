// Package config loads client configuration.
//
// PRECEDENCE (lowest to highest):
//  1. Defaults
//  2. YAML file (optional; path from the -config flag or STUDYDECK_CONFIG)
//  3. Environment variables, including any loaded from a local .env file
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL   = "http://localhost:8001"
	DefaultDBPath   = "data/studydeck.db"
	DefaultTimeout  = 15 * time.Second
	DefaultLogLevel = "info"
	DefaultDevPort  = 8001
)

// Config holds everything the CLI and the development server need.
type Config struct {
	APIURL     string        `yaml:"api_url"`
	DBPath     string        `yaml:"db_path"`
	Timeout    time.Duration `yaml:"timeout"`
	LogLevel   string        `yaml:"log_level"`
	PreviewDir string        `yaml:"preview_dir"`

	// Development remote service settings (cmd/devserver).
	DevPort   int    `yaml:"dev_port"`
	DevSecret string `yaml:"dev_secret"`
}

// Default returns a Config with every field set to its default.
func Default() Config {
	return Config{
		APIURL:     DefaultAPIURL,
		DBPath:     DefaultDBPath,
		Timeout:    DefaultTimeout,
		LogLevel:   DefaultLogLevel,
		PreviewDir: os.TempDir(),
		DevPort:    DefaultDevPort,
	}
}

// Load builds the configuration. path may be empty, in which case only defaults
// and the environment are used. A missing .env file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found

	cfg := Default()

	if path == "" {
		path = os.Getenv("STUDYDECK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.APIURL = getEnv("STUDYDECK_API_URL", cfg.APIURL)
	cfg.DBPath = getEnv("STUDYDECK_DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("STUDYDECK_LOG_LEVEL", cfg.LogLevel)
	cfg.PreviewDir = getEnv("STUDYDECK_PREVIEW_DIR", cfg.PreviewDir)
	cfg.DevSecret = getEnv("STUDYDECK_DEV_SECRET", cfg.DevSecret)

	if v, ok := os.LookupEnv("STUDYDECK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid STUDYDECK_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = d
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v) // Atoi = ASCII to Integer
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.DevPort = port
	}
	return nil
}

// Validate checks the fields that would otherwise fail late, on the first request.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("config: api_url must be an absolute URL, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be > 0")
	}
	if c.DBPath == "" {
		return errors.New("config: db_path is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", name)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
