// Package config loads process configuration from command-line flags, environment
// variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Storage    StorageConfig
	HTTP       HTTPConfig
	Downloader DownloaderConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig locates everything the engine persists.
type StorageConfig struct {
	// DataDir holds the database and the content store tree.
	DataDir string
	// ConfigDir holds settings, credentials and cookie jars.
	ConfigDir string
	// WatchContentStore enables the filesystem consistency watcher.
	WatchContentStore bool
}

// HTTPConfig tunes the shared fetcher.
type HTTPConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
	PerHost        int
}

// DownloaderConfig tunes the downloader worker.
type DownloaderConfig struct {
	PageDelay time.Duration
}

// DatabasePath returns the sqlite file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "mangashelf.db")
}

// SettingsPath returns the settings store directory.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Storage.ConfigDir, "settings")
}

// CookiesPath returns the directory holding per-session cookie jars.
func (c *Config) CookiesPath() string {
	return filepath.Join(c.Storage.ConfigDir, "cookies")
}

// Overrides carries values set explicitly on the command line.
// Empty strings mean "not set".
type Overrides struct {
	EnvFile        string
	Environment    string
	LogLevel       string
	DataDir        string
	ConfigDir      string
	ConnectTimeout string
	ReadTimeout    string
	MaxAttempts    string
	PerHost        string
	DownloadDelay  string
	Watch          string
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv.Load never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		App:    AppConfig{Environment: getConfigValue(o.Environment, "ENV", "development")},
		Logger: LoggerConfig{Level: getConfigValue(o.LogLevel, "LOG_LEVEL", "info")},
		Storage: StorageConfig{
			DataDir:           getConfigValue(o.DataDir, "DATA_DIR", ""),
			ConfigDir:         getConfigValue(o.ConfigDir, "CONFIG_DIR", ""),
			WatchContentStore: getBoolConfigValue(o.Watch, "WATCH_CONTENT_STORE", true),
		},
		HTTP: HTTPConfig{
			MaxAttempts: getIntConfigValue(o.MaxAttempts, "HTTP_MAX_ATTEMPTS", 5),
			PerHost:     getIntConfigValue(o.PerHost, "HTTP_PER_HOST", 4),
		},
	}

	var err error
	if cfg.HTTP.ConnectTimeout, err = getDurationConfigValue(o.ConnectTimeout, "HTTP_CONNECT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.ReadTimeout, err = getDurationConfigValue(o.ReadTimeout, "HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Downloader.PageDelay, err = getDurationConfigValue(o.DownloadDelay, "DOWNLOAD_DELAY", time.Second); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataDir == "" || c.Storage.ConfigDir == "" {
		return errors.New("data and config directories cannot be empty after expansion")
	}
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("HTTP_MAX_ATTEMPTS must be at least 1, got %d", c.HTTP.MaxAttempts)
	}
	if c.HTTP.PerHost < 1 {
		return fmt.Errorf("HTTP_PER_HOST must be at least 1, got %d", c.HTTP.PerHost)
	}
	if c.Downloader.PageDelay < 0 {
		return errors.New("DOWNLOAD_DELAY cannot be negative")
	}
	return nil
}

func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataDefault := filepath.Join(home, ".local", "share", "mangashelf")
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dataDefault = filepath.Join(xdg, "mangashelf")
	}
	configDefault := filepath.Join(home, ".config", "mangashelf")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDefault = filepath.Join(xdg, "mangashelf")
	}

	if c.Storage.DataDir, err = expandPath(c.Storage.DataDir, dataDefault); err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}
	if c.Storage.ConfigDir, err = expandPath(c.Storage.ConfigDir, configDefault); err != nil {
		return fmt.Errorf("invalid config dir: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is used as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	s := strings.ToLower(getConfigValue(flagValue, envKey, ""))
	if s == "" {
		return defaultValue
	}
	return s == "true" || s == "1" || s == "yes"
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return d, nil
}
