// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath     string
	SettingsPath     string
	LogPath          string
	LogLevel         string
	LogFormat        string
	APIBaseURL       string
	AuthToken        string
	TokenFile        string
	MetricsAddr      string
	HTTPTimeout      time.Duration
	RefreshInterval  time.Duration
	ResetMaxJitter   time.Duration
	ResetCooldown    time.Duration
	ResetVerifyDelay time.Duration
	CheckInterval    time.Duration
	ResetVerify      bool
}

const (
	defaultAPIBaseURL       = "https://www.88code.org"
	defaultHTTPTimeout      = 15 * time.Second
	defaultRefreshInterval  = 60 * time.Second
	defaultResetMaxJitter   = 15 * time.Second
	defaultResetCooldown    = 24 * time.Hour
	defaultResetVerifyDelay = 30 * time.Second
	defaultCheckInterval    = 60 * time.Second
	appDirName              = "credits-tui"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	dataDir := getDefaultDataDir()

	cfg := &Config{
		DatabasePath:     getEnvString("DATABASE_PATH", filepath.Join(dataDir, "credits.db")),
		SettingsPath:     getEnvString("SETTINGS_PATH", filepath.Join(dataDir, "settings.json")),
		LogPath:          getEnvString("LOG_PATH", filepath.Join(dataDir, "credits-tui.log")),
		LogLevel:         getEnvString("LOG_LEVEL", "info"),
		LogFormat:        getEnvString("LOG_FORMAT", "text"),
		APIBaseURL:       strings.TrimRight(getEnvString("API_BASE_URL", defaultAPIBaseURL), "/"),
		AuthToken:        os.Getenv("C88_AUTH_TOKEN"),
		TokenFile:        getEnvString("TOKEN_FILE", filepath.Join(dataDir, "token")),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", defaultHTTPTimeout),
		RefreshInterval:  getEnvDuration("REFRESH_INTERVAL", defaultRefreshInterval),
		ResetMaxJitter:   getEnvDuration("RESET_MAX_JITTER", defaultResetMaxJitter),
		ResetCooldown:    getEnvDuration("RESET_COOLDOWN", defaultResetCooldown),
		ResetVerify:      getEnvBool("RESET_VERIFY", false),
		ResetVerifyDelay: getEnvDuration("RESET_VERIFY_DELAY", defaultResetVerifyDelay),
		CheckInterval:    getEnvDuration("SCHEDULER_CHECK_INTERVAL", defaultCheckInterval),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for _, path := range []string{cfg.DatabasePath, cfg.SettingsPath, cfg.LogPath} {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// validate reports every invalid setting at once.
func (c *Config) validate() error {
	var errs []error
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL))
	}
	if c.ResetMaxJitter < 0 {
		errs = append(errs, errors.New("RESET_MAX_JITTER must not be negative"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_CHECK_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", appDirName, ".env"),
			filepath.Join(home, ".88code", ".env"),
		)
	}

	return paths
}

// getDefaultDataDir returns the directory holding the database, settings
// file and log.
func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appDirName)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a Go duration or a plain number of seconds, falling
// back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
