// Package config handles reflink configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents configuration stored in ~/.config/reflink/config.yml.
type Config struct {
	DBPath        string        `yaml:"db_path,omitempty"`        // SQLite database path
	LockPath      string        `yaml:"lock_path,omitempty"`      // Lock file preventing overlapping runs
	Interval      time.Duration `yaml:"interval,omitempty"`       // Time between scheduled sweeps
	Timeout       time.Duration `yaml:"timeout,omitempty"`        // Crossref request timeout
	Workers       int           `yaml:"workers,omitempty"`        // Publications reconciled in parallel
	RateLimit     *float64      `yaml:"rate_limit,omitempty"`     // Crossref requests per second, 0 disables limiting
	LogMode       string        `yaml:"log_mode,omitempty"`       // dev or prod
	LogLevel      string        `yaml:"log_level,omitempty"`      // debug, info, warn, error
	ProductionURL string        `yaml:"production_url,omitempty"` // Override for the live endpoint
	SandboxURL    string        `yaml:"sandbox_url,omitempty"`    // Override for the test endpoint
}

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME and XDG_DATA_HOME.
	ConfigDir = "reflink"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// DBFile is the default database file name.
	DBFile = "reflink.db"
	// LockFile is the default lock file name.
	LockFile = "reflink.lock"

	DefaultInterval  = time.Hour
	DefaultTimeout   = 30 * time.Second
	DefaultWorkers   = 1
	DefaultRateLimit = 5.0
	DefaultLogMode   = "dev"
	DefaultLogLevel  = "info"
)

// Environment variables that override file settings.
const (
	EnvDBPath   = "REFLINK_DB_PATH"
	EnvLockPath = "REFLINK_LOCK_PATH"
	EnvWorkers  = "REFLINK_WORKERS"
	EnvLogMode  = "REFLINK_LOG_MODE"
	EnvLogLevel = "REFLINK_LOG_LEVEL"
)

// DefaultPath returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/reflink/config.yml.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// DataDir returns the directory holding the database and lock file.
// Respects XDG_DATA_HOME, defaults to ~/.local/share/reflink.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, ConfigDir)
}

// Load reads the config file at path, or DefaultPath() when path is empty.
// A missing file yields the defaults, not an error. Environment overrides
// are applied after the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(ExpandTilde(path))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLockPath); v != "" {
		c.LockPath = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v := os.Getenv(EnvLogMode); v != "" {
		c.LogMode = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(DataDir(), DBFile)
	}
	c.DBPath = ExpandTilde(c.DBPath)
	if c.LockPath == "" {
		c.LockPath = filepath.Join(filepath.Dir(c.DBPath), LockFile)
	}
	c.LockPath = ExpandTilde(c.LockPath)
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.RateLimit == nil {
		rps := DefaultRateLimit
		c.RateLimit = &rps
	}
	if c.LogMode == "" {
		c.LogMode = DefaultLogMode
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Interval < time.Minute {
		return fmt.Errorf("interval must be at least 1m, got %s", c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if rps := c.RequestsPerSecond(); rps < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", rps)
	}
	switch strings.ToLower(c.LogMode) {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("invalid log_mode: %s (valid: dev, prod)", c.LogMode)
	}
	return nil
}

// RequestsPerSecond returns the Crossref rate limit. Zero means unlimited.
func (c *Config) RequestsPerSecond() float64 {
	if c.RateLimit == nil {
		return DefaultRateLimit
	}
	return *c.RateLimit
}

// ExpandTilde expands a leading ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
