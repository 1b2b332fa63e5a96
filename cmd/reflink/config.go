package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after applying the config file, environment
overrides and defaults.

Config file: $XDG_CONFIG_HOME/reflink/config.yml (or --config)
Environment: REFLINK_DB_PATH, REFLINK_LOCK_PATH, REFLINK_WORKERS,
             REFLINK_LOG_MODE, REFLINK_LOG_LEVEL`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	ConfigPath    string  `json:"config_path"`
	DBPath        string  `json:"db_path"`
	LockPath      string  `json:"lock_path"`
	Interval      string  `json:"interval"`
	Timeout       string  `json:"timeout"`
	Workers       int     `json:"workers"`
	RateLimit     float64 `json:"rate_limit"`
	LogMode       string  `json:"log_mode"`
	LogLevel      string  `json:"log_level"`
	ProductionURL string  `json:"production_url,omitempty"`
	SandboxURL    string  `json:"sandbox_url,omitempty"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if humanOutput {
		outputHuman("config:     %s\n", path)
		outputHuman("db:         %s\n", cfg.DBPath)
		outputHuman("lock:       %s\n", cfg.LockPath)
		outputHuman("interval:   %s\n", cfg.Interval)
		outputHuman("timeout:    %s\n", cfg.Timeout)
		outputHuman("workers:    %d\n", cfg.Workers)
		outputHuman("rate limit: %g/s\n", cfg.RequestsPerSecond())
		outputHuman("log:        %s (%s)\n", cfg.LogMode, cfg.LogLevel)
		if cfg.ProductionURL != "" {
			outputHuman("production: %s\n", cfg.ProductionURL)
		}
		if cfg.SandboxURL != "" {
			outputHuman("sandbox:    %s\n", cfg.SandboxURL)
		}
		return nil
	}
	return outputJSON(ConfigResponse{
		ConfigPath:    path,
		DBPath:        cfg.DBPath,
		LockPath:      cfg.LockPath,
		Interval:      cfg.Interval.String(),
		Timeout:       cfg.Timeout.String(),
		Workers:       cfg.Workers,
		RateLimit:     cfg.RequestsPerSecond(),
		LogMode:       cfg.LogMode,
		LogLevel:      cfg.LogLevel,
		ProductionURL: cfg.ProductionURL,
		SandboxURL:    cfg.SandboxURL,
	})
}
