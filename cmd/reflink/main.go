// Package main provides the reflink CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/config"
	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/logger"
	"github.com/matsen/reflink/internal/reconcile"
	"github.com/matsen/reflink/internal/storage"
	"github.com/matsen/reflink/internal/sweep"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// configPath overrides the default config file location
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reflink",
	Short: "Store the citation DOIs Crossref has matched",
	Long: `reflink asks Crossref which references of a deposited article it has
matched to DOIs and stores those DOIs on the article's citations.

Run it as a scheduler ('reflink run') or check selected journals and
submissions on demand ('reflink check').

All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Credentials and overrides may live in .env
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/reflink/config.yml)")
	rootCmd.Version = Version
}

// app holds the wired components shared by commands.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *storage.DB
	reconciler *reconcile.Reconciler
	events     *reconcile.Events
	sweeper    *sweep.Sweeper
}

func (a *app) Close() {
	a.log.Sync()
	a.db.Close()
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustOpenApp wires config, logging, storage and the Crossref client.
func mustOpenApp() *app {
	cfg := mustLoadConfig()
	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		exitWithError(ExitConfigError, "creating logger: %v", err)
	}
	db := mustOpenDatabase(cfg)

	client := crossref.NewClient(
		crossref.WithTimeout(cfg.Timeout),
		crossref.WithRateLimit(cfg.RequestsPerSecond()),
		crossref.WithEndpoints(cfg.ProductionURL, cfg.SandboxURL),
	)

	rec := reconcile.NewReconciler(db, db, db, client, log)
	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		reconciler: rec,
		events:     reconcile.NewEvents(db, db, db, db, rec, log),
		sweeper:    sweep.NewSweeper(db, db, db, rec, cfg.Workers, log),
	}
}
