package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/sweep"
)

var (
	runInterval time.Duration
	runOnce     bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "Time between sweeps (default from config, 1h)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single sweep and exit")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep pending submissions on a schedule",
	Long: `Sweep every eligible journal for published submissions waiting on
Crossref, then repeat on an interval until interrupted.

Runs never overlap: a sweep that finds another run holding the lock is
skipped.

Examples:
  reflink run
  reflink run --interval 30m
  reflink run --once --human`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	interval := a.cfg.Interval
	if runInterval > 0 {
		interval = runInterval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := sweep.NewScheduler(a.sweeper, a.cfg.LockPath, interval, a.log)

	if !runOnce {
		return sched.Run(ctx)
	}

	sum, err := sched.RunOnce(ctx)
	if errors.Is(err, sweep.ErrRunInProgress) {
		a.Close()
		exitWithError(ExitError, "%v", err)
	}
	if err != nil {
		return err
	}
	writeSummary(os.Stdout, sum)
	return nil
}
