package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/sweep"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check all | context <id>... | submission <id>...",
	Short: "Check citation DOIs now",
	Long: `Ask Crossref for matched citation DOIs right away.

  all                      every pending published submission of every eligible journal
  context <id>...          pending published submissions of the given journals
  submission <id>...       the current publication of the given submissions

Unknown IDs are reported and skipped.

Examples:
  reflink check all
  reflink check context 1 2
  reflink check submission 10 --human`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(checkMain(cmd.Context(), args))
	},
}

// checkSweeper runs the selected part of a sweep.
type checkSweeper interface {
	RunAll(ctx context.Context) (*sweep.Summary, error)
	RunJournals(ctx context.Context, ids []int64) (*sweep.Summary, error)
	RunSubmissions(ctx context.Context, ids []int64) (*sweep.Summary, error)
}

const (
	selectorAll        = "all"
	selectorContext    = "context"
	selectorSubmission = "submission"
)

func checkMain(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printCheckUsage(os.Stderr)
		return ExitError
	}
	switch args[0] {
	case selectorAll, selectorContext, selectorSubmission:
	default:
		printCheckUsage(os.Stdout)
		return ExitSuccess
	}

	a := mustOpenApp()
	defer a.Close()

	release, err := sweep.AcquireLock(a.cfg.LockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer release()

	return runCheck(ctx, a.sweeper, args, os.Stdout, os.Stderr)
}

// runCheck dispatches a selector to the sweeper and reports unknown IDs on
// stderr as it goes. args[0] must be a known selector.
func runCheck(ctx context.Context, s checkSweeper, args []string, stdout, stderr io.Writer) int {
	selector, raw := args[0], args[1:]

	var (
		sum *sweep.Summary
		err error
	)
	switch selector {
	case selectorAll:
		sum, err = s.RunAll(ctx)
	case selectorContext, selectorSubmission:
		ids, valid := parseIDs(raw)
		if selector == selectorContext {
			sum, err = s.RunJournals(ctx, ids)
		} else {
			sum, err = s.RunSubmissions(ctx, ids)
		}
		if err == nil {
			reportUnknown(stderr, raw, valid, sum.Unknown, selector)
		}
	default:
		printCheckUsage(stdout)
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}

	writeSummary(stdout, sum)
	return ExitSuccess
}

// parseIDs returns the numeric IDs in raw and which raw entries parsed.
func parseIDs(raw []string) ([]int64, []bool) {
	ids := make([]int64, 0, len(raw))
	valid := make([]bool, len(raw))
	for i, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
		valid[i] = true
	}
	return ids, valid
}

// reportUnknown prints a skip line for each raw ID that was not a number or
// that the store did not know, in command line order.
func reportUnknown(w io.Writer, raw []string, valid []bool, unknown []int64, kind string) {
	missing := make(map[int64]bool, len(unknown))
	for _, id := range unknown {
		missing[id] = true
	}
	for i, r := range raw {
		if valid[i] {
			id, _ := strconv.ParseInt(r, 10, 64)
			if !missing[id] {
				continue
			}
		}
		fmt.Fprintf(w, "Error: Skipping %s. Unknown %s.\n", r, kind)
	}
}

func printCheckUsage(w io.Writer) {
	fmt.Fprint(w, `Check citation DOIs found by Crossref
Usage:
  reflink check all
  reflink check context context_id [...]
  reflink check submission submission_id [...]
`)
}
