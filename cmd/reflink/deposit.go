package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/reconcile"
)

func init() {
	rootCmd.AddCommand(depositCmd)
}

var depositCmd = &cobra.Command{
	Use:   "deposit <submission-id> <response.xml>",
	Short: "Record a Crossref deposit response",
	Long: `Record the response Crossref returned for a submission's DOI deposit.

If the response carries a citations diagnostic, the submission is marked for
automatic checking and its current publication is checked immediately.

Example:
  reflink deposit 10 deposit-response.xml`,
	Args: cobra.ExactArgs(2),
	RunE: runDeposit,
}

func runDeposit(cmd *cobra.Command, args []string) error {
	submissionID := mustParseID(args[0], "submission")
	response, err := os.ReadFile(args[1])
	if err != nil {
		exitWithError(ExitDataError, "reading deposit response: %v", err)
	}

	a := mustOpenApp()
	defer a.Close()

	res, err := a.events.HandleDepositAcknowledged(cmd.Context(), reconcile.DepositAcknowledged{
		SubmissionID: submissionID,
		Response:     response,
	})
	if err != nil {
		return err
	}

	if humanOutput {
		printResultHuman(res)
		return nil
	}
	return outputJSON(EventResponse{
		Event:        "deposit_acknowledged",
		SubmissionID: submissionID,
		Checked:      res != nil,
		Result:       res,
	})
}

// mustParseID parses a positive numeric ID, exits on error.
func mustParseID(s, kind string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		exitWithError(ExitError, "invalid %s id %q", kind, s)
	}
	return id
}
