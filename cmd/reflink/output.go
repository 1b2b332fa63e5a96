package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matsen/reflink/internal/reconcile"
	"github.com/matsen/reflink/internal/sweep"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EventResponse is the response for commands that fire a workflow event.
type EventResponse struct {
	Event         string            `json:"event"`
	SubmissionID  int64             `json:"submission_id,omitempty"`
	PublicationID int64             `json:"publication_id,omitempty"`
	Checked       bool              `json:"checked"`
	Result        *reconcile.Result `json:"result,omitempty"`
}

// writeSummary prints a sweep summary as JSON or, with --human, as one line.
func writeSummary(w io.Writer, sum *sweep.Summary) {
	if !humanOutput {
		writeJSON(w, sum)
		return
	}
	fmt.Fprintf(w, "Run %s: %d publication(s) checked, %d DOI(s) stored", sum.RunID, sum.Publications, sum.Applied)
	if sum.Unavailable > 0 || sum.Failed > 0 {
		fmt.Fprintf(w, " (%d unavailable, %d failed)", sum.Unavailable, sum.Failed)
	}
	fmt.Fprintln(w)
}

// printResultHuman prints one reconcile result.
func printResultHuman(res *reconcile.Result) {
	if res == nil {
		outputHuman("No check performed\n")
		return
	}
	outputHuman("Publication %d: %s (%d checked, %d stored, %d ignored)\n",
		res.PublicationID, res.Status, res.Checked, res.Applied, res.Ignored)
}
