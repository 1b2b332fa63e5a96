package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/storage"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.jsonl>",
	Short: "Load journals, submissions, publications and citations",
	Long: `Load records from a JSONL file into the database. Each line holds exactly
one of "journal", "submission", "publication" or "citation". Existing
records with the same ID are updated.

Example:
  reflink seed testdata/seed/valid.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	records, err := storage.ReadSeed(args[0])
	if err != nil {
		exitWithError(ExitDataError, "reading seed: %v", err)
	}

	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	counts, err := db.ImportSeed(cmd.Context(), records)
	if err != nil {
		return fmt.Errorf("importing seed: %w", err)
	}

	if humanOutput {
		outputHuman("Loaded %d journal(s), %d submission(s), %d publication(s), %d citation(s)\n",
			counts.Journals, counts.Submissions, counts.Publications, counts.Citations)
		return nil
	}
	return outputJSON(counts)
}
