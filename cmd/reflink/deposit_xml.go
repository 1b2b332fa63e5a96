package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/journal"
	"github.com/matsen/reflink/internal/storage"
)

var (
	depositXMLJournal int64
	depositXMLOutput  string
)

func init() {
	rootCmd.AddCommand(depositXMLCmd)
	depositXMLCmd.Flags().Int64VarP(&depositXMLJournal, "journal", "j", 0, "Journal the articles belong to (required)")
	depositXMLCmd.Flags().StringVarP(&depositXMLOutput, "output", "o", "", "Write to file instead of stdout")
	depositXMLCmd.MarkFlagRequired("journal")
}

var depositXMLCmd = &cobra.Command{
	Use:   "deposit-xml <input.xml>",
	Short: "Add citation lists to a Crossref deposit",
	Long: `Add a citation_list to every journal_article of a Crossref deposit file.

Each article is matched to a publication by its DOI; its stored citations are
written with their DOI when known and their raw text otherwise.

Example:
  reflink deposit-xml --journal 1 deposit.xml -o deposit-with-refs.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runDepositXML,
}

func runDepositXML(cmd *cobra.Command, args []string) error {
	input, err := os.ReadFile(args[0])
	if err != nil {
		exitWithError(ExitDataError, "reading deposit: %v", err)
	}

	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	out, err := crossref.AddCitationList(input, journalCitationLookup(cmd.Context(), db, depositXMLJournal))
	if err != nil {
		return err
	}

	if depositXMLOutput == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(depositXMLOutput, out, 0644)
}

// journalCitationLookup finds citations by the article DOI within a journal.
func journalCitationLookup(ctx context.Context, db *storage.DB, journalID int64) crossref.CitationLookup {
	return func(doi string) ([]journal.Citation, error) {
		pub, err := db.FindPublicationByDOI(ctx, journalID, crossref.BareDOI(doi))
		if err != nil || pub == nil {
			return nil, err
		}
		return db.ListCitations(ctx, pub.ID)
	}
}
