package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/reconcile"
)

func init() {
	rootCmd.AddCommand(citationsCmd)
	citationsCmd.AddCommand(citationsImportCmd)
	citationsCmd.AddCommand(citationsListCmd)
}

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Manage a publication's citations",
}

var citationsImportCmd = &cobra.Command{
	Use:   "import <publication-id> <file>",
	Short: "Replace a publication's citations",
	Long: `Replace a publication's citations with the lines of a text file, one raw
citation per non-empty line. Resets the submission's Crossref check state.

Example:
  reflink citations import 100 references.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runCitationsImport,
}

var citationsListCmd = &cobra.Command{
	Use:   "list <publication-id>",
	Short: "List a publication's citations and their DOIs",
	Args:  cobra.ExactArgs(1),
	RunE:  runCitationsList,
}

// CitationsImportResult is the response for citations import.
type CitationsImportResult struct {
	PublicationID int64 `json:"publication_id"`
	Imported      int   `json:"imported"`
}

// CitationView is one citation in list output.
type CitationView struct {
	ID          int64  `json:"id"`
	Seq         int    `json:"seq"`
	RawCitation string `json:"raw_citation"`
	DOI         string `json:"doi,omitempty"`
	URL         string `json:"url,omitempty"`
}

func runCitationsImport(cmd *cobra.Command, args []string) error {
	publicationID := mustParseID(args[0], "publication")
	raw, err := readCitationLines(args[1])
	if err != nil {
		exitWithError(ExitDataError, "reading citations: %v", err)
	}

	a := mustOpenApp()
	defer a.Close()

	if err := a.events.HandleCitationsReimported(cmd.Context(), reconcile.CitationsReimported{
		PublicationID: publicationID,
		Citations:     raw,
	}); err != nil {
		return err
	}

	if humanOutput {
		outputHuman("Imported %d citation(s) for publication %d\n", len(raw), publicationID)
		return nil
	}
	return outputJSON(CitationsImportResult{PublicationID: publicationID, Imported: len(raw)})
}

func runCitationsList(cmd *cobra.Command, args []string) error {
	publicationID := mustParseID(args[0], "publication")

	a := mustOpenApp()
	defer a.Close()

	pub, err := a.db.GetPublication(cmd.Context(), publicationID)
	if err != nil {
		return err
	}
	if pub == nil {
		a.Close()
		exitWithError(ExitDataError, "publication %d not found", publicationID)
	}

	citations, err := a.db.ListCitations(cmd.Context(), publicationID)
	if err != nil {
		return err
	}

	views := make([]CitationView, 0, len(citations))
	for _, c := range citations {
		views = append(views, CitationView{
			ID:          c.ID,
			Seq:         c.Seq,
			RawCitation: c.RawCitation,
			DOI:         c.DOI,
			URL:         crossref.DOIURL(c.DOI),
		})
	}

	if !humanOutput {
		return outputJSON(views)
	}
	for _, v := range views {
		outputHuman("%d. %s\n", v.Seq+1, v.RawCitation)
		if v.URL != "" {
			outputHuman("   %s\n", v.URL)
		}
	}
	if len(views) == 0 {
		outputHuman("No citations\n")
	}
	return nil
}

// readCitationLines returns the trimmed non-empty lines of path.
func readCitationLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
