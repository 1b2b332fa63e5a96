package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/reflink/internal/reconcile"
)

func init() {
	rootCmd.AddCommand(publishCmd)
}

var publishCmd = &cobra.Command{
	Use:   "publish <publication-id>",
	Short: "Signal that a publication went live",
	Long: `Signal that a publication was published. If its submission is waiting
for an automatic check, the citations are checked immediately.

Example:
  reflink publish 100`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	publicationID := mustParseID(args[0], "publication")

	a := mustOpenApp()
	defer a.Close()

	res, err := a.events.HandlePublicationPublished(cmd.Context(), reconcile.PublicationPublished{PublicationID: publicationID})
	if err != nil {
		return err
	}

	if humanOutput {
		printResultHuman(res)
		return nil
	}
	return outputJSON(EventResponse{
		Event:         "publication_published",
		PublicationID: publicationID,
		Checked:       res != nil,
		Result:        res,
	})
}
