// Package reconcile merges Crossref resolved references into stored citations.
package reconcile

import (
	"context"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/journal"
)

// Lookups return (nil, nil) when the record does not exist.

// JournalConfigStore reads journals and their Crossref settings.
type JournalConfigStore interface {
	GetJournal(ctx context.Context, id int64) (*journal.Journal, error)
	ListJournals(ctx context.Context) ([]journal.Journal, error)
}

// SubmissionStore reads submissions and persists their reference linking state.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id int64) (*journal.Submission, error)
	// ListPendingSubmissions returns published submissions of a journal
	// whose automatic check is pending.
	ListPendingSubmissions(ctx context.Context, journalID int64) ([]journal.Submission, error)
	// SetCheckState writes the diagnostic ID and pending flag together.
	SetCheckState(ctx context.Context, id int64, state journal.CheckState) error
	// ClearAutoCheck clears the pending flag, keeping the diagnostic ID.
	ClearAutoCheck(ctx context.Context, id int64) error
}

// PublicationStore reads publications.
type PublicationStore interface {
	GetPublication(ctx context.Context, id int64) (*journal.Publication, error)
}

// CitationStore reads and updates a publication's citations.
type CitationStore interface {
	ListCitations(ctx context.Context, publicationID int64) ([]journal.Citation, error)
	// SetCitationDOI stores doi on a citation that has none yet. It reports
	// false, without error, if the citation already carries a DOI.
	SetCitationDOI(ctx context.Context, citationID int64, doi string) (bool, error)
	// ReplaceCitations swaps the publication's citation list for raw.
	ReplaceCitations(ctx context.Context, publicationID int64, raw []string) error
}

// Resolver fetches the references Crossref matched for a deposited DOI.
// *crossref.Client implements it.
type Resolver interface {
	FetchResolvedReferences(ctx context.Context, doi string, creds journal.Credentials, sandbox bool) ([]crossref.MatchedReference, error)
}

var _ Resolver = (*crossref.Client)(nil)
