package reconcile

import (
	"context"
	"fmt"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/journal"
	"github.com/matsen/reflink/internal/logger"
)

// DepositAcknowledged is raised when Crossref answers a DOI deposit.
type DepositAcknowledged struct {
	SubmissionID int64
	Response     []byte // Crossref deposit response XML
}

// PublicationPublished is raised when a publication goes live.
type PublicationPublished struct {
	PublicationID int64
}

// CitationsReimported is raised when a publication's reference list is replaced.
type CitationsReimported struct {
	PublicationID int64
	Citations     []string // Raw citation texts, in order
}

// Events handles the workflow events that drive reference linking.
type Events struct {
	journals     JournalConfigStore
	submissions  SubmissionStore
	publications PublicationStore
	citations    CitationStore
	reconciler   *Reconciler
	log          *logger.Logger
}

// NewEvents creates the event handlers. A nil logger discards log output.
func NewEvents(journals JournalConfigStore, submissions SubmissionStore, publications PublicationStore, citations CitationStore, reconciler *Reconciler, log *logger.Logger) *Events {
	if log == nil {
		log = logger.Nop()
	}
	return &Events{
		journals:     journals,
		submissions:  submissions,
		publications: publications,
		citations:    citations,
		reconciler:   reconciler,
		log:          log,
	}
}

// HandleDepositAcknowledged records the citations diagnostic ID from a deposit
// response and marks the submission for automatic checking, then checks the
// current publication right away. A response without a diagnostic is ignored
// and a nil Result is returned.
func (e *Events) HandleDepositAcknowledged(ctx context.Context, ev DepositAcknowledged) (*Result, error) {
	id, found, err := crossref.ParseDiagnosticID(ev.Response)
	if err != nil {
		return nil, fmt.Errorf("submission %d: %w", ev.SubmissionID, err)
	}
	if !found {
		return nil, nil
	}

	sub, err := e.requireSubmission(ctx, ev.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := e.submissions.SetCheckState(ctx, sub.ID, journal.CheckState{DiagnosticID: id, AutoCheckPending: true}); err != nil {
		return nil, fmt.Errorf("marking submission %d for checking: %w", sub.ID, err)
	}
	e.log.Info("deposit acknowledged with citations diagnostic", "submission_id", sub.ID, "diagnostic_id", id)

	return e.reconcileCurrent(ctx, sub)
}

// HandlePublicationPublished checks a newly published publication if its
// submission is waiting for an automatic check.
func (e *Events) HandlePublicationPublished(ctx context.Context, ev PublicationPublished) (*Result, error) {
	pub, err := e.requirePublication(ctx, ev.PublicationID)
	if err != nil {
		return nil, err
	}
	sub, err := e.requireSubmission(ctx, pub.SubmissionID)
	if err != nil {
		return nil, err
	}
	if !sub.AutoCheckPending || sub.CurrentPublicationID != pub.ID {
		return nil, nil
	}
	return e.reconcileCurrent(ctx, sub)
}

// HandleCitationsReimported resets the submission's reference linking state,
// whatever it was, and replaces the publication's citations. The reset comes
// first so new citations are never left behind a pending check.
func (e *Events) HandleCitationsReimported(ctx context.Context, ev CitationsReimported) error {
	pub, err := e.requirePublication(ctx, ev.PublicationID)
	if err != nil {
		return err
	}
	if err := e.submissions.SetCheckState(ctx, pub.SubmissionID, journal.CheckState{}); err != nil {
		return fmt.Errorf("resetting submission %d: %w", pub.SubmissionID, err)
	}
	if err := e.citations.ReplaceCitations(ctx, pub.ID, ev.Citations); err != nil {
		return fmt.Errorf("replacing citations of publication %d: %w", pub.ID, err)
	}
	e.log.Info("citations reimported", "publication_id", pub.ID, "count", len(ev.Citations))
	return nil
}

// reconcileCurrent reconciles the submission's current publication when its
// journal is eligible. Ineligible journals yield a nil Result.
func (e *Events) reconcileCurrent(ctx context.Context, sub *journal.Submission) (*Result, error) {
	j, err := e.journals.GetJournal(ctx, sub.JournalID)
	if err != nil {
		return nil, fmt.Errorf("loading journal %d: %w", sub.JournalID, err)
	}
	if j == nil || !journal.IsEligible(&j.Config) {
		e.log.Debug("journal not eligible for reference checking", "journal_id", sub.JournalID)
		return nil, nil
	}

	pub, err := e.requirePublication(ctx, sub.CurrentPublicationID)
	if err != nil {
		return nil, err
	}
	return e.reconciler.Reconcile(ctx, *pub)
}

func (e *Events) requireSubmission(ctx context.Context, id int64) (*journal.Submission, error) {
	sub, err := e.submissions.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading submission %d: %w", id, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("submission %d not found", id)
	}
	return sub, nil
}

func (e *Events) requirePublication(ctx context.Context, id int64) (*journal.Publication, error) {
	pub, err := e.publications.GetPublication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading publication %d: %w", id, err)
	}
	if pub == nil {
		return nil, fmt.Errorf("publication %d not found", id)
	}
	return pub, nil
}
