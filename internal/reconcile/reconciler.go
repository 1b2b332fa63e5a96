package reconcile

import (
	"context"
	"fmt"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/journal"
	"github.com/matsen/reflink/internal/logger"
)

// Status describes the outcome of one reconcile pass.
type Status string

const (
	StatusNoDOI       Status = "no_doi"       // Publication has no DOI to resolve against
	StatusAllResolved Status = "all_resolved" // Every citation already has a DOI
	StatusUnavailable Status = "unavailable"  // Crossref gave no data this cycle
	StatusNoMatches   Status = "no_matches"   // Crossref answered but nothing new applied
	StatusResolved    Status = "resolved"     // At least one citation DOI stored
)

// Result summarises a reconcile pass.
type Result struct {
	PublicationID int64  `json:"publication_id"`
	SubmissionID  int64  `json:"submission_id"`
	Status        Status `json:"status"`
	Checked       int    `json:"checked"` // Citations without a DOI sent for checking
	Applied       int    `json:"applied"` // Citation DOIs stored in this pass
	Ignored       int    `json:"ignored"` // Matches discarded as unknown or already resolved
}

// Reconciler stores the citation DOIs Crossref has matched for a publication.
type Reconciler struct {
	journals    JournalConfigStore
	submissions SubmissionStore
	citations   CitationStore
	resolver    Resolver
	log         *logger.Logger
}

// NewReconciler creates a Reconciler. A nil logger discards log output.
func NewReconciler(journals JournalConfigStore, submissions SubmissionStore, citations CitationStore, resolver Resolver, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		journals:    journals,
		submissions: submissions,
		citations:   citations,
		resolver:    resolver,
		log:         log,
	}
}

// Reconcile fetches Crossref's matches for the publication's DOI and stores
// them on citations that have no DOI yet. Each citation update is persisted
// on its own. The submission's pending flag is cleared only when at least one
// citation was updated; otherwise it stays set for the next sweep.
//
// An unreachable Crossref is not an error: the pass reports
// StatusUnavailable and changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, pub journal.Publication) (*Result, error) {
	res := &Result{PublicationID: pub.ID, SubmissionID: pub.SubmissionID}
	log := r.log.With("publication_id", pub.ID, "submission_id", pub.SubmissionID)

	if pub.DOI == "" {
		res.Status = StatusNoDOI
		return res, nil
	}

	citations, err := r.citations.ListCitations(ctx, pub.ID)
	if err != nil {
		return nil, fmt.Errorf("listing citations of publication %d: %w", pub.ID, err)
	}

	toCheck := make(map[string]journal.Citation)
	for _, c := range citations {
		if !c.HasDOI() {
			toCheck[c.Key()] = c
		}
	}
	res.Checked = len(toCheck)
	if len(toCheck) == 0 {
		res.Status = StatusAllResolved
		return res, nil
	}

	sub, err := r.submissions.GetSubmission(ctx, pub.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("loading submission %d: %w", pub.SubmissionID, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("submission %d of publication %d not found", pub.SubmissionID, pub.ID)
	}

	j, err := r.journals.GetJournal(ctx, sub.JournalID)
	if err != nil {
		return nil, fmt.Errorf("loading journal %d: %w", sub.JournalID, err)
	}
	if j == nil {
		return nil, fmt.Errorf("journal %d of submission %d not found", sub.JournalID, sub.ID)
	}

	matches, err := r.resolver.FetchResolvedReferences(ctx, pub.DOI, j.Config.Credentials, j.Config.TestMode)
	if err != nil {
		if crossref.IsUnavailable(err) {
			log.Warn("resolved references unavailable, will retry next sweep", "doi", pub.DOI, "error", err)
			res.Status = StatusUnavailable
			return res, nil
		}
		return nil, fmt.Errorf("fetching resolved references for %s: %w", pub.DOI, err)
	}

	for _, m := range matches {
		c, ok := toCheck[m.Key]
		if !ok || m.DOI == "" {
			res.Ignored++
			continue
		}
		// A key is applied at most once even if Crossref repeats it.
		delete(toCheck, m.Key)

		applied, err := r.citations.SetCitationDOI(ctx, c.ID, m.DOI)
		if err != nil {
			return nil, fmt.Errorf("storing DOI for citation %d: %w", c.ID, err)
		}
		if !applied {
			res.Ignored++
			continue
		}
		res.Applied++
		log.Debug("citation DOI stored", "citation_id", c.ID, "doi", m.DOI)
	}

	if res.Applied == 0 {
		res.Status = StatusNoMatches
		return res, nil
	}

	if err := r.submissions.ClearAutoCheck(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("clearing automatic check of submission %d: %w", sub.ID, err)
	}
	res.Status = StatusResolved
	log.Info("citation DOIs stored", "applied", res.Applied, "ignored", res.Ignored)
	return res, nil
}
