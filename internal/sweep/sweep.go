// Package sweep finds publications whose citation DOIs are waiting on
// Crossref and reconciles them, either on a schedule or for a selection of
// journals or submissions.
package sweep

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/reflink/internal/journal"
	"github.com/matsen/reflink/internal/logger"
	"github.com/matsen/reflink/internal/reconcile"
)

// Summary reports what one sweep did.
type Summary struct {
	RunID        string  `json:"run_id"`
	Journals     int     `json:"journals"`     // Eligible journals visited
	Skipped      int     `json:"skipped"`      // Ineligible journals or submissions passed over
	Publications int     `json:"publications"` // Publications reconciled
	Resolved     int     `json:"resolved"`     // Publications with at least one DOI stored
	Applied      int     `json:"applied"`      // Citation DOIs stored
	Unavailable  int     `json:"unavailable"`  // Publications Crossref had no answer for
	Failed       int     `json:"failed"`       // Publications whose reconcile returned an error
	Unknown      []int64 `json:"unknown,omitempty"`
}

// Sweeper walks journals and submissions and hands each current publication
// to a Reconciler.
type Sweeper struct {
	journals     reconcile.JournalConfigStore
	submissions  reconcile.SubmissionStore
	publications reconcile.PublicationStore
	reconciler   *reconcile.Reconciler
	workers      int
	log          *logger.Logger
}

// NewSweeper creates a Sweeper that reconciles up to workers publications at
// once. workers below 1 is treated as 1.
func NewSweeper(journals reconcile.JournalConfigStore, submissions reconcile.SubmissionStore, publications reconcile.PublicationStore, reconciler *reconcile.Reconciler, workers int, log *logger.Logger) *Sweeper {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		journals:     journals,
		submissions:  submissions,
		publications: publications,
		reconciler:   reconciler,
		workers:      workers,
		log:          log,
	}
}

// task is one submission whose current publication should be reconciled.
type task struct {
	journalID    int64
	submissionID int64
	publication  int64
}

// RunAll reconciles every pending published submission of every eligible
// journal.
func (s *Sweeper) RunAll(ctx context.Context) (*Summary, error) {
	sum, log := s.begin()

	journals, err := s.journals.ListJournals(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing journals: %w", err)
	}

	var tasks []task
	for _, j := range journals {
		tasks = append(tasks, s.pendingTasks(ctx, log, sum, j)...)
	}
	return s.finish(ctx, log, sum, tasks)
}

// RunJournals is RunAll restricted to the given journal IDs. IDs that do not
// exist are listed in Summary.Unknown; IDs that cannot be loaded are logged
// and counted as failed. Neither stops the sweep.
func (s *Sweeper) RunJournals(ctx context.Context, ids []int64) (*Summary, error) {
	sum, log := s.begin()

	var tasks []task
	for _, id := range ids {
		j, err := s.journals.GetJournal(ctx, id)
		if err != nil {
			log.Error("getting journal failed", "journal_id", id, "error", err)
			sum.Failed++
			continue
		}
		if j == nil {
			sum.Unknown = append(sum.Unknown, id)
			continue
		}
		tasks = append(tasks, s.pendingTasks(ctx, log, sum, *j)...)
	}
	return s.finish(ctx, log, sum, tasks)
}

// RunSubmissions reconciles the current publication of each given
// submission, whether or not it is flagged for checking. Submissions of
// ineligible journals are skipped, unknown IDs are listed in Summary.Unknown
// and lookup failures are counted as failed.
func (s *Sweeper) RunSubmissions(ctx context.Context, ids []int64) (*Summary, error) {
	sum, log := s.begin()

	var tasks []task
	for _, id := range ids {
		sub, err := s.submissions.GetSubmission(ctx, id)
		if err != nil {
			log.Error("getting submission failed", "submission_id", id, "error", err)
			sum.Failed++
			continue
		}
		if sub == nil {
			sum.Unknown = append(sum.Unknown, id)
			continue
		}
		j, err := s.journals.GetJournal(ctx, sub.JournalID)
		if err != nil {
			log.Error("getting journal failed", "submission_id", id, "journal_id", sub.JournalID, "error", err)
			sum.Failed++
			continue
		}
		if j == nil || !journal.IsEligible(&j.Config) {
			log.Debug("submission journal not eligible", "submission_id", id, "journal_id", sub.JournalID)
			sum.Skipped++
			continue
		}
		tasks = append(tasks, task{journalID: sub.JournalID, submissionID: sub.ID, publication: sub.CurrentPublicationID})
	}
	return s.finish(ctx, log, sum, tasks)
}

func (s *Sweeper) begin() (*Summary, *logger.Logger) {
	sum := &Summary{RunID: uuid.NewString()}
	return sum, s.log.With("run_id", sum.RunID)
}

// pendingTasks lists the pending submissions of j. Listing failures are
// logged and counted so other journals still run.
func (s *Sweeper) pendingTasks(ctx context.Context, log *logger.Logger, sum *Summary, j journal.Journal) []task {
	if !journal.IsEligible(&j.Config) {
		log.Debug("journal not eligible", "journal_id", j.ID)
		sum.Skipped++
		return nil
	}
	sum.Journals++

	subs, err := s.submissions.ListPendingSubmissions(ctx, j.ID)
	if err != nil {
		log.Error("listing pending submissions failed", "journal_id", j.ID, "error", err)
		sum.Failed++
		return nil
	}

	tasks := make([]task, 0, len(subs))
	for _, sub := range subs {
		tasks = append(tasks, task{journalID: j.ID, submissionID: sub.ID, publication: sub.CurrentPublicationID})
	}
	return tasks
}

// finish reconciles tasks on the worker pool. A failing publication is
// logged and counted; it never stops its siblings. Cancelling ctx stops
// the sweep before the next publication starts.
func (s *Sweeper) finish(ctx context.Context, log *logger.Logger, sum *Summary, tasks []task) (*Summary, error) {
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		t := t
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := s.reconcileTask(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("reconcile failed",
					"journal_id", t.journalID, "submission_id", t.submissionID,
					"publication_id", t.publication, "error", err)
				sum.Failed++
				return nil
			}
			if res == nil {
				return nil
			}
			sum.Publications++
			sum.Applied += res.Applied
			switch res.Status {
			case reconcile.StatusResolved:
				sum.Resolved++
			case reconcile.StatusUnavailable:
				sum.Unavailable++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("sweep finished",
		"journals", sum.Journals, "publications", sum.Publications,
		"applied", sum.Applied, "unavailable", sum.Unavailable, "failed", sum.Failed)

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func (s *Sweeper) reconcileTask(ctx context.Context, t task) (*reconcile.Result, error) {
	if t.publication == 0 {
		s.log.Debug("submission has no current publication", "submission_id", t.submissionID)
		return nil, nil
	}
	pub, err := s.publications.GetPublication(ctx, t.publication)
	if err != nil {
		return nil, fmt.Errorf("getting publication %d: %w", t.publication, err)
	}
	if pub == nil {
		return nil, fmt.Errorf("publication %d not found", t.publication)
	}
	return s.reconciler.Reconcile(ctx, *pub)
}
