package sweep

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/journal"
	"github.com/matsen/reflink/internal/reconcile"
	"github.com/matsen/reflink/internal/storage"
)

const seedPath = "../../testdata/seed/valid.jsonl"

// fakeResolver answers per DOI and records calls. Safe for concurrent use.
type fakeResolver struct {
	mu      sync.Mutex
	matches map[string][]crossref.MatchedReference
	errs    map[string]error
	calls   []string
}

func (f *fakeResolver) FetchResolvedReferences(ctx context.Context, doi string, creds journal.Credentials, sandbox bool) ([]crossref.MatchedReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, doi)
	if err := f.errs[doi]; err != nil {
		return nil, err
	}
	return f.matches[doi], nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func openSeededDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	records, err := storage.ReadSeed(seedPath)
	if err != nil {
		t.Fatalf("ReadSeed() error = %v", err)
	}
	if _, err := db.ImportSeed(context.Background(), records); err != nil {
		t.Fatalf("ImportSeed() error = %v", err)
	}
	return db
}

func newTestSweeper(db *storage.DB, r reconcile.Resolver, workers int) *Sweeper {
	rec := reconcile.NewReconciler(db, db, db, r, nil)
	return NewSweeper(db, db, db, rec, workers, nil)
}

func TestRunAll_ReconcilesEligiblePending(t *testing.T) {
	db := openSeededDB(t)
	ctx := context.Background()
	r := &fakeResolver{matches: map[string][]crossref.MatchedReference{
		"10.1/abc": {{Key: "1", DOI: "10.9/new"}},
	}}

	sum, err := newTestSweeper(db, r, 1).RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if sum.RunID == "" {
		t.Error("RunID should be set")
	}
	if sum.Journals != 1 || sum.Skipped != 1 {
		t.Errorf("Journals/Skipped = %d/%d, want 1/1", sum.Journals, sum.Skipped)
	}
	if sum.Publications != 1 || sum.Resolved != 1 || sum.Applied != 1 {
		t.Errorf("Publications/Resolved/Applied = %d/%d/%d, want 1/1/1", sum.Publications, sum.Resolved, sum.Applied)
	}
	if len(r.calls) != 1 || r.calls[0] != "10.1/abc" {
		t.Errorf("resolver calls = %v, want [10.1/abc]", r.calls)
	}

	citations, err := db.ListCitations(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if citations[0].DOI != "10.9/new" || citations[1].DOI != "10.2/x" {
		t.Errorf("citation DOIs = %q, %q", citations[0].DOI, citations[1].DOI)
	}

	sub, err := db.GetSubmission(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sub.AutoCheckPending {
		t.Error("AutoCheckPending should be cleared")
	}
	if sub.CitationsDiagnosticID != "4242" {
		t.Errorf("CitationsDiagnosticID = %q, want kept", sub.CitationsDiagnosticID)
	}
}

func TestRunAll_FailureIsIsolated(t *testing.T) {
	db := openSeededDB(t)
	ctx := context.Background()

	if err := db.UpsertSubmission(ctx, journal.Submission{
		ID: 12, JournalID: 1, Status: journal.StatusPublished, CurrentPublicationID: 120, AutoCheckPending: true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertPublication(ctx, journal.Publication{ID: 120, SubmissionID: 12, DOI: "10.1/broken"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertCitation(ctx, journal.Citation{ID: 4, PublicationID: 120, RawCitation: "Roe B. 2012."}); err != nil {
		t.Fatal(err)
	}

	r := &fakeResolver{
		matches: map[string][]crossref.MatchedReference{"10.1/abc": {{Key: "1", DOI: "10.9/new"}}},
		errs:    map[string]error{"10.1/broken": crossref.ErrInvalidResponse},
	}

	sum, err := newTestSweeper(db, r, 2).RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if sum.Failed != 1 || sum.Resolved != 1 {
		t.Errorf("Failed/Resolved = %d/%d, want 1/1", sum.Failed, sum.Resolved)
	}
	if r.callCount() != 2 {
		t.Errorf("resolver calls = %d, want 2", r.callCount())
	}

	sub, err := db.GetSubmission(ctx, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !sub.AutoCheckPending {
		t.Error("failed submission should stay pending")
	}
}

func TestRunAll_UnavailableCounted(t *testing.T) {
	db := openSeededDB(t)
	r := &fakeResolver{errs: map[string]error{"10.1/abc": crossref.ErrUnavailable}}

	sum, err := newTestSweeper(db, r, 1).RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if sum.Unavailable != 1 || sum.Failed != 0 || sum.Applied != 0 {
		t.Errorf("Unavailable/Failed/Applied = %d/%d/%d, want 1/0/0", sum.Unavailable, sum.Failed, sum.Applied)
	}
}

func TestRunJournals(t *testing.T) {
	tests := []struct {
		name        string
		ids         []int64
		wantUnknown []int64
		wantSkipped int
		wantCalls   int
	}{
		{"eligible", []int64{1}, nil, 0, 1},
		{"ineligible", []int64{2}, nil, 1, 0},
		{"unknown continues", []int64{404, 1}, []int64{404}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openSeededDB(t)
			r := &fakeResolver{}

			sum, err := newTestSweeper(db, r, 1).RunJournals(context.Background(), tt.ids)
			if err != nil {
				t.Fatalf("RunJournals() error = %v", err)
			}
			if !equalIDs(sum.Unknown, tt.wantUnknown) {
				t.Errorf("Unknown = %v, want %v", sum.Unknown, tt.wantUnknown)
			}
			if sum.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %d, want %d", sum.Skipped, tt.wantSkipped)
			}
			if r.callCount() != tt.wantCalls {
				t.Errorf("resolver calls = %d, want %d", r.callCount(), tt.wantCalls)
			}
		})
	}
}

func TestRunSubmissions(t *testing.T) {
	db := openSeededDB(t)
	r := &fakeResolver{}

	sum, err := newTestSweeper(db, r, 1).RunSubmissions(context.Background(), []int64{9999, 20, 10})
	if err != nil {
		t.Fatalf("RunSubmissions() error = %v", err)
	}
	if !equalIDs(sum.Unknown, []int64{9999}) {
		t.Errorf("Unknown = %v, want [9999]", sum.Unknown)
	}
	if sum.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", sum.Skipped)
	}
	if sum.Publications != 1 {
		t.Errorf("Publications = %d, want 1", sum.Publications)
	}
	if len(r.calls) != 1 || r.calls[0] != "10.1/abc" {
		t.Errorf("resolver calls = %v, want [10.1/abc]", r.calls)
	}
}

func TestRunSubmissions_StaleMatchAfterReimportIgnored(t *testing.T) {
	db := openSeededDB(t)
	ctx := context.Background()
	r := &fakeResolver{matches: map[string][]crossref.MatchedReference{}}
	s := newTestSweeper(db, r, 1)
	events := reconcile.NewEvents(db, db, db, db, s.reconciler, nil)

	reimport := func(raw ...string) []journal.Citation {
		t.Helper()
		if err := events.HandleCitationsReimported(ctx, reconcile.CitationsReimported{PublicationID: 100, Citations: raw}); err != nil {
			t.Fatalf("HandleCitationsReimported() error = %v", err)
		}
		citations, err := db.ListCitations(ctx, 100)
		if err != nil {
			t.Fatal(err)
		}
		return citations
	}

	// Crossref still answers for the earlier deposit, keyed by the old citations.
	for _, c := range reimport("Old A", "Old B") {
		r.matches["10.1/abc"] = append(r.matches["10.1/abc"], crossref.MatchedReference{Key: c.Key(), DOI: "10.9/" + c.Key()})
	}
	current := reimport("New X", "New Y")

	sum, err := s.RunSubmissions(ctx, []int64{10})
	if err != nil {
		t.Fatalf("RunSubmissions() error = %v", err)
	}
	if r.callCount() != 1 {
		t.Fatalf("resolver calls = %d, want 1", r.callCount())
	}
	if sum.Applied != 0 {
		t.Errorf("Applied = %d, want 0 for stale matches", sum.Applied)
	}

	citations, err := db.ListCitations(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range citations {
		if c.ID != current[i].ID || c.HasDOI() {
			t.Errorf("citation %q = %+v, want untouched", c.RawCitation, c)
		}
	}
}

// failingLookups makes single-record lookups fail for chosen IDs.
type failingLookups struct {
	*storage.DB
	journalID    int64
	submissionID int64
}

var errLookup = errors.New("disk I/O error")

func (f failingLookups) GetJournal(ctx context.Context, id int64) (*journal.Journal, error) {
	if id == f.journalID {
		return nil, errLookup
	}
	return f.DB.GetJournal(ctx, id)
}

func (f failingLookups) GetSubmission(ctx context.Context, id int64) (*journal.Submission, error) {
	if id == f.submissionID {
		return nil, errLookup
	}
	return f.DB.GetSubmission(ctx, id)
}

func TestRunSelected_LookupFailureDoesNotAbort(t *testing.T) {
	tests := []struct {
		name  string
		store failingLookups
		run   func(*Sweeper) (*Summary, error)
	}{
		{
			name:  "journals",
			store: failingLookups{journalID: 7},
			run: func(s *Sweeper) (*Summary, error) {
				return s.RunJournals(context.Background(), []int64{7, 1})
			},
		},
		{
			name:  "submissions",
			store: failingLookups{submissionID: 7},
			run: func(s *Sweeper) (*Summary, error) {
				return s.RunSubmissions(context.Background(), []int64{7, 10})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openSeededDB(t)
			store := tt.store
			store.DB = db
			r := &fakeResolver{}
			rec := reconcile.NewReconciler(db, db, db, r, nil)
			s := NewSweeper(store, store, db, rec, 1, nil)

			sum, err := tt.run(s)
			if err != nil {
				t.Fatalf("run error = %v", err)
			}
			if sum.Failed != 1 {
				t.Errorf("Failed = %d, want 1", sum.Failed)
			}
			if sum.Publications != 1 || r.callCount() != 1 {
				t.Errorf("Publications/calls = %d/%d, want 1/1", sum.Publications, r.callCount())
			}
		})
	}
}

func TestSchedulerRunOnce_SkipsWhenLocked(t *testing.T) {
	db := openSeededDB(t)
	r := &fakeResolver{}
	lockPath := filepath.Join(t.TempDir(), "locks", "reflink.lock")
	sched := NewScheduler(newTestSweeper(db, r, 1), lockPath, 0, nil)

	release, err := AcquireLock(lockPath)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}

	if _, err := sched.RunOnce(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("RunOnce() error = %v, want ErrRunInProgress", err)
	}
	if r.callCount() != 0 {
		t.Errorf("resolver calls = %d, want 0 while locked", r.callCount())
	}

	release()

	sum, err := sched.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() after release error = %v", err)
	}
	if sum.Publications != 1 {
		t.Errorf("Publications = %d, want 1", sum.Publications)
	}
}

func TestSchedulerRun_StopsOnCancel(t *testing.T) {
	db := openSeededDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := NewScheduler(newTestSweeper(db, &fakeResolver{}, 1), filepath.Join(t.TempDir(), "reflink.lock"), 1, nil)
	if err := sched.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
