package reconcile

import (
	"context"
	"errors"
	"sort"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/journal"
)

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	journals     map[int64]journal.Journal
	submissions  map[int64]journal.Submission
	publications map[int64]journal.Publication
	citations    map[int64]journal.Citation
	nextCitation int64

	setDOICalls int
	failSetDOI  int64 // Citation ID whose update fails
	failClear   bool
	failReplace bool
	failState   bool
}

var errStoreFailure = errors.New("store failure")

func newMemStore() *memStore {
	return &memStore{
		journals:     map[int64]journal.Journal{},
		submissions:  map[int64]journal.Submission{},
		publications: map[int64]journal.Publication{},
		citations:    map[int64]journal.Citation{},
		nextCitation: 1000,
	}
}

func (m *memStore) GetJournal(ctx context.Context, id int64) (*journal.Journal, error) {
	j, ok := m.journals[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (m *memStore) ListJournals(ctx context.Context) ([]journal.Journal, error) {
	var out []journal.Journal
	for _, j := range m.journals {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *memStore) GetSubmission(ctx context.Context, id int64) (*journal.Submission, error) {
	s, ok := m.submissions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) ListPendingSubmissions(ctx context.Context, journalID int64) ([]journal.Submission, error) {
	var out []journal.Submission
	for _, s := range m.submissions {
		if s.JournalID == journalID && s.AutoCheckPending && s.IsPublished() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *memStore) SetCheckState(ctx context.Context, id int64, state journal.CheckState) error {
	if m.failState {
		return errStoreFailure
	}
	s, ok := m.submissions[id]
	if !ok {
		return errors.New("no such submission")
	}
	s.CitationsDiagnosticID = state.DiagnosticID
	s.AutoCheckPending = state.AutoCheckPending
	m.submissions[id] = s
	return nil
}

func (m *memStore) ClearAutoCheck(ctx context.Context, id int64) error {
	if m.failClear {
		return errStoreFailure
	}
	s := m.submissions[id]
	s.AutoCheckPending = false
	m.submissions[id] = s
	return nil
}

func (m *memStore) GetPublication(ctx context.Context, id int64) (*journal.Publication, error) {
	p, ok := m.publications[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListCitations(ctx context.Context, publicationID int64) ([]journal.Citation, error) {
	var out []journal.Citation
	for _, c := range m.citations {
		if c.PublicationID == publicationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

func (m *memStore) SetCitationDOI(ctx context.Context, citationID int64, doi string) (bool, error) {
	m.setDOICalls++
	if citationID == m.failSetDOI {
		return false, errStoreFailure
	}
	c, ok := m.citations[citationID]
	if !ok || c.HasDOI() {
		return false, nil
	}
	c.DOI = doi
	m.citations[citationID] = c
	return true, nil
}

func (m *memStore) ReplaceCitations(ctx context.Context, publicationID int64, raw []string) error {
	if m.failReplace {
		return errStoreFailure
	}
	for id, c := range m.citations {
		if c.PublicationID == publicationID {
			delete(m.citations, id)
		}
	}
	for i, text := range raw {
		m.nextCitation++
		m.citations[m.nextCitation] = journal.Citation{ID: m.nextCitation, PublicationID: publicationID, Seq: i, RawCitation: text}
	}
	return nil
}

// fakeResolver returns a canned response and counts calls.
type fakeResolver struct {
	matches []crossref.MatchedReference
	err     error
	calls   int
	gotDOI  string
	gotMode bool
}

func (f *fakeResolver) FetchResolvedReferences(ctx context.Context, doi string, creds journal.Credentials, sandbox bool) ([]crossref.MatchedReference, error) {
	f.calls++
	f.gotDOI = doi
	f.gotMode = sandbox
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

// seedPublication builds journal 1 / submission 10 / publication 100 with the
// given citations (ID -> DOI) and a pending automatic check.
func seedPublication(doi string, citations map[int64]string) *memStore {
	m := newMemStore()
	m.journals[1] = journal.Journal{ID: 1, Path: "j", Config: journal.JournalConfig{
		CitationsEnabled: true,
		Credentials:      journal.Credentials{Username: "u", Password: "p"},
	}}
	m.submissions[10] = journal.Submission{
		ID: 10, JournalID: 1, Status: journal.StatusPublished, CurrentPublicationID: 100,
		CitationsDiagnosticID: "diag", AutoCheckPending: true,
	}
	m.publications[100] = journal.Publication{ID: 100, SubmissionID: 10, DOI: doi}
	seq := 0
	for id, d := range citations {
		m.citations[id] = journal.Citation{ID: id, PublicationID: 100, Seq: seq, RawCitation: "ref", DOI: d}
		seq++
	}
	return m
}
