// Package journal defines the core domain types for journals, submissions,
// publications and their citations.
package journal

import "strconv"

// Submission statuses. Only published submissions are swept.
const (
	StatusQueued    = "queued"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
	StatusDeclined  = "declined"
)

// Journal is a hosted journal (a "context") with its Crossref settings.
type Journal struct {
	ID     int64         `json:"id"`
	Path   string        `json:"path"`
	Name   string        `json:"name"`
	Config JournalConfig `json:"config"`
}

// JournalConfig holds the per-journal settings the reconciler reads.
type JournalConfig struct {
	CitationsEnabled bool        `json:"citations_enabled"` // Citations submission metadata is turned on
	Credentials      Credentials `json:"credentials"`
	TestMode         bool        `json:"test_mode"` // Use the Crossref sandbox endpoint
}

// Credentials are the Crossref deposit credentials of a journal.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Submission aggregates the publications of one article over time.
type Submission struct {
	ID                   int64  `json:"id"`
	JournalID            int64  `json:"journal_id"`
	Status               string `json:"status"`
	CurrentPublicationID int64  `json:"current_publication_id"`

	// Reference linking state, always written together through CheckState.
	CitationsDiagnosticID string `json:"citations_diagnostic_id,omitempty"`
	AutoCheckPending      bool   `json:"auto_check_pending"`
}

// IsPublished reports whether the submission has been published.
func (s Submission) IsPublished() bool {
	return s.Status == StatusPublished
}

// CheckState is the pair of reference linking fields stored on a submission.
type CheckState struct {
	DiagnosticID     string
	AutoCheckPending bool
}

// Publication is one version of a submission.
type Publication struct {
	ID           int64  `json:"id"`
	SubmissionID int64  `json:"submission_id"`
	DOI          string `json:"doi,omitempty"`
}

// Citation is a single entry of a publication's reference list.
type Citation struct {
	ID            int64  `json:"id"`
	PublicationID int64  `json:"publication_id"`
	Seq           int    `json:"seq"`
	RawCitation   string `json:"raw_citation"`
	DOI           string `json:"doi,omitempty"` // Resolved DOI found by Crossref, empty if unknown
}

// Key returns the citation key sent to and returned by Crossref.
func (c Citation) Key() string {
	return strconv.FormatInt(c.ID, 10)
}

// HasDOI reports whether the citation already carries a resolved DOI.
func (c Citation) HasDOI() bool {
	return c.DOI != ""
}
