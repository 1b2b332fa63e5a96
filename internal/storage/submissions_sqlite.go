package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matsen/reflink/internal/journal"
)

const selectSubmissionFields = `id, journal_id, status, current_publication_id,
	citations_diagnostic_id, auto_check_pending`

// UpsertSubmission inserts or replaces a submission, including its check state.
func (d *DB) UpsertSubmission(ctx context.Context, s journal.Submission) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO submissions (`+selectSubmissionFields+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			journal_id = excluded.journal_id,
			status = excluded.status,
			current_publication_id = excluded.current_publication_id,
			citations_diagnostic_id = excluded.citations_diagnostic_id,
			auto_check_pending = excluded.auto_check_pending
	`, s.ID, s.JournalID, s.Status, nullableInt64(s.CurrentPublicationID),
		nullableStringValue(s.CitationsDiagnosticID), boolToInt(s.AutoCheckPending))
	if err != nil {
		return fmt.Errorf("upserting submission %d: %w", s.ID, err)
	}
	return nil
}

// GetSubmission retrieves a submission by its ID.
func (d *DB) GetSubmission(ctx context.Context, id int64) (*journal.Submission, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectSubmissionFields+` FROM submissions WHERE id = ?`, id)

	var f submissionScanFields
	if err := row.Scan(f.targets()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying submission %d: %w", id, err)
	}
	s := f.toSubmission()
	return &s, nil
}

// ListPendingSubmissions returns the published submissions of a journal that
// are flagged for an automatic check.
func (d *DB) ListPendingSubmissions(ctx context.Context, journalID int64) ([]journal.Submission, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectSubmissionFields+`
		FROM submissions
		WHERE journal_id = ? AND auto_check_pending = 1 AND status = ?
		ORDER BY id
	`, journalID, journal.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("querying pending submissions of journal %d: %w", journalID, err)
	}
	defer rows.Close()

	var subs []journal.Submission
	for rows.Next() {
		var f submissionScanFields
		if err := rows.Scan(f.targets()...); err != nil {
			return nil, err
		}
		subs = append(subs, f.toSubmission())
	}
	return subs, rows.Err()
}

// SetCheckState writes the diagnostic ID and pending flag in one statement.
func (d *DB) SetCheckState(ctx context.Context, id int64, state journal.CheckState) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE submissions
		SET citations_diagnostic_id = ?, auto_check_pending = ?
		WHERE id = ?
	`, nullableStringValue(state.DiagnosticID), boolToInt(state.AutoCheckPending), id)
	if err != nil {
		return fmt.Errorf("updating check state of submission %d: %w", id, err)
	}
	return requireOneRow(res, "submission", id)
}

// ClearAutoCheck clears the pending flag and keeps the diagnostic ID.
func (d *DB) ClearAutoCheck(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `UPDATE submissions SET auto_check_pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clearing automatic check of submission %d: %w", id, err)
	}
	return requireOneRow(res, "submission", id)
}

// requireOneRow fails when an update matched no row.
func requireOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", kind, id)
	}
	return nil
}

// submissionScanFields holds the scan targets for a submission row.
type submissionScanFields struct {
	id, journalID        int64
	status               string
	currentPublicationID sql.NullInt64
	diagnosticID         sql.NullString
	autoCheckPending     bool
}

func (f *submissionScanFields) targets() []any {
	return []any{&f.id, &f.journalID, &f.status, &f.currentPublicationID, &f.diagnosticID, &f.autoCheckPending}
}

func (f *submissionScanFields) toSubmission() journal.Submission {
	return journal.Submission{
		ID:                    f.id,
		JournalID:             f.journalID,
		Status:                f.status,
		CurrentPublicationID:  f.currentPublicationID.Int64,
		CitationsDiagnosticID: f.diagnosticID.String,
		AutoCheckPending:      f.autoCheckPending,
	}
}
