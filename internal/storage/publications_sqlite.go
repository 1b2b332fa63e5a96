package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/matsen/reflink/internal/journal"
)

// UpsertPublication inserts or replaces a publication.
func (d *DB) UpsertPublication(ctx context.Context, p journal.Publication) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO publications (id, submission_id, doi)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			submission_id = excluded.submission_id,
			doi = excluded.doi
	`, p.ID, p.SubmissionID, nullableStringValue(strings.TrimSpace(p.DOI)))
	if err != nil {
		return fmt.Errorf("upserting publication %d: %w", p.ID, err)
	}
	return nil
}

// GetPublication retrieves a publication by its ID.
func (d *DB) GetPublication(ctx context.Context, id int64) (*journal.Publication, error) {
	row := d.db.QueryRowContext(ctx, `SELECT id, submission_id, doi FROM publications WHERE id = ?`, id)
	return scanPublication(row)
}

// FindPublicationByDOI finds a publication of the given journal by DOI,
// ignoring case.
func (d *DB) FindPublicationByDOI(ctx context.Context, journalID int64, doi string) (*journal.Publication, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, nil
	}
	row := d.db.QueryRowContext(ctx, `
		SELECT p.id, p.submission_id, p.doi
		FROM publications p
		JOIN submissions s ON s.id = p.submission_id
		WHERE s.journal_id = ? AND lower(p.doi) = lower(?)
		ORDER BY p.id DESC
		LIMIT 1
	`, journalID, doi)
	return scanPublication(row)
}

// scanPublication scans a single publication from a row.
func scanPublication(row *sql.Row) (*journal.Publication, error) {
	var (
		p   journal.Publication
		doi sql.NullString
	)
	if err := row.Scan(&p.ID, &p.SubmissionID, &doi); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.DOI = doi.String
	return &p, nil
}
