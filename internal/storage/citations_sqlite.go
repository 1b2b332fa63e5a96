package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matsen/reflink/internal/journal"
)

// UpsertCitation inserts or replaces a citation.
func (d *DB) UpsertCitation(ctx context.Context, c journal.Citation) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO citations (id, publication_id, seq, raw_citation, crossref_doi)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			publication_id = excluded.publication_id,
			seq = excluded.seq,
			raw_citation = excluded.raw_citation,
			crossref_doi = excluded.crossref_doi
	`, c.ID, c.PublicationID, c.Seq, c.RawCitation, nullableStringValue(c.DOI))
	if err != nil {
		return fmt.Errorf("upserting citation %d: %w", c.ID, err)
	}
	return nil
}

// ListCitations returns a publication's citations in reference list order.
func (d *DB) ListCitations(ctx context.Context, publicationID int64) ([]journal.Citation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, publication_id, seq, raw_citation, crossref_doi
		FROM citations
		WHERE publication_id = ?
		ORDER BY seq, id
	`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("querying citations of publication %d: %w", publicationID, err)
	}
	defer rows.Close()

	var citations []journal.Citation
	for rows.Next() {
		var (
			c   journal.Citation
			doi sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.PublicationID, &c.Seq, &c.RawCitation, &doi); err != nil {
			return nil, err
		}
		c.DOI = doi.String
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// SetCitationDOI stores a resolved DOI on a citation that has none. It reports
// false if the citation is missing or already carries a DOI, so an existing
// value is never overwritten.
func (d *DB) SetCitationDOI(ctx context.Context, citationID int64, doi string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE citations
		SET crossref_doi = ?
		WHERE id = ? AND (crossref_doi IS NULL OR crossref_doi = '')
	`, doi, citationID)
	if err != nil {
		return false, fmt.Errorf("updating citation %d: %w", citationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReplaceCitations swaps a publication's citations for new raw texts in one
// transaction. The new citations carry no DOI.
func (d *DB) ReplaceCitations(ctx context.Context, publicationID int64, raw []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM citations WHERE publication_id = ?`, publicationID); err != nil {
		return fmt.Errorf("deleting citations of publication %d: %w", publicationID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO citations (publication_id, seq, raw_citation)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing citation insert: %w", err)
	}
	defer stmt.Close()

	for i, text := range raw {
		if _, err := stmt.ExecContext(ctx, publicationID, i, text); err != nil {
			return fmt.Errorf("inserting citation %d of publication %d: %w", i, publicationID, err)
		}
	}

	return tx.Commit()
}
