package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matsen/reflink/internal/journal"
)

const selectJournalFields = `id, path, name, citations_enabled,
	crossref_username, crossref_password, test_mode`

// UpsertJournal inserts or replaces a journal.
func (d *DB) UpsertJournal(ctx context.Context, j journal.Journal) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO journals (`+selectJournalFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			name = excluded.name,
			citations_enabled = excluded.citations_enabled,
			crossref_username = excluded.crossref_username,
			crossref_password = excluded.crossref_password,
			test_mode = excluded.test_mode
	`, j.ID, j.Path, nullableStringValue(j.Name), boolToInt(j.Config.CitationsEnabled),
		nullableStringValue(j.Config.Credentials.Username), nullableStringValue(j.Config.Credentials.Password),
		boolToInt(j.Config.TestMode))
	if err != nil {
		return fmt.Errorf("upserting journal %d: %w", j.ID, err)
	}
	return nil
}

// GetJournal retrieves a journal by its ID.
func (d *DB) GetJournal(ctx context.Context, id int64) (*journal.Journal, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectJournalFields+` FROM journals WHERE id = ?`, id)

	var f journalScanFields
	if err := row.Scan(f.targets()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying journal %d: %w", id, err)
	}
	j := f.toJournal()
	return &j, nil
}

// ListJournals returns all journals ordered by ID.
func (d *DB) ListJournals(ctx context.Context) ([]journal.Journal, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectJournalFields+` FROM journals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying journals: %w", err)
	}
	defer rows.Close()

	var journals []journal.Journal
	for rows.Next() {
		var f journalScanFields
		if err := rows.Scan(f.targets()...); err != nil {
			return nil, err
		}
		journals = append(journals, f.toJournal())
	}
	return journals, rows.Err()
}

// journalScanFields holds the scan targets for a journal row.
type journalScanFields struct {
	id                 int64
	path               string
	name               sql.NullString
	citationsEnabled   bool
	username, password sql.NullString
	testMode           bool
}

func (f *journalScanFields) targets() []any {
	return []any{&f.id, &f.path, &f.name, &f.citationsEnabled, &f.username, &f.password, &f.testMode}
}

func (f *journalScanFields) toJournal() journal.Journal {
	return journal.Journal{
		ID:   f.id,
		Path: f.path,
		Name: f.name.String,
		Config: journal.JournalConfig{
			CitationsEnabled: f.citationsEnabled,
			Credentials: journal.Credentials{
				Username: f.username.String,
				Password: f.password.String,
			},
			TestMode: f.testMode,
		},
	}
}
