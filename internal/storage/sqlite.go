// Package storage persists journals, submissions, publications and citations
// in SQLite.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS journals (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			name TEXT,
			citations_enabled INTEGER NOT NULL DEFAULT 0,
			crossref_username TEXT,
			crossref_password TEXT,
			test_mode INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY,
			journal_id INTEGER NOT NULL REFERENCES journals(id),
			status TEXT NOT NULL,
			current_publication_id INTEGER,
			citations_diagnostic_id TEXT,
			auto_check_pending INTEGER NOT NULL DEFAULT 0
		);

		-- Sweeps only look at flagged submissions
		CREATE INDEX IF NOT EXISTS idx_submissions_pending
			ON submissions(journal_id) WHERE auto_check_pending = 1;

		CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY,
			submission_id INTEGER NOT NULL REFERENCES submissions(id),
			doi TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_publications_doi
			ON publications(doi) WHERE doi IS NOT NULL AND doi != '';

		-- Citation IDs are Crossref keys; AUTOINCREMENT keeps them from being reused
		CREATE TABLE IF NOT EXISTS citations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			publication_id INTEGER NOT NULL REFERENCES publications(id),
			seq INTEGER NOT NULL,
			raw_citation TEXT NOT NULL,
			crossref_doi TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_citations_publication
			ON citations(publication_id, seq);
	`

	_, err := db.Exec(schema)
	return err
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableInt64 converts an ID to sql.NullInt64, treating zero as NULL.
func nullableInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
