package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/reflink/internal/crossref"
	"github.com/matsen/reflink/internal/storage"
)

func TestReadCitationLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.txt")
	content := "Smith J. First. 2001.\n\n   \n  Jones K. Second. 2005.  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lines, err := readCitationLines(path)
	if err != nil {
		t.Fatalf("readCitationLines() error = %v", err)
	}
	want := []string{"Smith J. First. 2001.", "Jones K. Second. 2005."}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestReadCitationLines_Missing(t *testing.T) {
	if _, err := readCitationLines(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("readCitationLines() should fail for a missing file")
	}
}

func TestJournalCitationLookup(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	records, err := storage.ReadSeed("../../testdata/seed/valid.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.ImportSeed(ctx, records); err != nil {
		t.Fatal(err)
	}

	deposit := `<doi_batch><body><journal><journal_article>` +
		`<doi_data><doi>10.1/ABC</doi><resource>https://example.org/a</resource></doi_data>` +
		`</journal_article><journal_article>` +
		`<doi_data><doi>10.1/unknown</doi><resource>https://example.org/b</resource></doi_data>` +
		`</journal_article></journal></body></doi_batch>`

	out, err := crossref.AddCitationList([]byte(deposit), journalCitationLookup(ctx, db, 1))
	if err != nil {
		t.Fatalf("AddCitationList() error = %v", err)
	}
	got := string(out)
	if strings.Count(got, "<citation_list") != 1 {
		t.Errorf("expected one citation_list, got:\n%s", got)
	}
	if !strings.Contains(got, `<citation key="1"><unstructured_citation>Smith J. First paper. 2001.</unstructured_citation></citation>`) {
		t.Errorf("missing unresolved citation:\n%s", got)
	}
	if !strings.Contains(got, `<citation key="2"><doi>10.2/x</doi></citation>`) {
		t.Errorf("missing resolved citation:\n%s", got)
	}
}
