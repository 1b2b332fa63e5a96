package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/matsen/reflink/internal/journal"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// SeedRecord is one line of a seed file. Exactly one field is set.
type SeedRecord struct {
	Journal     *journal.Journal     `json:"journal,omitempty"`
	Submission  *journal.Submission  `json:"submission,omitempty"`
	Publication *journal.Publication `json:"publication,omitempty"`
	Citation    *journal.Citation    `json:"citation,omitempty"`
}

// kind returns the record's insertion rank, or -1 if it is empty or ambiguous.
func (r SeedRecord) kind() int {
	set, rank := 0, -1
	if r.Journal != nil {
		set, rank = set+1, 0
	}
	if r.Submission != nil {
		set, rank = set+1, 1
	}
	if r.Publication != nil {
		set, rank = set+1, 2
	}
	if r.Citation != nil {
		set, rank = set+1, 3
	}
	if set != 1 {
		return -1
	}
	return rank
}

// SeedCounts reports how many records of each kind were imported.
type SeedCounts struct {
	Journals     int `json:"journals"`
	Submissions  int `json:"submissions"`
	Publications int `json:"publications"`
	Citations    int `json:"citations"`
}

// ReadSeed reads all records from a JSONL seed file.
func ReadSeed(path string) ([]SeedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var records []SeedRecord
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec SeedRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if rec.kind() < 0 {
			return nil, fmt.Errorf("line %d: expected exactly one of journal, submission, publication, citation", lineNum)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	return records, nil
}

// ImportSeed upserts seed records, parents before children, in one pass.
func (d *DB) ImportSeed(ctx context.Context, records []SeedRecord) (SeedCounts, error) {
	sorted := make([]SeedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].kind() < sorted[b].kind() })

	var counts SeedCounts
	for _, rec := range sorted {
		switch {
		case rec.Journal != nil:
			if err := d.UpsertJournal(ctx, *rec.Journal); err != nil {
				return counts, err
			}
			counts.Journals++
		case rec.Submission != nil:
			if err := d.UpsertSubmission(ctx, *rec.Submission); err != nil {
				return counts, err
			}
			counts.Submissions++
		case rec.Publication != nil:
			if err := d.UpsertPublication(ctx, *rec.Publication); err != nil {
				return counts, err
			}
			counts.Publications++
		case rec.Citation != nil:
			if err := d.UpsertCitation(ctx, *rec.Citation); err != nil {
				return counts, err
			}
			counts.Citations++
		}
	}
	return counts, nil
}
