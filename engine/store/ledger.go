package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jhellingsdata/search-app/engine/domain"
)

var ledgerHeader = []string{"slug", "date_embedded", "embedding_model", "num_tokens"}

// EmbeddingLedger tracks which (slug, model) pairs have been embedded. It is
// a small tabular file, loaded wholesale on open and rewritten wholesale on
// every mutation; fine for thousands of rows, not millions.
type EmbeddingLedger struct {
	path    string
	entries []domain.LedgerEntry
}

// OpenLedger loads the ledger from path, creating an empty file with a
// header row if none exists.
func OpenLedger(path string) (*EmbeddingLedger, error) {
	l := &EmbeddingLedger{path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := l.write(); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", path, err)
	}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) != 4 {
			return nil, fmt.Errorf("ledger: %s row %d: expected 4 columns, got %d", path, i+1, len(row))
		}
		tokens, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("ledger: %s row %d: num_tokens: %w", path, i+1, err)
		}
		l.entries = append(l.entries, domain.LedgerEntry{
			Slug:         row[0],
			DateEmbedded: row[1],
			Model:        row[2],
			NumTokens:    tokens,
		})
	}
	return l, nil
}

// Contains reports whether an embedding for (slug, model) is recorded.
func (l *EmbeddingLedger) Contains(slug, model string) bool {
	for _, e := range l.entries {
		if e.Slug == slug && e.Model == model {
			return true
		}
	}
	return false
}

// Record appends an entry and persists. Duplicates for the same (slug, model)
// are tolerated here; callers de-duplicate via Remove before re-embedding.
func (l *EmbeddingLedger) Record(entry domain.LedgerEntry) error {
	l.entries = append(l.entries, entry)
	return l.write()
}

// Remove deletes all entries for a slug and persists. Used before forced
// re-embedding, and for the old slug on a rename.
func (l *EmbeddingLedger) Remove(slug string) error {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.Slug != slug {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	return l.write()
}

// Entries returns a copy of all ledger rows.
func (l *EmbeddingLedger) Entries() []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EmbeddingLedger) write() error {
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("ledger: temp file: %w", err)
	}

	w := csv.NewWriter(tmp)
	rows := [][]string{ledgerHeader}
	for _, e := range l.entries {
		rows = append(rows, []string{e.Slug, e.DateEmbedded, e.Model, strconv.Itoa(e.NumTokens)})
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("ledger: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ledger: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ledger: rename: %w", err)
	}
	return nil
}
