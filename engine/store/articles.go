// Package store persists the article corpus and the embedding-tracking
// ledger. Both files assume a single writer; concurrent processes mutating
// the same files will corrupt state.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jhellingsdata/search-app/engine/domain"
)

// ArticleStore is a slug-keyed article corpus backed by one JSON file.
// Mutations are in-memory until Save, which the sync pipeline calls after
// every successful per-article scrape.
type ArticleStore struct {
	path     string
	articles map[string]domain.ArticleRecord
}

// Open loads the store from path. A missing file is a valid initial
// condition and yields an empty store.
func Open(path string) (*ArticleStore, error) {
	s := &ArticleStore{path: path, articles: map[string]domain.ArticleRecord{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.articles); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return s, nil
}

// NewWithArticles creates a store seeded with an already-loaded corpus
// (e.g. from S3 at API startup).
func NewWithArticles(path string, articles map[string]domain.ArticleRecord) *ArticleStore {
	if articles == nil {
		articles = map[string]domain.ArticleRecord{}
	}
	return &ArticleStore{path: path, articles: articles}
}

// Save serializes the full corpus, writing to a temp file in the same
// directory and renaming over the target so a crash mid-write cannot
// corrupt previously-valid data.
func (s *ArticleStore) Save() error {
	data, err := json.Marshal(s.articles)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".articles-*.json")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// Get returns the record for a slug.
func (s *ArticleStore) Get(slug string) (domain.ArticleRecord, bool) {
	rec, ok := s.articles[slug]
	return rec, ok
}

// Has reports whether a slug is in the store.
func (s *ArticleStore) Has(slug string) bool {
	_, ok := s.articles[slug]
	return ok
}

// Upsert replaces the record for a slug wholesale.
func (s *ArticleStore) Upsert(slug string, rec domain.ArticleRecord) {
	s.articles[slug] = rec
}

// Remove deletes a slug. Used only for slug renames.
func (s *ArticleStore) Remove(slug string) {
	delete(s.articles, slug)
}

// All returns the live slug-to-record mapping. Callers must not retain it
// across mutations.
func (s *ArticleStore) All() map[string]domain.ArticleRecord {
	return s.articles
}

// Len returns the number of stored articles.
func (s *ArticleStore) Len() int { return len(s.articles) }

// Categories returns the sorted distinct main categories in the corpus.
func (s *ArticleStore) Categories() []string {
	seen := map[string]struct{}{}
	for _, rec := range s.articles {
		if rec.MainCategory != "" {
			seen[rec.MainCategory] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
