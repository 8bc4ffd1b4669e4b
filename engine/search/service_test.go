package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jhellingsdata/search-app/engine/domain"
	"github.com/jhellingsdata/search-app/engine/semantic"
	"github.com/jhellingsdata/search-app/engine/store"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, int, error) {
	return []float32{1, 0}, 3, f.err
}

type fakeIndex struct {
	hits      []semantic.SearchResult
	searchErr error
	gotTopK   uint64
	gotFilter semantic.Filter
	stats     semantic.IndexStats
	statsErr  error
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK uint64, filter semantic.Filter) ([]semantic.SearchResult, error) {
	f.gotTopK = topK
	f.gotFilter = filter
	return f.hits, f.searchErr
}

func (f *fakeIndex) Describe(_ context.Context) (semantic.IndexStats, error) {
	return f.stats, f.statsErr
}

func testService(t *testing.T, idx *fakeIndex, emb *fakeEmbedder, slugs ...string) *Service {
	t.Helper()
	articles := make(map[string]domain.ArticleRecord, len(slugs))
	for i, slug := range slugs {
		cat := "Prices & interest rates"
		if i%2 == 1 {
			cat = "Jobs & work"
		}
		articles[slug] = domain.ArticleRecord{Slug: slug, Title: slug, MainCategory: cat}
	}
	st := store.NewWithArticles(filepath.Join(t.TempDir(), "articles.json"), articles)
	return New(emb, idx, st, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSearch(t *testing.T) {
	idx := &fakeIndex{
		hits: []semantic.SearchResult{
			{Slug: "uk-inflation", Title: "UK inflation", Score: 0.93, MainCategory: "Prices & interest rates"},
			{Slug: "other", Title: "Other", Score: 0.71},
		},
	}
	svc := testService(t, idx, &fakeEmbedder{})

	resp, err := svc.Search(context.Background(), Query{
		Text:     "why did prices rise",
		Category: "Prices & interest rates",
		DateFrom: "2021-01-01",
		TopK:     3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TotalResults != 2 || len(resp.Results) != 2 {
		t.Fatalf("got %d results", resp.TotalResults)
	}
	if resp.Query != "why did prices rise" {
		t.Errorf("query echoed wrong: %q", resp.Query)
	}
	if resp.Results[0].SimilarityScore != 0.93 {
		t.Errorf("wrong score: %v", resp.Results[0].SimilarityScore)
	}
	if idx.gotTopK != 3 {
		t.Errorf("topK %d, want 3", idx.gotTopK)
	}
	if idx.gotFilter.Category != "Prices & interest rates" || idx.gotFilter.DateFrom != "2021-01-01" {
		t.Errorf("filter not forwarded: %+v", idx.gotFilter)
	}
	if resp.SearchTime < 0 {
		t.Errorf("negative search time")
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	idx := &fakeIndex{}
	svc := testService(t, idx, &fakeEmbedder{})
	if _, err := svc.Search(context.Background(), Query{Text: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotTopK != DefaultTopK {
		t.Errorf("topK %d, want %d", idx.gotTopK, DefaultTopK)
	}
}

func TestSearch_EmbedError(t *testing.T) {
	svc := testService(t, &fakeIndex{}, &fakeEmbedder{err: errors.New("quota")})
	if _, err := svc.Search(context.Background(), Query{Text: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_IndexError(t *testing.T) {
	svc := testService(t, &fakeIndex{searchErr: errors.New("down")}, &fakeEmbedder{})
	if _, err := svc.Search(context.Background(), Query{Text: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCategories(t *testing.T) {
	svc := testService(t, &fakeIndex{}, &fakeEmbedder{}, "a", "b", "c")
	cats := svc.Categories()
	if len(cats) != 2 {
		t.Fatalf("got %v", cats)
	}
	if cats[0] != "Jobs & work" || cats[1] != "Prices & interest rates" {
		t.Fatalf("not sorted unique: %v", cats)
	}
}

func TestStats(t *testing.T) {
	idx := &fakeIndex{stats: semantic.IndexStats{VectorCount: 10, Dimension: 1536}}
	svc := testService(t, idx, &fakeEmbedder{}, "a", "b")
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalArticles != 2 || stats.VectorCount != 10 || stats.Dimension != 1536 {
		t.Fatalf("wrong stats: %+v", stats)
	}
}

func TestStats_Error(t *testing.T) {
	svc := testService(t, &fakeIndex{statsErr: errors.New("down")}, &fakeEmbedder{})
	if _, err := svc.Stats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
