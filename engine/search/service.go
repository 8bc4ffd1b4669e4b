// Package search answers semantic queries against the vector index, pairing
// each hit with the metadata snapshot stored alongside its vector.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jhellingsdata/search-app/engine/semantic"
	"github.com/jhellingsdata/search-app/engine/store"
	"github.com/jhellingsdata/search-app/pkg/fn"
)

const DefaultTopK = 5

// Embedder turns the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, int, error)
}

// Index runs the similarity query.
type Index interface {
	Search(ctx context.Context, vector []float32, topK uint64, filter semantic.Filter) ([]semantic.SearchResult, error)
	Describe(ctx context.Context) (semantic.IndexStats, error)
}

// Query is one search request.
type Query struct {
	Text     string `json:"query"`
	Category string `json:"category,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

// Result is one ranked article hit.
type Result struct {
	Title               string   `json:"title"`
	URL                 string   `json:"url"`
	Date                string   `json:"date"`
	MainCategory        string   `json:"main_category"`
	SecondaryCategories []string `json:"secondary_categories"`
	Charts              []string `json:"charts"`
	Teaser              string   `json:"teaser"`
	SimilarityScore     float32  `json:"similarity_score"`
}

// Response is the full answer to a query.
type Response struct {
	Results      []Result `json:"results"`
	Query        string   `json:"query"`
	TotalResults int      `json:"total_results"`
	SearchTime   float64  `json:"search_time"` // seconds
}

// Stats summarizes the corpus and the remote index.
type Stats struct {
	TotalArticles int     `json:"total_articles"`
	VectorCount   uint64  `json:"vector_count"`
	Dimension     uint64  `json:"dimension"`
	IndexFullness float64 `json:"index_fullness"`
}

// Service wires query embedding to filtered vector search.
type Service struct {
	embedder Embedder
	index    Index
	articles *store.ArticleStore
	log      *slog.Logger
}

func New(embedder Embedder, index Index, articles *store.ArticleStore, log *slog.Logger) *Service {
	return &Service{
		embedder: embedder,
		index:    index,
		articles: articles,
		log:      log.With("component", "search"),
	}
}

// Search embeds the query text and runs a filtered similarity search.
func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	start := time.Now()
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedStage := fn.TracedStage("search.embed", func(ctx context.Context, text string) fn.Result[[]float32] {
		vector, _, err := s.embedder.Embed(ctx, text)
		return fn.FromPair(vector, err)
	})
	queryStage := fn.TracedStage("search.query", func(ctx context.Context, vector []float32) fn.Result[[]semantic.SearchResult] {
		return fn.FromPair(s.index.Search(ctx, vector, uint64(topK), semantic.Filter{
			Category: q.Category,
			DateFrom: q.DateFrom,
			DateTo:   q.DateTo,
		}))
	})

	hits, err := fn.Then(embedStage, queryStage)(ctx, q.Text).Unwrap()
	if err != nil {
		return Response{}, fmt.Errorf("search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Title:               hit.Title,
			URL:                 hit.URL,
			Date:                hit.Date,
			MainCategory:        hit.MainCategory,
			SecondaryCategories: hit.SecondaryCategories,
			Charts:              hit.Charts,
			Teaser:              hit.Teaser,
			SimilarityScore:     hit.Score,
		})
	}
	elapsed := time.Since(start).Seconds()
	s.log.Info("search served", "query", q.Text, "results", len(results), "seconds", elapsed)
	return Response{
		Results:      results,
		Query:        q.Text,
		TotalResults: len(results),
		SearchTime:   elapsed,
	}, nil
}

// Categories lists the distinct main categories in the corpus, sorted.
func (s *Service) Categories() []string {
	return s.articles.Categories()
}

// Stats combines local corpus size with remote index stats.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	idx, err := s.index.Describe(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("search: describe index: %w", err)
	}
	return Stats{
		TotalArticles: s.articles.Len(),
		VectorCount:   idx.VectorCount,
		Dimension:     idx.Dimension,
		IndexFullness: idx.Fullness,
	}, nil
}
