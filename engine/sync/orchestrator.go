// Package sync drives the scrape, embed and vector-upsert pipeline. It owns
// the control flow; all network collaborators come in behind small interfaces
// so the loop logic is testable without a live site or index.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jhellingsdata/search-app/engine/domain"
	"github.com/jhellingsdata/search-app/engine/embed"
	"github.com/jhellingsdata/search-app/engine/store"
	"github.com/jhellingsdata/search-app/pkg/fn"
)

// SiteClient fetches listing pages and article content from the source site.
type SiteClient interface {
	PageCount(ctx context.Context) (int, error)
	StubsOnPage(ctx context.Context, page int) ([]domain.Stub, error)
	StubFromURL(ctx context.Context, url string) (domain.Stub, error)
	FetchArticle(ctx context.Context, stub domain.Stub) (domain.ArticleRecord, error)
	CanonicalURL(identifier string) string
}

// Embedder turns prepared text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, int, error)
	Model() string
}

// VectorIndex is the remote similarity index.
type VectorIndex interface {
	Upsert(ctx context.Context, records []domain.EmbeddingRecord, batchSize int) error
	DeleteBySlug(ctx context.Context, slug string) error
}

// Ledger tracks which (slug, model) pairs have been embedded.
type Ledger interface {
	Contains(slug, model string) bool
	Record(entry domain.LedgerEntry) error
	Remove(slug string) error
}

// GraphWriter mirrors article relationships into the graph store. Optional.
type GraphWriter interface {
	SaveArticle(ctx context.Context, rec domain.ArticleRecord) error
}

// Options tune a sync run.
type Options struct {
	// MaxPages clamps the pagination walk. 0 means all available pages.
	MaxPages int
	// MinPages suppresses the fully-known-page early stop while the walk is
	// still within the first MinPages pages. The early stop assumes the
	// listing is reverse-chronological and append-only; MinPages is the
	// escape hatch for when that assumption is suspect.
	MinPages int
	// SkipExisting drops stubs already present in the article store instead
	// of re-scraping them.
	SkipExisting bool
	// BatchSize for vector index upserts.
	BatchSize int
	// ChunkSize is the character budget for the embedded body excerpt.
	ChunkSize int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = embed.DefaultChunkSize
	}
	return o
}

// Orchestrator sequences scraping, embedding and index writes. Processing is
// deliberately sequential; per-article durability comes from saving the store
// after every successful scrape.
type Orchestrator struct {
	site     SiteClient
	embedder Embedder
	index    VectorIndex
	ledger   Ledger
	articles *store.ArticleStore
	graph    GraphWriter // nil disables graph sync
	opts     Options
	log      *slog.Logger
}

// Config collects the orchestrator's collaborators.
type Config struct {
	Site     SiteClient
	Embedder Embedder
	Index    VectorIndex
	Ledger   Ledger
	Articles *store.ArticleStore
	Graph    GraphWriter
	Options  Options
	Log      *slog.Logger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		site:     cfg.Site,
		embedder: cfg.Embedder,
		index:    cfg.Index,
		ledger:   cfg.Ledger,
		articles: cfg.Articles,
		graph:    cfg.Graph,
		opts:     cfg.Options.withDefaults(),
		log:      cfg.Log.With("component", "sync"),
	}
}

// Sync walks the listing pages in ascending order and pulls article content
// into the store. It returns how many articles were new vs re-scraped.
//
// The walk stops early when a page turns out to be fully known, on the
// assumption that everything past it is known too. Per-article scrape
// failures are logged and skipped; listing-level failures abort the run.
func (o *Orchestrator) Sync(ctx context.Context) (newCount, updatedCount int, err error) {
	pages, err := o.site.PageCount(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sync: page count: %w", err)
	}
	if o.opts.MaxPages > 0 && pages > o.opts.MaxPages {
		pages = o.opts.MaxPages
	}
	o.log.Info("sync started", "pages", pages, "skip_existing", o.opts.SkipExisting)

	for page := 1; page <= pages; page++ {
		stubs, err := o.site.StubsOnPage(ctx, page)
		if err != nil {
			return newCount, updatedCount, fmt.Errorf("sync: list page %d: %w", page, err)
		}

		if len(stubs) == 0 {
			o.log.Info("empty listing page, stopping walk", "page", page)
			break
		}

		fresh := fn.Filter(stubs, func(s domain.Stub) bool { return !o.articles.Has(s.Slug) })
		allKnown := len(fresh) == 0

		toScrape := stubs
		if o.opts.SkipExisting {
			toScrape = fresh
		}
		if allKnown && page > o.opts.MinPages {
			o.log.Info("page fully known, stopping walk", "page", page)
			break
		}

		for _, stub := range toScrape {
			n, u := o.scrapeOne(ctx, stub)
			newCount += n
			updatedCount += u
		}
	}

	o.log.Info("sync finished", "new", newCount, "updated", updatedCount)
	return newCount, updatedCount, nil
}

// scrapeOne fetches, stores and persists a single article. Failures are
// logged and reported as zero counts, never propagated.
func (o *Orchestrator) scrapeOne(ctx context.Context, stub domain.Stub) (newCount, updatedCount int) {
	article, err := o.site.FetchArticle(ctx, stub)
	if err != nil {
		o.log.Warn("scrape failed, skipping", "slug", stub.Slug, "err", err)
		return 0, 0
	}
	isNew := !o.articles.Has(article.Slug)
	o.articles.Upsert(article.Slug, article)
	if err := o.articles.Save(); err != nil {
		o.log.Error("persist failed", "slug", article.Slug, "err", err)
	}
	if o.graph != nil {
		if err := o.graph.SaveArticle(ctx, article); err != nil {
			o.log.Warn("graph sync failed", "slug", article.Slug, "err", err)
		}
	}
	if isNew {
		return 1, 0
	}
	return 0, 1
}

// ProcessEmbeddings embeds every stored article whose (slug, model) pair is
// not yet in the ledger, or all of them when force is set. Each success is
// recorded in the ledger immediately; each failure skips that article. The
// returned batch has not been written to the index yet.
func (o *Orchestrator) ProcessEmbeddings(ctx context.Context, force bool) ([]domain.EmbeddingRecord, error) {
	model := o.embedder.Model()
	all := o.articles.All()
	slugs := make([]string, 0, len(all))
	for slug := range all {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var records []domain.EmbeddingRecord
	for _, slug := range slugs {
		if o.ledger.Contains(slug, model) {
			if !force {
				continue
			}
			// Drop the existing row so the cycle leaves one entry per slug.
			if err := o.ledger.Remove(slug); err != nil {
				o.log.Error("ledger remove failed, skipping", "slug", slug, "err", err)
				continue
			}
		}
		rec, err := o.embedOne(ctx, all[slug])
		if err != nil {
			o.log.Warn("embedding failed, skipping", "slug", slug, "err", err)
			continue
		}
		if err := o.ledger.Record(domain.LedgerEntry{
			Slug:         slug,
			DateEmbedded: time.Now().UTC().Format("2006-01-02"),
			Model:        model,
			NumTokens:    rec.NumTokens,
		}); err != nil {
			o.log.Error("ledger write failed", "slug", slug, "err", err)
		}
		records = append(records, rec)
	}
	o.log.Info("embeddings processed", "embedded", len(records), "total", len(slugs), "force", force)
	return records, nil
}

// UpsertEmbeddings writes a batch of embedding records to the vector index.
func (o *Orchestrator) UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := o.index.Upsert(ctx, records, o.opts.BatchSize); err != nil {
		return fmt.Errorf("sync: upsert embeddings: %w", err)
	}
	o.log.Info("embeddings upserted", "count", len(records), "batch_size", o.opts.BatchSize)
	return nil
}

// UpdateOne refreshes a single article end to end: re-scrape, re-store, and
// optionally re-embed and re-index. The identifier may be a full article URL
// or a bare slug. When oldSlug is given the article is treated as renamed and
// the old key is removed from the store, ledger and index.
//
// The operation never returns an error; every failure is logged and reported
// as false. Callers needing detail must consult the logs.
func (o *Orchestrator) UpdateOne(ctx context.Context, identifier, oldSlug string, forceReembed bool) bool {
	url := o.site.CanonicalURL(identifier)
	log := o.log.With("url", url, "old_slug", oldSlug)

	stub, err := o.site.StubFromURL(ctx, url)
	if err != nil {
		log.Error("update: stub fetch failed", "err", err)
		return false
	}
	article, err := o.site.FetchArticle(ctx, stub)
	if err != nil {
		log.Error("update: article fetch failed", "slug", stub.Slug, "err", err)
		return false
	}
	slug := article.Slug

	o.articles.Upsert(slug, article)
	renamed := oldSlug != "" && oldSlug != slug
	if renamed && o.articles.Has(oldSlug) {
		o.articles.Remove(oldSlug)
	}
	if err := o.articles.Save(); err != nil {
		log.Error("update: persist failed", "slug", slug, "err", err)
		return false
	}
	if o.graph != nil {
		if err := o.graph.SaveArticle(ctx, article); err != nil {
			log.Warn("update: graph sync failed", "slug", slug, "err", err)
		}
	}

	if !forceReembed {
		log.Info("update: article refreshed", "slug", slug)
		return true
	}

	if renamed {
		if err := o.ledger.Remove(oldSlug); err != nil {
			log.Error("update: ledger remove failed", "err", err)
			return false
		}
	}
	if err := o.ledger.Remove(slug); err != nil {
		log.Error("update: ledger remove failed", "slug", slug, "err", err)
		return false
	}

	rec, err := o.embedOne(ctx, article)
	if err != nil {
		log.Error("update: re-embed failed", "slug", slug, "err", err)
		return false
	}
	if err := o.index.Upsert(ctx, []domain.EmbeddingRecord{rec}, o.opts.BatchSize); err != nil {
		log.Error("update: index upsert failed", "slug", slug, "err", err)
		return false
	}
	if err := o.ledger.Record(domain.LedgerEntry{
		Slug:         slug,
		DateEmbedded: time.Now().UTC().Format("2006-01-02"),
		Model:        o.embedder.Model(),
		NumTokens:    rec.NumTokens,
	}); err != nil {
		log.Error("update: ledger write failed", "slug", slug, "err", err)
	}
	if renamed {
		if err := o.index.DeleteBySlug(ctx, oldSlug); err != nil {
			// The new vector is live but the old one could not be removed, so
			// the index now holds both slugs and nothing will repair that
			// automatically.
			log.Error("update: stale vector left in index",
				"reconciliation_gap", true, "slug", slug, "err", err)
			return false
		}
	}
	log.Info("update: article re-embedded", "slug", slug, "tokens", rec.NumTokens)
	return true
}

// embedOne prepares the embedding input for one article, calls the embedder
// and assembles the denormalized record destined for the index.
func (o *Orchestrator) embedOne(ctx context.Context, article domain.ArticleRecord) (domain.EmbeddingRecord, error) {
	text := embed.PrepareText(article, o.opts.ChunkSize)
	vector, tokens, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingRecord{}, err
	}
	ts, err := dateTimestamp(article.Date)
	if err != nil {
		return domain.EmbeddingRecord{}, err
	}
	return domain.EmbeddingRecord{
		Slug:                article.Slug,
		Model:               o.embedder.Model(),
		NumTokens:           tokens,
		Embedding:           vector,
		Title:               article.Title,
		Date:                article.Date,
		DateTimestamp:       ts,
		URL:                 article.URL,
		MainCategory:        article.MainCategory,
		SecondaryCategories: article.SecondaryCategories,
		Charts:              fn.Map(article.Charts, func(c domain.Chart) string { return c.Title }),
		Teaser:              article.Teaser,
	}, nil
}

func dateTimestamp(date string) (int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, domain.NewValidationError("date", date, domain.ErrInvalidDate)
	}
	return t.Unix(), nil
}
