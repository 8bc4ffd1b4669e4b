// Package domain defines the core article and embedding types shared across
// the sync pipeline, plus the validation gate applied at pipeline entry points.
package domain

// Stub is the lightweight article descriptor extracted from a listing page.
// It carries just enough to decide whether the full article needs scraping.
type Stub struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Date         string `json:"date"` // ISO YYYY-MM-DD
	MainCategory string `json:"main_category"`
}

// Chart is a (title, source) pair extracted from an article's chart sections.
type Chart struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

// RelatedArticle links an article to another by slug, with the sidebar label.
type RelatedArticle struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// ArticleRecord is the full scraped content of one article, keyed by slug.
// Re-scraping a slug replaces the record wholesale; there is no partial merge.
type ArticleRecord struct {
	Title               string           `json:"title"`
	Date                string           `json:"date"` // ISO YYYY-MM-DD
	Slug                string           `json:"slug"`
	URL                 string           `json:"url"`
	MainCategory        string           `json:"main_category"`
	Author              []string         `json:"author"`
	SecondaryCategories []string         `json:"secondary_categories"`
	RelatedArticles     []RelatedArticle `json:"related_articles"`
	Charts              []Chart          `json:"charts"`
	Teaser              string           `json:"teaser"`
	Text                string           `json:"text"` // newline-joined paragraphs
}

// LedgerEntry is one row of the embedding-tracking ledger.
type LedgerEntry struct {
	Slug         string
	DateEmbedded string // ISO YYYY-MM-DD
	Model        string
	NumTokens    int
}

// EmbeddingRecord is the per-run product of embedding one article: the vector
// plus a denormalized snapshot of the searchable metadata at embedding time.
// Staleness relative to the ArticleRecord is resolved only by re-embedding.
type EmbeddingRecord struct {
	Slug                string
	Model               string
	NumTokens           int
	Embedding           []float32
	Title               string
	Date                string
	DateTimestamp       int64 // Unix seconds derived from Date
	URL                 string
	MainCategory        string
	SecondaryCategories []string
	Charts              []string // chart titles only
	Teaser              string
}
