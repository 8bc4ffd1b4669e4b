package embed

import (
	"strings"

	"github.com/jhellingsdata/search-app/engine/domain"
)

// DefaultChunkSize is the character budget for the body-text portion of the
// embedding input.
const DefaultChunkSize = 1000

// PrepareText composes the embedding input for an article. The composition
// is fixed so embeddings stay comparable across runs: the title doubled to
// upweight it, then the teaser, the first three body paragraphs truncated to
// the chunk budget, and the category list with the main category first.
func PrepareText(article domain.ArticleRecord, chunkSize int) string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	paragraphs := strings.Split(article.Text, "\n")
	if len(paragraphs) > 3 {
		paragraphs = paragraphs[:3]
	}
	opening := strings.Join(paragraphs, " ")
	if len(opening) > chunkSize {
		opening = opening[:chunkSize] + "..."
	}

	categories := append([]string{article.MainCategory}, article.SecondaryCategories...)

	combined := article.Title + " " + article.Title + " | " +
		article.Teaser + " | " +
		opening + " | Categories: " + strings.Join(categories, ", ")

	return strings.TrimSpace(strings.ReplaceAll(combined, "\n", " "))
}
