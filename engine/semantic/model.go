package semantic

// Filter narrows a similarity search. Category is exact-match equality; the
// date bounds are inclusive and applied to the precomputed date_timestamp
// payload field. All present conditions are ANDed.
type Filter struct {
	Category string
	DateFrom string // ISO YYYY-MM-DD
	DateTo   string // ISO YYYY-MM-DD
}

// SearchResult is one similarity hit with its metadata snapshot.
type SearchResult struct {
	Slug                string   `json:"slug"`
	Score               float32  `json:"score"`
	Title               string   `json:"title"`
	URL                 string   `json:"url"`
	Date                string   `json:"date"`
	MainCategory        string   `json:"main_category"`
	SecondaryCategories []string `json:"secondary_categories"`
	Charts              []string `json:"charts"`
	Teaser              string   `json:"teaser"`
}

// IndexStats describes the remote index. Fullness is reported as 0 by
// backends that have no fixed capacity.
type IndexStats struct {
	VectorCount uint64  `json:"vector_count"`
	Dimension   uint64  `json:"dimension"`
	Fullness    float64 `json:"index_fullness"`
}
