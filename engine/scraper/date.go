package scraper

import (
	"strings"
	"time"

	"github.com/jhellingsdata/search-app/engine/domain"
)

// Listing pages show dates as "Topic • 8 Jan 21"; article pages use a
// four-digit year ("8 Jan 2021"). Both normalize to ISO YYYY-MM-DD.
var listingDateLayouts = []string{"2 Jan 06", "2 Jan 2006"}

// ParseListingDate normalizes a site date string to ISO format. Text before
// a "• " separator is discarded.
func ParseListingDate(raw string) (string, error) {
	s := raw
	if i := strings.LastIndex(s, "• "); i >= 0 {
		s = s[i+len("• "):]
	}
	s = strings.TrimSpace(s)

	for _, layout := range listingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", domain.NewValidationError("date", raw, domain.ErrInvalidDate)
}
