package domain

import "regexp"

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidMetadataKeys is the whitelist of vector-index metadata keys. Updates
// carrying any other key are rejected before the remote call is issued.
var ValidMetadataKeys = map[string]bool{
	"title":                true,
	"date":                 true,
	"date_timestamp":       true,
	"url":                  true,
	"main_category":        true,
	"secondary_categories": true,
	"charts":               true,
	"teaser":               true,
}

// ValidateStub checks that a listing stub carries every field the diffing
// step depends on.
func ValidateStub(s Stub) error {
	switch {
	case s.Slug == "":
		return NewValidationError("slug", s.Slug, ErrMissingField)
	case s.URL == "":
		return NewValidationError("url", s.URL, ErrMissingField)
	case s.Title == "":
		return NewValidationError("title", s.Title, ErrMissingField)
	case !isoDate.MatchString(s.Date):
		return NewValidationError("date", s.Date, ErrInvalidDate)
	}
	return nil
}

// ValidateArticle checks the required fields of a full article record.
// Optional fields (authors, charts, related articles) may be empty; the
// extraction step already degrades them to empty lists.
func ValidateArticle(a ArticleRecord) error {
	switch {
	case a.Slug == "":
		return NewValidationError("slug", a.Slug, ErrMissingField)
	case a.Title == "":
		return NewValidationError("title", a.Title, ErrMissingField)
	case a.URL == "":
		return NewValidationError("url", a.URL, ErrMissingField)
	case !isoDate.MatchString(a.Date):
		return NewValidationError("date", a.Date, ErrInvalidDate)
	}
	return nil
}

// ValidateMetadata rejects unknown metadata keys.
func ValidateMetadata(md map[string]any) error {
	for k := range md {
		if !ValidMetadataKeys[k] {
			return NewValidationError("metadata", k, ErrInvalidMetaKey)
		}
	}
	return nil
}
