package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jhellingsdata/search-app/engine/domain"
	"github.com/jhellingsdata/search-app/pkg/fn"
)

// Headings excluded from the article body: boilerplate sections that would
// pollute the embedding input.
var excludedHeadings = []string{"further reading", "experts on this", "find out more"}

// FetchArticle scrapes the full content for a stub. The returned record
// replaces any previous record for the slug wholesale.
func (c *Client) FetchArticle(ctx context.Context, stub domain.Stub) (domain.ArticleRecord, error) {
	doc, err := c.fetchDocument(ctx, stub.URL)
	if err != nil {
		return domain.ArticleRecord{}, err
	}

	rec := domain.ArticleRecord{
		Title:               stub.Title,
		Date:                stub.Date,
		Slug:                stub.Slug,
		URL:                 stub.URL,
		MainCategory:        stub.MainCategory,
		Author:              extractAuthors(doc),
		SecondaryCategories: extractSecondaryCategories(doc),
		RelatedArticles:     extractRelatedArticles(doc),
		Charts:              extractCharts(doc),
		Teaser:              extractTeaser(doc),
	}

	body, err := extractBody(doc)
	if err != nil {
		return domain.ArticleRecord{}, &domain.ParseError{URL: stub.URL, What: "article body"}
	}
	rec.Text = body

	if err := domain.ValidateArticle(rec); err != nil {
		return domain.ArticleRecord{}, err
	}
	return rec, nil
}

func extractAuthors(doc *goquery.Document) []string {
	text := cleanText(doc.Find("span.author").First().Text())
	if text == "" {
		return []string{}
	}
	return strings.Split(text, ", ")
}

func extractTeaser(doc *goquery.Document) string {
	return cleanText(doc.Find("div.article__intro").First().Text())
}

func extractSecondaryCategories(doc *goquery.Document) []string {
	cats := []string{}
	doc.Find("ul.article__sidebar-categories li").Each(func(_ int, li *goquery.Selection) {
		if t := cleanText(li.Text()); t != "" {
			cats = append(cats, t)
		}
	})
	return cats
}

func extractRelatedArticles(doc *goquery.Document) []domain.RelatedArticle {
	related := []domain.RelatedArticle{}
	doc.Find("ul.article__sidebar-links li").Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a").First().Attr("href")
		if !ok {
			return
		}
		related = append(related, domain.RelatedArticle{
			Label: cleanText(li.Text()),
			Slug:  SlugFromURL(href),
		})
	})
	return related
}

// extractCharts collects (title, source) pairs from chart sections. Charts
// nested inside wp-block-column wrappers carry their captions on the wrapper's
// siblings rather than their own. Duplicate pairs keep first occurrence only.
func extractCharts(doc *goquery.Document) []domain.Chart {
	charts := []domain.Chart{}
	doc.Find("section.blocks__chart").Each(func(_ int, sec *goquery.Selection) {
		var title, source string
		parent := sec.Parent()
		if parent.HasClass("wp-block-column") {
			wrapper := parent.Parent()
			title = cleanText(wrapper.Prev().Text())
			source = cleanText(wrapper.Next().Text())
		} else {
			title = cleanText(sec.Prev().Text())
			source = cleanText(sec.Next().Text())
		}
		charts = append(charts, domain.Chart{Title: title, Source: source})
	})
	return fn.UniqueBy(charts, func(c domain.Chart) domain.Chart { return c })
}

// extractBody returns the article text: paragraphs and non-boilerplate h3
// headings, in document order, newline-joined.
func extractBody(doc *goquery.Document) (string, error) {
	body := doc.Find("div.article__body").First()
	if body.Length() == 0 {
		return "", &domain.ParseError{What: "article__body"}
	}

	// Header tags below h3 are chart annotations, not article text.
	body.Find("h4, h5, h6").Remove()

	var paragraphs []string
	body.Find("p, h3").Each(func(_ int, sel *goquery.Selection) {
		text := cleanText(sel.Text())
		if text == "" {
			return
		}
		if goquery.NodeName(sel) == "h3" && isExcludedHeading(text) {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	return strings.Join(paragraphs, "\n"), nil
}

func isExcludedHeading(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range excludedHeadings {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
