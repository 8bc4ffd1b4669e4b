// Package scraper implements the source-site collaborator: listing discovery,
// stub extraction, and full-article scraping. The markup selectors are the
// site-specific configuration of this client; everything downstream consumes
// only domain.Stub and domain.ArticleRecord.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/jhellingsdata/search-app/engine/domain"
	"github.com/jhellingsdata/search-app/pkg/resilience"
)

// DefaultBaseURL is the production source site.
const DefaultBaseURL = "https://www.economicsobservatory.com"

// Client scrapes the article source site. All methods are blocking and
// rate-limited; a run of consecutive fetch failures trips the breaker so a
// site outage fails fast instead of timing out per article.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBreaker overrides the fetch circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New creates a scraper client for the given base URL. An empty baseURL
// selects the production site.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerOpts),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured site root.
func (c *Client) BaseURL() string { return c.baseURL }

// CanonicalURL resolves an identifier (bare slug or full URL) to an article URL.
func (c *Client) CanonicalURL(identifier string) string {
	if strings.Contains(identifier, "/") {
		return identifier
	}
	return c.baseURL + "/" + identifier
}

// SlugFromURL returns the last path segment of an article URL.
func SlugFromURL(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

// fetchDocument GETs a URL through the rate limiter and circuit breaker and
// parses the response body.
func (c *Client) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var doc *goquery.Document
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &domain.FetchError{URL: url, Err: err}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &domain.FetchError{URL: url, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &domain.FetchError{URL: url, Status: resp.StatusCode}
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return &domain.FetchError{URL: url, Err: err}
		}
		return nil
	})
	return doc, err
}

// listingURL returns the listing page URL; page 1 has no /page/ suffix.
func (c *Client) listingURL(page int) string {
	if page <= 1 {
		return c.baseURL + "/answers"
	}
	return fmt.Sprintf("%s/answers/page/%d", c.baseURL, page)
}

// PageCount reads the total number of listing pages from the pagination
// widget ("Page 1 of 57"). A failure here is fatal to a sync run.
func (c *Client) PageCount(ctx context.Context) (int, error) {
	url := c.listingURL(1)
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(doc.Find("div.pagination").First().Text())
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return 0, &domain.ParseError{URL: url, What: "pagination"}
	}
	n, err := strconv.Atoi(fields[3])
	if err != nil {
		return 0, &domain.ParseError{URL: url, What: "pagination page count"}
	}
	return n, nil
}

// StubsOnPage returns the ordered article stubs on a listing page.
func (c *Client) StubsOnPage(ctx context.Context, page int) ([]domain.Stub, error) {
	url := c.listingURL(page)
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	listing := doc.Find("div.answers__listing-left li")
	if listing.Length() == 0 {
		return nil, &domain.ParseError{URL: url, What: "article listing"}
	}

	var stubs []domain.Stub
	var parseErr error
	listing.EachWithBreak(func(_ int, li *goquery.Selection) bool {
		stub, err := stubFromListItem(li)
		if err != nil {
			parseErr = &domain.ParseError{URL: url, What: err.Error()}
			return false
		}
		stubs = append(stubs, stub)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return stubs, nil
}

// stubFromListItem extracts a stub from one listing <li>.
func stubFromListItem(li *goquery.Selection) (domain.Stub, error) {
	link := li.Find("a[title]").First()
	href, ok := link.Attr("href")
	if !ok {
		return domain.Stub{}, fmt.Errorf("article link")
	}
	title, _ := link.Attr("title")

	date, err := ParseListingDate(li.Find("span").First().Text())
	if err != nil {
		return domain.Stub{}, fmt.Errorf("article date: %v", err)
	}

	stub := domain.Stub{
		Slug:         SlugFromURL(href),
		Title:        title,
		URL:          href,
		Date:         date,
		MainCategory: cleanText(li.Find("a.primary-category").First().Text()),
	}
	if err := domain.ValidateStub(stub); err != nil {
		return domain.Stub{}, err
	}
	return stub, nil
}

// StubFromURL fetches an article page and extracts its stub info. Used by the
// targeted update path, where no listing page is consulted.
func (c *Client) StubFromURL(ctx context.Context, url string) (domain.Stub, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return domain.Stub{}, err
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		return domain.Stub{}, &domain.ParseError{URL: url, What: "article title"}
	}

	date, err := ParseListingDate(doc.Find("div.article__meta span").First().Text())
	if err != nil {
		return domain.Stub{}, &domain.ParseError{URL: url, What: "article date"}
	}

	stub := domain.Stub{
		Slug:         SlugFromURL(url),
		Title:        title,
		URL:          url,
		Date:         date,
		MainCategory: cleanText(doc.Find("a.primary-category").First().Text()),
	}
	if err := domain.ValidateStub(stub); err != nil {
		return domain.Stub{}, err
	}
	return stub, nil
}

// cleanText collapses runs of whitespace, matching the site markup's mix of
// newlines and indentation inside text nodes.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
