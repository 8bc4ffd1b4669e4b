package embed

import (
	"strings"
	"testing"

	"github.com/jhellingsdata/search-app/engine/domain"
)

func testArticle() domain.ArticleRecord {
	return domain.ArticleRecord{
		Title:               "What is inflation?",
		Date:                "2021-01-08",
		Slug:                "what-is-inflation",
		URL:                 "https://example.org/what-is-inflation",
		MainCategory:        "Prices",
		SecondaryCategories: []string{"Monetary policy", "Cost of living"},
		Teaser:              "Prices are rising.",
		Text:                "Para one.\nPara two.\nPara three.\nPara four.",
	}
}

func TestPrepareText_Composition(t *testing.T) {
	got := PrepareText(testArticle(), 1000)
	want := "What is inflation? What is inflation? | Prices are rising. | " +
		"Para one. Para two. Para three. | Categories: Prices, Monetary policy, Cost of living"
	if got != want {
		t.Fatalf("PrepareText =\n%q\nwant\n%q", got, want)
	}
}

func TestPrepareText_Deterministic(t *testing.T) {
	a := testArticle()
	first := PrepareText(a, 500)
	for i := 0; i < 10; i++ {
		if PrepareText(a, 500) != first {
			t.Fatal("PrepareText must be byte-identical across calls")
		}
	}
}

func TestPrepareText_TruncatesBody(t *testing.T) {
	a := testArticle()
	a.Text = strings.Repeat("x", 50) + "\n" + strings.Repeat("y", 50)

	got := PrepareText(a, 20)
	if !strings.Contains(got, strings.Repeat("x", 20)+"...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if strings.Contains(got, "y") {
		t.Fatalf("text past the budget must be cut, got %q", got)
	}
}

func TestPrepareText_FewerThanThreeParagraphs(t *testing.T) {
	a := testArticle()
	a.Text = "Only paragraph."
	got := PrepareText(a, 1000)
	if !strings.Contains(got, "| Only paragraph. |") {
		t.Fatalf("short bodies pass through untruncated, got %q", got)
	}
}

func TestPrepareText_FlattensNewlines(t *testing.T) {
	a := testArticle()
	a.Teaser = "Line one.\nLine two."
	got := PrepareText(a, 1000)
	if strings.Contains(got, "\n") {
		t.Fatalf("output must not contain newlines: %q", got)
	}
}

func TestPrepareText_NoSecondaryCategories(t *testing.T) {
	a := testArticle()
	a.SecondaryCategories = nil
	got := PrepareText(a, 1000)
	if !strings.HasSuffix(got, "Categories: Prices") {
		t.Fatalf("expected lone main category, got %q", got)
	}
}
