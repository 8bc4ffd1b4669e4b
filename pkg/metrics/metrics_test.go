package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("searches_total", "Total searches served.")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("counter %d, want 3", c.Value())
	}

	g := r.Gauge("articles_stored", "Articles in the corpus.")
	g.Set(10)
	g.Inc()
	g.Dec()
	if g.Value() != 10 {
		t.Fatalf("gauge %d, want 10", g.Value())
	}
}

func TestSameNameReturnsSameMetric(t *testing.T) {
	r := New()
	if r.Counter("x", "") != r.Counter("x", "") {
		t.Fatal("counter not reused")
	}
	if r.Histogram("h", "", nil) != r.Histogram("h", "", nil) {
		t.Fatal("histogram not reused")
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("searches_total", "category", "Jobs & work")
	want := `searches_total{category="Jobs & work"}`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if WithLabels("plain") != "plain" {
		t.Fatal("no labels should return the name unchanged")
	}
	if WithLabels("odd", "k") != "odd" {
		t.Fatal("odd label pairs should return the name unchanged")
	}
}

func TestRender(t *testing.T) {
	r := New()
	r.Counter("searches_total", "Total searches served.").Add(5)
	r.Counter(WithLabels("scrapes_total", "outcome", "ok"), "Scrape attempts.").Inc()
	r.Counter(WithLabels("scrapes_total", "outcome", "failed"), "").Inc()
	r.Gauge("articles_stored", "").Set(42)

	out := r.Render()
	for _, want := range []string{
		"# HELP searches_total Total searches served.",
		"# TYPE searches_total counter",
		"searches_total 5",
		`scrapes_total{outcome="failed"} 1`,
		`scrapes_total{outcome="ok"} 1`,
		"articles_stored 42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistogram(t *testing.T) {
	r := New()
	h := r.Histogram("search_duration_seconds", "Search latency.", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := r.Render()
	for _, want := range []string{
		"# TYPE search_duration_seconds histogram",
		`search_duration_seconds_bucket{le="0.1"} 1`,
		`search_duration_seconds_bucket{le="1"} 2`,
		`search_duration_seconds_bucket{le="+Inf"} 3`,
		"search_duration_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("searches_total", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "searches_total 1") {
		t.Fatalf("body missing metric: %s", rec.Body.String())
	}
}
