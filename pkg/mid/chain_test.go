package mid

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jhellingsdata/search-app/pkg/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("wrong order: %v", order)
	}
}

func TestObserve_PassesThrough(t *testing.T) {
	h := Chain(okHandler(), Observe(discardLogger(), nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestObserve_RecordsRequestMetrics(t *testing.T) {
	reg := metrics.New()
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	h := Chain(notFound, Observe(discardLogger(), reg))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	out := reg.Render()
	if !strings.Contains(out, `http_requests_total{method="GET",status="404"} 1`) {
		t.Fatalf("missing labelled request counter:\n%s", out)
	}
	if !strings.Contains(out, "http_request_duration_seconds_count 1") {
		t.Fatalf("missing duration histogram:\n%s", out)
	}
}

func TestRecover_Panics(t *testing.T) {
	panics := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	})
	h := Chain(panics, Recover(discardLogger()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rec.Code)
	}
}

func TestRecover_ReraisesAbortHandler(t *testing.T) {
	aborts := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	})
	h := Chain(aborts, Recover(discardLogger()))

	defer func() {
		if recover() != http.ErrAbortHandler {
			t.Fatal("ErrAbortHandler must propagate")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatal("expected panic")
}

func TestCORS(t *testing.T) {
	h := Chain(okHandler(), CORS("*"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight got %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("preflight methods %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Every(time.Minute),
		burst:   2,
	}
	h := Chain(okHandler(), RateLimit(rl))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", rec.Code)
	}

	// A different client has its own bucket.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client got %d", rec.Code)
	}
}

func TestNewRateLimiter_ClampsZeroRate(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Close()
	if !rl.allow("10.0.0.1") {
		t.Fatal("first request must pass even at the minimum rate")
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	defer rl.Close()
	rl.allow("10.0.0.1")
	rl.clients["10.0.0.1"].lastSeen = time.Now().Add(-10 * time.Minute)
	rl.allow("10.0.0.2")

	rl.evictIdle(3 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["10.0.0.1"]; ok {
		t.Fatal("idle client not evicted")
	}
	if _, ok := rl.clients["10.0.0.2"]; !ok {
		t.Fatal("active client must survive eviction")
	}
}
