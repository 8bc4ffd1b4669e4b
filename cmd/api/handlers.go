package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jhellingsdata/search-app/engine/graph"
	"github.com/jhellingsdata/search-app/engine/search"
	"github.com/jhellingsdata/search-app/pkg/metrics"
)

// searchService is the slice of search.Service the handlers use.
type searchService interface {
	Search(ctx context.Context, q search.Query) (search.Response, error)
	Categories() []string
	Stats(ctx context.Context) (search.Stats, error)
}

// relatedFinder answers the related-articles route. Nil when the graph store
// is not configured.
type relatedFinder interface {
	Related(ctx context.Context, slug string) ([]graph.Neighbor, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch records only the search-domain counters; request counts and
// latency come from the mid.Observe middleware.
func handleSearch(svc searchService, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	searches := reg.Counter("searches_total", "Search requests served.")
	failures := reg.Counter("search_failures_total", "Search requests that errored.")

	return func(w http.ResponseWriter, r *http.Request) {
		var q search.Query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if q.Text == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}

		resp, err := svc.Search(r.Context(), q)
		if err != nil {
			failures.Inc()
			logger.Error("search failed", "query", q.Text, "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		searches.Inc()
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCategories(svc searchService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.Categories())
	}
}

func handleStats(svc searchService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			logger.Error("stats failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleRelated(finder relatedFinder, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if finder == nil {
			writeError(w, http.StatusNotFound, "related articles not available")
			return
		}
		slug := r.PathValue("slug")
		neighbors, err := finder.Related(r.Context(), slug)
		if err != nil {
			logger.Error("related lookup failed", "slug", slug, "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if neighbors == nil {
			neighbors = []graph.Neighbor{}
		}
		writeJSON(w, http.StatusOK, neighbors)
	}
}
