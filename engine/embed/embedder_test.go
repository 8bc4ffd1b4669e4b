package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhellingsdata/search-app/engine/domain"
)

func TestNew_Defaults(t *testing.T) {
	e := New("key")
	assert.Equal(t, DefaultModel, e.Model())
	assert.Equal(t, DefaultDimension, e.Dimension())
}

func TestNew_OptionsOverrideDefaults(t *testing.T) {
	e := New("key", WithModel("text-embedding-3-large"), WithDimension(3072))
	assert.Equal(t, "text-embedding-3-large", e.Model())
	assert.Equal(t, 3072, e.Dimension())
}

func embeddingsStub(t *testing.T, status int, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_ReturnsVectorAndTokens(t *testing.T) {
	srv := embeddingsStub(t, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
		},
		"model": "text-embedding-3-small",
		"usage": map[string]any{"prompt_tokens": 7, "total_tokens": 7},
	})

	e := New("key", WithBaseURL(srv.URL), WithDimension(3))
	vec, tokens, err := e.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.InDelta(t, 0.2, vec[1], 1e-6)
	assert.Equal(t, 7, tokens)
}

func TestEmbed_APIFailure(t *testing.T) {
	srv := embeddingsStub(t, http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"message": "boom"},
	})

	e := New("key", WithBaseURL(srv.URL))
	_, _, err := e.Embed(context.Background(), "text")
	assert.True(t, errors.Is(err, domain.ErrEmbedding), "error should wrap the embedding sentinel: %v", err)
}

func TestEmbed_EmptyData(t *testing.T) {
	srv := embeddingsStub(t, http.StatusOK, map[string]any{
		"object": "list",
		"data":   []map[string]any{},
		"model":  "text-embedding-3-small",
		"usage":  map[string]any{"prompt_tokens": 0, "total_tokens": 0},
	})

	e := New("key", WithBaseURL(srv.URL))
	_, _, err := e.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}
