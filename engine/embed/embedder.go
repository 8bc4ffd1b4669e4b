// Package embed adapts the OpenAI embeddings API to the pipeline: text in,
// fixed-dimension vector plus token count out. The adapter holds no state
// beyond client configuration; retry policy belongs to callers.
package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jhellingsdata/search-app/engine/domain"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimension is the output dimension of DefaultModel.
	DefaultDimension = 1536
)

// Embedder generates embeddings via the OpenAI API.
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) { e.model = model }
}

// WithDimension overrides the vector dimension.
func WithDimension(dim int) Option {
	return func(e *Embedder) { e.dimension = dim }
}

// WithBaseURL points the client at an alternate API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(e *Embedder) {
		e.client = openai.NewClient(option.WithBaseURL(u), option.WithAPIKey("test"), option.WithMaxRetries(0))
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Embedder) {
		e.client = openai.NewClient(option.WithHTTPClient(hc))
	}
}

// New creates an Embedder with the given API key.
func New(apiKey string, opts ...Option) *Embedder {
	e := &Embedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     DefaultModel,
		dimension: DefaultDimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the configured model name. It keys the embedding ledger.
func (e *Embedder) Model() string { return e.model }

// Dimension returns the configured vector dimension.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed generates the embedding vector and total token count for one text.
// The input is assumed already composed and truncated by the caller.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, int, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(resp.Data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty response", domain.ErrEmbedding)
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, int(resp.Usage.TotalTokens), nil
}
