package main

import (
	"context"

	"github.com/jhellingsdata/search-app/engine/sync"
	"github.com/jhellingsdata/search-app/pkg/fn"
)

// embedResult carries one embedding call's outputs through the retry helper.
type embedResult struct {
	vector []float32
	tokens int
}

// retryEmbedder decorates an embedder with bounded exponential backoff. The
// pipeline's default is fail-and-skip; this is the opt-in alternative for
// flaky network conditions.
type retryEmbedder struct {
	inner sync.Embedder
	opts  fn.RetryOpts
}

func newRetryEmbedder(inner sync.Embedder, attempts int) *retryEmbedder {
	opts := fn.DefaultRetry
	opts.MaxAttempts = attempts
	return &retryEmbedder{inner: inner, opts: opts}
}

func (r *retryEmbedder) Embed(ctx context.Context, text string) ([]float32, int, error) {
	res := fn.Retry(ctx, r.opts, func(ctx context.Context) fn.Result[embedResult] {
		vector, tokens, err := r.inner.Embed(ctx, text)
		if err != nil {
			return fn.Err[embedResult](err)
		}
		return fn.Ok(embedResult{vector: vector, tokens: tokens})
	})
	out, err := res.Unwrap()
	if err != nil {
		return nil, 0, err
	}
	return out.vector, out.tokens, nil
}

func (r *retryEmbedder) Model() string { return r.inner.Model() }
