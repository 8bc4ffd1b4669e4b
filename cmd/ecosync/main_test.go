package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jhellingsdata/search-app/pkg/fn"
)

type countingEmbedder struct {
	failures int
	calls    int
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, int, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, 0, errors.New("transient")
	}
	return []float32{1, 0}, 5, nil
}

func (c *countingEmbedder) Model() string { return "test-model" }

func fastRetryEmbedder(inner *countingEmbedder, attempts int) *retryEmbedder {
	return &retryEmbedder{
		inner: inner,
		opts:  fn.RetryOpts{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	}
}

func TestRetryEmbedder_RecoversAfterFailure(t *testing.T) {
	inner := &countingEmbedder{failures: 2}
	re := fastRetryEmbedder(inner, 3)

	vector, tokens, err := re.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 2 || tokens != 5 {
		t.Fatalf("wrong result: %v %d", vector, tokens)
	}
	if inner.calls != 3 {
		t.Fatalf("called %d times, want 3", inner.calls)
	}
	if re.Model() != "test-model" {
		t.Fatalf("model not forwarded")
	}
}

func TestRetryEmbedder_Exhausts(t *testing.T) {
	inner := &countingEmbedder{failures: 10}
	re := fastRetryEmbedder(inner, 2)

	if _, _, err := re.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 2 {
		t.Fatalf("called %d times, want 2", inner.calls)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))

	want := map[string]bool{"sync": false, "embed": false, "update": false, "init-index": false, "stats": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %s", name)
		}
	}
}

func TestRootCmd_Help(t *testing.T) {
	root := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sync", "--help"})

	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, flag := range []string{"--max-pages", "--min-pages", "--skip-existing"} {
		if !bytes.Contains(out.Bytes(), []byte(flag)) {
			t.Errorf("help missing %s", flag)
		}
	}
}
