package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jhellingsdata/search-app/engine/sync"
)

type fakeUpdater struct {
	calls []sync.UpdateRequest
}

func (f *fakeUpdater) UpdateOne(_ context.Context, identifier, oldSlug string, forceReembed bool) bool {
	f.calls = append(f.calls, sync.UpdateRequest{Identifier: identifier, OldSlug: oldSlug, ForceReembed: forceReembed})
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateHandler(t *testing.T) {
	u := &fakeUpdater{}
	h := updateHandler(u, testLogger())

	h(context.Background(), sync.UpdateRequest{Identifier: "uk-inflation", OldSlug: "old", ForceReembed: true})
	if len(u.calls) != 1 {
		t.Fatalf("got %d calls", len(u.calls))
	}
	c := u.calls[0]
	if c.Identifier != "uk-inflation" || c.OldSlug != "old" || !c.ForceReembed {
		t.Fatalf("wrong call: %+v", c)
	}
}

func TestUpdateHandler_DropsEmptyIdentifier(t *testing.T) {
	u := &fakeUpdater{}
	h := updateHandler(u, testLogger())

	h(context.Background(), sync.UpdateRequest{})
	if len(u.calls) != 0 {
		t.Fatal("empty identifier must be dropped")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.NATSURL == "" || cfg.Collection == "" || cfg.LedgerPath == "" {
		t.Fatalf("empty defaults: %+v", cfg)
	}
}
