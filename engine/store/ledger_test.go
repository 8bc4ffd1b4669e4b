package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhellingsdata/search-app/engine/domain"
)

func entry(slug, model string) domain.LedgerEntry {
	return domain.LedgerEntry{
		Slug:         slug,
		DateEmbedded: "2024-03-01",
		Model:        model,
		NumTokens:    321,
	}
}

func TestOpenLedger_CreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedded_articles.csv")
	_, err := OpenLedger(path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "slug,date_embedded,embedding_model,num_tokens", strings.TrimSpace(string(raw)))
}

func TestRecordAndContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l, err := OpenLedger(path)
	require.NoError(t, err)

	require.NoError(t, l.Record(entry("a", "text-embedding-3-small")))

	assert.True(t, l.Contains("a", "text-embedding-3-small"))
	assert.False(t, l.Contains("a", "text-embedding-3-large"), "model is part of the key")
	assert.False(t, l.Contains("b", "text-embedding-3-small"))
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(entry("a", "m")))

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	assert.True(t, reopened.Contains("a", "m"))
	require.Len(t, reopened.Entries(), 1)
	assert.Equal(t, 321, reopened.Entries()[0].NumTokens)
}

func TestRemoveThenRecord_NoDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l, err := OpenLedger(path)
	require.NoError(t, err)

	// A forced re-embed cycle: remove, then record again. Exactly one
	// current entry must remain however many cycles run.
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Remove("a"))
		require.NoError(t, l.Record(entry("a", "m")))
	}

	assert.True(t, l.Contains("a", "m"))
	count := 0
	for _, e := range l.Entries() {
		if e.Slug == "a" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRemoveDropsAllModelsForSlug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(entry("a", "m1")))
	require.NoError(t, l.Record(entry("a", "m2")))
	require.NoError(t, l.Record(entry("b", "m1")))

	require.NoError(t, l.Remove("a"))

	assert.False(t, l.Contains("a", "m1"))
	assert.False(t, l.Contains("a", "m2"))
	assert.True(t, l.Contains("b", "m1"))
}
