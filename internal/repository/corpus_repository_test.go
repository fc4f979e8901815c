package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"healthcare-rag/internal/model"
	sqliteClient "healthcare-rag/internal/platform/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqliteClient.New(context.Background(), filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.CorpusEntry{}, &model.CorpusCollection{}, &model.QueryAudit{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func rows(generation string, ids ...string) []model.CorpusEntry {
	out := make([]model.CorpusEntry, len(ids))
	for i, id := range ids {
		out[i] = model.CorpusEntry{ID: id, Collection: "c", Generation: generation, Position: i, Source: "s", Content: id}
		out[i].SetEmbedding([]float32{1, 0})
	}
	return out
}

func TestSwapGenerationDropsOthers(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	entries := NewCorpusEntryRepository(db)
	collections := NewCorpusCollectionRepository(db)

	require.NoError(t, entries.CreateBatch(ctx, rows("g1", "a", "b")))
	require.NoError(t, entries.CreateBatch(ctx, rows("g2", "c")))

	live, err := collections.SwapGeneration(ctx, "c", "g2", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(1), live.EntryCount)

	got, err := collections.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "g2", got.LiveGeneration)
	assert.Equal(t, "m", got.EmbeddingModel)

	n, err := entries.CountByGeneration(ctx, "c", "g1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResetClearsCollection(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	entries := NewCorpusEntryRepository(db)
	collections := NewCorpusCollectionRepository(db)

	require.NoError(t, entries.CreateBatch(ctx, rows("g1", "a")))
	_, err := collections.SwapGeneration(ctx, "c", "g1", "m")
	require.NoError(t, err)
	require.NoError(t, collections.Reset(ctx, "c"))

	got, err := collections.Get(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, got.LiveGeneration)
	assert.Zero(t, got.EntryCount)

	list, err := entries.ListByGeneration(ctx, "c", "g1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetMissingCollection(t *testing.T) {
	got, err := NewCorpusCollectionRepository(newTestDB(t)).Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMaxPosition(t *testing.T) {
	ctx := context.Background()
	entries := NewCorpusEntryRepository(newTestDB(t))

	pos, err := entries.MaxPosition(ctx, "c", "g1")
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	require.NoError(t, entries.CreateBatch(ctx, rows("g1", "a", "b", "c")))
	pos, err = entries.MaxPosition(ctx, "c", "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestQueryAuditCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewQueryAuditRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, &model.QueryAudit{ID: "a1", Collection: "c", Question: "q", Category: "general", PromptVersion: "v1"}))

	list, err := repo.ListRecent(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
}
