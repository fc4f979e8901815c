package index

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqliteClient "healthcare-rag/internal/platform/sqlite"
)

func newTestIndex(t *testing.T, embeddingModel string) *Index {
	t.Helper()
	return newTestIndexAt(t, filepath.Join(t.TempDir(), "corpus.db"), embeddingModel)
}

func newTestIndexAt(t *testing.T, path, embeddingModel string) *Index {
	t.Helper()
	db, err := sqliteClient.New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	idx := NewIndex(db, "healthcare_analysis", embeddingModel)
	require.NoError(t, idx.Init(context.Background()))
	return idx
}

func entry(text, source string, vec ...float32) Entry {
	return Entry{Text: text, Source: source, Vector: vec}
}

func TestSearchEmptyIndexReturnsEmptyResult(t *testing.T) {
	idx := newTestIndex(t, "m")
	res, err := idx.Search(context.Background(), []float32{1, 0}, 5, 15, 0.7)
	require.NoError(t, err)
	assert.Empty(t, res)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestResetThenEmpty(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{
		entry("a", "s1", 1, 0),
		entry("b", "s2", 0, 1),
	}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, idx.Reset(ctx))
	require.NoError(t, idx.Reset(ctx))

	res, err := idx.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
	require.NoError(t, err)
	assert.Empty(t, res)

	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertAppendsToLiveGeneration(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{entry("a", "s", 1, 0)}))
	require.NoError(t, idx.Insert(ctx, []Entry{entry("b", "s", 0, 1)}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	err = idx.Insert(ctx, []Entry{entry("c", "s", 1, 0, 0)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStageIsInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{entry("old", "s", 1, 0)}))

	gen, err := idx.Stage(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.InsertStaged(ctx, gen, []Entry{
		entry("new-1", "s", 1, 0),
		entry("new-2", "s", 0, 1),
	}))

	res, err := idx.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "old", res[0].Text)

	stats, err := idx.Commit(ctx, gen)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.EntryCount)
	assert.Equal(t, gen, stats.LiveGeneration)

	res, err = idx.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "new-1", res[0].Text)
}

func TestDiscardKeepsLiveCorpus(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{entry("old", "s", 1, 0)}))

	gen, err := idx.Stage(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.InsertStaged(ctx, gen, []Entry{entry("new", "s", 1, 0)}))
	require.NoError(t, idx.Discard(ctx, gen))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	res, err := idx.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "old", res[0].Text)
}

func TestRepeatedCommitDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	for i := 0; i < 2; i++ {
		gen, err := idx.Stage(ctx)
		require.NoError(t, err)
		require.NoError(t, idx.InsertStaged(ctx, gen, []Entry{
			entry("a", "u", 1, 0),
			entry("b", "u", 0, 1),
		}))
		_, err = idx.Commit(ctx, gen)
		require.NoError(t, err)
	}
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSearchResultSizeBounds(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	var entries []Entry
	for i := 0; i < 8; i++ {
		entries = append(entries, entry("t", "s", float32(i+1), 1))
	}
	require.NoError(t, idx.Insert(ctx, entries))

	cases := []struct {
		k, fetchK, want int
	}{
		{k: 5, fetchK: 15, want: 5},
		{k: 20, fetchK: 30, want: 8},
		{k: 5, fetchK: 3, want: 3},
		{k: 0, fetchK: 15, want: 0},
	}
	for _, tc := range cases {
		res, err := idx.Search(ctx, []float32{1, 1}, tc.k, tc.fetchK, 0.7)
		require.NoError(t, err)
		assert.Len(t, res, tc.want, "k=%d fetchK=%d", tc.k, tc.fetchK)
	}
}

func TestSearchPrefersDiverseResults(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{
		entry("dup-1", "https://a.example/x", 1, 0.1),
		entry("dup-2", "https://a.example/x?copy", 1, 0.1),
		entry("other", "https://b.example", 0.6, 0.8),
	}))

	res, err := idx.Search(ctx, []float32{1, 0.2}, 2, 15, 0.5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "dup-1", res[0].Text)
	assert.Equal(t, "other", res[1].Text)
	assert.Equal(t, 0, res[0].Rank)
	assert.Equal(t, 2, res[1].Rank)
}

func TestSearchPureRelevanceKeepsRankOrder(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{
		entry("first", "s", 1, 0),
		entry("second", "s", 1, 0),
		entry("third", "s", 0, 1),
	}))

	res, err := idx.Search(ctx, []float32{1, 0}, 3, 15, 1)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{res[0].Text, res[1].Text, res[2].Text})
}

func TestSearchRejectsForeignModelAndDimension(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corpus.db")
	idx := newTestIndexAt(t, path, "model-a")
	require.NoError(t, idx.Insert(ctx, []Entry{entry("a", "s", 1, 0)}))

	_, err := idx.Search(ctx, []float32{1, 0, 0}, 5, 15, 0.7)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	other := NewIndex(idx.db, "healthcare_analysis", "model-b")
	require.NoError(t, other.Init(ctx))
	_, err = other.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestEntriesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corpus.db")
	idx := newTestIndexAt(t, path, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{entry("kept", "s", 1, 0)}))

	sqlDB, err := idx.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	reopened := newTestIndexAt(t, path, "m")
	res, err := reopened.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "kept", res[0].Text)
	assert.NotEmpty(t, res[0].ID)
}

func TestSearchBeforeInitFails(t *testing.T) {
	idx := NewIndex(nil, "c", "m")
	_, err := idx.Search(context.Background(), []float32{1}, 5, 15, 0.7)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestConcurrentSearchDuringCommit(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, "m")
	require.NoError(t, idx.Insert(ctx, []Entry{entry("a", "s", 1, 0), entry("b", "s", 0, 1)}))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := idx.Search(ctx, []float32{1, 0}, 5, 15, 0.7)
			if err != nil {
				errs <- err
				return
			}
			if len(res) != 2 {
				errs <- assert.AnError
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		gen, err := idx.Stage(ctx)
		if err == nil {
			err = idx.InsertStaged(ctx, gen, []Entry{entry("c", "s", 1, 0), entry("d", "s", 0, 1)})
		}
		if err == nil {
			_, err = idx.Commit(ctx, gen)
		}
		if err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
