package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"healthcare-rag/internal/model"
	"healthcare-rag/internal/repository"
)

var (
	ErrModelMismatch     = errors.New("corpus was built with a different embedding model")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNotInitialized    = errors.New("vector index not initialized")
)

// Entry is one indexed chunk with its embedding.
type Entry struct {
	ID     string
	Vector []float32
	Text   string
	Source string
}

// Result is a search hit. Score is the cosine similarity to the query and
// Rank its position in the raw similarity ordering.
type Result struct {
	Entry
	Score float64
	Rank  int
}

type Stats struct {
	Collection     string    `json:"collection"`
	LiveGeneration string    `json:"live_generation"`
	EmbeddingModel string    `json:"embedding_model"`
	EntryCount     int64     `json:"entry_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Index is a durable vector index over one named collection. Writers are
// serialised; a reader sees either the previous or the next live generation.
type Index struct {
	db             *gorm.DB
	entries        *repository.CorpusEntryRepository
	collections    *repository.CorpusCollectionRepository
	collection     string
	embeddingModel string

	mu sync.RWMutex

	initMu      sync.Mutex
	initialized bool

	cacheMu  sync.Mutex
	snapshot *snapshot
}

type snapshot struct {
	generation string
	entries    []Entry
	vectors    [][]float32
}

func NewIndex(db *gorm.DB, collection, embeddingModel string) *Index {
	return &Index{
		db:             db,
		entries:        repository.NewCorpusEntryRepository(db),
		collections:    repository.NewCorpusCollectionRepository(db),
		collection:     collection,
		embeddingModel: embeddingModel,
	}
}

func (idx *Index) Collection() string {
	return idx.collection
}

// Init creates the backing tables. Safe to call repeatedly; a failed attempt
// is retried on the next call.
func (idx *Index) Init(ctx context.Context) error {
	idx.initMu.Lock()
	defer idx.initMu.Unlock()
	if idx.initialized {
		return nil
	}
	err := idx.db.WithContext(ctx).AutoMigrate(
		&model.CorpusEntry{},
		&model.CorpusCollection{},
		&model.QueryAudit{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate corpus tables failed: %w", err)
	}
	idx.initialized = true
	return nil
}

func (idx *Index) ready() error {
	idx.initMu.Lock()
	defer idx.initMu.Unlock()
	if !idx.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Reset discards every entry of the collection. Idempotent.
func (idx *Index) Reset(ctx context.Context) error {
	if err := idx.ready(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.collections.Reset(ctx, idx.collection); err != nil {
		return err
	}
	idx.dropSnapshot()
	return nil
}

// Insert appends entries to the live generation, opening one when the
// collection is empty.
func (idx *Index) Insert(ctx context.Context, entries []Entry) error {
	if err := idx.ready(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	live, err := idx.collections.Get(ctx, idx.collection)
	if err != nil {
		return err
	}
	if live == nil || live.LiveGeneration == "" {
		generation := uuid.NewString()
		if err := idx.write(ctx, generation, 0, entries, 0); err != nil {
			return err
		}
		if _, err := idx.collections.SwapGeneration(ctx, idx.collection, generation, idx.embeddingModel); err != nil {
			_ = idx.entries.DeleteByGeneration(ctx, idx.collection, generation)
			return err
		}
		idx.dropSnapshot()
		return nil
	}

	if live.EmbeddingModel != idx.embeddingModel {
		return fmt.Errorf("%w: live %q, configured %q", ErrModelMismatch, live.EmbeddingModel, idx.embeddingModel)
	}
	dim, err := idx.liveDimension(ctx, live.LiveGeneration)
	if err != nil {
		return err
	}
	last, err := idx.entries.MaxPosition(ctx, idx.collection, live.LiveGeneration)
	if err != nil {
		return err
	}
	if err := idx.write(ctx, live.LiveGeneration, last+1, entries, dim); err != nil {
		return err
	}
	count, err := idx.entries.CountByGeneration(ctx, idx.collection, live.LiveGeneration)
	if err != nil {
		return err
	}
	if err := idx.collections.SetEntryCount(ctx, idx.collection, count); err != nil {
		return err
	}
	idx.dropSnapshot()
	return nil
}

// Stage opens a side generation that is invisible to Search until Commit.
func (idx *Index) Stage(ctx context.Context) (string, error) {
	if err := idx.ready(); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

// InsertStaged appends entries to a staged generation. Callers own the
// generation and must not write to it concurrently.
func (idx *Index) InsertStaged(ctx context.Context, generation string, entries []Entry) error {
	if err := idx.ready(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	last, err := idx.entries.MaxPosition(ctx, idx.collection, generation)
	if err != nil {
		return err
	}
	dim := 0
	if last >= 0 {
		if dim, err = idx.liveDimension(ctx, generation); err != nil {
			return err
		}
	}
	return idx.write(ctx, generation, last+1, entries, dim)
}

// Commit makes the staged generation live and drops the previous one.
func (idx *Index) Commit(ctx context.Context, generation string) (Stats, error) {
	if err := idx.ready(); err != nil {
		return Stats{}, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	live, err := idx.collections.SwapGeneration(ctx, idx.collection, generation, idx.embeddingModel)
	if err != nil {
		return Stats{}, err
	}
	idx.dropSnapshot()
	return statsOf(live), nil
}

// Discard drops a staged generation; the live corpus is untouched.
func (idx *Index) Discard(ctx context.Context, generation string) error {
	if err := idx.ready(); err != nil {
		return err
	}
	return idx.entries.DeleteByGeneration(ctx, idx.collection, generation)
}

// Count returns the number of live entries. An absent collection counts as 0.
func (idx *Index) Count(ctx context.Context) (int64, error) {
	stats, err := idx.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.EntryCount, nil
}

func (idx *Index) Stats(ctx context.Context) (Stats, error) {
	if err := idx.ready(); err != nil {
		return Stats{}, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	live, err := idx.collections.Get(ctx, idx.collection)
	if err != nil {
		return Stats{}, err
	}
	if live == nil {
		return Stats{Collection: idx.collection, EmbeddingModel: idx.embeddingModel}, nil
	}
	return statsOf(live), nil
}

// Search returns up to k live entries chosen by maximal marginal relevance
// among the fetchK nearest neighbours of query. An empty collection yields an
// empty result.
func (idx *Index) Search(ctx context.Context, query []float32, k, fetchK int, lambda float64) ([]Result, error) {
	if err := idx.ready(); err != nil {
		return nil, err
	}
	if k <= 0 || fetchK <= 0 {
		return []Result{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap, err := idx.load(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil || len(snap.entries) == 0 {
		return []Result{}, nil
	}
	if len(query) != len(snap.vectors[0]) {
		return nil, fmt.Errorf("%w: query has %d dimensions, corpus has %d", ErrDimensionMismatch, len(query), len(snap.vectors[0]))
	}

	candidates := nearest(query, snap.vectors, fetchK)
	picked := maximalMarginalRelevance(candidates, snap.vectors, k, lambda)

	results := make([]Result, 0, len(picked))
	for _, i := range picked {
		c := candidates[i]
		results = append(results, Result{
			Entry: snap.entries[c.pos],
			Score: c.score,
			Rank:  i,
		})
	}
	return results, nil
}

// load returns the live generation, reusing the cached copy while the live
// pointer is unchanged. Caller holds at least the read lock.
func (idx *Index) load(ctx context.Context) (*snapshot, error) {
	live, err := idx.collections.Get(ctx, idx.collection)
	if err != nil {
		return nil, err
	}
	if live == nil || live.LiveGeneration == "" {
		return nil, nil
	}
	if live.EntryCount > 0 && live.EmbeddingModel != idx.embeddingModel {
		return nil, fmt.Errorf("%w: live %q, configured %q", ErrModelMismatch, live.EmbeddingModel, idx.embeddingModel)
	}

	idx.cacheMu.Lock()
	defer idx.cacheMu.Unlock()
	if idx.snapshot != nil && idx.snapshot.generation == live.LiveGeneration {
		return idx.snapshot, nil
	}

	rows, err := idx.entries.ListByGeneration(ctx, idx.collection, live.LiveGeneration)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		generation: live.LiveGeneration,
		entries:    make([]Entry, 0, len(rows)),
		vectors:    make([][]float32, 0, len(rows)),
	}
	for i := range rows {
		vec, err := rows[i].EmbeddingVector()
		if err != nil {
			return nil, fmt.Errorf("decode embedding of entry %s failed: %w", rows[i].ID, err)
		}
		snap.entries = append(snap.entries, Entry{
			ID:     rows[i].ID,
			Vector: vec,
			Text:   rows[i].Content,
			Source: rows[i].Source,
		})
		snap.vectors = append(snap.vectors, vec)
	}
	idx.snapshot = snap
	return snap, nil
}

func (idx *Index) dropSnapshot() {
	idx.cacheMu.Lock()
	idx.snapshot = nil
	idx.cacheMu.Unlock()
}

func (idx *Index) liveDimension(ctx context.Context, generation string) (int, error) {
	rows, err := idx.entries.ListByGeneration(ctx, idx.collection, generation)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	vec, err := rows[0].EmbeddingVector()
	if err != nil {
		return 0, fmt.Errorf("decode embedding of entry %s failed: %w", rows[0].ID, err)
	}
	return len(vec), nil
}

// write persists entries under generation starting at position start. dim of
// 0 takes the dimension from the first entry.
func (idx *Index) write(ctx context.Context, generation string, start int, entries []Entry, dim int) error {
	rows := make([]model.CorpusEntry, 0, len(entries))
	for i, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %d has no vector", ErrDimensionMismatch, i)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(e.Vector), dim)
		}
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		row := model.CorpusEntry{
			ID:         id,
			Collection: idx.collection,
			Generation: generation,
			Position:   start + i,
			Source:     e.Source,
			Content:    e.Text,
		}
		row.SetEmbedding(e.Vector)
		rows = append(rows, row)
	}
	return idx.entries.CreateBatch(ctx, rows)
}

func statsOf(c *model.CorpusCollection) Stats {
	return Stats{
		Collection:     c.Name,
		LiveGeneration: c.LiveGeneration,
		EmbeddingModel: c.EmbeddingModel,
		EntryCount:     c.EntryCount,
		UpdatedAt:      c.UpdatedAt,
	}
}
