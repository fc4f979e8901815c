package ai

import (
	"context"
)

type Embedder interface {
	Model() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type VectorCache interface {
	GetVector(ctx context.Context, model, text string) ([]float32, bool, error)
	SetVector(ctx context.Context, model, text string, vector []float32) error
}

// CachingEmbedder memoises query embeddings. Cache failures fall through to the
// wrapped embedder and are reported to onCacheError.
type CachingEmbedder struct {
	inner        Embedder
	cache        VectorCache
	onCacheError func(op string, err error)
}

func NewCachingEmbedder(inner Embedder, cache VectorCache, onCacheError func(op string, err error)) *CachingEmbedder {
	if onCacheError == nil {
		onCacheError = func(string, error) {}
	}
	return &CachingEmbedder{inner: inner, cache: cache, onCacheError: onCacheError}
}

func (e *CachingEmbedder) Model() string {
	return e.inner.Model()
}

// EmbedDocuments bypasses the cache; each ingestion produces fresh document vectors.
func (e *CachingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.EmbedDocuments(ctx, texts)
}

func (e *CachingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	model := e.inner.Model()
	vec, ok, err := e.cache.GetVector(ctx, model, text)
	if err != nil {
		e.onCacheError("get", err)
	}
	if ok {
		return vec, nil
	}

	vec, err = e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.SetVector(ctx, model, text, vec); err != nil {
		e.onCacheError("set", err)
	}
	return vec, nil
}
