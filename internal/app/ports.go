package app

import (
	"context"

	"healthcare-rag/internal/fetcher"
	"healthcare-rag/internal/index"
	"healthcare-rag/internal/model"
)

type Embedder interface {
	Model() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type SourceLoader interface {
	Load(ctx context.Context, urls []string) (*fetcher.Result, error)
}

type Splitter interface {
	Split(documents []model.Document) []model.Chunk
}

type VectorIndex interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	Stage(ctx context.Context) (string, error)
	InsertStaged(ctx context.Context, generation string, entries []index.Entry) error
	Commit(ctx context.Context, generation string) (index.Stats, error)
	Discard(ctx context.Context, generation string) error
	Stats(ctx context.Context) (index.Stats, error)
	Search(ctx context.Context, query []float32, k, fetchK int, lambda float64) ([]index.Result, error)
}

type AuditPublisher interface {
	PublishAudit(ctx context.Context, audit model.QueryAudit) error
}
