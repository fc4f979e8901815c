package ai

import (
	"context"
	"fmt"
	"strings"
)

const defaultEmbeddingBatchSize = 10 // DashScope and similar APIs often limit batch size

// EmbeddingGateway turns document and query text into vectors of one fixed model.
type EmbeddingGateway struct {
	client    *OpenAICompatibleClient
	cfg       EmbeddingConfig
	batchSize int
}

func NewEmbeddingGateway(client *OpenAICompatibleClient, cfg EmbeddingConfig, batchSize int) *EmbeddingGateway {
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}
	return &EmbeddingGateway{client: client, cfg: cfg, batchSize: batchSize}
}

func (g *EmbeddingGateway) Model() string {
	return g.cfg.Model
}

// EmbedDocuments calls the embedding API in batches to avoid provider limits.
func (g *EmbeddingGateway) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += g.batchSize {
		end := i + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := g.client.EmbedBatch(ctx, g.cfg, texts[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

func (g *EmbeddingGateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.client.Embed(ctx, g.cfg, text)
}

// GenerationGateway sends one fully assembled prompt and returns the raw answer text.
type GenerationGateway struct {
	client *OpenAICompatibleClient
	cfg    ChatConfig
}

func NewGenerationGateway(client *OpenAICompatibleClient, cfg ChatConfig) *GenerationGateway {
	return &GenerationGateway{client: client, cfg: cfg}
}

func (g *GenerationGateway) Model() string {
	return g.cfg.Model
}

func (g *GenerationGateway) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", ErrGenerationService)
	}
	answer, err := g.client.Complete(ctx, g.cfg, []ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
