package ai

import (
	"context"
	"fmt"
	"strings"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, cfg EmbeddingConfig, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, cfg, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per input text, in input order.
// Any empty text fails the whole batch so vectors never shift against their texts.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: embedding input %d is empty", ErrEmbeddingService, i)
		}
	}

	reqBody := map[string]interface{}{
		"model": cfg.Model,
		"input": texts,
	}
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, cfg.BaseURL, "/embeddings", cfg.APIKey, reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: embedding %w", ErrEmbeddingService, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: want %d got %d", ErrEmbeddingService, len(texts), len(parsed.Data))
	}

	result := make([][]float32, len(texts))
	for i, d := range parsed.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) || result[idx] != nil {
			idx = i
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding in response", ErrEmbeddingService)
		}
		result[idx] = d.Embedding
	}
	for i := range result {
		if result[i] == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", ErrEmbeddingService, i)
		}
	}
	return result, nil
}
