package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// EmbeddingCache stores query vectors in Redis keyed by model and text digest.
// Keys include the model so a model change never serves stale vectors.
type EmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EmbeddingCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *EmbeddingCache) GetVector(ctx context.Context, model, text string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, vectorKey(model, text)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get embedding failed: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	if len(vec) == 0 {
		return nil, false, nil
	}
	return vec, true, nil
}

func (c *EmbeddingCache) SetVector(ctx context.Context, model, text string, vector []float32) error {
	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal embedding cache failed: %w", err)
	}
	if err := c.client.Set(ctx, vectorKey(model, text), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding failed: %w", err)
	}
	return nil
}

func vectorKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("rag:embedding:%s:%s", model, hex.EncodeToString(sum[:]))
}
