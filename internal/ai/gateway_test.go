package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func fakeEmbeddingServer(t *testing.T, calls *[][]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		*calls = append(*calls, req.Input)
		mu.Unlock()

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			data[i] = item{Index: i, Embedding: []float32{float32(len(in)), 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func TestEmbeddingGatewayBatches(t *testing.T) {
	var calls [][]string
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	client := NewOpenAICompatibleClient(5*time.Second, 0)
	gw := NewEmbeddingGateway(client, EmbeddingConfig{BaseURL: srv.URL + "/v1/", Model: "all-minilm"}, 2)

	vectors, err := gw.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Len(t, calls, 3)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, "all-minilm", gw.Model())
}

func TestEmbeddingGatewayRejectsEmptyText(t *testing.T) {
	var calls [][]string
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	gw := NewEmbeddingGateway(NewOpenAICompatibleClient(time.Second, 0), EmbeddingConfig{BaseURL: srv.URL + "/v1"}, 10)

	_, err := gw.EmbedQuery(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingService))
	assert.Empty(t, calls)
}

func TestEmbeddingGatewayServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gw := NewEmbeddingGateway(NewOpenAICompatibleClient(time.Second, 0), EmbeddingConfig{BaseURL: srv.URL}, 10)
	_, err := gw.EmbedQuery(context.Background(), "hypertension")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingService))
	assert.Contains(t, err.Error(), "503")
}

func TestGenerationGatewaySendsPromptAndSettings(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  Lifestyle changes help.  "}}]}`))
	}))
	defer srv.Close()

	gw := NewGenerationGateway(NewOpenAICompatibleClient(time.Second, 0), ChatConfig{
		BaseURL:     srv.URL,
		APIKey:      "gsk-test",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.2,
		MaxTokens:   1200,
	})

	answer, err := gw.Generate(context.Background(), "Question: what helps?")
	require.NoError(t, err)
	assert.Equal(t, "Lifestyle changes help.", answer)

	assert.Equal(t, "llama-3.3-70b-versatile", got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
	assert.EqualValues(t, 1200, got["max_tokens"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]interface{})
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "Question: what helps?", msg["content"])
}

func TestGenerationGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "limited") {
			http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient(time.Second, 0)

	_, err := NewGenerationGateway(client, ChatConfig{BaseURL: srv.URL, APIKey: "limited"}).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationService))
	assert.Contains(t, err.Error(), "429")

	_, err = NewGenerationGateway(client, ChatConfig{BaseURL: srv.URL, APIKey: "ok"}).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationService))

	_, err = NewGenerationGateway(client, ChatConfig{BaseURL: srv.URL}).Generate(context.Background(), " ")
	assert.True(t, errors.Is(err, ErrGenerationService))
}

func TestGenerationGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	gw := NewGenerationGateway(NewOpenAICompatibleClient(50*time.Millisecond, 0), ChatConfig{BaseURL: srv.URL})
	_, err := gw.Generate(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationService))
}

type mapCache struct {
	vectors map[string][]float32
	failGet bool
}

func (m *mapCache) GetVector(_ context.Context, model, text string) ([]float32, bool, error) {
	if m.failGet {
		return nil, false, errors.New("redis down")
	}
	v, ok := m.vectors[model+"|"+text]
	return v, ok, nil
}

func (m *mapCache) SetVector(_ context.Context, model, text string, vector []float32) error {
	m.vectors[model+"|"+text] = vector
	return nil
}

type countingEmbedder struct {
	queries int
}

func (c *countingEmbedder) Model() string { return "m" }
func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}
func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.queries++
	return []float32{float32(len(text))}, nil
}

func TestCachingEmbedderMemoisesQueries(t *testing.T) {
	inner := &countingEmbedder{}
	cache := &mapCache{vectors: map[string][]float32{}}
	e := NewCachingEmbedder(inner, cache, nil)

	for i := 0; i < 3; i++ {
		v, err := e.EmbedQuery(context.Background(), "statins")
		require.NoError(t, err)
		assert.Equal(t, []float32{7}, v)
	}
	assert.Equal(t, 1, inner.queries)
	assert.Contains(t, cache.vectors, "m|statins")
}

func TestCachingEmbedderFallsThroughOnCacheError(t *testing.T) {
	inner := &countingEmbedder{}
	var reported []string
	e := NewCachingEmbedder(inner, &mapCache{vectors: map[string][]float32{}, failGet: true}, func(op string, err error) {
		reported = append(reported, op)
	})

	v, err := e.EmbedQuery(context.Background(), "asthma")
	require.NoError(t, err)
	assert.Equal(t, []float32{6}, v)
	assert.Equal(t, []string{"get"}, reported)
}
