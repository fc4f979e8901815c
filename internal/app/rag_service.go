package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthcare-rag/internal/attribution"
	"healthcare-rag/internal/classifier"
	"healthcare-rag/internal/fetcher"
	"healthcare-rag/internal/index"
	"healthcare-rag/internal/logger"
	"healthcare-rag/internal/model"
	"healthcare-rag/internal/prompt"
)

const auditPublishTimeout = 2 * time.Second

// Status messages emitted by ProcessURLs, in order.
const (
	StatusInitializing = "🔧 Initializing healthcare analysis components..."
	StatusPreparing    = "🗂️ Preparing a fresh knowledge base generation..."
	StatusLoading      = "📥 Loading medical resources from URLs..."
	StatusSplitting    = "✂️ Splitting medical content into analyzable chunks..."
	StatusActivating   = "🔄 Activating the new knowledge base..."
	StatusDone         = "✅ Medical resources processed successfully!"
)

// RetrievalPolicy holds the MMR parameters applied to every question.
type RetrievalPolicy struct {
	TopK            int
	FetchK          int
	DiversityWeight float64
}

type RAGServiceDeps struct {
	Embedder  Embedder
	Generator Generator
	Loader    SourceLoader
	Splitter  Splitter
	Index     VectorIndex
	Policy    *prompt.Policy
	Retrieval RetrievalPolicy
	// Audit is optional.
	Audit  AuditPublisher
	Logger *logger.Logger
}

type RAGService struct {
	embedder  Embedder
	generator Generator
	loader    SourceLoader
	splitter  Splitter
	index     VectorIndex
	policy    *prompt.Policy
	retrieval RetrievalPolicy
	audit     AuditPublisher
	log       *logger.Logger

	ingestMu sync.Mutex
	now      func() time.Time
}

func NewRAGService(deps RAGServiceDeps) *RAGService {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &RAGService{
		embedder:  deps.Embedder,
		generator: deps.Generator,
		loader:    deps.Loader,
		splitter:  deps.Splitter,
		index:     deps.Index,
		policy:    deps.Policy,
		retrieval: deps.Retrieval,
		audit:     deps.Audit,
		log:       log.With("component", "rag_service"),
		now:       time.Now,
	}
}

// IngestSummary describes a committed ingestion.
type IngestSummary struct {
	Generation string   `json:"generation"`
	Documents  int      `json:"documents"`
	Chunks     int      `json:"chunks"`
	Skipped    []string `json:"skipped,omitempty"`
}

// ProcessURLs rebuilds the corpus from urls. The new generation replaces the
// live one only after every step succeeded; on failure the previous corpus
// stays queryable. onStatus receives progress messages; a non-nil return
// aborts the ingestion.
func (s *RAGService) ProcessURLs(ctx context.Context, urls []string, onStatus func(string) error) (*IngestSummary, error) {
	urls, err := cleanURLs(urls)
	if err != nil {
		return nil, err
	}
	if onStatus == nil {
		onStatus = func(string) error { return nil }
	}
	if !s.ingestMu.TryLock() {
		return nil, ErrIngestInProgress
	}
	defer s.ingestMu.Unlock()

	started := s.now()
	log := s.log.With("urls", len(urls))

	if err := onStatus(StatusInitializing); err != nil {
		return nil, err
	}
	if err := s.index.Init(ctx); err != nil {
		return nil, err
	}

	if err := onStatus(StatusPreparing); err != nil {
		return nil, err
	}
	generation, err := s.index.Stage(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.index.Discard(cleanupCtx, generation); err != nil {
			log.Warn("discard staged generation failed", "generation", generation, "error", err)
		}
	}()

	if err := onStatus(StatusLoading); err != nil {
		return nil, err
	}
	loaded, err := s.loader.Load(ctx, urls)
	if err != nil {
		return nil, err
	}
	summary := &IngestSummary{Generation: generation, Documents: len(loaded.Documents)}
	for _, skipped := range loaded.Skipped {
		summary.Skipped = append(summary.Skipped, skipped.URL)
		if err := onStatus(fmt.Sprintf("⚠️ Skipped %s: %v", skipped.URL, skipped.Err)); err != nil {
			return nil, err
		}
	}

	if err := onStatus(StatusSplitting); err != nil {
		return nil, err
	}
	chunks := s.splitter.Split(loaded.Documents)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: sources yielded no text", fetcher.ErrFetch)
	}
	summary.Chunks = len(chunks)

	if err := onStatus(fmt.Sprintf("💾 Adding %d medical documents to knowledge base...", len(chunks))); err != nil {
		return nil, err
	}
	entries, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.index.InsertStaged(ctx, generation, entries); err != nil {
		return nil, err
	}

	if err := onStatus(StatusActivating); err != nil {
		return nil, err
	}
	stats, err := s.index.Commit(ctx, generation)
	if err != nil {
		return nil, err
	}
	committed = true

	log.Info("corpus ingested",
		"generation", generation,
		"documents", summary.Documents,
		"chunks", stats.EntryCount,
		"skipped", len(summary.Skipped),
		"elapsed_ms", s.now().Sub(started).Milliseconds(),
	)

	if err := onStatus(StatusDone); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *RAGService) embedChunks(ctx context.Context, chunks []model.Chunk) ([]index.Entry, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}
	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Text:   c.Text,
			Source: c.Source,
		}
	}
	return entries, nil
}

// RetrievedChunk is one passage used to answer a question.
type RetrievedChunk struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

type Answer struct {
	Answer        string           `json:"answer"`
	Sources       string           `json:"sources"`
	SourceLines   []string         `json:"source_lines"`
	Category      string           `json:"category"`
	PromptVersion string           `json:"prompt_version"`
	Disclaimer    string           `json:"disclaimer"`
	Chunks        []RetrievedChunk `json:"chunks"`
}

// Retrieve returns the passages most relevant to question. An empty or absent
// corpus fails with ErrEmptyCorpus.
func (s *RAGService) Retrieve(ctx context.Context, question string) ([]index.Result, index.Stats, error) {
	if err := s.index.Init(ctx); err != nil {
		return nil, index.Stats{}, err
	}
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, index.Stats{}, err
	}
	if stats.EntryCount == 0 {
		return nil, stats, ErrEmptyCorpus
	}

	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, stats, err
	}
	results, err := s.index.Search(ctx, vec, s.retrieval.TopK, s.retrieval.FetchK, s.retrieval.DiversityWeight)
	if err != nil {
		return nil, stats, err
	}
	if len(results) == 0 {
		// The corpus was reset between the count and the search.
		return nil, stats, ErrEmptyCorpus
	}
	return results, stats, nil
}

// GenerateAnswer answers question from the live corpus and attributes the
// passages it used.
func (s *RAGService) GenerateAnswer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	started := s.now()

	category := classifier.Classify(question)
	results, stats, err := s.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	origins := make([]string, len(results))
	chunks := make([]RetrievedChunk, len(results))
	for i, r := range results {
		texts[i] = r.Text
		origins[i] = r.Source
		chunks[i] = RetrievedChunk{ID: r.ID, Source: r.Source, Text: r.Text, Score: r.Score, Rank: r.Rank}
	}

	promptText, err := s.policy.Assemble(string(category), prompt.FormatContext(texts), question)
	if err != nil {
		return nil, err
	}
	answerText, err := s.generator.Generate(ctx, promptText)
	if err != nil {
		return nil, err
	}

	lines := attribution.Annotate(origins)
	answer := &Answer{
		Answer:        answerText,
		Sources:       attribution.Join(lines),
		SourceLines:   lines,
		Category:      string(category),
		PromptVersion: s.policy.Version,
		Disclaimer:    s.policy.Disclaimer,
		Chunks:        chunks,
	}

	latency := s.now().Sub(started)
	s.log.Info("question answered",
		"category", answer.Category,
		"chunks", len(chunks),
		"prompt_version", answer.PromptVersion,
		"latency_ms", latency.Milliseconds(),
	)
	s.publishAudit(ctx, stats, question, answer, latency)
	return answer, nil
}

func (s *RAGService) publishAudit(ctx context.Context, stats index.Stats, question string, answer *Answer, latency time.Duration) {
	if s.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()

	record := model.QueryAudit{
		ID:            uuid.NewString(),
		Collection:    stats.Collection,
		Generation:    stats.LiveGeneration,
		Question:      question,
		Category:      answer.Category,
		PromptVersion: answer.PromptVersion,
		Sources:       answer.Sources,
		LatencyMS:     latency.Milliseconds(),
		CreatedAt:     s.now(),
	}
	if err := s.audit.PublishAudit(auditCtx, record); err != nil {
		s.log.Warn("publish query audit failed", "audit_id", record.ID, "error", err)
	}
}

// Reset empties the corpus.
func (s *RAGService) Reset(ctx context.Context) error {
	if !s.ingestMu.TryLock() {
		return ErrIngestInProgress
	}
	defer s.ingestMu.Unlock()

	if err := s.index.Init(ctx); err != nil {
		return err
	}
	if err := s.index.Reset(ctx); err != nil {
		return err
	}
	s.log.Info("corpus reset")
	return nil
}

func (s *RAGService) Stats(ctx context.Context) (index.Stats, error) {
	if err := s.index.Init(ctx); err != nil {
		return index.Stats{}, err
	}
	return s.index.Stats(ctx)
}

func cleanURLs(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one source url is required", ErrInvalidInput)
	}
	return out, nil
}
