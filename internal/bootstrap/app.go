package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"healthcare-rag/internal/ai"
	"healthcare-rag/internal/app"
	"healthcare-rag/internal/cache"
	"healthcare-rag/internal/chunker"
	"healthcare-rag/internal/config"
	"healthcare-rag/internal/fetcher"
	"healthcare-rag/internal/index"
	"healthcare-rag/internal/logger"
	mysqlClient "healthcare-rag/internal/platform/mysql"
	rabbitmqClient "healthcare-rag/internal/platform/rabbitmq"
	redisClient "healthcare-rag/internal/platform/redis"
	sqliteClient "healthcare-rag/internal/platform/sqlite"
	"healthcare-rag/internal/prompt"
	"healthcare-rag/internal/repository"
	"healthcare-rag/internal/worker"
)

type Options struct {
	// StartAuditWorker consumes the audit queue in this process.
	StartAuditWorker bool
}

// App owns every long-lived dependency. It is built once per process and
// passed to the transport and CLI layers.
type App struct {
	Config *config.Config
	Logger *logger.Logger

	DB             *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	AuditPublisher *rabbitmqClient.AuditPublisher
	AuditWorker    *worker.QueryAuditWorker

	Index      *index.Index
	RAGService *app.RAGService

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db

	a.Index = index.NewIndex(db, cfg.Store.Collection, cfg.Embedding.Model)
	if err := a.Index.Init(ctx); err != nil {
		return nil, err
	}

	var embedder app.Embedder = ai.NewEmbeddingGateway(
		ai.NewOpenAICompatibleClient(seconds(cfg.Embedding.TimeoutSeconds), cfg.Embedding.RequestsPerSecond),
		ai.EmbeddingConfig{BaseURL: cfg.Embedding.BaseURL, APIKey: cfg.Embedding.APIKey, Model: cfg.Embedding.Model},
		cfg.Embedding.BatchSize,
	)
	if cfg.Redis.Addr != "" {
		client, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("embedding cache disabled", "error", err)
		} else {
			a.Redis = client
			cacheLog := log.With("component", "embedding_cache")
			embedder = ai.NewCachingEmbedder(
				embedder,
				cache.NewEmbeddingCache(client, seconds(cfg.Redis.EmbeddingTTLSeconds)),
				func(op string, err error) { cacheLog.Warn("cache operation failed", "op", op, "error", err) },
			)
		}
	}

	generator := ai.NewGenerationGateway(
		ai.NewOpenAICompatibleClient(seconds(cfg.LLM.TimeoutSeconds), cfg.LLM.RequestsPerSecond),
		ai.ChatConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	)

	var audit app.AuditPublisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			log.Warn("query audit disabled", "error", err)
		} else {
			a.MQConn = conn
			a.AuditPublisher = rabbitmqClient.NewAuditPublisher(conn, cfg.RabbitMQ.AuditQueue)
			audit = a.AuditPublisher
			if opts.StartAuditWorker {
				a.AuditWorker = worker.NewQueryAuditWorker(conn, repository.NewQueryAuditRepository(db), cfg.RabbitMQ.AuditQueue, log)
				if err := a.AuditWorker.Start(ctx); err != nil {
					return nil, fmt.Errorf("start audit worker failed: %w", err)
				}
			}
		}
	}

	policy, err := prompt.Default()
	if err != nil {
		return nil, err
	}

	a.RAGService = app.NewRAGService(app.RAGServiceDeps{
		Embedder:  embedder,
		Generator: generator,
		Loader: fetcher.New(fetcher.Options{
			Timeout:         seconds(cfg.Fetch.TimeoutSeconds),
			MaxBodyBytes:    cfg.Fetch.MaxBodyBytes,
			UserAgent:       cfg.Fetch.UserAgent,
			ContinueOnError: cfg.Fetch.ContinueOnError,
		}, log),
		Splitter: chunker.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		Index:    a.Index,
		Policy:   policy,
		Retrieval: app.RetrievalPolicy{
			TopK:            cfg.RAG.TopK,
			FetchK:          cfg.RAG.FetchK,
			DiversityWeight: cfg.RAG.DiversityWeight,
		},
		Audit:  audit,
		Logger: log,
	})

	log.Info("application ready",
		"store", cfg.Store.Driver,
		"collection", cfg.Store.Collection,
		"embedding_model", cfg.Embedding.Model,
		"llm_model", cfg.LLM.Model,
		"prompt_version", policy.Version,
		"embedding_cache", a.Redis != nil,
		"query_audit", a.MQConn != nil,
	)
	ok = true
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Store.Driver {
	case "mysql":
		return mysqlClient.New(ctx, cfg.MySQLDSN())
	default:
		return sqliteClient.New(ctx, cfg.Store.SQLitePath)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (a *App) Close() error {
	var errs []error
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.AuditPublisher != nil {
		if err := a.AuditPublisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
