package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	Auth      AuthConfig      `toml:"auth"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Store     StoreConfig     `toml:"store"`
	Redis     RedisConfig     `toml:"redis"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq"`
	RAG       RAGConfig       `toml:"rag"`
	Fetch     FetchConfig     `toml:"fetch"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type AuthConfig struct {
	// JWTSecret protects corpus mutation endpoints; empty disables the check.
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type LLMConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type EmbeddingConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	BatchSize         int     `toml:"batch_size"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type StoreConfig struct {
	Driver     string      `toml:"driver"`
	Collection string      `toml:"collection"`
	SQLitePath string      `toml:"sqlite_path"`
	MySQL      MySQLConfig `toml:"mysql"`
}

type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

type RedisConfig struct {
	// Addr empty disables the embedding cache.
	Addr                string `toml:"addr"`
	Password            string `toml:"password"`
	DB                  int    `toml:"db"`
	EmbeddingTTLSeconds int    `toml:"embedding_ttl_seconds"`
}

type RabbitMQConfig struct {
	// URL empty disables the query audit trail.
	URL        string `toml:"url"`
	AuditQueue string `toml:"audit_queue"`
}

type RAGConfig struct {
	ChunkSize       int     `toml:"chunk_size"`
	ChunkOverlap    int     `toml:"chunk_overlap"`
	TopK            int     `toml:"top_k"`
	FetchK          int     `toml:"fetch_k"`
	DiversityWeight float64 `toml:"diversity_weight"`
}

type FetchConfig struct {
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	UserAgent       string `toml:"user_agent"`
	ContinueOnError bool   `toml:"continue_on_error"`
}

func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	m := c.Store.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		m.User,
		m.Password,
		m.Host,
		m.Port,
		m.DB,
		m.Params,
	)
}

// Validate reports the first missing credential or inconsistent setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return &ConfigError{Code: ConfigErrorMissing, Field: "llm.api_key", Env: "LLM_API_KEY"}
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return &ConfigError{Code: ConfigErrorMissing, Field: "llm.base_url", Env: "LLM_BASE_URL"}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return &ConfigError{Code: ConfigErrorMissing, Field: "llm.model", Env: "LLM_MODEL"}
	}
	if strings.TrimSpace(c.Embedding.BaseURL) == "" {
		return &ConfigError{Code: ConfigErrorMissing, Field: "embedding.base_url", Env: "EMBEDDING_BASE_URL"}
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return &ConfigError{Code: ConfigErrorMissing, Field: "embedding.model", Env: "EMBEDDING_MODEL"}
	}
	switch c.Store.Driver {
	case "sqlite", "mysql":
	default:
		return &ConfigError{Code: ConfigErrorInvalid, Field: "store.driver", Value: c.Store.Driver}
	}
	if strings.TrimSpace(c.Store.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissing, Field: "store.collection", Env: "STORE_COLLECTION"}
	}
	r := c.RAG
	if r.ChunkSize <= 0 || r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return &ConfigError{Code: ConfigErrorInvalid, Field: "rag.chunk_overlap", Value: strconv.Itoa(r.ChunkOverlap)}
	}
	if r.TopK <= 0 {
		return &ConfigError{Code: ConfigErrorInvalid, Field: "rag.top_k", Value: strconv.Itoa(r.TopK)}
	}
	if r.FetchK < r.TopK {
		return &ConfigError{Code: ConfigErrorInvalid, Field: "rag.fetch_k", Value: strconv.Itoa(r.FetchK)}
	}
	if r.DiversityWeight < 0 || r.DiversityWeight > 1 {
		return &ConfigError{Code: ConfigErrorInvalid, Field: "rag.diversity_weight", Value: strconv.FormatFloat(r.DiversityWeight, 'f', -1, 64)}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "healthcare-rag",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Auth: AuthConfig{
			JWTExpireMinute: 720,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "llama-3.3-70b-versatile",
			Temperature:    0.2,
			MaxTokens:      1200,
			TimeoutSeconds: 90,
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "http://127.0.0.1:11434/v1",
			Model:          "all-minilm",
			BatchSize:      10,
			TimeoutSeconds: 60,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			Collection: "healthcare_analysis",
			SQLitePath: "resources/vectorstore/corpus.db",
			MySQL: MySQLConfig{
				Host:   "127.0.0.1",
				Port:   3306,
				User:   "root",
				DB:     "healthcare_rag",
				Params: "parseTime=true&loc=Local&charset=utf8mb4",
			},
		},
		Redis: RedisConfig{
			EmbeddingTTLSeconds: 3600,
		},
		RabbitMQ: RabbitMQConfig{
			AuditQueue: "rag.query.audit",
		},
		RAG: RAGConfig{
			ChunkSize:       800,
			ChunkOverlap:    100,
			TopK:            5,
			FetchK:          15,
			DiversityWeight: 0.7,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			MaxBodyBytes:   20 << 20,
			UserAgent:      "healthcare-rag/1.0",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	// GROQ_API_KEY is accepted for compatibility with existing .env files.
	cfg.LLM.APIKey = getEnv("GROQ_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = getEnvAsFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.RequestsPerSecond = getEnvAsFloat("LLM_REQUESTS_PER_SECOND", cfg.LLM.RequestsPerSecond)

	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
	cfg.Embedding.TimeoutSeconds = getEnvAsInt("EMBEDDING_TIMEOUT_SECONDS", cfg.Embedding.TimeoutSeconds)
	cfg.Embedding.RequestsPerSecond = getEnvAsFloat("EMBEDDING_REQUESTS_PER_SECOND", cfg.Embedding.RequestsPerSecond)

	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.Collection = getEnv("STORE_COLLECTION", cfg.Store.Collection)
	cfg.Store.SQLitePath = getEnv("STORE_SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.MySQL.Host = getEnv("MYSQL_HOST", cfg.Store.MySQL.Host)
	cfg.Store.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.Store.MySQL.Port)
	cfg.Store.MySQL.User = getEnv("MYSQL_USER", cfg.Store.MySQL.User)
	cfg.Store.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Store.MySQL.Password)
	cfg.Store.MySQL.DB = getEnv("MYSQL_DB", cfg.Store.MySQL.DB)
	cfg.Store.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.Store.MySQL.Params)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.EmbeddingTTLSeconds = getEnvAsInt("REDIS_EMBEDDING_TTL_SECONDS", cfg.Redis.EmbeddingTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.AuditQueue = getEnv("RABBITMQ_AUDIT_QUEUE", cfg.RabbitMQ.AuditQueue)

	cfg.RAG.ChunkSize = getEnvAsInt("RAG_CHUNK_SIZE", cfg.RAG.ChunkSize)
	cfg.RAG.ChunkOverlap = getEnvAsInt("RAG_CHUNK_OVERLAP", cfg.RAG.ChunkOverlap)
	cfg.RAG.TopK = getEnvAsInt("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.FetchK = getEnvAsInt("RAG_FETCH_K", cfg.RAG.FetchK)
	cfg.RAG.DiversityWeight = getEnvAsFloat("RAG_DIVERSITY_WEIGHT", cfg.RAG.DiversityWeight)

	cfg.Fetch.TimeoutSeconds = getEnvAsInt("FETCH_TIMEOUT_SECONDS", cfg.Fetch.TimeoutSeconds)
	cfg.Fetch.UserAgent = getEnv("FETCH_USER_AGENT", cfg.Fetch.UserAgent)
	cfg.Fetch.ContinueOnError = getEnvAsBool("FETCH_CONTINUE_ON_ERROR", cfg.Fetch.ContinueOnError)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
