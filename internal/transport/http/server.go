package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"healthcare-rag/internal/bootstrap"
	"healthcare-rag/internal/logger"
	"healthcare-rag/internal/transport/http/handler"
	"healthcare-rag/internal/transport/http/middleware"
)

type RouterDeps struct {
	GinMode   string
	JWTSecret string
	Logger    *logger.Logger
	Corpus    handler.CorpusService
	Ask       handler.AskService
	Health    *handler.HealthHandler
}

// NewRouter wires the application into HTTP routes.
func NewRouter(a *bootstrap.App) *gin.Engine {
	checks := []handler.Check{{
		Name: a.Config.Store.Driver,
		Probe: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.Redis != nil {
		checks = append(checks, handler.Check{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		})
	}
	if a.MQConn != nil {
		checks = append(checks, handler.Check{
			Name: "rabbitmq",
			Probe: func(context.Context) error {
				if a.MQConn.IsClosed() {
					return errConnectionClosed
				}
				return nil
			},
		})
	}

	return BuildRouter(RouterDeps{
		GinMode:   a.Config.App.GinMode,
		JWTSecret: a.Config.Auth.JWTSecret,
		Logger:    a.Logger,
		Corpus:    a.RAGService,
		Ask:       a.RAGService,
		Health:    handler.NewHealthHandler(a.Config.App.Name, a.Config.App.Env, a.StartedAt, checks...),
	})
}

func BuildRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(deps.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger))

	if deps.Health == nil {
		deps.Health = handler.NewHealthHandler("healthcare-rag", "", time.Now())
	}
	corpusHandler := handler.NewCorpusHandler(deps.Corpus, deps.Logger)
	askHandler := handler.NewAskHandler(deps.Ask)

	router.GET("/healthz", deps.Health.Check)

	v1 := router.Group("/api/v1")
	v1.GET("/healthz", deps.Health.Check)
	v1.POST("/ask", askHandler.Ask)

	corpus := v1.Group("/corpus")
	corpus.GET("/stats", corpusHandler.Stats)
	corpus.POST("/ingest", middleware.AuthJWT(deps.JWTSecret), corpusHandler.Ingest)
	corpus.DELETE("", middleware.AuthJWT(deps.JWTSecret), corpusHandler.Reset)

	return router
}
