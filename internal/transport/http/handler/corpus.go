package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthcare-rag/internal/app"
	"healthcare-rag/internal/index"
	"healthcare-rag/internal/logger"
	"healthcare-rag/internal/transport/http/response"
)

type CorpusService interface {
	ProcessURLs(ctx context.Context, urls []string, onStatus func(string) error) (*app.IngestSummary, error)
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (index.Stats, error)
}

type CorpusHandler struct {
	svc CorpusService
	log *logger.Logger
}

type IngestRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,max=50,dive,required,url"`
}

func NewCorpusHandler(svc CorpusService, log *logger.Logger) *CorpusHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CorpusHandler{svc: svc, log: log.With("handler", "corpus")}
}

// Ingest streams progress as server-sent events: "status" per step, then
// "done" with the summary or "error" with the failure.
func (h *CorpusHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	summary, err := h.svc.ProcessURLs(ctx, req.URLs, func(status string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.SSEvent("status", status)
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		h.log.Warn("ingest failed", "urls", len(req.URLs), "error", err)
		_, code := classify(err)
		c.SSEvent("error", gin.H{"code": code, "message": err.Error()})
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", summary)
	c.Writer.Flush()
}

func (h *CorpusHandler) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"reset": true})
}

func (h *CorpusHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, stats)
}
