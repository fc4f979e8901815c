package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthcare-rag/internal/ai"
	"healthcare-rag/internal/app"
	"healthcare-rag/internal/fetcher"
	"healthcare-rag/internal/index"
	"healthcare-rag/internal/transport/http/response"
)

// classify maps a service error to an HTTP status and response code.
func classify(err error) (int, int) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest, response.CodeBadRequest
	case errors.Is(err, app.ErrEmptyCorpus):
		return http.StatusConflict, response.CodeEmptyCorpus
	case errors.Is(err, app.ErrIngestInProgress):
		return http.StatusConflict, response.CodeIngestInProgress
	case errors.Is(err, index.ErrModelMismatch), errors.Is(err, index.ErrDimensionMismatch):
		return http.StatusConflict, response.CodeModelMismatch
	case errors.Is(err, fetcher.ErrFetch):
		return http.StatusUnprocessableEntity, response.CodeFetchFailed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response.CodeUpstreamTimeout
	case errors.Is(err, ai.ErrEmbeddingService), errors.Is(err, ai.ErrGenerationService):
		return http.StatusBadGateway, response.CodeUpstream
	default:
		return http.StatusInternalServerError, response.CodeInternalServer
	}
}

func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if code == response.CodeInternalServer {
		msg = "internal server error"
	}
	response.Error(c, status, code, msg)
}
