package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthcare-rag/internal/app"
	"healthcare-rag/internal/transport/http/response"
)

type AskService interface {
	GenerateAnswer(ctx context.Context, question string) (*app.Answer, error)
}

type AskHandler struct {
	svc AskService
}

type AskRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
}

func NewAskHandler(svc AskService) *AskHandler {
	return &AskHandler{svc: svc}
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	answer, err := h.svc.GenerateAnswer(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, answer)
}
