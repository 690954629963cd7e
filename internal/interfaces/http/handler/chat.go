package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"rbac-rag-api/internal/application/qa"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/internal/interfaces/http/dto"
	"rbac-rag-api/internal/interfaces/http/middleware"
	apperrors "rbac-rag-api/pkg/errors"
	"rbac-rag-api/pkg/logger"
)

// QueryAnswerer 问答管道
type QueryAnswerer interface {
	Ask(ctx context.Context, principal entity.Principal, query string) (*qa.Result, error)
}

// ChatHandler 问答处理器
type ChatHandler struct {
	qa QueryAnswerer
}

// NewChatHandler 创建问答处理器
func NewChatHandler(answerer QueryAnswerer) *ChatHandler {
	return &ChatHandler{qa: answerer}
}

// Chat 角色受限的问答
// @Summary 问答
// @Description 拒绝与无证据都以 200 返回，通过 outcome 区分；检索或生成不可用返回 503
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.ChatRequest true "问题"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	p, ok := middleware.PrincipalFromGin(c)
	if !ok {
		dto.Unauthorized(c, "missing principal")
		return
	}

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.qa.Ask(ctx, p, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, qa.ErrEmptyQuery):
			dto.BadRequest(c, "Please provide a query.")
		case errors.Is(err, qa.ErrRetrievalUnavailable):
			logger.Error(ctx, "chat failed: retrieval unavailable", err)
			dto.FromError(c, apperrors.ErrRetrievalUnavailable)
		case errors.Is(err, qa.ErrGenerationUnavailable):
			logger.Error(ctx, "chat failed: generation unavailable", err)
			dto.FromError(c, apperrors.ErrGenerationUnavailable)
		default:
			logger.Error(ctx, "chat failed", err)
			dto.InternalError(c, "failed to answer query")
		}
		return
	}

	dto.Success(c, dto.ToChatResponse(res))
}
