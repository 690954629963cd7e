package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"rbac-rag-api/internal/application/account"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/interfaces/http/dto"
	"rbac-rag-api/internal/interfaces/http/middleware"
	"rbac-rag-api/pkg/logger"
)

// Authenticator 用户名密码登录
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*account.LoginResult, error)
}

// PolicyProvider 当前生效的权限表
type PolicyProvider interface {
	Policy() *rbac.Policy
}

// AuthHandler 认证处理器
type AuthHandler struct {
	accounts Authenticator
	policy   PolicyProvider
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(accounts Authenticator, policy PolicyProvider) *AuthHandler {
	return &AuthHandler{accounts: accounts, policy: policy}
}

// Login 登录
// @Summary 用户登录
// @Description 校验用户名密码并签发访问令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "登录信息"
// @Success 200 {object} dto.Response[dto.AuthResponse]
// @Failure 401 {object} dto.ErrorResponse
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		logger.Info(ctx, "login failed", "username", req.Username, "error", err.Error())
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.AuthResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(res.ExpiresIn.Seconds()),
		User:        dto.ToUserResponse(res.User),
	})
}

// Me 当前主体及其可读部门
// @Summary 当前用户
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.Response[dto.PrincipalResponse]
// @Failure 401 {object} dto.ErrorResponse
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.PrincipalFromGin(c)
	if !ok {
		dto.Unauthorized(c, "missing principal")
		return
	}
	perms := h.policy.Policy().PermissionsFor(p.Role)
	dto.Success(c, dto.ToPrincipalResponse(p, perms.Departments(), perms.Unrestricted()))
}
