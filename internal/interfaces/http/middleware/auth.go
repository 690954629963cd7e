// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/internal/interfaces/http/dto"
	apperrors "rbac-rag-api/pkg/errors"
	"rbac-rag-api/pkg/logger"
	"rbac-rag-api/pkg/utils"
)

const principalKey = "principal"

// TokenParser 解析访问令牌
type TokenParser interface {
	ParseToken(token string) (*utils.Claims, error)
}

// PrincipalResolver 按用户 ID 从身份存储解析当前主体
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID string) (entity.Principal, error)
}

// Auth 认证中间件：校验 Bearer Token 并把请求主体写入上下文
//
// 令牌只证明身份；角色与部门由 principals 按存储中的当前值解析，
// 用户被删除时返回 401。principals 为空时按令牌声明构建主体。
// 未知角色不在此处拦截，由下游权限模型按空权限处理。
func Auth(parser TokenParser, principals PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperrors.ErrTokenMissing, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWith(c, apperrors.ErrTokenInvalid, "invalid authorization format")
			return
		}

		claims, err := parser.ParseToken(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, utils.ErrExpiredToken) {
				abortWith(c, apperrors.ErrTokenExpired, "token expired")
				return
			}
			abortWith(c, apperrors.ErrTokenInvalid, "invalid token")
			return
		}
		if claims.Type != utils.TokenTypeAccess || claims.UserID == "" {
			abortWith(c, apperrors.ErrTokenInvalid, "invalid token type")
			return
		}

		principal, err := resolvePrincipal(c.Request.Context(), principals, claims)
		if err != nil {
			if apperrors.AsAppError(err).Code == apperrors.CodeUserNotFound {
				abortWith(c, apperrors.ErrUnauthorized, "user no longer exists")
				return
			}
			logger.Error(c.Request.Context(), "failed to resolve principal", err, "user_id", claims.UserID)
			abortWith(c, apperrors.ErrServiceUnavailable, "identity store unavailable")
			return
		}

		SetPrincipal(c, principal)

		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, principal.UserID)
		ctx = logger.WithContext(ctx, logger.RoleKey, string(principal.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func resolvePrincipal(ctx context.Context, principals PrincipalResolver, claims *utils.Claims) (entity.Principal, error) {
	if principals != nil {
		return principals.ResolvePrincipal(ctx, claims.UserID)
	}
	dept, _ := entity.ParseDepartment(claims.Department)
	return entity.Principal{
		UserID:     claims.UserID,
		Username:   claims.Username,
		Role:       entity.ParseRole(claims.Role),
		Department: dept,
	}, nil
}

// RequireRole 角色检查中间件，须挂在 Auth 之后
func RequireRole(roles ...entity.Role) gin.HandlerFunc {
	allowed := make(map[entity.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := PrincipalFromGin(c)
		if !ok {
			abortWith(c, apperrors.ErrUnauthorized, "missing principal")
			return
		}
		if _, ok := allowed[p.Role]; !ok {
			abortWith(c, apperrors.ErrForbidden, "role not allowed")
			return
		}
		c.Next()
	}
}

// PrincipalFromGin 读取 Auth 写入的请求主体
func PrincipalFromGin(c *gin.Context) (entity.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return entity.Principal{}, false
	}
	p, ok := v.(entity.Principal)
	return p, ok
}

// SetPrincipal 写入请求主体（测试与内部调用）
func SetPrincipal(c *gin.Context, p entity.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.UserID)
	c.Set("role", string(p.Role))
}

// abortWith 按 AppError 的状态码与错误码中止请求
func abortWith(c *gin.Context, appErr *apperrors.AppError, message string) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, dto.ErrorResponse{
		Code:    appErr.HTTPStatus,
		Message: message,
		Error:   &dto.ErrorDetail{ErrorCode: string(appErr.Code)},
		TraceID: c.GetString("trace_id"),
	})
}
