package router

import (
	"github.com/gin-gonic/gin"

	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers, auth, rateLimit gin.HandlerFunc) {
	// 认证
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.GET("/me", auth, h.Auth.Me)
	}

	// 问答
	v1.POST("/chat", auth, rateLimit, h.Chat.Chat)

	// 管理
	admin := v1.Group("/admin", auth, middleware.RequireRole(entity.RoleAdmin))
	{
		admin.GET("/roles", h.Access.ListRoles)

		admin.GET("/users", h.User.ListUsers)
		admin.POST("/users", h.User.CreateUser)
		admin.PUT("/users/:uid", h.User.UpdateUser)
		admin.DELETE("/users/:uid", h.User.DeleteUser)
	}
}
