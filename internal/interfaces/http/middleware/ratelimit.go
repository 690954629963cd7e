package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "rbac-rag-api/pkg/errors"
	"rbac-rag-api/pkg/logger"
	"rbac-rag-api/pkg/metrics"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 由请求路径和用户构造限流键
type KeyFunc func(userID, path string) string

// RateLimit 按用户+路由限流，须挂在 Auth 之后
func RateLimit(cfg RateLimitConfig, limiter RateLimiter, key KeyFunc) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = "anonymous:" + c.ClientIP()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		allowed, err := limiter.Allow(c.Request.Context(), key(userID, path), cfg.Limit, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitRejectedTotal.WithLabelValues(path).Inc()
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			abortWith(c, apperrors.ErrTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
