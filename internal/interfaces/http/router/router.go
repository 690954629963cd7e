// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/interfaces/http/handler"
	"rbac-rag-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Chat   *handler.ChatHandler
	User   *handler.UserHandler
	Access *handler.AccessHandler
}

// Deps 路由中间件依赖
type Deps struct {
	Tokens     middleware.TokenParser
	Principals middleware.PrincipalResolver
	Limiter    middleware.RateLimiter
	KeyFunc    middleware.KeyFunc
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	deps     Deps
}

// New 创建新的路由器
func New(cfg *config.Config, handlers *Handlers, deps Deps) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		deps:     deps,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes() {
	health := r.handlers.Health
	r.engine.GET("/health", health.Health)
	r.engine.GET("/ready", health.Ready)
	r.engine.GET("/live", health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	rl := r.cfg.Security.RateLimit
	RegisterV1Routes(r.engine.Group("/v1"), r.handlers,
		middleware.Auth(r.deps.Tokens, r.deps.Principals),
		middleware.RateLimit(middleware.RateLimitConfig{
			Enabled: rl.Enabled,
			Limit:   rl.Limit,
			Window:  rl.Window,
		}, r.deps.Limiter, r.deps.KeyFunc),
	)
}
