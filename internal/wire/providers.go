// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"rbac-rag-api/internal/application/account"
	"rbac-rag-api/internal/application/answer"
	"rbac-rag-api/internal/application/qa"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/application/retrieval"
	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/domain/repository"
	infraembedding "rbac-rag-api/internal/infrastructure/embedding"
	"rbac-rag-api/internal/infrastructure/llm"
	"rbac-rag-api/internal/infrastructure/persistence/milvus"
	"rbac-rag-api/internal/infrastructure/persistence/postgres"
	"rbac-rag-api/internal/infrastructure/persistence/redis"
	"rbac-rag-api/internal/interfaces/http/handler"
	"rbac-rag-api/internal/interfaces/http/middleware"
	"rbac-rag-api/internal/interfaces/http/router"
	"rbac-rag-api/internal/workflow/port"
	"rbac-rag-api/internal/workflow/prompt"
	"rbac-rag-api/pkg/utils"
)

// App api-gateway 运行所需的顶层对象
type App struct {
	Router *router.Router
	QA     *qa.Service
}

// Bootstrap 初始化数据库与向量集合所需的对象
type Bootstrap struct {
	Postgres *postgres.Client
	Accounts *account.Service
	Chunks   *milvus.ChunkRepository
}

// PostgresSet PostgreSQL 客户端与仓储
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
)

// RedisSet Redis 客户端、向量缓存与限流器
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	ProvidePrincipalCache,
	wire.Bind(new(infraembedding.VectorCache), new(*redis.Cache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
	wire.Bind(new(account.PrincipalCache), new(*redis.PrincipalCache)),
)

// MilvusSet 向量索引
var MilvusSet = wire.NewSet(
	ProvideMilvusClient,
	ProvideChunkRepository,
	wire.Bind(new(retrieval.VectorRepository), new(*milvus.ChunkRepository)),
)

// PipelineSet 问答管道
var PipelineSet = wire.NewSet(
	ProvideAccessTables,
	ProvideEmbedder,
	ProvideRetrievalEngine,
	ProvideLLMFactory,
	ProvideComposer,
	ProvideQAService,
	wire.Bind(new(port.ChatModelFactory), new(*llm.EinoFactory)),
	wire.Bind(new(qa.Retriever), new(*retrieval.Engine)),
	wire.Bind(new(qa.Composer), new(*answer.Composer)),
)

// HTTPSet 处理器与路由
var HTTPSet = wire.NewSet(
	ProvideJWTManager,
	ProvideAccountService,
	ProvideHealthHandler,
	ProvideRouterDeps,
	handler.NewAuthHandler,
	handler.NewChatHandler,
	handler.NewUserHandler,
	handler.NewAccessHandler,
	router.New,
	wire.Struct(new(router.Handlers), "*"),
	wire.Bind(new(account.PolicyProvider), new(*qa.Service)),
	wire.Bind(new(handler.PolicyProvider), new(*qa.Service)),
	wire.Bind(new(handler.QueryAnswerer), new(*qa.Service)),
	wire.Bind(new(handler.Authenticator), new(*account.Service)),
	wire.Bind(new(handler.UserManager), new(*account.Service)),
	wire.Bind(new(middleware.PrincipalResolver), new(*account.Service)),
	wire.Bind(new(account.TokenIssuer), new(*utils.JWTManager)),
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端；Redis 不可用时不阻止启动
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func()) {
	client := redis.NewClient(&cfg.Cache.Redis)
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup
}

// ProvidePrincipalCache 角色与部门缓存，与向量缓存共用 Redis
func ProvidePrincipalCache(cfg *config.Config, cache *redis.Cache) *redis.PrincipalCache {
	return redis.NewPrincipalCache(cache, cfg.Security.PrincipalCacheTTL)
}

// ProvideMilvusClient 提供 Milvus 客户端
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideChunkRepository 向量维度取自 embedding 配置
func ProvideChunkRepository(client *milvus.Client, cfg *config.Config) *milvus.ChunkRepository {
	return milvus.NewChunkRepository(client, cfg.Embedding.Dimension)
}

// ProvideAccessTables 启动时加载并校验权限表与关键词表
func ProvideAccessTables(cfg *config.Config) (*qa.Tables, error) {
	return qa.LoadTables(cfg.Access)
}

// ProvideEmbedder 查询向量化，外层套 Redis 缓存
func ProvideEmbedder(ctx context.Context, cfg *config.Config, cache infraembedding.VectorCache) (einoembedding.Embedder, error) {
	base, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return infraembedding.NewCachedEmbedder(base, cache, cfg.Embedding.Model, cfg.Embedding.CacheTTL), nil
}

// ProvideRetrievalEngine 提供检索引擎
func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, vector retrieval.VectorRepository) *retrieval.Engine {
	p := cfg.Pipeline
	return retrieval.NewEngine(embedder, vector, retrieval.Options{
		DefaultTopK:      p.TopK,
		EmbeddingTimeout: p.EmbeddingTimeout,
		SearchTimeout:    p.SearchTimeout,
		Retry: retrieval.RetryPolicy{
			MaxAttempts: p.RetryMaxAttempts,
			Initial:     p.RetryInitial,
		},
	})
}

// ProvideLLMFactory 提供聊天模型工厂
func ProvideLLMFactory(cfg *config.Config) *llm.EinoFactory {
	return llm.NewEinoFactory(&cfg.LLM)
}

// ProvideComposer 提供答案组织器
func ProvideComposer(cfg *config.Config, factory port.ChatModelFactory) *answer.Composer {
	p := cfg.Pipeline
	return answer.NewComposer(factory, prompt.NewRegistry(), answer.Options{
		Provider:         p.AnswerProvider,
		Temperature:      p.AnswerTemperature,
		MaxTokens:        p.AnswerMaxTokens,
		MaxContextChunks: p.MaxContextChunks,
		MaxContextRunes:  p.MaxContextRunes,
		Timeout:          p.GenerationTimeout,
	})
}

// ProvideQAService 提供问答管道
func ProvideQAService(cfg *config.Config, tables *qa.Tables, retriever qa.Retriever, composer qa.Composer) (*qa.Service, error) {
	return qa.NewService(tables, retriever, composer, qa.Options{TopK: cfg.Pipeline.TopK})
}

// ProvideJWTManager 提供 JWT 管理器
func ProvideJWTManager(cfg *config.Config) *utils.JWTManager {
	return utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
}

// ProvideAccountService 提供账户服务
func ProvideAccountService(cfg *config.Config, users repository.UserRepository, tx repository.Transactor, policy account.PolicyProvider, tokens account.TokenIssuer, principals account.PrincipalCache) *account.Service {
	return account.NewService(users, tx, policy, tokens, cfg.Security.JWT.Expiration).WithPrincipalCache(principals)
}

// ProvideHealthHandler Postgres 与 Milvus 为必需依赖；Redis 故障时缓存与限流降级
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rc *redis.Client, mc *milvus.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version,
		handler.Dependency{Name: "postgres", Checker: pg, Required: true},
		handler.Dependency{Name: "milvus", Checker: mc, Required: true},
		handler.Dependency{Name: "redis", Checker: rc, Required: false},
	)
}

// ProvideRouterDeps 提供路由中间件依赖
func ProvideRouterDeps(tokens *utils.JWTManager, principals middleware.PrincipalResolver, limiter middleware.RateLimiter) router.Deps {
	return router.Deps{
		Tokens:     tokens,
		Principals: principals,
		Limiter:    limiter,
		KeyFunc:    redis.BuildUserRateLimitKey,
	}
}

// staticPolicy bootstrap 阶段没有问答管道，直接持有启动时加载的权限表
type staticPolicy struct {
	policy *rbac.Policy
}

func (s staticPolicy) Policy() *rbac.Policy { return s.policy }

// ProvideStaticPolicy 提供 bootstrap 使用的权限表
func ProvideStaticPolicy(tables *qa.Tables) account.PolicyProvider {
	return staticPolicy{policy: tables.Policy}
}

// ProvideBootstrapAccountService bootstrap 只创建管理员，不签发令牌
func ProvideBootstrapAccountService(cfg *config.Config, users repository.UserRepository, tx repository.Transactor, policy account.PolicyProvider) *account.Service {
	return account.NewService(users, tx, policy, nil, cfg.Security.JWT.Expiration)
}
