//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"rbac-rag-api/internal/config"
)

// InitializeApp 初始化 api-gateway
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		MilvusSet,
		PipelineSet,
		HTTPSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeBootstrap 初始化 bootstrap：不需要 Redis 与模型服务
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		PostgresSet,
		MilvusSet,
		ProvideAccessTables,
		ProvideStaticPolicy,
		ProvideBootstrapAccountService,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}
