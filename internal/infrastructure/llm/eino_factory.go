// Package llm 管理答案生成所用的 ChatModel
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/workflow/port"
)

// ModelBuilder 根据提供商配置构建 ChatModel
type ModelBuilder func(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error)

// EinoFactory 按提供商名称惰性创建并复用 ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	build  ModelBuilder
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

var _ port.ChatModelFactory = (*EinoFactory)(nil)

// NewEinoFactory 创建基于 Eino OpenAI 适配器的工厂
func NewEinoFactory(cfg *config.LLMConfig) *EinoFactory {
	return NewEinoFactoryWithBuilder(cfg, newOpenAIChatModel)
}

// NewEinoFactoryWithBuilder 使用自定义构建函数创建工厂
func NewEinoFactoryWithBuilder(cfg *config.LLMConfig, build ModelBuilder) *EinoFactory {
	return &EinoFactory{
		config: cfg,
		build:  build,
		models: make(map[string]model.BaseChatModel),
	}
}

// DefaultProvider 默认提供商名称
func (f *EinoFactory) DefaultProvider() string {
	return f.config.DefaultProvider
}

// Get 获取指定名称的 ChatModel，名称为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := f.build(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

func newOpenAIChatModel(ctx context.Context, p config.ProviderConfig) (model.BaseChatModel, error) {
	cfg := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: p.Timeout,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	if p.Temperature > 0 {
		temp := float32(p.Temperature)
		cfg.Temperature = &temp
	}
	return openai.NewChatModel(ctx, cfg)
}
