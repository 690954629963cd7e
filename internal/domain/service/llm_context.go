// Package service 定义跨层共享的领域服务辅助
package service

import (
	"context"
	"strings"
)

type llmCallKey struct{}

// LLMCall 单次模型调用的归属信息，供回调打点使用
type LLMCall struct {
	Workflow string
	Provider string
}

const unknownLabel = "unknown"

// WithLLMCall 在 context 中标记模型调用所属工作流与提供商
func WithLLMCall(ctx context.Context, workflow, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	return context.WithValue(ctx, llmCallKey{}, LLMCall{
		Workflow: strings.TrimSpace(workflow),
		Provider: strings.TrimSpace(provider),
	})
}

// LLMCallFromContext 读取调用归属，缺失字段以 unknown 代替
func LLMCallFromContext(ctx context.Context) LLMCall {
	call := LLMCall{Workflow: unknownLabel, Provider: unknownLabel}
	if ctx == nil {
		return call
	}
	if v, ok := ctx.Value(llmCallKey{}).(LLMCall); ok {
		if v.Workflow != "" {
			call.Workflow = v.Workflow
		}
		if v.Provider != "" {
			call.Provider = v.Provider
		}
	}
	return call
}
