// Package answer 基于已过滤的证据组织答案并保留来源
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"rbac-rag-api/internal/application/retrieval"
	llmctx "rbac-rag-api/internal/domain/service"
	"rbac-rag-api/internal/workflow/port"
	"rbac-rag-api/internal/workflow/prompt"
)

// NoEvidenceMessage 证据为空时的固定回复
const NoEvidenceMessage = "I couldn't find any relevant information for your query in our knowledge base. " +
	"Please try rephrasing or check if the information exists."

const workflowName = "grounded_answer"

// ErrGenerationUnavailable 生成模型调用失败、超时或返回空内容
var ErrGenerationUnavailable = errors.New("generation unavailable")

// Options 答案组织配置
type Options struct {
	Provider         string
	Temperature      float64
	MaxTokens        int
	MaxContextChunks int
	MaxContextRunes  int
	Timeout          time.Duration
}

// Input 组织答案的输入
type Input struct {
	Query    string
	Evidence []retrieval.Evidence
	// RoleName/Departments 仅用于提示模型，不影响证据范围
	RoleName    string
	Departments []string
}

// Answer 组织结果
type Answer struct {
	Text    string
	Sources []Source
	// Grounded 为 false 表示证据为空、未调用模型
	Grounded bool
}

// Composer 答案组织器
type Composer struct {
	factory port.ChatModelFactory
	prompts *prompt.Registry
	opts    Options
}

// NewComposer 创建答案组织器
func NewComposer(factory port.ChatModelFactory, prompts *prompt.Registry, opts Options) *Composer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if prompts == nil {
		prompts = prompt.NewRegistry()
	}
	return &Composer{factory: factory, prompts: prompts, opts: opts}
}

// Compose 证据为空时直接返回固定回复且不调用模型；否则用证据构造 Prompt 生成答案
//
// 返回的来源是本次请求证据的子集。模型失败时返回 ErrGenerationUnavailable，不编造答案。
func (c *Composer) Compose(ctx context.Context, in Input) (*Answer, error) {
	grounding := buildGroundingContext(in.Evidence, c.opts.MaxContextChunks, c.opts.MaxContextRunes)
	if grounding.text == "" {
		return &Answer{Text: NoEvidenceMessage, Sources: []Source{}}, nil
	}
	if c.factory == nil {
		return nil, fmt.Errorf("%w: llm factory not configured", ErrGenerationUnavailable)
	}

	provider := strings.TrimSpace(c.opts.Provider)
	if provider == "" {
		provider = c.factory.DefaultProvider()
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	ctx = llmctx.WithLLMCall(ctx, workflowName, provider)

	msgs, err := c.formatMessages(ctx, in, grounding)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	ctx = einocallbacks.InitCallbacks(ctx, &einocallbacks.RunInfo{
		Name:      workflowName,
		Type:      provider,
		Component: components.ComponentOfChatModel,
	})
	out, err := chatModel.Generate(ctx, msgs, c.modelOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("%w: empty llm response", ErrGenerationUnavailable)
	}

	return &Answer{
		Text:     strings.TrimSpace(out.Content),
		Sources:  grounding.sources,
		Grounded: true,
	}, nil
}

func (c *Composer) formatMessages(ctx context.Context, in Input, g groundingContext) ([]*schema.Message, error) {
	tpl, err := c.prompts.ChatTemplate(prompt.PromptGroundedAnswerV1)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(in.RoleName)
	if role == "" {
		role = "Unknown"
	}
	departments := strings.Join(in.Departments, ", ")
	if departments == "" {
		departments = "none"
	}

	return tpl.Format(ctx, map[string]any{
		"role":        role,
		"departments": departments,
		"question":    strings.TrimSpace(in.Query),
		"context":     g.text,
		"sources":     formatSources(g.sources),
	})
}

func (c *Composer) modelOptions() []model.Option {
	var opts []model.Option
	if c.opts.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(c.opts.Temperature)))
	}
	if c.opts.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.opts.MaxTokens))
	}
	return opts
}
