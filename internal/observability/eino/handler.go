// Package eino 注册 Eino 全局回调，为模型与向量化调用打点
package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	llmctx "rbac-rag-api/internal/domain/service"
	"rbac-rag-api/pkg/metrics"
)

// startTimeKey 在 OnStart 写入，OnEnd/OnError 计算耗时
type startTimeKey struct{}

// modelKey 记录 OnStart 时解析出的模型名，OnError 拿不到输出配置
type modelKey struct{}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			call := llmctx.LLMCallFromContext(ctx)
			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, modelKey{}, modelName)

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", call.Workflow),
				attribute.String("llm.provider", call.Provider),
				attribute.String("llm.model", modelName),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}
			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			call := llmctx.LLMCallFromContext(ctx)
			modelName := modelNameFromOutput(output)
			if modelName == "" {
				modelName = modelFromContext(ctx)
			}

			metrics.LLMCallTotal.WithLabelValues(call.Workflow, call.Provider, modelName, "success").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(call.Workflow, call.Provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				prompt, completion := output.TokenUsage.PromptTokens, output.TokenUsage.CompletionTokens
				metrics.LLMTokensUsed.WithLabelValues(call.Workflow, call.Provider, modelName, "prompt").Add(float64(prompt))
				metrics.LLMTokensUsed.WithLabelValues(call.Workflow, call.Provider, modelName, "completion").Add(float64(completion))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", prompt),
					attribute.Int("llm.completion_tokens", completion),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			call := llmctx.LLMCallFromContext(ctx)
			modelName := modelFromContext(ctx)

			metrics.LLMCallTotal.WithLabelValues(call.Workflow, call.Provider, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(call.Workflow, call.Provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func newEmbeddingCallbackHandler() *cbtemplate.EmbeddingCallbackHandler {
	return &cbtemplate.EmbeddingCallbackHandler{
		OnStart: func(ctx context.Context, _ *einocb.RunInfo, input *embedding.CallbackInput) context.Context {
			modelName := ""
			texts := 0
			if input != nil {
				texts = len(input.Texts)
				if input.Config != nil {
					modelName = input.Config.Model
				}
			}
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, modelKey{}, modelName)
			ctx, _ = otel.Tracer("eino").Start(ctx, "embedding.embed", trace.WithAttributes(
				attribute.String("embedding.model", modelName),
				attribute.Int("embedding.texts", texts),
			))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, _ *embedding.CallbackOutput) context.Context {
			modelName := modelFromContext(ctx)
			metrics.EmbeddingCallTotal.WithLabelValues(modelName, "success").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.EmbeddingCallDuration.WithLabelValues(modelName).Observe(d)
			}
			trace.SpanFromContext(ctx).End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			modelName := modelFromContext(ctx)
			metrics.EmbeddingCallTotal.WithLabelValues(modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.EmbeddingCallDuration.WithLabelValues(modelName).Observe(d)
			}
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(modelKey{}).(string); ok && m != "" {
		return m
	}
	return "unknown"
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
