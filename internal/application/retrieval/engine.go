// Package retrieval 提供受部门过滤器约束的证据检索
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/pkg/logger"
	"rbac-rag-api/pkg/metrics"
	"rbac-rag-api/pkg/tracer"
)

const (
	defaultTopK      = 5
	maxTopK          = 50
	defaultCallLimit = 10 * time.Second
)

// Options 检索引擎配置
type Options struct {
	DefaultTopK      int
	EmbeddingTimeout time.Duration
	SearchTimeout    time.Duration
	Retry            RetryPolicy
}

// Engine 证据检索引擎
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository
	opts     Options
}

// NewEngine 创建检索引擎
func NewEngine(embedder embedding.Embedder, vector VectorRepository, opts Options) *Engine {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = defaultTopK
	}
	if opts.EmbeddingTimeout <= 0 {
		opts.EmbeddingTimeout = defaultCallLimit
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultCallLimit
	}
	return &Engine{embedder: embedder, vector: vector, opts: opts}
}

// Retrieve 在过滤器允许的部门内检索最多 k 条证据，按相似度降序
//
// 过滤器作为索引查询的硬谓词下推；返回前再逐条复核，越界条目被丢弃并计数。
// 向量化或索引失败时返回 ErrRetrievalUnavailable，不返回部分结果。
func (e *Engine) Retrieve(ctx context.Context, query string, filter rbac.Filter, k int) ([]Evidence, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if e == nil || e.embedder == nil || e.vector == nil {
		return nil, fmt.Errorf("%w: retriever is not configured", ErrRetrievalUnavailable)
	}
	k = e.clampTopK(k)

	departments := filter.Departments()
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.Int("retrieval.top_k", k),
		attribute.StringSlice("retrieval.departments", departmentStrings(departments)),
		attribute.Bool("retrieval.unrestricted", filter.Unrestricted()),
	))
	defer span.End()

	if filter.IsEmpty() {
		logger.Debug(ctx, "retrieval skipped: filter allows no department")
		metrics.EvidenceItems.Observe(0)
		return nil, nil
	}

	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	vec, err := callWithRetry(ctx, e.opts.Retry, e.opts.EmbeddingTimeout, func(ctx context.Context) ([]float32, error) {
		return e.embedQuery(ctx, query)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed query")
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrievalUnavailable, err)
	}

	hits, err := callWithRetry(ctx, e.opts.Retry, e.opts.SearchTimeout, func(ctx context.Context) ([]*ChunkHit, error) {
		return e.vector.SearchChunks(ctx, &ChunkSearchParams{
			QueryVector: vec,
			Departments: departments,
			TopK:        k,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector search")
		return nil, fmt.Errorf("%w: vector search: %w", ErrRetrievalUnavailable, err)
	}

	evidence := e.admit(ctx, hits, filter)
	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Score > evidence[j].Score })
	if len(evidence) > k {
		evidence = evidence[:k]
	}

	span.SetAttributes(attribute.Int("retrieval.evidence", len(evidence)))
	metrics.EvidenceItems.Observe(float64(len(evidence)))
	return evidence, nil
}

// admit 复核索引返回的每一条命中，只保留过滤器内的部门
func (e *Engine) admit(ctx context.Context, hits []*ChunkHit, filter rbac.Filter) []Evidence {
	out := make([]Evidence, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			continue
		}
		dept, known := entity.ParseDepartment(h.Department)
		if !known || !filter.Contains(dept) {
			metrics.FilterViolationsTotal.WithLabelValues(h.Department).Inc()
			logger.Error(ctx, "vector index returned chunk outside filter, dropped", nil,
				"chunk_id", h.ID,
				"department", h.Department,
				"allowed", departmentStrings(filter.Departments()),
			)
			continue
		}
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		out = append(out, Evidence{
			ChunkID:    strings.TrimSpace(h.ID),
			Text:       text,
			Department: dept,
			SourceFile: strings.TrimSpace(h.SourceFile),
			ChunkIndex: h.ChunkIndex,
			Score:      float64(h.Score),
		})
	}
	return out
}

func (e *Engine) clampTopK(k int) int {
	if k <= 0 {
		k = e.opts.DefaultTopK
	}
	if k > maxTopK {
		k = maxTopK
	}
	return k
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx = einocallbacks.InitCallbacks(ctx, &einocallbacks.RunInfo{
		Name:      "query_embedding",
		Component: components.ComponentOfEmbedding,
	})
	v64, err := e.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 || len(v64[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	vec := v64[0]
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out, nil
}

func departmentStrings(ds []entity.Department) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, string(d))
	}
	return out
}
