package milvus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rbac-rag-api/internal/application/retrieval"
	domain "rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/pkg/metrics"
)

// ErrEmptyDepartmentFilter 部门过滤为空时拒绝下发查询
var ErrEmptyDepartmentFilter = errors.New("milvus: department filter must not be empty")

// ChunkRepository 文档分块向量仓储
type ChunkRepository struct {
	client *Client
	dim    int
}

// NewChunkRepository 创建文档分块向量仓储
func NewChunkRepository(client *Client, dim int) *ChunkRepository {
	return &ChunkRepository{client: client, dim: dim}
}

var _ retrieval.VectorRepository = (*ChunkRepository)(nil)

// EnsureChunkCollection 确保集合与索引可用（不存在则创建），不做 drop 等破坏性操作
func (r *ChunkRepository) EnsureChunkCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	collName := r.client.ChunkCollection()

	exists, err := r.client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		if err := r.createCollection(ctx, collName); err != nil {
			return err
		}
		if err := r.createIndex(ctx, collName); err != nil {
			return err
		}
	}
	return r.client.LoadCollection(ctx, collName)
}

func (r *ChunkRepository) createCollection(ctx context.Context, collName string) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", collName)))
	defer span.End()

	shards := r.client.config.ShardsNum
	if shards <= 0 {
		shards = entity.DefaultShardNumber
	}
	if err := r.client.milvus.CreateCollection(ctx, DocumentChunksSchema(collName, r.dim), shards); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *ChunkRepository) createIndex(ctx context.Context, collName string) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collName)))
	defer span.End()

	m, efc := r.client.config.HNSWM, r.client.config.HNSWEfConstruction
	if m <= 0 {
		m = 16
	}
	if efc <= 0 {
		efc = 200
	}
	idx, err := entity.NewIndexHNSW(r.metricType(), m, efc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build index spec: %w", err)
	}
	if err := r.client.milvus.CreateIndex(ctx, collName, FieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// SearchChunks 在指定部门内做向量检索
//
// 部门谓词始终下推到索引；部门列表为空时直接报错，绝不退化为全库检索。
func (r *ChunkRepository) SearchChunks(ctx context.Context, params *retrieval.ChunkSearchParams) ([]*retrieval.ChunkHit, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	if params == nil || len(params.QueryVector) == 0 {
		return nil, fmt.Errorf("milvus: query vector is required")
	}
	expr, err := DepartmentExpr(params.Departments)
	if err != nil {
		return nil, err
	}

	collName := r.client.ChunkCollection()
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.Int("top_k", params.TopK),
			attribute.String("expr", expr),
		))
	defer span.End()

	ef := r.client.config.SearchEf
	if ef < params.TopK {
		ef = params.TopK
	}
	if ef <= 0 {
		ef = 64
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	start := time.Now()
	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		expr,
		outputFields(),
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		FieldVector,
		r.metricType(),
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(collName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(collName, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(collName, "success").Inc()

	var hits []*retrieval.ChunkHit
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			h := &retrieval.ChunkHit{Score: r.similarity(result.Scores[i])}
			if col, ok := result.Fields.GetColumn(FieldID).(*entity.ColumnVarChar); ok {
				h.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldDepartment).(*entity.ColumnVarChar); ok {
				h.Department = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldSourceFile).(*entity.ColumnVarChar); ok {
				h.SourceFile = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldChunkIndex).(*entity.ColumnInt64); ok {
				h.ChunkIndex = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn(FieldText).(*entity.ColumnVarChar); ok {
				h.Text = col.Data()[i]
			}
			hits = append(hits, h)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// DepartmentExpr 构建部门过滤表达式，例如 department in ["finance", "general"]
func DepartmentExpr(departments []domain.Department) (string, error) {
	quoted := make([]string, 0, len(departments))
	seen := make(map[domain.Department]struct{}, len(departments))
	for _, d := range departments {
		if !d.IsKnown() {
			return "", fmt.Errorf("milvus: unknown department %q in filter", string(d))
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		quoted = append(quoted, strconv.Quote(string(d)))
	}
	if len(quoted) == 0 {
		return "", ErrEmptyDepartmentFilter
	}
	return fmt.Sprintf("%s in [%s]", FieldDepartment, strings.Join(quoted, ", ")), nil
}

func (r *ChunkRepository) metricType() entity.MetricType {
	switch strings.ToUpper(strings.TrimSpace(r.client.config.MetricType)) {
	case "IP":
		return entity.IP
	case "L2":
		return entity.L2
	default:
		return entity.COSINE
	}
}

// similarity 统一为"越大越相似"
func (r *ChunkRepository) similarity(raw float32) float32 {
	if r.metricType() == entity.L2 {
		return 1 / (1 + raw)
	}
	return raw
}
