package retrieval

import (
	"context"

	"rbac-rag-api/internal/domain/entity"
)

// VectorRepository 定义应用层对向量检索的最小依赖（port），由 Milvus 适配器实现。
//
// Departments 是必填的检索谓词：实现必须把它作为硬过滤条件下推到索引。
type VectorRepository interface {
	SearchChunks(ctx context.Context, params *ChunkSearchParams) ([]*ChunkHit, error)
}

// ChunkSearchParams 向量检索参数
type ChunkSearchParams struct {
	QueryVector []float32
	Departments []entity.Department
	TopK        int
}

// ChunkHit 向量检索命中；Score 越大越相似
type ChunkHit struct {
	ID         string
	Score      float32
	Text       string
	Department string
	SourceFile string
	ChunkIndex int64
}
