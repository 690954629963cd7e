package retrieval

import "rbac-rag-api/internal/domain/entity"

// Evidence 经过权限过滤的检索结果，按相似度降序排列
type Evidence struct {
	ChunkID    string
	Text       string
	Department entity.Department
	SourceFile string
	ChunkIndex int64
	Score      float64
}

// Source 来源标识
func (e Evidence) Source() string {
	return e.SourceFile
}
