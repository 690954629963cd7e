package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"rbac-rag-api/internal/infrastructure/persistence/redis"
	"rbac-rag-api/pkg/metrics"
)

// VectorCache 向量缓存
type VectorCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, redis.LoadSource, error)
}

// CachedEmbedder 为查询向量化加一层 Redis 缓存
//
// 键由模型名与文本的 sha256 组成，相同问题在 TTL 内不重复调用向量化服务。
type CachedEmbedder struct {
	next  embedding.Embedder
	cache VectorCache
	model string
	ttl   time.Duration
}

var _ embedding.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder 创建带缓存的 Embedder；cache 为空或 ttl<=0 时直接返回 next
func NewCachedEmbedder(next embedding.Embedder, cache VectorCache, model string, ttl time.Duration) embedding.Embedder {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachedEmbedder{next: next, cache: cache, model: model, ttl: ttl}
}

// EmbedStrings 逐条走缓存；任一条失败则整体失败
func (e *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		vec, err := e.embedOne(ctx, text, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *CachedEmbedder) embedOne(ctx context.Context, text string, opts ...embedding.Option) ([]float64, error) {
	b, source, err := e.cache.GetOrLoadSafe(ctx, e.key(text), e.ttl, func(ctx context.Context) (any, error) {
		vecs, err := e.next.EmbedStrings(ctx, []string{text}, opts...)
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("empty embedding result")
		}
		return vecs[0], nil
	})
	metrics.EmbeddingCacheTotal.WithLabelValues(string(source)).Inc()
	if err != nil {
		return nil, err
	}

	var vec []float64
	if err := json.Unmarshal(b, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vec, nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}
