package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/domain/entity"
)

type stubEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

type stubVector struct {
	mu     sync.Mutex
	hits   []*ChunkHit
	err    error
	params []*ChunkSearchParams
}

func (s *stubVector) SearchChunks(_ context.Context, p *ChunkSearchParams) ([]*ChunkHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, p)
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func hit(id, dept string, score float32) *ChunkHit {
	return &ChunkHit{ID: id, Score: score, Text: "text of " + id, Department: dept, SourceFile: id + ".md"}
}

func TestRetrieve_PushesFilterDownAndSortsByScore(t *testing.T) {
	vec := &stubVector{hits: []*ChunkHit{
		hit("a", "finance", 0.5),
		hit("b", "general", 0.9),
		hit("c", "finance", 0.7),
	}}
	e := NewEngine(&stubEmbedder{}, vec, Options{})

	filter := rbac.NewFilter(entity.DepartmentFinance, entity.DepartmentGeneral)
	got, err := e.Retrieve(context.Background(), "q4 revenue", filter, 2)
	require.NoError(t, err)

	require.Len(t, vec.params, 1)
	assert.Equal(t, []entity.Department{entity.DepartmentFinance, entity.DepartmentGeneral}, vec.params[0].Departments)
	assert.Equal(t, 2, vec.params[0].TopK)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec.params[0].QueryVector)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ChunkID)
	assert.Equal(t, "c", got[1].ChunkID)
	assert.Equal(t, entity.DepartmentGeneral, got[0].Department)
	assert.Equal(t, "b.md", got[0].SourceFile)
}

func TestRetrieve_DropsHitsOutsideFilter(t *testing.T) {
	vec := &stubVector{hits: []*ChunkHit{
		hit("ok", "hr", 0.9),
		hit("leak", "finance", 0.95),
		hit("bogus", "legal", 0.99),
		{ID: "blank", Department: "hr", Score: 0.8, Text: "   "},
	}}
	e := NewEngine(&stubEmbedder{}, vec, Options{})

	got, err := e.Retrieve(context.Background(), "leave policy", rbac.NewFilter(entity.DepartmentHR, entity.DepartmentGeneral), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ChunkID)
}

func TestRetrieve_EmptyFilterSkipsIndex(t *testing.T) {
	emb := &stubEmbedder{}
	vec := &stubVector{hits: []*ChunkHit{hit("a", "general", 1)}}
	e := NewEngine(emb, vec, Options{})

	got, err := e.Retrieve(context.Background(), "anything", rbac.Filter{}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.calls)
	assert.Empty(t, vec.params)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubVector{}, Options{})
	_, err := e.Retrieve(context.Background(), "  ", rbac.NewFilter(entity.DepartmentGeneral), 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetrieve_RetriesTransientEmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{failures: 2, err: errors.New("503 from embedding service")}
	vec := &stubVector{hits: []*ChunkHit{hit("a", "general", 0.4)}}
	e := NewEngine(emb, vec, Options{Retry: RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond}})

	got, err := e.Retrieve(context.Background(), "holiday schedule", rbac.NewFilter(entity.DepartmentGeneral), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, emb.calls)
}

func TestRetrieve_FailuresAreRetrievalUnavailable(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		emb := &stubEmbedder{failures: 10, err: errors.New("boom")}
		e := NewEngine(emb, &stubVector{}, Options{Retry: RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond}})

		_, err := e.Retrieve(context.Background(), "q", rbac.NewFilter(entity.DepartmentGeneral), 5)
		assert.ErrorIs(t, err, ErrRetrievalUnavailable)
		assert.Equal(t, 2, emb.calls)
	})

	t.Run("search", func(t *testing.T) {
		vec := &stubVector{err: errors.New("milvus down")}
		e := NewEngine(&stubEmbedder{}, vec, Options{})

		_, err := e.Retrieve(context.Background(), "q", rbac.NewFilter(entity.DepartmentGeneral), 5)
		assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	})

	t.Run("not configured", func(t *testing.T) {
		e := NewEngine(nil, nil, Options{})
		_, err := e.Retrieve(context.Background(), "q", rbac.NewFilter(entity.DepartmentGeneral), 5)
		assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	})
}

func TestRetrieve_RetriesNeverWidenFilter(t *testing.T) {
	vec := &stubVector{err: errors.New("timeout")}
	e := NewEngine(&stubEmbedder{}, vec, Options{Retry: RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond}})

	_, err := e.Retrieve(context.Background(), "q", rbac.NewFilter(entity.DepartmentMarketing, entity.DepartmentGeneral), 5)
	require.Error(t, err)
	require.Len(t, vec.params, 3)
	for _, p := range vec.params {
		assert.Equal(t, []entity.Department{entity.DepartmentMarketing, entity.DepartmentGeneral}, p.Departments)
	}
}

// hangingEmbedder 阻塞到 context 结束，模拟无响应的向量化服务
type hangingEmbedder struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
}

func (h *hangingEmbedder) EmbedStrings(ctx context.Context, _ []string, _ ...embedding.Option) ([][]float64, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.entered != nil {
		select {
		case h.entered <- struct{}{}:
		default:
		}
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type hangingVector struct {
	mu    sync.Mutex
	calls int
}

func (h *hangingVector) SearchChunks(ctx context.Context, _ *ChunkSearchParams) ([]*ChunkHit, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRetrieve_EmbeddingTimeout(t *testing.T) {
	emb := &hangingEmbedder{}
	e := NewEngine(emb, &stubVector{}, Options{
		EmbeddingTimeout: 50 * time.Millisecond,
		Retry:            RetryPolicy{MaxAttempts: 3, Initial: 5 * time.Millisecond},
	})

	start := time.Now()
	_, err := e.Retrieve(context.Background(), "q4 revenue", rbac.NewFilter(entity.DepartmentFinance), 5)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second, "each attempt is bounded by the embedding timeout")
	assert.GreaterOrEqual(t, emb.calls, 2)
	assert.LessOrEqual(t, emb.calls, 3)
}

func TestRetrieve_CancelledByCaller(t *testing.T) {
	emb := &hangingEmbedder{entered: make(chan struct{}, 1)}
	e := NewEngine(emb, &stubVector{}, Options{
		EmbeddingTimeout: 5 * time.Second,
		Retry:            RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-emb.entered
		cancel()
	}()

	start := time.Now()
	_, err := e.Retrieve(ctx, "q4 revenue", rbac.NewFilter(entity.DepartmentFinance), 5)

	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, emb.calls, "cancelled calls are not retried")
}

func TestRetrieve_SearchTimeout(t *testing.T) {
	vec := &hangingVector{}
	e := NewEngine(&stubEmbedder{}, vec, Options{
		SearchTimeout: 50 * time.Millisecond,
		Retry:         RetryPolicy{MaxAttempts: 1},
	})

	start := time.Now()
	_, err := e.Retrieve(context.Background(), "q4 revenue", rbac.NewFilter(entity.DepartmentFinance), 5)

	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, vec.calls)
}

func TestClampTopK(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubVector{}, Options{DefaultTopK: 7})
	assert.Equal(t, 7, e.clampTopK(0))
	assert.Equal(t, 3, e.clampTopK(3))
	assert.Equal(t, maxTopK, e.clampTopK(1000))
}
