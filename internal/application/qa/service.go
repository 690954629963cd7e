// Package qa 编排一次问答：意图分类 -> 访问决策 -> 构建过滤器 -> 检索 -> 组织答案
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rbac-rag-api/internal/application/answer"
	"rbac-rag-api/internal/application/intent"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/application/retrieval"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/pkg/logger"
	"rbac-rag-api/pkg/metrics"
	"rbac-rag-api/pkg/tracer"
)

var (
	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("please provide a query")
	// ErrRetrievalUnavailable 检索不可用，调用方可重试
	ErrRetrievalUnavailable = retrieval.ErrRetrievalUnavailable
	// ErrGenerationUnavailable 生成不可用，调用方可重试
	ErrGenerationUnavailable = answer.ErrGenerationUnavailable
	// ErrNoTables 未提供权限表或关键词表
	ErrNoTables = errors.New("access tables are required")
)

// Retriever 证据检索
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter rbac.Filter, k int) ([]retrieval.Evidence, error)
}

// Composer 答案组织
type Composer interface {
	Compose(ctx context.Context, in answer.Input) (*answer.Answer, error)
}

// Tables 权限表与关键词表的不可变快照
type Tables struct {
	Policy     *rbac.Policy
	Classifier *intent.Classifier
}

// Options 管道配置
type Options struct {
	TopK int
}

// Service 问答管道
//
// 快照通过 atomic.Pointer 整体替换；每次查询只读取一次，
// 保证分类、决策与过滤基于同一版本的表。
type Service struct {
	tables    atomic.Pointer[Tables]
	retriever Retriever
	composer  Composer
	opts      Options
}

// NewService 创建问答管道
func NewService(tables *Tables, retriever Retriever, composer Composer, opts Options) (*Service, error) {
	s := &Service{retriever: retriever, composer: composer, opts: opts}
	if err := s.Reload(tables); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 原子替换权限表快照
func (s *Service) Reload(tables *Tables) error {
	if tables == nil || tables.Policy == nil || tables.Classifier == nil {
		return ErrNoTables
	}
	s.tables.Store(tables)
	return nil
}

// Tables 当前快照
func (s *Service) Tables() *Tables {
	return s.tables.Load()
}

// Policy 当前快照中的权限表
func (s *Service) Policy() *rbac.Policy {
	return s.tables.Load().Policy
}

// Ask 处理一次查询，返回 denied / no_evidence / answer 三种结果之一
//
// 检索或生成失败时返回错误，绝不返回部分结果或放宽权限重试。
func (s *Service) Ask(ctx context.Context, principal entity.Principal, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "qa.Ask", trace.WithAttributes(
		attribute.String("principal.role", string(principal.Role)),
	))
	defer span.End()

	res, err := s.run(ctx, principal, query)

	outcome := outcomeLabel(res, err)
	metrics.QueryOutcomesTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("qa.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return res, err
}

func (s *Service) run(ctx context.Context, principal entity.Principal, query string) (*Result, error) {
	tables := s.tables.Load()
	policy := tables.Policy

	if !policy.Knows(principal.Role) {
		metrics.UnknownRoleTotal.Inc()
		logger.Warn(ctx, "principal role is not in the permission model, failing closed",
			"role", string(principal.Role))
	}

	// IntentClassified
	in := tables.Classifier.Classify(query)

	decision := policy.Decide(principal, in.Departments)
	metrics.AccessDecisionsTotal.WithLabelValues(roleLabel(principal.Role), decisionLabel(decision)).Inc()
	if !decision.Allowed {
		logger.Info(ctx, "query denied by intent check",
			"role", string(principal.Role),
			"intent", departmentStrings(in.Departments),
			"keywords", matchedKeywords(in),
			"denied", departmentStrings(decision.Denied),
		)
		return denied(in, decision), nil
	}

	// FilterBuilt
	filter := policy.FilterFor(principal)
	perms := policy.PermissionsFor(principal.Role)

	// Retrieved
	evidence, err := s.retriever.Retrieve(ctx, query, filter, s.opts.TopK)
	if err != nil {
		if errors.Is(err, retrieval.ErrRetrievalUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}
	if len(evidence) == 0 {
		logger.Info(ctx, "no evidence within filter",
			"role", string(principal.Role),
			"filter", departmentStrings(filter.Departments()),
		)
		return noEvidence(in), nil
	}

	// Composed
	ans, err := s.composer.Compose(ctx, answer.Input{
		Query:       query,
		Evidence:    evidence,
		RoleName:    principal.Role.DisplayName(),
		Departments: departmentNames(perms),
	})
	if err != nil {
		if errors.Is(err, answer.ErrGenerationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	if !ans.Grounded {
		return noEvidence(in), nil
	}

	return &Result{
		Outcome: OutcomeAnswer,
		Message: ans.Text,
		Sources: sourcesWithin(ctx, ans.Sources, evidence),
		Intent:  in.Departments,
	}, nil
}

// sourcesWithin 只保留能对应到本次证据的来源
func sourcesWithin(ctx context.Context, sources []answer.Source, evidence []retrieval.Evidence) []answer.Source {
	allowed := make(map[answer.Source]struct{}, len(evidence))
	for _, ev := range evidence {
		id := ev.SourceFile
		if strings.TrimSpace(id) == "" {
			id = ev.ChunkID
		}
		allowed[answer.Source{SourceFile: id, Department: ev.Department, ChunkIndex: ev.ChunkIndex}] = struct{}{}
	}
	out := make([]answer.Source, 0, len(sources))
	for _, src := range sources {
		if _, ok := allowed[src]; !ok {
			logger.Error(ctx, "composer reported a source outside the evidence set, dropped", nil,
				"source_file", src.SourceFile, "chunk_index", src.ChunkIndex, "department", string(src.Department))
			continue
		}
		out = append(out, src)
	}
	return out
}

// matchedKeywords 按部门顺序展开命中的关键词，形如 hr:payroll
func matchedKeywords(in intent.Intent) []string {
	var out []string
	for _, d := range in.Departments {
		for _, kw := range in.Matches[d] {
			out = append(out, string(d)+":"+kw)
		}
	}
	return out
}

func departmentNames(perms rbac.PermissionSet) []string {
	if perms.Unrestricted() {
		return []string{"all departments"}
	}
	ds := perms.Departments()
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.DisplayName())
	}
	return out
}

func departmentStrings(ds []entity.Department) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, string(d))
	}
	return out
}

func roleLabel(r entity.Role) string {
	if !r.IsKnown() {
		return "unknown"
	}
	return string(r)
}

func decisionLabel(d rbac.Decision) string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}

func outcomeLabel(res *Result, err error) string {
	switch {
	case err == nil && res != nil:
		return string(res.Outcome)
	case errors.Is(err, ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.Is(err, ErrGenerationUnavailable):
		return "generation_unavailable"
	default:
		return "error"
	}
}
