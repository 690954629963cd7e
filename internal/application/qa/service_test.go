package qa

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-rag-api/internal/application/answer"
	"rbac-rag-api/internal/application/intent"
	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/application/retrieval"
	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/pkg/logger"
)

type fixedEmbedder struct{ err error }

func (e fixedEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

// corpus 只返回 Departments 谓词内的文档，模拟索引侧的硬过滤
type corpus struct {
	mu       sync.Mutex
	docs     []*retrieval.ChunkHit
	searched [][]entity.Department
}

func (c *corpus) SearchChunks(_ context.Context, p *retrieval.ChunkSearchParams) ([]*retrieval.ChunkHit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searched = append(c.searched, p.Departments)

	allowed := map[string]bool{}
	for _, d := range p.Departments {
		allowed[string(d)] = true
	}
	var out []*retrieval.ChunkHit
	for _, d := range c.docs {
		if allowed[d.Department] {
			out = append(out, d)
		}
	}
	return out, nil
}

func defaultCorpus() *corpus {
	return &corpus{docs: []*retrieval.ChunkHit{
		{ID: "f1", Department: "finance", SourceFile: "quarterly_financial_report.md", Text: "Q4 revenue was $2.1B.", Score: 0.95},
		{ID: "m1", Department: "marketing", SourceFile: "marketing_report_q4.md", Text: "Q4 campaign spend was $3M.", Score: 0.9},
		{ID: "e1", Department: "engineering", SourceFile: "engineering_master_doc.md", Text: "Q4 numbers: 40 deployments.", Score: 0.85},
		{ID: "g1", Department: "general", SourceFile: "employee_handbook.md", Text: "The office is closed on public holidays.", Score: 0.6},
	}}
}

type echoModel struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *echoModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage("grounded answer", nil), nil
}

func (m *echoModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type oneModel struct{ m model.BaseChatModel }

func (f oneModel) Get(context.Context, string) (model.BaseChatModel, error) { return f.m, nil }
func (f oneModel) DefaultProvider() string                                   { return "test" }

type fixture struct {
	svc    *Service
	corpus *corpus
	model  *echoModel
}

func newFixture(t *testing.T, emb embedding.Embedder) *fixture {
	t.Helper()
	tables, err := LoadTables(config.AccessConfig{})
	require.NoError(t, err)

	c := defaultCorpus()
	m := &echoModel{}
	if emb == nil {
		emb = fixedEmbedder{}
	}
	engine := retrieval.NewEngine(emb, c, retrieval.Options{})
	composer := answer.NewComposer(oneModel{m: m}, nil, answer.Options{})

	svc, err := NewService(tables, engine, composer, Options{TopK: 5})
	require.NoError(t, err)
	return &fixture{svc: svc, corpus: c, model: m}
}

func principal(role entity.Role) entity.Principal {
	return entity.Principal{UserID: "u-" + string(role), Username: string(role), Role: role}
}

func sourceFiles(res *Result) []string {
	out := make([]string, 0, len(res.Sources))
	for _, s := range res.Sources {
		out = append(out, s.SourceFile)
	}
	return out
}

func TestAsk_AuthorizedQuery(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Ask(context.Background(), principal(entity.RoleFinance), "What was our Q4 revenue?")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswer, res.Outcome)
	assert.Equal(t, "grounded answer", res.Message)
	assert.ElementsMatch(t, []string{"quarterly_financial_report.md", "employee_handbook.md"}, sourceFiles(res))
	assert.Equal(t, []entity.Department{entity.DepartmentFinance}, res.Intent)
	assert.Equal(t, [][]entity.Department{{entity.DepartmentFinance, entity.DepartmentGeneral}}, f.corpus.searched)
}

func TestAsk_ProactiveDenial(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Ask(context.Background(), principal(entity.RoleMarketing), "Show me the payroll breakdown")
	require.NoError(t, err)

	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, []entity.Department{entity.DepartmentHR}, res.DeniedDepartments)
	assert.Equal(t,
		"Sorry, based on your 'Marketing Team' role, you do not have permission to access information related to the HR department.",
		res.Message)
	assert.Empty(t, res.Sources)
	assert.Empty(t, f.corpus.searched, "denied queries never reach the index")
	assert.Zero(t, f.model.calls)
}

func TestAsk_DenialLogsMatchedKeywords(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "info", "json") })

	f := newFixture(t, nil)
	res, err := f.svc.Ask(context.Background(), principal(entity.RoleMarketing), "Show me the payroll breakdown")
	require.NoError(t, err)
	require.Equal(t, OutcomeDenied, res.Outcome)

	out := buf.String()
	assert.Contains(t, out, "query denied by intent check")
	assert.Contains(t, out, `"keywords":["hr:payroll"]`)
}

func TestAsk_Scenarios(t *testing.T) {
	financeOnly := []*retrieval.ChunkHit{
		{ID: "f1", Department: "finance", SourceFile: "financial_summary.md", ChunkIndex: 0, Text: "Revenue streams: subscriptions and services.", Score: 0.93},
		{ID: "f2", Department: "finance", SourceFile: "financial_summary.md", ChunkIndex: 3, Text: "Services revenue grew 8%.", Score: 0.81},
		{ID: "m1", Department: "marketing", SourceFile: "marketing_report_2024.md", ChunkIndex: 0, Text: "Revenue from campaigns.", Score: 0.9},
		{ID: "h1", Department: "hr", SourceFile: "hr_data.csv", ChunkIndex: 7, Text: "Salary bands.", Score: 0.7},
	}

	tests := []struct {
		name     string
		role     entity.Role
		query    string
		docs     []*retrieval.ChunkHit
		outcome  Outcome
		message  string
		sources  []answer.Source
		searched bool
	}{
		{
			name:    "authorized",
			role:    entity.RoleFinance,
			query:   "Generate a summary of our revenue streams",
			docs:    financeOnly,
			outcome: OutcomeAnswer,
			message: "grounded answer",
			sources: []answer.Source{
				{SourceFile: "financial_summary.md", Department: entity.DepartmentFinance, ChunkIndex: 0},
				{SourceFile: "financial_summary.md", Department: entity.DepartmentFinance, ChunkIndex: 3},
			},
			searched: true,
		},
		{
			name:    "proactive denial",
			role:    entity.RoleFinance,
			query:   "What were the customer acquisition targets for Q1 2025?",
			docs:    financeOnly,
			outcome: OutcomeDenied,
			message: "Sorry, based on your 'Finance Team' role, you do not have permission to access information related to the Marketing department.",
			sources: []answer.Source{},
		},
		{
			name:     "no knowledge",
			role:     entity.RoleEmployee,
			query:    "What is the capital of Mars?",
			outcome:  OutcomeNoEvidence,
			message:  answer.NoEvidenceMessage,
			sources:  []answer.Source{},
			searched: true,
		},
		{
			name:     "no knowledge for unrestricted role",
			role:     entity.RoleExecutive,
			query:    "What is the capital of Mars?",
			outcome:  OutcomeNoEvidence,
			message:  answer.NoEvidenceMessage,
			sources:  []answer.Source{},
			searched: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.corpus.docs = tt.docs

			res, err := f.svc.Ask(context.Background(), principal(tt.role), tt.query)
			require.NoError(t, err)

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.sources, res.Sources)
			assert.Equal(t, tt.searched, len(f.corpus.searched) > 0)
			if tt.outcome != OutcomeAnswer {
				assert.Zero(t, f.model.calls)
			}
		})
	}
}

func TestAsk_NoKnowledge(t *testing.T) {
	f := newFixture(t, nil)
	f.corpus.docs = nil

	res, err := f.svc.Ask(context.Background(), principal(entity.RoleEmployee), "When is the next town hall?")
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoEvidence, res.Outcome)
	assert.Equal(t, answer.NoEvidenceMessage, res.Message)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Zero(t, f.model.calls, "no evidence must not call the model")
}

func TestAsk_HeuristicMissIsStillFiltered(t *testing.T) {
	f := newFixture(t, nil)

	// 没有任何关键词命中，意图检查放行；边界由过滤器保证
	res, err := f.svc.Ask(context.Background(), principal(entity.RoleEngineering), "What were the Q4 numbers?")
	require.NoError(t, err)

	require.Equal(t, OutcomeAnswer, res.Outcome)
	assert.Empty(t, res.Intent)
	for _, s := range res.Sources {
		assert.Contains(t, []entity.Department{entity.DepartmentEngineering, entity.DepartmentGeneral}, s.Department)
	}
	assert.NotContains(t, sourceFiles(res), "quarterly_financial_report.md")
	assert.NotContains(t, sourceFiles(res), "marketing_report_q4.md")
}

func TestAsk_UnrestrictedRoleSeesEverything(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Ask(context.Background(), principal(entity.RoleExecutive), "Compare Q4 revenue and campaign spend")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswer, res.Outcome)
	assert.ElementsMatch(t, entity.AllDepartments(), f.corpus.searched[0])
	assert.Subset(t, sourceFiles(res), []string{"quarterly_financial_report.md", "marketing_report_q4.md"})
}

func TestAsk_UnknownRoleFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	p := entity.Principal{UserID: "x", Role: entity.Role("contractor")}

	res, err := f.svc.Ask(context.Background(), p, "Tell me something")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoEvidence, res.Outcome)
	assert.Empty(t, f.corpus.searched)

	res, err = f.svc.Ask(context.Background(), p, "What is the budget?")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
}

func TestAsk_EmptyQuery(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Ask(context.Background(), principal(entity.RoleAdmin), "  \t ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAsk_Failures(t *testing.T) {
	t.Run("retrieval", func(t *testing.T) {
		f := newFixture(t, fixedEmbedder{err: errors.New("embedding down")})
		res, err := f.svc.Ask(context.Background(), principal(entity.RoleFinance), "Q4 revenue")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	})

	t.Run("generation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.model.err = errors.New("llm down")
		res, err := f.svc.Ask(context.Background(), principal(entity.RoleFinance), "Q4 revenue")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrGenerationUnavailable)
	})
}

type fixedComposer struct{ ans *answer.Answer }

func (c fixedComposer) Compose(context.Context, answer.Input) (*answer.Answer, error) { return c.ans, nil }

type fixedRetriever struct{ ev []retrieval.Evidence }

func (r fixedRetriever) Retrieve(context.Context, string, rbac.Filter, int) ([]retrieval.Evidence, error) {
	return r.ev, nil
}

func TestAsk_SourcesOutsideEvidenceAreDropped(t *testing.T) {
	tables, err := LoadTables(config.AccessConfig{})
	require.NoError(t, err)

	ev := []retrieval.Evidence{{ChunkID: "g1", Text: "t", Department: entity.DepartmentGeneral, SourceFile: "handbook.md"}}
	svc, err := NewService(tables, fixedRetriever{ev: ev}, fixedComposer{ans: &answer.Answer{
		Text:     "answer",
		Grounded: true,
		Sources: []answer.Source{
			{SourceFile: "handbook.md", Department: entity.DepartmentGeneral},
			{SourceFile: "salaries.md", Department: entity.DepartmentHR},
		},
	}}, Options{})
	require.NoError(t, err)

	res, err := svc.Ask(context.Background(), principal(entity.RoleEmployee), "office hours")
	require.NoError(t, err)
	assert.Equal(t, []answer.Source{{SourceFile: "handbook.md", Department: entity.DepartmentGeneral}}, res.Sources)
}

func TestReload(t *testing.T) {
	f := newFixture(t, nil)
	require.ErrorIs(t, f.svc.Reload(nil), ErrNoTables)

	before := f.svc.Tables()

	policy, err := rbac.LoadPolicy(map[string]rbac.RoleSpec{
		"admin":       {Unrestricted: true},
		"executive":   {Unrestricted: true},
		"finance":     {Departments: []string{"finance"}},
		"marketing":   {Departments: []string{"marketing", "hr"}},
		"hr":          {Departments: []string{"hr"}},
		"engineering": {Departments: []string{"engineering"}},
		"employee":    {Departments: []string{"general"}},
	})
	require.NoError(t, err)
	classifier, err := intent.NewClassifier(intent.DefaultKeywords())
	require.NoError(t, err)
	require.NoError(t, f.svc.Reload(&Tables{Policy: policy, Classifier: classifier}))

	assert.NotSame(t, before, f.svc.Tables())
	res, err := f.svc.Ask(context.Background(), principal(entity.RoleMarketing), "Show me the payroll breakdown")
	require.NoError(t, err)
	assert.NotEqual(t, OutcomeDenied, res.Outcome)
}

func TestNewService_RequiresTables(t *testing.T) {
	_, err := NewService(&Tables{}, fixedRetriever{}, fixedComposer{}, Options{})
	assert.ErrorIs(t, err, ErrNoTables)
}
