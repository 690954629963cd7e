package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-rag-api/internal/application/answer"
	"rbac-rag-api/internal/application/qa"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAnswerer struct {
	res   *qa.Result
	err   error
	query string
	who   entity.Principal
}

func (s *stubAnswerer) Ask(_ context.Context, p entity.Principal, query string) (*qa.Result, error) {
	s.who = p
	s.query = query
	if strings.TrimSpace(query) == "" {
		return nil, qa.ErrEmptyQuery
	}
	return s.res, s.err
}

func chatEngine(h *ChatHandler, p *entity.Principal) *gin.Engine {
	r := gin.New()
	r.POST("/v1/chat", func(c *gin.Context) {
		if p != nil {
			middleware.SetPrincipal(c, *p)
		}
		c.Next()
	}, h.Chat)
	return r
}

func postChat(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type chatEnvelope struct {
	Code int `json:"code"`
	Data struct {
		Outcome           string   `json:"outcome"`
		Message           string   `json:"message"`
		DeniedDepartments []string `json:"denied_departments"`
		Sources           []struct {
			SourceFile string `json:"source_file"`
			Department string `json:"department"`
			ChunkIndex int64  `json:"chunk_index"`
		} `json:"sources"`
	} `json:"data"`
}

func TestChat_Outcomes(t *testing.T) {
	finance := &entity.Principal{UserID: "u1", Username: "alice", Role: entity.RoleFinance}

	tests := []struct {
		name    string
		res     *qa.Result
		outcome string
		sources int
	}{
		{
			"answer",
			&qa.Result{Outcome: qa.OutcomeAnswer, Message: "Revenue grew.", Sources: []answer.Source{
				{SourceFile: "financial_summary.md", Department: entity.DepartmentFinance, ChunkIndex: 2},
			}},
			"answer", 1,
		},
		{
			"denied",
			&qa.Result{Outcome: qa.OutcomeDenied, Message: "Sorry", Sources: []answer.Source{}, DeniedDepartments: []entity.Department{entity.DepartmentHR}},
			"denied", 0,
		},
		{
			"no evidence",
			&qa.Result{Outcome: qa.OutcomeNoEvidence, Message: answer.NoEvidenceMessage, Sources: []answer.Source{}},
			"no_evidence", 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := &stubAnswerer{res: tt.res}
			w := postChat(chatEngine(NewChatHandler(ans), finance), `{"query":"What was Q4 revenue?"}`)
			require.Equal(t, http.StatusOK, w.Code)

			var env chatEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, tt.outcome, env.Data.Outcome)
			assert.Equal(t, tt.res.Message, env.Data.Message)
			assert.Len(t, env.Data.Sources, tt.sources)
			assert.NotNil(t, env.Data.Sources)
			assert.Equal(t, "What was Q4 revenue?", ans.query)
			assert.Equal(t, *finance, ans.who)
			for i, src := range tt.res.Sources {
				assert.Equal(t, src.SourceFile, env.Data.Sources[i].SourceFile)
				assert.Equal(t, src.ChunkIndex, env.Data.Sources[i].ChunkIndex)
			}
		})
	}
}

func TestChat_DeniedListsDepartments(t *testing.T) {
	ans := &stubAnswerer{res: &qa.Result{
		Outcome: qa.OutcomeDenied, Message: "Sorry",
		DeniedDepartments: []entity.Department{entity.DepartmentHR},
	}}
	w := postChat(chatEngine(NewChatHandler(ans), &entity.Principal{UserID: "u", Role: entity.RoleMarketing}), `{"query":"payroll"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"denied_departments":["hr"]`)
}

func TestChat_Errors(t *testing.T) {
	p := &entity.Principal{UserID: "u", Role: entity.RoleEmployee}

	tests := []struct {
		name   string
		body   string
		err    error
		status int
		want   string
	}{
		{"empty query", `{"query":"   "}`, nil, http.StatusBadRequest, "Please provide a query."},
		{"missing query", `{}`, nil, http.StatusBadRequest, "Please provide a query."},
		{"malformed body", `{"query":`, nil, http.StatusBadRequest, "invalid request body"},
		{"retrieval down", `{"query":"q"}`, fmt.Errorf("%w: milvus", qa.ErrRetrievalUnavailable), http.StatusServiceUnavailable, "4003"},
		{"generation down", `{"query":"q"}`, fmt.Errorf("%w: llm", qa.ErrGenerationUnavailable), http.StatusServiceUnavailable, "4005"},
		{"unexpected", `{"query":"q"}`, fmt.Errorf("boom"), http.StatusInternalServerError, "failed to answer query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postChat(chatEngine(NewChatHandler(&stubAnswerer{err: tt.err}), p), tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestChat_RequiresPrincipal(t *testing.T) {
	w := postChat(chatEngine(NewChatHandler(&stubAnswerer{}), nil), `{"query":"q"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
