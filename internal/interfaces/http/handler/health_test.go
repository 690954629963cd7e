package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

func ready(t *testing.T, h *HealthHandler) (int, readinessResponse) {
	t.Helper()
	r := gin.New()
	r.GET("/ready", h.Ready)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var resp readinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestReady(t *testing.T) {
	down := errors.New("connection refused")

	t.Run("all ok", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("test",
			Dependency{Name: "postgres", Checker: checker{}, Required: true},
			Dependency{Name: "milvus", Checker: checker{}, Required: true},
			Dependency{Name: "redis", Checker: checker{}},
		))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "ok", resp.Checks["redis"].Status)
	})

	t.Run("optional dependency degrades", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("test",
			Dependency{Name: "postgres", Checker: checker{}, Required: true},
			Dependency{Name: "redis", Checker: checker{err: down}},
		))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", resp.Checks["redis"].Status)
		assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
	})

	t.Run("required dependency fails", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("test",
			Dependency{Name: "postgres", Checker: checker{}, Required: true},
			Dependency{Name: "milvus", Checker: checker{err: down}, Required: true},
		))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "error", resp.Checks["milvus"].Status)
	})

	t.Run("required dependency missing", func(t *testing.T) {
		code, resp := ready(t, NewHealthHandler("test", Dependency{Name: "milvus", Required: true}))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "missing", resp.Checks["milvus"].Status)
	})
}

func TestHealthAndLive(t *testing.T) {
	h := NewHealthHandler("1.2.3")
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/live", h.Live)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
