package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

func TestServer_Health(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	s := NewServer(cfg, workflow.NewRunStore(cfg), workflow.New(cfg), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_IndexStatsUnavailableWithoutIndexer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	s := NewServer(cfg, workflow.NewRunStore(cfg), workflow.New(cfg), nil)

	req := httptest.NewRequest(http.MethodGet, "/status/index", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RunStatsEmpty(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	s := NewServer(cfg, workflow.NewRunStore(cfg), workflow.New(cfg), nil)

	req := httptest.NewRequest(http.MethodGet, "/status/runs", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}
