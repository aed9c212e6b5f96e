package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/embedding"
	"code-review-orchestrator/internal/index"
	"code-review-orchestrator/internal/llm"
	"code-review-orchestrator/internal/prompts"
	"code-review-orchestrator/internal/retriever"
	"code-review-orchestrator/internal/review"
	"code-review-orchestrator/internal/vectorstore"
)

type emptyFetcher struct{}

func (emptyFetcher) GetPRContext(context.Context, retriever.Params) (*retriever.Context, error) {
	return &retriever.Context{}, nil
}

func newTestHandler(t *testing.T) (*Handler, *WorkerPool) {
	t.Helper()
	cfg := config.Defaults()
	orch := review.NewOrchestrator(cfg.Review, &llm.ScriptedClient{}, emptyFetcher{}, prompts.NewLoader(""))
	ix := index.New(vectorstore.NewMemoryStore(), &embedding.HashEmbedder{Dim: 8}, cfg.Indexing, "repo")
	pool := NewWorkerPool(1, 4)
	pool.Start()
	t.Cleanup(pool.Stop)
	return NewHandler(cfg, orch, ix, pool), pool
}

func TestReviewEndpointEmptyPR(t *testing.T) {
	handler, _ := newTestHandler(t)
	mux := http.NewServeMux()
	handler.Register(mux)

	body := `{"workspace":"ws","project":"proj","branch":"main","prId":"1","changedFiles":[],"diff":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/review", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No changes")
	require.Contains(t, rec.Body.String(), "PASS")
}

func TestReviewEndpointValidation(t *testing.T) {
	handler, _ := newTestHandler(t)
	mux := http.NewServeMux()
	handler.Register(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/review", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewEndpointSSE(t *testing.T) {
	handler, _ := newTestHandler(t)
	mux := http.NewServeMux()
	handler.Register(mux)

	body := `{"workspace":"ws","project":"proj","branch":"main","prId":"2","changedFiles":[],"diff":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/review", strings.NewReader(body))
	req.Header.Set("Accept", "text/event-stream")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"type":"final"`)
}

func TestDeleteBranchEndpointValidation(t *testing.T) {
	handler, _ := newTestHandler(t)
	mux := http.NewServeMux()
	handler.Register(mux)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/branches/feature", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code, "missing workspace/project must fail")
}

func TestIndexEndpointQueueFull(t *testing.T) {
	cfg := config.Defaults()
	orch := review.NewOrchestrator(cfg.Review, &llm.ScriptedClient{}, emptyFetcher{}, prompts.NewLoader(""))
	ix := index.New(vectorstore.NewMemoryStore(), &embedding.HashEmbedder{Dim: 8}, cfg.Indexing, "repo")

	// Pool is never started: the queue fills immediately.
	pool := NewWorkerPool(1, 1)
	handler := NewHandler(cfg, orch, ix, pool)
	mux := http.NewServeMux()
	handler.Register(mux)

	body := `{"workspace":"ws","project":"p","branch":"main","repoPath":"/tmp/repo"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, first)
	require.Equal(t, http.StatusAccepted, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(body))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, second)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWorkerPoolRunsJobs(t *testing.T) {
	pool := NewWorkerPool(2, 8)
	pool.Start()

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(context.Context) error {
			done.Add(1)
			return nil
		}))
	}
	pool.Stop()
	require.EqualValues(t, 5, done.Load())
}

func TestWorkerPoolSurvivesPanicsAndErrors(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	pool.Start()

	var done atomic.Int32
	require.NoError(t, pool.Submit(func(context.Context) error { panic("boom") }))
	require.NoError(t, pool.Submit(func(context.Context) error { return errors.New("job error") }))
	require.NoError(t, pool.Submit(func(context.Context) error {
		done.Add(1)
		return nil
	}))

	deadline := time.After(2 * time.Second)
	for done.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job after panic never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
	pool.Stop()
}
