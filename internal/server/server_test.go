package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ilkoid/poncho-research/internal/observability"
	"github.com/ilkoid/poncho-research/pkg/chain"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResearcher struct {
	answer    string
	err       error
	objective string
	wait      bool
}

func (s *stubResearcher) Execute(ctx context.Context, objective string) (chain.ChainOutput, error) {
	s.objective = objective
	if s.wait {
		<-ctx.Done()
		return chain.ChainOutput{}, ctx.Err()
	}
	if s.err != nil {
		return chain.ChainOutput{}, s.err
	}
	return chain.ChainOutput{Result: s.answer, Duration: time.Millisecond}, nil
}

func testServer(r Researcher) (*Server, *observability.Metrics) {
	metrics := observability.NewMetrics()
	cfg := config.Default().Server
	cfg.RequestTimeout = 50 * time.Millisecond
	return New(r, cfg, metrics), metrics
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResearchReturnsResult(t *testing.T) {
	researcher := &stubResearcher{answer: "result"}
	srv, _ := testServer(researcher)

	rec := post(t, srv.Handler(), `{"query": "test query"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "result", got)
	assert.Equal(t, "test query", researcher.objective)
}

func TestResearchErrors(t *testing.T) {
	tests := []struct {
		name       string
		researcher *stubResearcher
		body       string
		wantCode   int
	}{
		{"malformed body", &stubResearcher{}, `{"query":`, http.StatusBadRequest},
		{"empty query", &stubResearcher{}, `{"query":"  "}`, http.StatusBadRequest},
		{"engine failure", &stubResearcher{err: fmt.Errorf("%w: decide: quota", engine.ErrEngine)}, `{"query":"q"}`, http.StatusBadGateway},
		{"deadline", &stubResearcher{wait: true}, `{"query":"q"}`, http.StatusGatewayTimeout},
		{"unexpected", &stubResearcher{err: errors.New("boom")}, `{"query":"q"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(tt.researcher)
			rec := post(t, srv.Handler(), tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Detail)
		})
	}
}

func TestResearchRejectsGet(t *testing.T) {
	srv, _ := testServer(&stubResearcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := testServer(&stubResearcher{answer: "ok"})
	h := srv.Handler()
	post(t, h, `{"query":"q"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `research_agent_http_requests_total{code="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.Default().Server
	cfg.MetricsEnabled = false
	srv := New(&stubResearcher{}, cfg, observability.NewMetrics())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	cfg := config.Default().Server
	cfg.Port = "0"
	srv := New(&stubResearcher{}, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type stubHistory struct {
	runs      []history.Run
	lastLimit int
}

func (h *stubHistory) List(_ context.Context, limit int) ([]history.Run, error) {
	h.lastLimit = limit
	if limit < len(h.runs) {
		return h.runs[:limit], nil
	}
	return h.runs, nil
}

func (h *stubHistory) Get(_ context.Context, id string) (history.Run, error) {
	for _, r := range h.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return history.Run{}, history.ErrNotFound
}

func TestRunHistoryRoutes(t *testing.T) {
	hist := &stubHistory{runs: []history.Run{
		{ID: "b", Query: "second", Answer: "two"},
		{ID: "a", Query: "first", Answer: "one"},
	}}
	srv, _ := testServer(&stubResearcher{})
	h := srv.WithHistory(hist).Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, 1, hist.lastLimit)

	get("/runs")
	assert.Equal(t, 20, hist.lastLimit)

	assert.Equal(t, http.StatusBadRequest, get("/runs?limit=abc").Code)

	rec = get("/runs/a")
	require.Equal(t, http.StatusOK, rec.Code)
	var run history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "one", run.Answer)

	assert.Equal(t, http.StatusNotFound, get("/runs/missing").Code)
}

func TestRunHistoryRoutesAbsentWithoutStore(t *testing.T) {
	srv, _ := testServer(&stubResearcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
