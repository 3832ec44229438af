// Package server HTTP фронт research-агента.
//
//	POST /         {"query": "..."} → "answer" (JSON строка)
//	GET  /health   статус сервиса
//	GET  /metrics  Prometheus (если включено)
//	GET  /runs     журнал прогонов (если подключён), ?limit=N
//	GET  /runs/{id}
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/poncho-research/internal/observability"
	"github.com/ilkoid/poncho-research/pkg/chain"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/history"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// maxBodyBytes ограничивает тело запроса.
const maxBodyBytes = 1 << 20

// Researcher описывает то, что сервер умеет вызывать (agent.Client).
type Researcher interface {
	Execute(ctx context.Context, objective string) (chain.ChainOutput, error)
}

// RunHistory даёт доступ к журналу прогонов (history.Store).
type RunHistory interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
	Get(ctx context.Context, id string) (history.Run, error)
}

// Query описывает тело запроса на исследование.
type Query struct {
	Query string `json:"query"`
}

// errorBody описывает тело ответа с ошибкой.
type errorBody struct {
	Detail string `json:"detail"`
}

// HealthStatus описывает ответ /health.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// Server обслуживает HTTP запросы.
type Server struct {
	researcher Researcher
	cfg        config.ServerConfig
	metrics    *observability.Metrics
	history    RunHistory
}

// New создаёт сервер. metrics может быть nil.
func New(researcher Researcher, cfg config.ServerConfig, metrics *observability.Metrics) *Server {
	return &Server{
		researcher: researcher,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// WithHistory подключает журнал прогонов.
func (s *Server) WithHistory(h RunHistory) *Server {
	s.history = h
	return s
}

// Handler возвращает маршруты сервера.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleResearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil && s.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.history != nil {
		mux.HandleFunc("GET /runs", s.handleListRuns)
		mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	}
	return mux
}

// ListenAndServe слушает порт до отмены ctx, затем завершает соединения
// в пределах shutdown_timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("Server listening", "port", s.cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	utils.Info("Server exited gracefully")
	return nil
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := s.research(w, r)
	if s.metrics != nil {
		s.metrics.ObserveHTTP(strconv.Itoa(code), time.Since(start))
	}
}

// research обрабатывает запрос и возвращает отданный статус.
func (s *Server) research(w http.ResponseWriter, r *http.Request) int {
	var q Query
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&q); err != nil {
		return writeError(w, http.StatusBadRequest, "request body must be a JSON object with a \"query\" field")
	}
	if strings.TrimSpace(q.Query) == "" {
		return writeError(w, http.StatusBadRequest, "query must not be empty")
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	out, err := s.researcher.Execute(ctx, q.Query)
	if s.metrics != nil && out.Duration > 0 {
		s.metrics.ObserveRun(out.Duration)
	}
	if err != nil {
		code, detail := classify(err)
		utils.Warn("Research request failed", "status", code, "error", err)
		return writeError(w, code, detail)
	}

	return writeJSON(w, http.StatusOK, out.Result)
}

// classify сопоставляет ошибку прогона со статусом ответа.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, chain.ErrEmptyObjective):
		return http.StatusBadRequest, "query must not be empty"
	case errors.Is(err, engine.ErrEngine):
		return http.StatusBadGateway, "reasoning engine failure: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "research timed out"
	case errors.Is(err, context.Canceled):
		// Клиент ушёл, ответ никто не прочитает
		return 499, "request cancelled"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Service:   "research-agent",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		utils.Error("Failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read run history")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.history.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		utils.Error("Failed to read run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read run history")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, code int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Error("Failed to write response", "error", err)
	}
	return code
}

func writeError(w http.ResponseWriter, code int, detail string) int {
	return writeJSON(w, code, errorBody{Detail: detail})
}
