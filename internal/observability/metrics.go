// Package observability Prometheus метрики research-агента.
//
// Metrics реализует events.Emitter и считает итерации, вызовы
// инструментов, свёртки памяти и завершения прогонов.
package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_agent"

// Metrics хранит коллекторы в собственном реестре.
type Metrics struct {
	registry *prometheus.Registry

	activeRuns     prometheus.Gauge
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runIterations  prometheus.Histogram
	decisionsTotal prometheus.Counter
	toolCalls      *prometheus.CounterVec
	toolLatency    *prometheus.HistogramVec
	compactions    prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpLatency    prometheus.Histogram

	// active — прогоны, учтённые в activeRuns
	mu     sync.Mutex
	active map[string]struct{}
}

// NewMetrics регистрирует коллекторы в новом реестре.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		active:   make(map[string]struct{}),

		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of research runs in progress",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished research runs by termination",
		}, []string{"termination"}), // answer, max_iterations, error
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of research runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		runIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Tool-call rounds per finished run",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),
		decisionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decision requests sent to the reasoning engine",
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and status",
		}, []string{"tool", "status"}),
		toolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Tool execution latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"tool"}),
		compactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compactions_total",
			Help:      "Conversation memory folds",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Research HTTP requests by status code",
		}, []string{"code"}),
		httpLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Research HTTP request latency in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// Emit реализует events.Emitter.
func (m *Metrics) Emit(_ context.Context, event events.Event) {
	switch data := event.Data.(type) {
	case events.ThinkingData:
		if data.Iteration == 0 {
			m.startRun(event.RunID)
		}
		m.decisionsTotal.Inc()
	case events.ToolResultData:
		status := "ok"
		if data.IsError {
			status = "error"
		}
		m.toolCalls.WithLabelValues(data.ToolName, status).Inc()
		m.toolLatency.WithLabelValues(data.ToolName).Observe(data.Duration.Seconds())
	case events.CompactedData:
		m.compactions.Inc()
	case events.DoneData:
		m.endRun(event.RunID)
		m.runsTotal.WithLabelValues(data.Termination).Inc()
		m.runIterations.Observe(float64(data.Iterations))
	case events.ErrorData:
		m.endRun(event.RunID)
		m.runsTotal.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) startRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[runID]; ok {
		return
	}
	m.active[runID] = struct{}{}
	m.activeRuns.Inc()
}

// endRun уменьшает gauge только для прогонов, прошедших startRun.
func (m *Metrics) endRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[runID]; !ok {
		return
	}
	delete(m.active, runID)
	m.activeRuns.Dec()
}

// ObserveRun записывает длительность прогона.
func (m *Metrics) ObserveRun(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
}

// ObserveHTTP записывает результат HTTP запроса.
func (m *Metrics) ObserveHTTP(code string, d time.Duration) {
	m.httpRequests.WithLabelValues(code).Inc()
	m.httpLatency.Observe(d.Seconds())
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry возвращает реестр коллекторов.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var _ events.Emitter = (*Metrics)(nil)
