package chain

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/ilkoid/poncho-research/pkg/tools/std"
	"github.com/stretchr/testify/require"
)

// scriptedEngine отдаёт решения по списку и запоминает историю каждого Decide.
type scriptedEngine struct {
	mu        sync.Mutex
	decisions []engine.Decision
	decideErr error
	seen      [][]llm.Message
	completes int
}

func (e *scriptedEngine) Decide(_ context.Context, msgs []llm.Message, _ []tools.ToolDefinition) (engine.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seen = append(e.seen, append([]llm.Message(nil), msgs...))
	if e.decideErr != nil {
		return engine.Decision{}, e.decideErr
	}
	if len(e.decisions) == 0 {
		return engine.Decision{Text: "done"}, nil
	}
	d := e.decisions[0]
	if len(e.decisions) > 1 {
		e.decisions = e.decisions[1:]
	}
	return d, nil
}

func (e *scriptedEngine) Complete(_ context.Context, _ string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completes++
	return fmt.Sprintf("summary %d", e.completes), nil
}

func (e *scriptedEngine) decideCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seen)
}

func callDecision(id, name, args string) engine.Decision {
	return engine.Decision{Call: &llm.ToolCall{ID: id, Name: name, Args: args}}
}

type fakeSearcher struct {
	mu    sync.Mutex
	out   string
	err   error
	block bool
	calls int
}

func (s *fakeSearcher) Search(ctx context.Context, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

func (s *fakeSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeRenderer struct {
	html string
	err  error
}

func (r *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	return r.html, r.err
}

type fakeSummarizer struct {
	err   error
	calls int
}

func (s *fakeSummarizer) Summarize(_ context.Context, _, _ string) (string, error) {
	s.calls++
	return "summarized", s.err
}

// recordingEmitter собирает события прогона.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newRegistry(t *testing.T, searcher std.Searcher, renderer *fakeRenderer, summarizer std.Summarizer) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(std.NewSearchTool(searcher)))
	require.NoError(t, registry.Register(std.NewScrapeTool(renderer, summarizer, 10000)))
	return registry
}

func newCycle(t *testing.T, eng engine.ReasoningEngine, registry *tools.Registry, mutate func(*ResearchCycleConfig)) *ResearchCycle {
	t.Helper()
	cfg := NewResearchCycleConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	cycle, err := NewResearchCycle(eng, registry, cfg)
	require.NoError(t, err)
	return cycle
}
