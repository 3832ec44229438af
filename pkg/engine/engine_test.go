package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/models"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider возвращает заранее заданный ответ и запоминает аргументы.
type mockProvider struct {
	resp     llm.Message
	err      error
	delay    time.Duration
	messages []llm.Message
	opts     []any
}

func (m *mockProvider) Generate(ctx context.Context, messages []llm.Message, opts ...any) (llm.Message, error) {
	m.messages = messages
	m.opts = opts
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return llm.Message{}, ctx.Err()
		}
	}
	return m.resp, m.err
}

func entry(p llm.Provider, timeout time.Duration) models.ModelEntry {
	return models.ModelEntry{Provider: p, Config: config.ModelDef{Timeout: timeout}}
}

func TestDecideFinalAnswer(t *testing.T) {
	p := &mockProvider{resp: llm.Message{Role: llm.RoleAssistant, Content: "  answer with https://src  "}}
	e := New(entry(p, 0), entry(p, 0))

	d, err := e.Decide(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)
	assert.True(t, d.IsFinal())
	assert.Equal(t, "answer with https://src", d.Text)

	// Параллельные вызовы запрещены явно
	var found bool
	for _, opt := range p.opts {
		if fn, ok := opt.(llm.GenerateOption); ok {
			var o llm.GenerateOptions
			fn(&o)
			require.NotNil(t, o.ParallelToolCalls)
			assert.False(t, *o.ParallelToolCalls)
			found = true
		}
	}
	assert.True(t, found)
}

func TestDecideTakesFirstToolCall(t *testing.T) {
	p := &mockProvider{resp: llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "1", Name: tools.NameSearch, Args: `{"query":"a"}`},
			{ID: "2", Name: tools.NameScrape, Args: `{}`},
		},
	}}
	e := New(entry(p, 0), entry(p, 0))

	d, err := e.Decide(context.Background(), nil, []tools.ToolDefinition{{Name: tools.NameSearch}})
	require.NoError(t, err)
	require.False(t, d.IsFinal())
	assert.Equal(t, "1", d.Call.ID)
	assert.Equal(t, tools.NameSearch, d.Call.Name)
}

func TestDecideEngineFailure(t *testing.T) {
	p := &mockProvider{err: errors.New("503 upstream")}
	e := New(entry(p, 0), entry(p, 0))

	_, err := e.Decide(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngine)
	assert.Contains(t, err.Error(), "503 upstream")
}

func TestDecideTimeoutIsEngineFailure(t *testing.T) {
	p := &mockProvider{delay: time.Second}
	e := New(entry(p, 20*time.Millisecond), entry(p, 0))

	_, err := e.Decide(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEngine)
}

func TestDecideCancelledRequestIsNotEngineFailure(t *testing.T) {
	p := &mockProvider{delay: time.Second}
	e := New(entry(p, 0), entry(p, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Decide(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrEngine)
}

func TestCompleteUsesSummaryModel(t *testing.T) {
	chat := &mockProvider{resp: llm.Message{Content: "chat"}}
	summary := &mockProvider{resp: llm.Message{Content: " summary text "}}
	e := New(entry(chat, 0), entry(summary, 0))

	out, err := e.Complete(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.Equal(t, "summary text", out)
	require.Len(t, summary.messages, 1)
	assert.Equal(t, llm.RoleUser, summary.messages[0].Role)
	assert.Equal(t, "summarize this", summary.messages[0].Content)
	assert.Nil(t, chat.messages)
}

func TestCompleteEngineFailure(t *testing.T) {
	p := &mockProvider{err: errors.New("boom")}
	e := New(entry(p, 0), entry(p, 0))

	_, err := e.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEngine)
}

func TestNewFromConfigFallsBackToChat(t *testing.T) {
	cfg := config.Default()
	registry, err := models.NewRegistryFromConfig(cfg)
	require.NoError(t, err)

	e, err := NewFromConfig(registry, cfg)
	require.NoError(t, err)
	assert.NotNil(t, e.decider)
	assert.Equal(t, e.decider, e.completer)
}

type deadlineProvider struct {
	deadline time.Duration
}

func (p *deadlineProvider) Generate(ctx context.Context, _ []llm.Message, _ ...any) (llm.Message, error) {
	if d, ok := ctx.Deadline(); ok {
		p.deadline = time.Until(d)
	}
	return llm.Message{Content: "ok"}, nil
}

func TestCallsWithoutModelTimeoutAreStillBounded(t *testing.T) {
	p := &deadlineProvider{}
	e := New(entry(p, 0), entry(p, 0))

	_, err := e.Decide(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Greater(t, p.deadline, time.Duration(0))
	assert.LessOrEqual(t, p.deadline, config.DefaultModelTimeout)

	p.deadline = 0
	_, err = e.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Greater(t, p.deadline, time.Duration(0))
}
