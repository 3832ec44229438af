package chain

import (
	"context"
	"testing"
	"time"

	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stuckSearchTool игнорирует контекст и висит delay.
type stuckSearchTool struct {
	delay time.Duration
}

func (s *stuckSearchTool) Kind() tools.Kind { return tools.KindSearch }

func (s *stuckSearchTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:       tools.NameSearch,
		Parameters: tools.JSONSchema{"type": "object", "required": []string{"query"}},
	}
}

func (s *stuckSearchTool) Execute(_ context.Context, argsJSON string) (tools.Result, error) {
	time.Sleep(s.delay)
	return tools.Result{Text: "late: " + argsJSON}, nil
}

func stepWith(t *testing.T, tool tools.Tool, cfg ResearchCycleConfig) *ToolExecutionStep {
	t.Helper()
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tool))
	return NewToolExecutionStep(registry, cfg)
}

func TestToolTimeoutProtection(t *testing.T) {
	cfg := NewResearchCycleConfig()
	cfg.ToolTimeout = 50 * time.Millisecond
	step := stepWith(t, &stuckSearchTool{delay: 2 * time.Second}, cfg)

	start := time.Now()
	res, err := step.Execute(context.Background(), llm.ToolCall{ID: "1", Name: tools.NameSearch, Args: `{"query":"x"}`})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, res.Result.IsError)
	assert.Contains(t, res.Result.Text, "exceeded timeout")
	assert.Less(t, elapsed, time.Second)
}

func TestToolTimeoutCustom(t *testing.T) {
	cfg := NewResearchCycleConfig()
	cfg.ToolTimeout = 20 * time.Millisecond
	cfg.ToolTimeouts = map[string]time.Duration{tools.NameSearch: 2 * time.Second}
	step := stepWith(t, &stuckSearchTool{delay: 60 * time.Millisecond}, cfg)

	res, err := step.Execute(context.Background(), llm.ToolCall{ID: "1", Name: tools.NameSearch, Args: "```json\n{\"query\":\"x\"}\n```"})
	require.NoError(t, err)
	assert.False(t, res.Result.IsError)
	assert.Equal(t, `late: {"query":"x"}`, res.Result.Text)
}

func TestToolStepParentCancellation(t *testing.T) {
	step := stepWith(t, &stuckSearchTool{delay: 2 * time.Second}, NewResearchCycleConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := step.Execute(ctx, llm.ToolCall{ID: "1", Name: tools.NameSearch, Args: `{}`})
	assert.ErrorIs(t, err, context.Canceled)
}
