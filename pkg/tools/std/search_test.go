package std

import (
	"context"
	"errors"
	"testing"

	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	out   string
	err   error
	query string
	calls int
}

func (s *stubSearcher) Search(_ context.Context, query string) (string, error) {
	s.calls++
	s.query = query
	return s.out, s.err
}

func TestSearchToolDefinition(t *testing.T) {
	tool := NewSearchTool(&stubSearcher{})
	def := tool.Definition()

	assert.Equal(t, tools.KindSearch, tool.Kind())
	assert.Equal(t, tools.NameSearch, def.Name)
	assert.Equal(t, "object", def.Parameters["type"])
	assert.Equal(t, []string{"query"}, def.Parameters["required"])
}

func TestSearchToolExecute(t *testing.T) {
	searcher := &stubSearcher{out: `{"organic":[{"title":"Solid-state batteries"}]}`}
	tool := NewSearchTool(searcher)

	res, err := tool.Execute(context.Background(), `{"query":" latest battery tech "}`)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, searcher.out, res.Text)
	assert.Equal(t, "latest battery tech", searcher.query)
}

func TestSearchToolInBandFailures(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		err      error
		contains string
	}{
		{"malformed json", `{"query":`, nil, "invalid arguments"},
		{"empty query", `{"query":"  "}`, nil, "non-empty"},
		{"transport failure", `{"query":"x"}`, errors.New("connection refused"), "Search request failed: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewSearchTool(&stubSearcher{err: tt.err})
			res, err := tool.Execute(context.Background(), tt.args)
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, res.Text, tt.contains)
		})
	}
}

func TestSearchToolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tool := NewSearchTool(&stubSearcher{err: context.Canceled})
	_, err := tool.Execute(ctx, `{"query":"x"}`)
	assert.ErrorIs(t, err, context.Canceled)
}
