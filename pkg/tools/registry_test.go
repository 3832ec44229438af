package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	kind   Kind
	def    ToolDefinition
	result Result
	calls  []string
}

func (s *stubTool) Kind() Kind                 { return s.kind }
func (s *stubTool) Definition() ToolDefinition { return s.def }
func (s *stubTool) Execute(_ context.Context, argsJSON string) (Result, error) {
	s.calls = append(s.calls, argsJSON)
	return s.result, nil
}

func newStub(kind Kind) *stubTool {
	return &stubTool{
		kind: kind,
		def: ToolDefinition{
			Name:        kind.String(),
			Description: "stub",
			Parameters: JSONSchema{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
		result: Result{Text: "ok from " + kind.String()},
	}
}

func TestRegistryDispatchByKind(t *testing.T) {
	r := NewRegistry()
	search := newStub(KindSearch)
	scrape := newStub(KindScrape)
	require.NoError(t, r.Register(search))
	require.NoError(t, r.Register(scrape))

	res, err := r.Dispatch(context.Background(), NameScrape, `{"url":"https://a.b"}`)
	require.NoError(t, err)
	assert.Equal(t, "ok from scrape_website", res.Text)
	assert.Equal(t, []string{`{"url":"https://a.b"}`}, scrape.calls)
	assert.Empty(t, search.calls)

	defs := r.GetDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, NameSearch, defs[0].Name)
	assert.Equal(t, NameScrape, defs[1].Name)
}

func TestRegistryUnknownToolIsInBand(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub(KindSearch)))

	res, err := r.Dispatch(context.Background(), "delete_everything", `{}`)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "delete_everything")

	// Известное имя, но не зарегистрировано
	res, err = r.Dispatch(context.Background(), NameScrape, `{}`)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *stubTool)
	}{
		{"empty name", func(s *stubTool) { s.def.Name = "" }},
		{"name mismatch", func(s *stubTool) { s.def.Name = "Search" }},
		{"nil parameters", func(s *stubTool) { s.def.Parameters = nil }},
		{"non-object type", func(s *stubTool) { s.def.Parameters = JSONSchema{"type": "array"} }},
		{"required not array", func(s *stubTool) {
			s.def.Parameters = JSONSchema{"type": "object", "required": "query"}
		}},
		{"required non-string item", func(s *stubTool) {
			s.def.Parameters = JSONSchema{"type": "object", "required": []any{1}}
		}},
		{"unknown kind", func(s *stubTool) { s.kind = Kind(42); s.def.Name = "unknown" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStub(KindSearch)
			tt.mutate(s)
			assert.Error(t, NewRegistry().Register(s))
		})
	}
}

func TestKindFromName(t *testing.T) {
	k, ok := KindFromName("search")
	assert.True(t, ok)
	assert.Equal(t, KindSearch, k)

	_, ok = KindFromName("Search")
	assert.False(t, ok)
}
