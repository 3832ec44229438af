package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "research_system.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSystemPrompt(t *testing.T) {
	path := writePrompt(t, `
messages:
  - role: system
    content: |
      You are a world class researcher. Today is {{.Date}}.
      You may call tools at most {{.MaxIterations}} times.
`)

	got, err := LoadSystemPrompt(path, Data{MaxIterations: 3, Date: "2026-10-19"})
	require.NoError(t, err)
	assert.Contains(t, got, "Today is 2026-10-19.")
	assert.Contains(t, got, "at most 3 times")
}

func TestLoadSystemPromptErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"no system message", "messages:\n  - role: user\n    content: hi\n", "no system message"},
		{"unknown variable", "messages:\n  - role: system\n    content: \"{{.Missing}}\"\n", "render"},
		{"bad template", "messages:\n  - role: system\n    content: \"{{.Date\"\n", "template parse error"},
		{"bad yaml", "messages: [", "yaml parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSystemPrompt(writePrompt(t, tt.body), Data{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadSystemPrompt(filepath.Join(t.TempDir(), "missing.yaml"), Data{})
	assert.ErrorContains(t, err, "prompt file not found")
}
