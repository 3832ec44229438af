package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanJsonBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"query": "battery"}`,
			expected: `{"query": "battery"}`,
		},
		{
			name:     "JSON in markdown code block",
			input:    "```json\n{\"query\": \"battery\"}\n```",
			expected: `{"query": "battery"}`,
		},
		{
			name:     "JSON with mixed case",
			input:    "```JSON\n{\"query\": \"battery\"}\n```",
			expected: `{"query": "battery"}`,
		},
		{
			name:     "JSON with only triple backticks",
			input:    "```\n{\"query\": \"battery\"}\n```",
			expected: `{"query": "battery"}`,
		},
		{
			name:     "JSON with extra whitespace",
			input:    "  ```json  \n  {\"query\": \"battery\"}  \n  ```  ",
			expected: `{"query": "battery"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJsonBlock(tt.input))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateRunes("short", 10, "..."))
	assert.Equal(t, "abcd...", TruncateRunes("abcdefghij", 7, "..."))
	assert.Equal(t, "", TruncateRunes("abc", 0, "..."))

	cyr := strings.Repeat("ж", 50)
	out := TruncateRunes(cyr, 20, "…")
	assert.Equal(t, 20, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "…"))
}
