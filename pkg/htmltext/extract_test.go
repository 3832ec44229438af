package htmltext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "minimal body",
			input:    "<html><body>content</body></html>",
			expected: "content",
		},
		{
			name: "scripts and styles are dropped",
			input: `<html><head><title>Battery news</title><style>p{color:red}</style></head>
<body><script>var x = "hidden";</script><p>Visible text</p><noscript>enable js</noscript></body></html>`,
			expected: "Battery news\n\nVisible text",
		},
		{
			name:     "paragraphs separated by blank line",
			input:    "<p>First   paragraph\n spans lines.</p><p>Second</p>",
			expected: "First paragraph spans lines.\n\nSecond",
		},
		{
			name:     "inline elements keep spacing",
			input:    "<p><b>Solid</b>-state <a href='x'>cells</a> ship in 2027.</p>",
			expected: "Solid-state cells ship in 2027.",
		},
		{
			name:     "list items on own lines",
			input:    "<ul><li>one</li><li>two</li></ul>after",
			expected: "one\ntwo\n\nafter",
		},
		{
			name:     "line breaks and entities",
			input:    "a<br>b&nbsp;&amp;&nbsp;c",
			expected: "a\nb & c",
		},
		{
			name:     "table cells",
			input:    "<table><tr><td>k</td><td>v</td></tr><tr><td>k2</td><td>v2</td></tr></table>",
			expected: "k v\nk2 v2",
		},
		{
			name:     "plain text passes through",
			input:    "just text",
			expected: "just text",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extract(tt.input))
		})
	}
}

func TestExtractNoTripleNewlines(t *testing.T) {
	out := Extract("<div><div><p>a</p></div></div><section><p>b</p></section>")
	assert.False(t, strings.Contains(out, "\n\n\n"))
	assert.Equal(t, "a\n\nb", out)
}
