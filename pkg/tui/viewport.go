package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// wrapLines переносит строки лога под ширину viewport.
//
// Сначала по словам, затем жёстко: URL длиннее ширины тоже режутся.
func wrapLines(lines []string, width int) string {
	if width <= 0 {
		return strings.Join(lines, "\n")
	}
	wrapped := make([]string, len(lines))
	for i, line := range lines {
		wrapped[i] = wrap.String(wordwrap.String(line, width), width)
	}
	return strings.Join(wrapped, "\n")
}

// setContent обновляет viewport, сохраняя позицию пользователя.
//
// Автоскролл вниз только если пользователь уже был внизу.
func setContent(vp *viewport.Model, content string) {
	wasAtBottom := vp.YOffset+vp.Height >= vp.TotalLineCount()
	vp.SetContent(content)
	if wasAtBottom {
		vp.GotoBottom()
	}
}
