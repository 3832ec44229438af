// Package tui предоставляет цветовые схемы и стили research TUI.
//
// ColorSchemes позволяют менять внешний вид через флаг -theme без
// изменения кода.
package tui

import "github.com/charmbracelet/lipgloss"

// ColorScheme определяет цвета элементов TUI.
//
// Каждое поле задаётся как lipgloss.Color (hex, ANSI или named color).
type ColorScheme struct {
	// Status Bar
	StatusBackground lipgloss.Color
	StatusForeground lipgloss.Color

	// Messages
	SystemMessage lipgloss.Color // Служебные строки (серый)
	UserMessage   lipgloss.Color // Запрос пользователя
	Answer        lipgloss.Color // Итоговый ответ
	ErrorMessage  lipgloss.Color
	ToolCall      lipgloss.Color
	ToolResult    lipgloss.Color
	ToolFailed    lipgloss.Color
	Memory        lipgloss.Color // Сжатие памяти

	// Input Area
	InputPrompt lipgloss.Color
	Border      lipgloss.Color
}

// ColorSchemes предоставляет предустановленные цветовые схемы.
var ColorSchemes = map[string]ColorScheme{
	"default": {
		StatusBackground: lipgloss.Color("235"),
		StatusForeground: lipgloss.Color("252"),
		SystemMessage:    lipgloss.Color("242"),
		UserMessage:      lipgloss.Color("226"),
		Answer:           lipgloss.Color("86"),
		ErrorMessage:     lipgloss.Color("196"),
		ToolCall:         lipgloss.Color("228"),
		ToolResult:       lipgloss.Color("154"),
		ToolFailed:       lipgloss.Color("208"),
		Memory:           lipgloss.Color("99"),
		InputPrompt:      lipgloss.Color("252"),
		Border:           lipgloss.Color("240"),
	},
	"dark": {
		StatusBackground: lipgloss.Color("0"),
		StatusForeground: lipgloss.Color("15"),
		SystemMessage:    lipgloss.Color("8"),
		UserMessage:      lipgloss.Color("11"),
		Answer:           lipgloss.Color("14"),
		ErrorMessage:     lipgloss.Color("9"),
		ToolCall:         lipgloss.Color("11"),
		ToolResult:       lipgloss.Color("10"),
		ToolFailed:       lipgloss.Color("3"),
		Memory:           lipgloss.Color("13"),
		InputPrompt:      lipgloss.Color("15"),
		Border:           lipgloss.Color("4"),
	},
	"light": {
		StatusBackground: lipgloss.Color("255"),
		StatusForeground: lipgloss.Color("0"),
		SystemMessage:    lipgloss.Color("8"),
		UserMessage:      lipgloss.Color("130"),
		Answer:           lipgloss.Color("31"),
		ErrorMessage:     lipgloss.Color("1"),
		ToolCall:         lipgloss.Color("94"),
		ToolResult:       lipgloss.Color("28"),
		ToolFailed:       lipgloss.Color("166"),
		Memory:           lipgloss.Color("90"),
		InputPrompt:      lipgloss.Color("0"),
		Border:           lipgloss.Color("8"),
	},
	"dracula": {
		StatusBackground: lipgloss.Color("#282a36"),
		StatusForeground: lipgloss.Color("#f8f8f2"),
		SystemMessage:    lipgloss.Color("#6272a4"),
		UserMessage:      lipgloss.Color("#f1fa8c"),
		Answer:           lipgloss.Color("#8be9fd"),
		ErrorMessage:     lipgloss.Color("#ff5555"),
		ToolCall:         lipgloss.Color("#ffb86c"),
		ToolResult:       lipgloss.Color("#50fa7b"),
		ToolFailed:       lipgloss.Color("#ff79c6"),
		Memory:           lipgloss.Color("#bd93f9"),
		InputPrompt:      lipgloss.Color("#f8f8f2"),
		Border:           lipgloss.Color("#44475a"),
	},
}

// DefaultColorScheme возвращает схему по умолчанию.
func DefaultColorScheme() ColorScheme {
	return ColorSchemes["default"]
}

// GetColorScheme возвращает цветовую схему по имени.
//
// Если схема не найдена, возвращает default.
func GetColorScheme(name string) ColorScheme {
	if scheme, ok := ColorSchemes[name]; ok {
		return scheme
	}
	return DefaultColorScheme()
}

// styles lipgloss стили, собранные из схемы один раз.
type styles struct {
	status     lipgloss.Style
	system     lipgloss.Style
	user       lipgloss.Style
	answer     lipgloss.Style
	err        lipgloss.Style
	toolCall   lipgloss.Style
	toolResult lipgloss.Style
	toolFailed lipgloss.Style
	memory     lipgloss.Style
	divider    lipgloss.Style
}

func newStyles(c ColorScheme) styles {
	return styles{
		status: lipgloss.NewStyle().
			Foreground(c.StatusForeground).
			Background(c.StatusBackground).
			Bold(true),
		system:     lipgloss.NewStyle().Foreground(c.SystemMessage),
		user:       lipgloss.NewStyle().Foreground(c.UserMessage).Bold(true),
		answer:     lipgloss.NewStyle().Foreground(c.Answer),
		err:        lipgloss.NewStyle().Foreground(c.ErrorMessage).Bold(true),
		toolCall:   lipgloss.NewStyle().Foreground(c.ToolCall),
		toolResult: lipgloss.NewStyle().Foreground(c.ToolResult),
		toolFailed: lipgloss.NewStyle().Foreground(c.ToolFailed),
		memory:     lipgloss.NewStyle().Foreground(c.Memory).Italic(true),
		divider:    lipgloss.NewStyle().Foreground(c.Border),
	}
}
