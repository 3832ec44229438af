// Package tui интерактивный терминальный фронт research-агента.
//
// # Layout
//
//	┌─────────────────────────────────────────────────┐
//	│ Research Agent | gpt-4o-mini | ⣾ step 2/3       │ ← Status Bar
//	├─────────────────────────────────────────────────┤
//	│ > battery technology                            │
//	│ → search {"query":"battery technology"}         │
//	│   ok: 2345 chars (420ms)                        │
//	│ Answer: ...                                     │
//	├─────────────────────────────────────────────────┤
//	│ > user input here                               │ ← Input Area
//	└─────────────────────────────────────────────────┘
//
// # Basic Usage
//
//	emitter := events.NewChanEmitter(100)
//	client.SetEmitter(emitter)
//
//	m := tui.New(emitter.Subscribe(), tui.Config{Title: "Research Agent"})
//	m.OnQuery(func(q string) { client.Execute(ctx, q) })
//	m.Run()
//
// Model не знает про агента: ввод уходит в callback, состояние
// восстанавливается по событиям.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Config конфигурирует Model.
//
// Все поля опциональны.
type Config struct {
	Colors        ColorScheme
	Title         string
	ModelName     string
	MaxIterations int // Для индикатора шага, 0 = не показывать предел
	InputPrompt   string
	ShowTimestamp bool
	MaxMessages   int // 0 = безлимит
}

// Model Bubble Tea модель research TUI.
type Model struct {
	config     Config
	styles     styles
	subscriber events.Subscriber
	onQuery    func(query string)

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	lines     []string // Строки лога без переноса
	ready     bool
	busy      bool
	iteration int
	now       func() time.Time
}

// New создаёт Model, читающую события из subscriber.
func New(subscriber events.Subscriber, cfg Config) *Model {
	if cfg.Colors.StatusForeground == "" {
		cfg.Colors = DefaultColorScheme()
	}
	if cfg.Title == "" {
		cfg.Title = "Research Agent"
	}
	if cfg.InputPrompt == "" {
		cfg.InputPrompt = "> "
	}

	ta := textarea.New()
	ta.Placeholder = "Что исследовать?"
	ta.Prompt = cfg.InputPrompt
	ta.CharLimit = 1000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := &Model{
		config:     cfg,
		styles:     newStyles(cfg.Colors),
		subscriber: subscriber,
		viewport:   viewport.New(0, 0),
		textarea:   ta,
		spinner:    sp,
		now:        time.Now,
	}
	m.appendLine(m.styles.system.Render("Type a research question and press Enter. Esc to quit."))
	return m
}

// OnQuery устанавливает обработчик запроса.
//
// Вызывается в отдельной горутине, может блокироваться на весь прогон.
func (m *Model) OnQuery(handler func(query string)) {
	m.onQuery = handler
}

// Run запускает TUI (блокирующий вызов).
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// Busy сообщает, идёт ли прогон.
func (m *Model) Busy() bool {
	return m.busy
}

// Init реализует tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, ReceiveEventCmd(m.subscriber))
}

// Update реализует tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.handleEvent(events.Event(msg))
		return m, ReceiveEventCmd(m.subscriber)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// submit отправляет введённый запрос.
func (m *Model) submit() tea.Cmd {
	query := strings.TrimSpace(m.textarea.Value())
	if query == "" {
		return nil
	}
	if m.busy {
		m.appendLine(m.styles.system.Render("Research in progress, wait for the answer."))
		return nil
	}

	m.textarea.Reset()
	m.appendLine(m.stamp(m.styles.user.Render("> " + query)))
	m.busy = true
	m.iteration = 0

	if handler := m.onQuery; handler != nil {
		go handler(query)
	}
	return m.spinner.Tick
}

// handleEvent отражает событие агента в логе и статусе.
func (m *Model) handleEvent(event events.Event) {
	switch data := event.Data.(type) {
	case events.ThinkingData:
		m.busy = true
		m.iteration = data.Iteration + 1

	case events.ToolCallData:
		m.appendLine(m.styles.toolCall.Render(fmt.Sprintf("→ %s %s", data.ToolName, data.Args)))

	case events.ToolResultData:
		duration := data.Duration.Round(time.Millisecond)
		if data.IsError {
			first, _, _ := strings.Cut(data.Result, "\n")
			m.appendLine(m.styles.toolFailed.Render(fmt.Sprintf("  failed: %s (%v)", utils.TruncateRunes(first, 200, "..."), duration)))
		} else {
			m.appendLine(m.styles.toolResult.Render(fmt.Sprintf("  ok: %d chars (%v)", len([]rune(data.Result)), duration)))
		}

	case events.CompactedData:
		m.appendLine(m.styles.memory.Render(fmt.Sprintf("  memory folded %d turn(s): %d → %d tokens",
			data.FoldedTurns, data.TokensBefore, data.TokensAfter)))

	case events.DoneData:
		m.busy = false
		m.appendLine(m.stamp(m.styles.answer.Render("Answer: " + data.Content)))
		m.appendLine(m.styles.system.Render(fmt.Sprintf("(%s after %d tool call(s))", data.Termination, data.Iterations)))
		m.appendLine(m.styles.divider.Render(strings.Repeat("─", max(m.viewport.Width, 20))))

	case events.ErrorData:
		m.busy = false
		msg := "unknown error"
		if data.Err != nil {
			msg = data.Err.Error()
		}
		m.appendLine(m.stamp(m.styles.err.Render("ERROR: " + msg)))
	}
}

// handleWindowSize пересчитывает размеры областей.
func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	footerHeight := m.textarea.Height() + 1
	vpHeight := msg.Height - 1 - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := msg.Width
	if vpWidth < 20 {
		vpWidth = 20
	}

	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(vpWidth)
	m.ready = true

	setContent(&m.viewport, wrapLines(m.lines, vpWidth))
}

// View реализует tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s",
		m.renderStatusBar(),
		m.viewport.View(),
		m.textarea.View(),
	)
}

func (m *Model) renderStatusBar() string {
	model := m.config.ModelName
	if model == "" {
		model = "N/A"
	}

	state := "idle"
	if m.busy {
		state = m.spinner.View() + " researching"
		if m.iteration > 0 {
			if m.config.MaxIterations > 0 {
				state += fmt.Sprintf(" step %d/%d", m.iteration, m.config.MaxIterations+1)
			} else {
				state += fmt.Sprintf(" step %d", m.iteration)
			}
		}
	}

	return m.styles.status.Render(" " + m.config.Title + " | " + model + " | " + state + " ")
}

// appendLine добавляет строку в лог.
func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if m.config.MaxMessages > 0 && len(m.lines) > m.config.MaxMessages {
		m.lines = m.lines[len(m.lines)-m.config.MaxMessages:]
	}
	setContent(&m.viewport, wrapLines(m.lines, m.viewport.Width))
}

func (m *Model) stamp(line string) string {
	if !m.config.ShowTimestamp {
		return line
	}
	return fmt.Sprintf("[%s] %s", m.now().Format("15:04:05"), line)
}

var _ tea.Model = (*Model)(nil)
