// Package memory хранит диалог одного исследования и удерживает его
// в пределах бюджета токенов, сворачивая старые ходы в бегущую сводку.
package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Completer часть движка рассуждений, нужная для сворачивания.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SummaryPrefix открывает системное сообщение со сводкой ранних ходов.
const SummaryPrefix = "Summary of the earlier research conversation:\n"

// EstimateTokens грубая оценка: четыре символа на токен.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// turn единица сворачивания: сообщение пользователя, обычный ответ
// ассистента или вызов инструмента вместе с его результатами.
type turn struct {
	messages []llm.Message
}

func (t turn) isToolCall() bool {
	return len(t.messages) > 0 && t.messages[0].Role == llm.RoleAssistant && t.messages[0].HasToolCalls()
}

func (t turn) tokens() int {
	n := 0
	for _, m := range t.messages {
		n += messageTokens(m)
	}
	return n
}

func messageTokens(m llm.Message) int {
	n := EstimateTokens(m.Content)
	for _, tc := range m.ToolCalls {
		n += EstimateTokens(tc.Name) + EstimateTokens(tc.Args)
	}
	return n
}

// Compaction описывает одно сворачивание.
type Compaction struct {
	FoldedTurns   int
	TokensBefore  int
	TokensAfter   int
	SummaryTokens int
}

// Memory упорядоченный диалог плюс бегущая сводка.
//
// Системная инструкция и ход с целью исследования закреплены и никогда
// не сворачиваются. Последний ход тоже не сворачивается, даже если сам по
// себе превышает бюджет. Системная инструкция в бюджет не входит.
//
// Не потокобезопасна: принадлежит одному выполнению агента.
type Memory struct {
	engine    Completer
	budget    int
	system    llm.Message
	objective llm.Message
	turns     []turn
	summary   string
}

// New создаёт память с закреплёнными системной инструкцией и целью.
func New(engine Completer, tokenBudget int, system, objective llm.Message) *Memory {
	return &Memory{
		engine:    engine,
		budget:    tokenBudget,
		system:    system,
		objective: objective,
	}
}

// Append добавляет сообщение и при необходимости сворачивает старые ходы.
//
// Сообщения RoleTool присоединяются к ходу с вызовом инструмента.
// Ошибка движка при сворачивании возвращается как есть (фатальна).
func (m *Memory) Append(ctx context.Context, msg llm.Message) ([]Compaction, error) {
	if msg.Role == llm.RoleTool && len(m.turns) > 0 && m.turns[len(m.turns)-1].isToolCall() {
		last := &m.turns[len(m.turns)-1]
		last.messages = append(last.messages, msg)
	} else {
		m.turns = append(m.turns, turn{messages: []llm.Message{msg}})
	}
	return m.compact(ctx)
}

// Messages возвращает диалог в виде, пригодном для отправки модели.
func (m *Memory) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(m.turns)+3)
	out = append(out, m.system, m.objective)
	if m.summary != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: SummaryPrefix + m.summary})
	}
	for _, t := range m.turns {
		out = append(out, t.messages...)
	}
	return out
}

// Summary возвращает текущую бегущую сводку.
func (m *Memory) Summary() string {
	return m.summary
}

// Tokens возвращает оценку сводки и несвёрнутого хвоста (с целью исследования).
func (m *Memory) Tokens() int {
	n := messageTokens(m.objective) + EstimateTokens(m.summary)
	for _, t := range m.turns {
		n += t.tokens()
	}
	return n
}

// LastAssistantText возвращает текст последнего ответа ассистента, если он был.
func (m *Memory) LastAssistantText() string {
	for i := len(m.turns) - 1; i >= 0; i-- {
		msgs := m.turns[i].messages
		for j := len(msgs) - 1; j >= 0; j-- {
			if msgs[j].Role == llm.RoleAssistant && strings.TrimSpace(msgs[j].Content) != "" {
				return msgs[j].Content
			}
		}
	}
	return ""
}

// compact сворачивает минимальный блок старейших ходов, пока диалог
// превышает бюджет и есть что сворачивать помимо последнего хода.
func (m *Memory) compact(ctx context.Context) ([]Compaction, error) {
	var done []Compaction

	for m.Tokens() > m.budget && len(m.turns) > 1 {
		before := m.Tokens()

		n, projected := 0, before
		for n < len(m.turns)-1 && projected > m.budget {
			projected -= m.turns[n].tokens()
			n++
		}

		summary, err := m.fold(ctx, m.turns[:n])
		if err != nil {
			return done, fmt.Errorf("fold %d turns into summary: %w", n, err)
		}
		m.summary = summary
		m.turns = append([]turn(nil), m.turns[n:]...)

		done = append(done, Compaction{
			FoldedTurns:   n,
			TokensBefore:  before,
			TokensAfter:   m.Tokens(),
			SummaryTokens: EstimateTokens(m.summary),
		})
		utils.Debug("Conversation compacted",
			"folded_turns", n,
			"tokens_before", before,
			"tokens_after", m.Tokens())
	}

	m.clipSummary()
	if len(done) > 0 {
		done[len(done)-1].TokensAfter = m.Tokens()
		done[len(done)-1].SummaryTokens = EstimateTokens(m.summary)
	}
	return done, nil
}

// clipSummary обрезает сводку, если она одна выводит диалог за бюджет.
//
// Когда хвост сам превышает бюджет, сводке оставляется четверть бюджета.
func (m *Memory) clipSummary() {
	if m.summary == "" || m.Tokens() <= m.budget {
		return
	}
	allowed := m.budget - (m.Tokens() - EstimateTokens(m.summary))
	if floor := m.budget / 4; allowed < floor {
		allowed = floor
	}
	m.summary = utils.TruncateRunes(m.summary, allowed*4, "…")
}

func (m *Memory) fold(ctx context.Context, turns []turn) (string, error) {
	var lines strings.Builder
	for _, t := range turns {
		for _, msg := range t.messages {
			lines.WriteString(formatLine(msg))
			lines.WriteString("\n")
		}
	}
	return m.engine.Complete(ctx, foldPrompt(m.summary, lines.String()))
}

func foldPrompt(summary, lines string) string {
	if summary == "" {
		summary = "(none)"
	}
	return "Progressively summarize the lines of the research conversation below, " +
		"adding onto the current summary and returning a new summary. " +
		"Keep facts, figures and source URLs.\n\n" +
		"Current summary:\n" + summary + "\n\n" +
		"New lines of conversation:\n" + lines + "\n" +
		"New summary:"
}

func formatLine(m llm.Message) string {
	switch m.Role {
	case llm.RoleUser:
		return "User: " + m.Content
	case llm.RoleTool:
		return fmt.Sprintf("Tool result (%s): %s", m.Name, m.Content)
	case llm.RoleAssistant:
		if m.HasToolCalls() {
			calls := make([]string, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = fmt.Sprintf("%s(%s)", tc.Name, tc.Args)
			}
			line := "Assistant called " + strings.Join(calls, ", ")
			if strings.TrimSpace(m.Content) != "" {
				line = "Assistant: " + m.Content + "\n" + line
			}
			return line
		}
		return "Assistant: " + m.Content
	default:
		return string(m.Role) + ": " + m.Content
	}
}
