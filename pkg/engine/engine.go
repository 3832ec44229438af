// Package engine адаптирует LLM провайдеров к двум операциям агента:
// выбор следующего шага (Decide) и генерация текста по промпту (Complete).
//
// Движок не хранит состояния между вызовами и безопасен для
// параллельных запросов.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/models"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// ErrEngine помечает отказ модели. Такая ошибка фатальна для запроса.
var ErrEngine = errors.New("reasoning engine failure")

// Decision решение модели на очередном шаге.
//
// Call != nil означает вызов инструмента, иначе Text содержит финальный ответ.
type Decision struct {
	Call *llm.ToolCall
	Text string
}

// IsFinal сообщает, что модель дала финальный ответ.
func (d Decision) IsFinal() bool {
	return d.Call == nil
}

// ReasoningEngine контракт движка рассуждений.
type ReasoningEngine interface {
	// Decide выбирает следующий шаг по полной истории диалога.
	Decide(ctx context.Context, messages []llm.Message, defs []tools.ToolDefinition) (Decision, error)

	// Complete генерирует текст по одному промпту без инструментов.
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderEngine реализует ReasoningEngine поверх llm.Provider.
//
// Для решений и для суммаризации можно использовать разные модели.
type ProviderEngine struct {
	decider         llm.Provider
	decideTimeout   time.Duration
	completer       llm.Provider
	completeTimeout time.Duration
}

// New создаёт движок из двух записей реестра моделей.
func New(decider, completer models.ModelEntry) *ProviderEngine {
	return &ProviderEngine{
		decider:         decider.Provider,
		decideTimeout:   decider.Config.Timeout,
		completer:       completer.Provider,
		completeTimeout: completer.Config.Timeout,
	}
}

// NewFromConfig берёт модели default_chat и default_summary из реестра.
func NewFromConfig(registry *models.Registry, cfg *config.AppConfig) (*ProviderEngine, error) {
	chatName, _ := cfg.GetChatModel()
	chat, err := registry.Get(chatName)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	summaryName, _ := cfg.GetSummaryModel()
	summary, _, err := registry.GetWithFallback(summaryName, chatName)
	if err != nil {
		return nil, fmt.Errorf("summary model: %w", err)
	}

	return New(chat, summary), nil
}

// Decide запрашивает у модели следующий шаг.
//
// Параллельные tool calls выключены. Если модель всё же вернула несколько
// вызовов, берётся первый.
func (e *ProviderEngine) Decide(ctx context.Context, messages []llm.Message, defs []tools.ToolDefinition) (Decision, error) {
	callCtx, cancel := withCallTimeout(ctx, e.decideTimeout)
	defer cancel()

	msg, err := e.decider.Generate(callCtx, messages, defs, llm.WithParallelToolCalls(false))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Decision{}, ctxErr
		}
		return Decision{}, fmt.Errorf("%w: decide: %w", ErrEngine, err)
	}

	if !msg.HasToolCalls() {
		return Decision{Text: strings.TrimSpace(msg.Content)}, nil
	}

	if len(msg.ToolCalls) > 1 {
		utils.Warn("Model returned several tool calls, executing only the first",
			"count", len(msg.ToolCalls),
			"first", msg.ToolCalls[0].Name)
	}
	call := msg.ToolCalls[0]
	return Decision{Call: &call, Text: msg.Content}, nil
}

// Complete генерирует текст по одиночному промпту.
func (e *ProviderEngine) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := withCallTimeout(ctx, e.completeTimeout)
	defer cancel()

	msg, err := e.completer.Generate(callCtx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: complete: %w", ErrEngine, err)
	}
	return strings.TrimSpace(msg.Content), nil
}

// withCallTimeout ограничивает вызов модели; без timeout модели
// действует config.DefaultModelTimeout.
func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = config.DefaultModelTimeout
	}
	return context.WithTimeout(ctx, d)
}
