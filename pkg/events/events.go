// Package events Port для наблюдения за прогоном research-агента.
//
// Цикл агента отправляет события через Emitter и не знает, кто их читает:
// HTTP сервер, Prometheus метрики, debug-трасса или CLI.
//
//	emitter := events.NewChanEmitter(64)
//	researcher.SetEmitter(emitter)
//	for ev := range emitter.Subscribe().Events() {
//	    switch data := ev.Data.(type) {
//	    case events.ToolCallData:
//	        fmt.Println("tool:", data.ToolName)
//	    case events.DoneData:
//	        fmt.Println(data.Content)
//	    }
//	}
//
// Все реализации Emitter должны быть thread-safe.
//
// Rule 11: Emit принимает context.Context и не блокирует после его отмены.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события от агента.
type EventType string

const (
	// EventThinking отправляется перед каждым запросом решения у модели.
	EventThinking EventType = "thinking"

	// EventToolCall отправляется когда агент вызывает инструмент.
	EventToolCall EventType = "tool_call"

	// EventToolResult отправляется когда инструмент вернул результат.
	EventToolResult EventType = "tool_result"

	// EventCompacted отправляется когда память свернула старые ходы.
	EventCompacted EventType = "compacted"

	// EventError отправляется при фатальной ошибке прогона.
	EventError EventType = "error"

	// EventDone отправляется когда агент вернул ответ.
	EventDone EventType = "done"
)

// EventData sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс.
type EventData interface {
	eventData()
}

// ThinkingData содержит данные для EventThinking.
type ThinkingData struct {
	Objective string
	Iteration int // Число уже выполненных вызовов инструментов
}

func (ThinkingData) eventData() {}

// ToolCallData содержит данные о вызове инструмента.
type ToolCallData struct {
	ToolName string
	Args     string
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения инструмента.
type ToolResultData struct {
	ToolName string
	Args     string
	Result   string
	IsError  bool
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// CompactedData содержит итог свёртки памяти.
type CompactedData struct {
	FoldedTurns  int
	TokensBefore int
	TokensAfter  int
}

func (CompactedData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// DoneData содержит финальный ответ.
type DoneData struct {
	Content     string
	Termination string // "answer" или "max_iterations"
	Iterations  int
}

func (DoneData) eventData() {}

// Event представляет событие от агента.
//
// Соответствие типов:
//   - EventThinking: ThinkingData
//   - EventToolCall: ToolCallData
//   - EventToolResult: ToolResultData
//   - EventCompacted: CompactedData
//   - EventError: ErrorData
//   - EventDone: DoneData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
	RunID     string
}

// Emitter Port для отправки событий.
type Emitter interface {
	// Emit отправляет событие. После отмены ctx не блокирует.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при закрытии источника.
	Events() <-chan Event

	// Close освобождает подписчика.
	Close()
}

// EmitterFunc адаптирует функцию к Emitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit вызывает f(ctx, event).
func (f EmitterFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// MultiEmitter рассылает событие всем адаптерам по порядку.
type MultiEmitter []Emitter

// Emit отправляет событие каждому не-nil адаптеру.
func (m MultiEmitter) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}

// Nop Emitter, который ничего не делает.
var Nop Emitter = EmitterFunc(func(context.Context, Event) {})

var (
	_ Emitter = MultiEmitter(nil)
	_ Emitter = EmitterFunc(nil)
)
