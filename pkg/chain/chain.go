// Package chain реализует цикл исследования: модель выбирает поиск,
// чтение страницы или финальный ответ, пока не ответит или не исчерпает
// предел итераций.
//
// ResearchCycle неизменяемый шаблон, разделяемый между запросами.
// Каждый Execute создаёт свой ResearchExecution с собственной памятью.
package chain

import (
	"time"

	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/tools"
)

// State состояние автомата цикла.
type State int

const (
	StateAwaitingDecision State = iota
	StateExecutingTool
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateExecutingTool:
		return "executing_tool"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Termination причина завершения цикла.
type Termination string

const (
	// TerminationAnswer — модель дала финальный ответ.
	TerminationAnswer Termination = "answer"

	// TerminationMaxIterations — модель хотела продолжать, но предел исчерпан.
	TerminationMaxIterations Termination = "max_iterations"
)

// ChainInput входные данные одного прогона.
type ChainInput struct {
	// Objective — цель исследования от пользователя.
	Objective string

	// RunID — идентификатор прогона для логов и событий.
	RunID string

	// Emitter — дополнительный получатель событий этого прогона.
	Emitter events.Emitter
}

// ChainOutput результат прогона.
type ChainOutput struct {
	Result      string
	Termination Termination
	Iterations  int
	Invocations []tools.Invocation
	Duration    time.Duration
}
