package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/memory"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// ResearchExecution runtime состояние одного прогона.
//
// Создаётся на каждый вызов Execute() и никогда не разделяется между
// goroutines, поэтому не нуждается в синхронизации.
type ResearchExecution struct {
	ctx       context.Context
	runID     string
	objective string

	engine   engine.ReasoningEngine
	toolStep *ToolExecutionStep
	defs     []tools.ToolDefinition
	config   *ResearchCycleConfig

	memory  *memory.Memory
	emitter events.Emitter

	state       State
	iterations  int
	invocations []tools.Invocation
	startTime   time.Time
}

// NewResearchExecution создаёт execution с памятью, засеянной системной
// инструкцией и целью исследования.
func NewResearchExecution(ctx context.Context, input ChainInput, cycle *ResearchCycle, emitter events.Emitter) *ResearchExecution {
	system := llm.Message{Role: llm.RoleSystem, Content: cycle.config.SystemPrompt}
	objective := llm.Message{Role: llm.RoleUser, Content: input.Objective}

	return &ResearchExecution{
		ctx:       ctx,
		runID:     input.RunID,
		objective: input.Objective,
		engine:    cycle.engine,
		toolStep:  cycle.toolStep,
		defs:      cycle.defs,
		config:    &cycle.config,
		memory:    memory.New(cycle.engine, cycle.config.TokenBudget, system, objective),
		emitter:   emitter,
		state:     StateAwaitingDecision,
		startTime: time.Now(),
	}
}

// Run выполняет цикл до финального ответа или исчерпания итераций.
//
// Ошибка возвращается только при отказе модели или отмене контекста.
func (e *ResearchExecution) Run() (ChainOutput, error) {
	utils.Info("Research started",
		"run_id", e.runID,
		"objective", utils.TruncateRunes(e.objective, 200, "..."),
		"max_iterations", e.config.MaxIterations)

	for {
		if err := e.ctx.Err(); err != nil {
			return e.fail(err)
		}

		e.transition(StateAwaitingDecision)
		e.emit(events.EventThinking, events.ThinkingData{Objective: e.objective, Iteration: e.iterations})

		decision, err := e.engine.Decide(e.ctx, e.memory.Messages(), e.defs)
		if err != nil {
			return e.fail(err)
		}

		if decision.IsFinal() {
			text := decision.Text
			if text == "" {
				text = InsufficientDataMarker
			}
			return e.finish(text, TerminationAnswer)
		}

		if e.iterations >= e.config.MaxIterations {
			utils.Info("Iteration limit reached, returning best effort answer",
				"run_id", e.runID,
				"iterations", e.iterations,
				"requested_tool", decision.Call.Name)
			return e.finish(e.bestEffort(decision), TerminationMaxIterations)
		}

		if err := e.executeTool(decision); err != nil {
			return e.fail(err)
		}
	}
}

// executeTool выполняет один раунд ExecutingTool → AwaitingDecision.
func (e *ResearchExecution) executeTool(decision engine.Decision) error {
	e.transition(StateExecutingTool)

	call := *decision.Call
	if call.ID == "" {
		call.ID = fmt.Sprintf("call_%d", e.iterations+1)
	}

	// В истории остаётся только исполняемый вызов
	if err := e.appendMessage(llm.Message{
		Role:      llm.RoleAssistant,
		Content:   decision.Text,
		ToolCalls: []llm.ToolCall{call},
	}); err != nil {
		return err
	}

	e.emit(events.EventToolCall, events.ToolCallData{ToolName: call.Name, Args: call.Args})

	result, err := e.toolStep.Execute(e.ctx, call)
	if err != nil {
		return err
	}

	e.emit(events.EventToolResult, events.ToolResultData{
		ToolName: call.Name,
		Args:     call.Args,
		Result:   result.Result.Text,
		IsError:  result.Result.IsError,
		Duration: result.Duration,
	})

	utils.Debug("Tool executed",
		"run_id", e.runID,
		"tool", call.Name,
		"is_error", result.Result.IsError,
		"result_chars", len(result.Result.Text),
		"duration_ms", result.Duration.Milliseconds())

	kind, _ := tools.KindFromName(call.Name)
	e.invocations = append(e.invocations, tools.Invocation{
		Kind:   kind,
		Name:   call.Name,
		Args:   call.Args,
		Result: result.Result,
	})

	if err := e.appendMessage(llm.Message{
		Role:       llm.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    result.Result.Text,
	}); err != nil {
		return err
	}

	e.iterations++
	return nil
}

// appendMessage добавляет сообщение в память и сообщает о свёртках.
func (e *ResearchExecution) appendMessage(msg llm.Message) error {
	compactions, err := e.memory.Append(e.ctx, msg)
	if err != nil {
		return fmt.Errorf("compact memory: %w", err)
	}
	for _, c := range compactions {
		e.emit(events.EventCompacted, events.CompactedData{
			FoldedTurns:  c.FoldedTurns,
			TokensBefore: c.TokensBefore,
			TokensAfter:  c.TokensAfter,
		})
	}
	return nil
}

// bestEffort выбирает ответ при исчерпании итераций: текст, сопровождавший
// последний вызов, последний текст ассистента или маркер нехватки данных.
func (e *ResearchExecution) bestEffort(decision engine.Decision) string {
	if decision.Text != "" {
		return decision.Text
	}
	if text := e.memory.LastAssistantText(); text != "" {
		return text
	}
	return InsufficientDataMarker
}

// emit отправляет событие если emitter установлен.
func (e *ResearchExecution) emit(eventType events.EventType, data events.EventData) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(e.ctx, events.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		RunID:     e.runID,
	})
}

// transition переводит автомат в состояние next.
func (e *ResearchExecution) transition(next State) {
	if e.state == next {
		return
	}
	utils.Debug("State transition",
		"run_id", e.runID,
		"from", e.state.String(),
		"to", next.String(),
		"iteration", e.iterations)
	e.state = next
}

// State возвращает текущее состояние автомата.
func (e *ResearchExecution) State() State {
	return e.state
}

func (e *ResearchExecution) finish(text string, termination Termination) (ChainOutput, error) {
	e.transition(StateTerminated)
	out := ChainOutput{
		Result:      text,
		Termination: termination,
		Iterations:  e.iterations,
		Invocations: e.invocations,
		Duration:    time.Since(e.startTime),
	}

	e.emit(events.EventDone, events.DoneData{
		Content:     text,
		Termination: string(termination),
		Iterations:  e.iterations,
	})

	utils.Info("Research finished",
		"run_id", e.runID,
		"termination", string(termination),
		"iterations", e.iterations,
		"duration_ms", out.Duration.Milliseconds())
	return out, nil
}

// fail завершает выполнение с ошибкой.
func (e *ResearchExecution) fail(err error) (ChainOutput, error) {
	e.transition(StateTerminated)

	if e.emitter != nil {
		// Отменённый контекст не доставит событие
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), time.Second)
		e.emitter.Emit(emitCtx, events.Event{
			Type:      events.EventError,
			Data:      events.ErrorData{Err: err},
			Timestamp: time.Now(),
			RunID:     e.runID,
		})
		cancel()
	}

	utils.Error("Research failed",
		"run_id", e.runID,
		"error", err,
		"iterations", e.iterations)

	return ChainOutput{
		Iterations:  e.iterations,
		Invocations: e.invocations,
		Duration:    time.Since(e.startTime),
	}, err
}
