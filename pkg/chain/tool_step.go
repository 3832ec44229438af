package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// ToolExecutionStep выполняет один вызов инструмента под защитным timeout.
//
// Rule 1: Работает с Tool interface ("Raw In, String Out").
// Rule 3: Tools вызываются через Registry.
// Rule 7: Сбои инструмента возвращаются текстом, error только для
// фатальных случаев (отказ модели, отмена запроса).
//
// Не хранит состояния выполнения: один экземпляр обслуживает все прогоны.
type ToolExecutionStep struct {
	registry *tools.Registry

	// defaultToolTimeout — защитный timeout для выполнения инструментов
	defaultToolTimeout time.Duration

	// toolTimeouts — переопределение timeout для конкретных инструментов
	toolTimeouts map[string]time.Duration
}

// ToolResult результат выполнения одного инструмента.
type ToolResult struct {
	Name     string
	Args     string
	Result   tools.Result
	Duration time.Duration
}

// NewToolExecutionStep создаёт шаг с timeout из конфигурации цикла.
func NewToolExecutionStep(registry *tools.Registry, cfg ResearchCycleConfig) *ToolExecutionStep {
	step := &ToolExecutionStep{
		registry:           registry,
		defaultToolTimeout: cfg.ToolTimeout,
		toolTimeouts:       make(map[string]time.Duration, len(cfg.ToolTimeouts)),
	}
	for name, d := range cfg.ToolTimeouts {
		step.toolTimeouts[name] = d
	}
	return step
}

// Name возвращает имя Step (для логирования).
func (s *ToolExecutionStep) Name() string {
	return "tool_execution"
}

// timeoutFor возвращает timeout для инструмента.
func (s *ToolExecutionStep) timeoutFor(name string) time.Duration {
	if d, ok := s.toolTimeouts[name]; ok && d > 0 {
		return d
	}
	return s.defaultToolTimeout
}

// Execute выполняет tool call.
//
// Tool Timeout Protection:
//   - инструмент выполняется в отдельной goroutine;
//   - по истечении timeout модель получает текст о превышении, цикл продолжается;
//   - отмена родительского контекста возвращается как ошибка.
func (s *ToolExecutionStep) Execute(ctx context.Context, tc llm.ToolCall) (ToolResult, error) {
	start := time.Now()
	result := ToolResult{
		Name: tc.Name,
		Args: tc.Args,
	}

	// Модели иногда оборачивают аргументы в markdown
	cleanArgs := utils.CleanJsonBlock(tc.Args)
	timeout := s.timeoutFor(tc.Name)

	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		res tools.Result
		err error
	}
	resultChan := make(chan execResult, 1)

	go func() {
		res, err := s.registry.Dispatch(toolCtx, tc.Name, cleanArgs)
		resultChan <- execResult{res, err}
	}()

	select {
	case <-toolCtx.Done():
		result.Duration = time.Since(start)
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Result = timeoutResult(tc.Name, timeout)

		utils.Warn("Tool execution timeout",
			"tool", tc.Name,
			"timeout", timeout,
			"duration_ms", result.Duration.Milliseconds())
		return result, nil

	case out := <-resultChan:
		result.Duration = time.Since(start)
		if out.err != nil {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			// Движок внутри инструмента остановлен нашим timeout
			if errors.Is(out.err, context.DeadlineExceeded) && toolCtx.Err() != nil {
				result.Result = timeoutResult(tc.Name, timeout)
				return result, nil
			}
			return result, fmt.Errorf("tool %s: %w", tc.Name, out.err)
		}
		result.Result = out.res
		return result, nil
	}
}

func timeoutResult(name string, timeout time.Duration) tools.Result {
	return tools.Failure(fmt.Sprintf(
		"Error: tool %q exceeded timeout of %v. Either the tool is stuck or the service response is slow.",
		name, timeout,
	))
}
