package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/tools"
)

// ErrEmptyObjective возвращается для пустой цели исследования.
var ErrEmptyObjective = errors.New("objective is empty")

// ResearchCycle шаблон цикла исследования.
//
// Rule 3: Tools вызываются через Registry.
// Rule 4: Модель вызывается через engine.ReasoningEngine.
// Rule 5: Thread-safe через immutability (шаблон + execution).
// Rule 7: Все ошибки возвращаются, нет panic.
type ResearchCycle struct {
	engine   engine.ReasoningEngine
	registry *tools.Registry
	config   ResearchCycleConfig
	toolStep *ToolExecutionStep
	defs     []tools.ToolDefinition

	// mu защищает defaultEmitter
	mu             sync.RWMutex
	defaultEmitter events.Emitter
}

// NewResearchCycle создаёт шаблон цикла.
func NewResearchCycle(eng engine.ReasoningEngine, registry *tools.Registry, cfg ResearchCycleConfig) (*ResearchCycle, error) {
	if eng == nil {
		return nil, fmt.Errorf("reasoning engine is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cycle config: %w", err)
	}

	defs := registry.GetDefinitions()
	if len(defs) == 0 {
		return nil, fmt.Errorf("tool registry is empty")
	}

	return &ResearchCycle{
		engine:   eng,
		registry: registry,
		config:   cfg,
		toolStep: NewToolExecutionStep(registry, cfg),
		defs:     defs,
	}, nil
}

// SetEmitter устанавливает emitter, получающий события всех прогонов.
//
// Thread-safe.
func (c *ResearchCycle) SetEmitter(emitter events.Emitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultEmitter = emitter
}

// Config возвращает копию конфигурации цикла.
func (c *ResearchCycle) Config() ResearchCycleConfig {
	return c.config
}

// Execute выполняет один прогон исследования.
//
// Concurrent execution безопасен: каждый вызов создаёт свой ResearchExecution.
func (c *ResearchCycle) Execute(ctx context.Context, input ChainInput) (ChainOutput, error) {
	input.Objective = strings.TrimSpace(input.Objective)
	if input.Objective == "" {
		return ChainOutput{}, ErrEmptyObjective
	}

	c.mu.RLock()
	emitter := c.defaultEmitter
	c.mu.RUnlock()

	var sinks events.MultiEmitter
	if emitter != nil {
		sinks = append(sinks, emitter)
	}
	if input.Emitter != nil {
		sinks = append(sinks, input.Emitter)
	}

	execution := NewResearchExecution(ctx, input, c, sinks)
	return execution.Run()
}
