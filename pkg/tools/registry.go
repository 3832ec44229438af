// Реестр для хранения и диспетчеризации инструментов.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Registry потокобезопасное хранилище инструментов.
//
// Диспетчеризация идёт по тегу Kind, неизвестные имена превращаются
// в текст ошибки, а не в панику или фатальную ошибку.
type Registry struct {
	mu     sync.RWMutex
	search Tool
	scrape Tool
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{}
}

// validateToolDefinition проверяет что ToolDefinition соответствует JSON Schema.
//
// Валидирует:
//   - Name не пустой и совпадает с именем тега
//   - Parameters является JSON объектом с type == "object"
//   - Parameters.required является массивом строк
func validateToolDefinition(kind Kind, def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Name != kind.String() {
		return fmt.Errorf("tool '%s': name does not match kind %q", def.Name, kind.String())
	}
	if def.Parameters == nil {
		return fmt.Errorf("tool '%s': parameters cannot be nil", def.Name)
	}

	paramsJSON, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool '%s': failed to marshal parameters: %w", def.Name, err)
	}

	var params map[string]any
	if err := json.Unmarshal(paramsJSON, &params); err != nil {
		return fmt.Errorf("tool '%s': parameters must be a JSON object, got: %s", def.Name, string(paramsJSON))
	}

	typeStr, ok := params["type"].(string)
	if !ok {
		return fmt.Errorf("tool '%s': parameters must have string 'type' field", def.Name)
	}
	if typeStr != "object" {
		return fmt.Errorf("tool '%s': parameters.type must be 'object', got: '%s'", def.Name, typeStr)
	}

	if requiredVal, exists := params["required"]; exists {
		required, ok := requiredVal.([]any)
		if !ok {
			return fmt.Errorf("tool '%s': parameters.required must be an array", def.Name)
		}
		for i, item := range required {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("tool '%s': parameters.required[%d] must be a string, got: %T", def.Name, i, item)
			}
		}
	}

	return nil
}

// Register добавляет инструмент в реестр с валидацией схемы.
func (r *Registry) Register(tool Tool) error {
	kind := tool.Kind()
	if err := validateToolDefinition(kind, tool.Definition()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case KindSearch:
		r.search = tool
	case KindScrape:
		r.scrape = tool
	default:
		return fmt.Errorf("unsupported tool kind %d", kind)
	}
	return nil
}

// Get ищет инструмент по имени из tool call.
func (r *Registry) Get(name string) (Tool, error) {
	kind, ok := KindFromName(name)
	if !ok {
		return nil, fmt.Errorf("tool '%s' not found", name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var tool Tool
	switch kind {
	case KindSearch:
		tool = r.search
	case KindScrape:
		tool = r.scrape
	}
	if tool == nil {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}
	return tool, nil
}

// Dispatch выполняет инструмент по имени.
//
// Неизвестное имя возвращается как текст ошибки для модели.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) (Result, error) {
	tool, err := r.Get(name)
	if err != nil {
		return Failure(fmt.Sprintf("Error: %v. Available tools: %s, %s", err, NameSearch, NameScrape)), nil
	}
	return tool.Execute(ctx, argsJSON)
}

// GetDefinitions возвращает определения всех зарегистрированных инструментов
// в стабильном порядке (search, scrape).
func (r *Registry) GetDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, 2)
	for _, t := range []Tool{r.search, r.scrape} {
		if t != nil {
			defs = append(defs, t.Definition())
		}
	}
	return defs
}
