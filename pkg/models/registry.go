// Package models предоставляет реестр LLM провайдеров, созданных из config.yaml.
//
// Агент берёт из реестра две роли: модель для решений (default_chat)
// и модель для суммаризации (default_summary с fallback на default_chat).
//
// Rule 3: Registry pattern (как tools.Registry)
// Rule 5: Thread-safe через sync.RWMutex
package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/factory"
	"github.com/ilkoid/poncho-research/pkg/llm"
)

// Registry потокобезопасное хранилище LLM провайдеров.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelEntry
}

// ModelEntry провайдер вместе с его конфигурацией.
type ModelEntry struct {
	Provider llm.Provider
	Config   config.ModelDef
}

// NewRegistry создаёт новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelEntry),
	}
}

// Register добавляет модель в реестр.
//
// Rule 7: повторная регистрация возвращает ошибку.
func (r *Registry) Register(name string, modelDef config.ModelDef, provider llm.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return fmt.Errorf("model '%s' already registered", name)
	}

	r.models[name] = ModelEntry{
		Provider: provider,
		Config:   modelDef,
	}
	return nil
}

// Get извлекает модель по имени.
func (r *Registry) Get(name string) (ModelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[name]
	if !ok {
		return ModelEntry{}, fmt.Errorf("model '%s' not found in registry", name)
	}
	return entry, nil
}

// GetWithFallback извлекает модель requested, иначе defaultModel.
//
// Возвращает запись и фактическое имя модели.
func (r *Registry) GetWithFallback(requested, defaultModel string) (ModelEntry, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.models[requested]; ok {
		return entry, requested, nil
	}
	if entry, ok := r.models[defaultModel]; ok {
		return entry, defaultModel, nil
	}
	return ModelEntry{}, "", fmt.Errorf("neither requested model '%s' nor default '%s' found in registry", requested, defaultModel)
}

// ListNames возвращает отсортированный список имён моделей.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig создаёт провайдеры для всех определений моделей.
//
// Rule 7: ошибка любой модели прерывает инициализацию.
func NewRegistryFromConfig(cfg *config.AppConfig) (*Registry, error) {
	registry := NewRegistry()

	for name, modelDef := range cfg.Models.Definitions {
		provider, err := factory.NewLLMProvider(modelDef)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for model '%s': %w", name, err)
		}
		if err := registry.Register(name, modelDef, provider); err != nil {
			return nil, fmt.Errorf("failed to register model '%s': %w", name, err)
		}
	}

	return registry, nil
}
