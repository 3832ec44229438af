// Package agent собирает research-агента из конфигурации и даёт простой
// API для запуска исследования.
//
// Basic usage:
//
//	client, _ := agent.New(ctx, agent.Config{ConfigPath: "config.yaml"})
//	answer, _ := client.Run(ctx, "research the latest advances in battery technology")
//
// Client создаётся один раз на процесс и передаётся во фронты (HTTP, MCP, CLI, TUI).
// Каждый Run работает со своей памятью диалога.
//
// Опционально подключаются журнал прогонов (history.path) и архив
// debug-трасс в S3 (trace_archive).
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ilkoid/poncho-research/pkg/chain"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/debug"
	"github.com/ilkoid/poncho-research/pkg/engine"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/history"
	"github.com/ilkoid/poncho-research/pkg/models"
	"github.com/ilkoid/poncho-research/pkg/prompt"
	"github.com/ilkoid/poncho-research/pkg/render"
	"github.com/ilkoid/poncho-research/pkg/s3storage"
	"github.com/ilkoid/poncho-research/pkg/serper"
	"github.com/ilkoid/poncho-research/pkg/summarize"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/ilkoid/poncho-research/pkg/tools/std"
	"github.com/ilkoid/poncho-research/pkg/utils"
	"github.com/ilkoid/poncho-research/pkg/webclient"
)

// Client фасад над ResearchCycle.
//
// Thread-safe: все методы безопасны для параллельного вызова.
type Client struct {
	cycle         *chain.ResearchCycle
	modelRegistry *models.Registry
	toolsRegistry *tools.Registry
	config        *config.AppConfig
	history       *history.Store
	archive       TraceArchive

	emitterMu sync.RWMutex
	emitter   events.Emitter
}

// TraceArchive принимает готовые debug-трассы (s3storage.Client).
type TraceArchive interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Config определяет, из чего собирается агент.
//
// Все поля опциональны.
type Config struct {
	// ConfigPath — путь к config.yaml. Пусто = defaults + окружение.
	ConfigPath string

	// AppConfig — готовая конфигурация, перекрывает ConfigPath.
	AppConfig *config.AppConfig

	// Engine подменяет движок, собранный из models.
	Engine engine.ReasoningEngine

	// HTTPClient для поиска и рендеринга, nil = http.Client по умолчанию.
	HTTPClient webclient.HTTPClient

	// SystemPrompt — override системной инструкции.
	SystemPrompt string

	// MaxIterations — override предела итераций, 0 = из конфигурации.
	MaxIterations int

	// Archive подменяет архив трасс из trace_archive.
	Archive TraceArchive
}

// New собирает агента: модели → движок → инструменты → цикл.
func New(ctx context.Context, cfg Config) (*Client, error) {
	appCfg := cfg.AppConfig
	if appCfg == nil {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		appCfg = loaded
	}

	var modelRegistry *models.Registry
	eng := cfg.Engine
	if eng == nil {
		registry, err := models.NewRegistryFromConfig(appCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create model registry: %w", err)
		}
		providerEngine, err := engine.NewFromConfig(registry, appCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create reasoning engine: %w", err)
		}
		modelRegistry = registry
		eng = providerEngine
	}

	toolsRegistry, err := newToolsRegistry(appCfg, eng, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}

	cycleCfg := chain.ConfigFromApp(appCfg)
	if cfg.MaxIterations > 0 {
		cycleCfg.MaxIterations = cfg.MaxIterations
	}
	switch {
	case cfg.SystemPrompt != "":
		cycleCfg.SystemPrompt = cfg.SystemPrompt
	case appCfg.Agent.PromptFile != "":
		systemPrompt, err := prompt.LoadSystemPrompt(appCfg.Agent.PromptFile, prompt.Data{
			MaxIterations: cycleCfg.MaxIterations,
			Date:          time.Now().Format("2006-01-02"),
		})
		if err != nil {
			return nil, err
		}
		cycleCfg.SystemPrompt = systemPrompt
	}

	cycle, err := chain.NewResearchCycle(eng, toolsRegistry, cycleCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create research cycle: %w", err)
	}

	archive := cfg.Archive
	if archive == nil && appCfg.Archive.Enabled() {
		s3, err := s3storage.New(appCfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace archive: %w", err)
		}
		archive = s3
	}

	var store *history.Store
	if appCfg.History.Enabled() {
		store, err = history.Open(appCfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
	}

	chatModel, _ := appCfg.GetChatModel()
	utils.Info("Research agent ready",
		"chat_model", chatModel,
		"scrape_backend", appCfg.Scrape.Backend,
		"max_iterations", cycleCfg.MaxIterations,
		"token_budget", cycleCfg.TokenBudget,
		"history", appCfg.History.Enabled(),
		"trace_archive", archive != nil)

	return &Client{
		cycle:         cycle,
		modelRegistry: modelRegistry,
		toolsRegistry: toolsRegistry,
		config:        appCfg,
		history:       store,
		archive:       archive,
	}, nil
}

// newToolsRegistry регистрирует search и scrape_website.
func newToolsRegistry(cfg *config.AppConfig, eng engine.ReasoningEngine, httpClient webclient.HTTPClient) (*tools.Registry, error) {
	renderer, err := render.NewFromConfig(cfg.Scrape, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	summarizer := summarize.New(eng, cfg.Summarizer, cfg.Scrape.SummarizeThreshold)

	registry := tools.NewRegistry()
	if err := registry.Register(std.NewSearchTool(serper.NewFromConfig(cfg.Search, httpClient))); err != nil {
		return nil, fmt.Errorf("failed to register search tool: %w", err)
	}
	if err := registry.Register(std.NewScrapeTool(renderer, summarizer, cfg.Scrape.SummarizeThreshold)); err != nil {
		return nil, fmt.Errorf("failed to register scrape tool: %w", err)
	}
	return registry, nil
}

// SetEmitter устанавливает получателя событий всех прогонов.
//
// Thread-safe.
func (c *Client) SetEmitter(emitter events.Emitter) {
	c.emitterMu.Lock()
	defer c.emitterMu.Unlock()
	c.emitter = emitter
}

// Run выполняет исследование и возвращает ответ.
//
// Ошибка означает отказ модели, пустую цель или отмену контекста;
// сбои поиска и рендеринга попадают в ответ модели.
func (c *Client) Run(ctx context.Context, objective string) (string, error) {
	out, err := c.Execute(ctx, objective)
	if err != nil {
		return "", err
	}
	return out.Result, nil
}

// Execute выполняет исследование и возвращает полный результат прогона.
func (c *Client) Execute(ctx context.Context, objective string) (chain.ChainOutput, error) {
	runID := uuid.NewString()

	c.emitterMu.RLock()
	emitter := c.emitter
	c.emitterMu.RUnlock()

	sinks := events.MultiEmitter{emitter}
	if c.history != nil {
		sinks = append(sinks, c.history)
	}

	var recorder *debug.Recorder
	if c.config.App.Debug {
		rec, err := debug.NewRecorder(debug.RecorderConfig{
			LogsDir:            c.config.App.LogsDir,
			IncludeToolArgs:    true,
			IncludeToolResults: true,
			MaxResultSize:      4000,
		}, runID, objective)
		if err != nil {
			utils.Warn("Debug recorder disabled", "error", err)
		} else {
			recorder = rec
			sinks = append(sinks, rec)
		}
	}

	out, err := c.cycle.Execute(ctx, chain.ChainInput{
		Objective: objective,
		RunID:     runID,
		Emitter:   sinks,
	})

	if recorder != nil && c.archive != nil {
		c.archiveTrace(ctx, recorder)
	}
	return out, err
}

// archiveTrace отправляет записанную трассу в архив.
//
// Сбой архива не влияет на результат прогона.
func (c *Client) archiveTrace(ctx context.Context, recorder *debug.Recorder) {
	path, err := recorder.Finalize()
	if err != nil {
		utils.Warn("Debug trace not saved, skipping archive", "run_id", recorder.RunID(), "error", err)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		utils.Warn("Failed to read debug trace", "path", path, "error", err)
		return
	}

	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	key, err := c.archive.Upload(uploadCtx, filepath.Base(path), data)
	if err != nil {
		utils.Warn("Failed to archive debug trace", "run_id", recorder.RunID(), "error", err)
		return
	}
	utils.Debug("Debug trace archived", "run_id", recorder.RunID(), "key", key)
}

// History возвращает журнал прогонов (nil, если выключен).
func (c *Client) History() *history.Store {
	return c.history
}

// Close освобождает ресурсы клиента.
func (c *Client) Close() error {
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}

// GetModelRegistry возвращает реестр моделей (nil при подменённом движке).
func (c *Client) GetModelRegistry() *models.Registry {
	return c.modelRegistry
}

// GetToolsRegistry возвращает реестр инструментов.
func (c *Client) GetToolsRegistry() *tools.Registry {
	return c.toolsRegistry
}
