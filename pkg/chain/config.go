package chain

import (
	"fmt"
	"time"

	"github.com/ilkoid/poncho-research/pkg/config"
)

// DefaultSystemPrompt инструкция исследователя по умолчанию.
const DefaultSystemPrompt = `You are a world class researcher, who can do detailed research on any topic and produce facts based results; you do not make things up, you will try as hard as possible to gather facts & data to back up the research.

Please make sure you complete the objective above with the following rules:
1/ You should do enough research to gather as much information as possible about the objective
2/ If there are url of relevant links & articles, you will scrape it to gather more information
3/ After scraping & search, you should think "is there any new things i should search & scrape based on the data I collected to increase research quality?" If answer is yes, continue; But don't do this more than 3 iterations
4/ You should not make things up, you should only write facts & data that you have gathered
5/ In the final output, You should include all reference data & links to back up your research; You should include all reference data & links to back up your research
6/ In the final output, You should include all reference data & links to back up your research; You should include all reference data & links to back up your research`

// InsufficientDataMarker возвращается, когда лимит итераций исчерпан,
// а модель так и не написала ни одного текстового ответа.
const InsufficientDataMarker = "Insufficient data: the research iteration limit was reached before an answer could be produced."

// ResearchCycleConfig параметры цикла исследования.
type ResearchCycleConfig struct {
	// MaxIterations — предел раундов «решение → инструмент».
	MaxIterations int

	// SystemPrompt — закреплённая системная инструкция.
	SystemPrompt string

	// TokenBudget — бюджет памяти диалога.
	TokenBudget int

	// ToolTimeout — защитный timeout шага инструмента.
	ToolTimeout time.Duration

	// ToolTimeouts — переопределения timeout по имени инструмента.
	ToolTimeouts map[string]time.Duration
}

// NewResearchCycleConfig возвращает конфигурацию по умолчанию.
func NewResearchCycleConfig() ResearchCycleConfig {
	return ResearchCycleConfig{
		MaxIterations: 3,
		SystemPrompt:  DefaultSystemPrompt,
		TokenBudget:   1000,
		ToolTimeout:   2 * time.Minute,
	}
}

// ConfigFromApp собирает конфигурацию цикла из настроек приложения.
func ConfigFromApp(cfg *config.AppConfig) ResearchCycleConfig {
	c := NewResearchCycleConfig()
	c.MaxIterations = cfg.Agent.MaxIterations
	c.TokenBudget = cfg.Memory.TokenBudget
	if cfg.Agent.SystemPrompt != "" {
		c.SystemPrompt = cfg.Agent.SystemPrompt
	}
	if cfg.Agent.ToolTimeout > 0 {
		c.ToolTimeout = cfg.Agent.ToolTimeout
	}
	if len(cfg.Agent.ToolTimeouts) > 0 {
		c.ToolTimeouts = make(map[string]time.Duration, len(cfg.Agent.ToolTimeouts))
		for name, d := range cfg.Agent.ToolTimeouts {
			c.ToolTimeouts[name] = d
		}
	}
	return c
}

// Validate проверяет конфигурацию.
func (c ResearchCycleConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.TokenBudget <= 0 {
		return fmt.Errorf("token_budget must be positive, got %d", c.TokenBudget)
	}
	if c.SystemPrompt == "" {
		return fmt.Errorf("system prompt is empty")
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("tool_timeout must be positive")
	}
	return nil
}
