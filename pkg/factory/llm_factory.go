// Package factory создаёт LLM провайдеров по описанию модели из config.yaml.
package factory

import (
	"fmt"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/llm"
	"github.com/ilkoid/poncho-research/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели.
//
// Все поддерживаемые провайдеры говорят на OpenAI-совместимом API
// и отличаются только base_url.
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch modelDef.Provider {
	case "openai", "zai", "deepseek", "openrouter":
		if modelDef.ModelName == "" {
			return nil, fmt.Errorf("model_name is required for provider %s", modelDef.Provider)
		}
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}
