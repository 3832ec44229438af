package factory

import (
	"testing"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name        string
		modelDef    config.ModelDef
		expectError bool
	}{
		{"openai", config.ModelDef{Provider: "openai", ModelName: "gpt-4o-mini", APIKey: "k"}, false},
		{"openrouter", config.ModelDef{Provider: "openrouter", ModelName: "anthropic/claude-3.5-haiku", BaseURL: "https://openrouter.ai/api/v1"}, false},
		{"deepseek", config.ModelDef{Provider: "deepseek", ModelName: "deepseek-chat"}, false},
		{"missing model name", config.ModelDef{Provider: "openai"}, true},
		{"unknown provider", config.ModelDef{Provider: "carrier-pigeon", ModelName: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewLLMProvider(tt.modelDef)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, provider)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, provider)
		})
	}
}
