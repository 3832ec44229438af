// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Load загружает и парсит YAML файл промпта
func Load(path string) (*PromptFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}

	return &pf, nil
}

// RenderMessages принимает данные (struct или map) и возвращает готовые сообщения
// где все {{.Field}} заменены на значения.
func (pf *PromptFile) RenderMessages(data any) ([]Message, error) {
	rendered := make([]Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		tmpl, err := template.New("msg").Option("missingkey=error").Parse(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("template execute error in message #%d: %w", i, err)
		}

		rendered[i] = Message{
			Role:    msg.Role,
			Content: buf.String(),
		}
	}

	return rendered, nil
}

// LoadSystemPrompt загружает системную инструкцию агента из YAML файла.
//
// Берётся первое сообщение с role: system. Файл без такого
// сообщения считается ошибкой конфигурации.
func LoadSystemPrompt(path string, data Data) (string, error) {
	pf, err := Load(path)
	if err != nil {
		return "", fmt.Errorf("failed to load system prompt from %s: %w", path, err)
	}

	messages, err := pf.RenderMessages(data)
	if err != nil {
		return "", fmt.Errorf("failed to render system prompt from %s: %w", path, err)
	}

	for _, msg := range messages {
		if msg.Role == "system" && msg.Content != "" {
			return msg.Content, nil
		}
	}
	return "", fmt.Errorf("prompt file %s has no system message", path)
}
