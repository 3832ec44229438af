// Интерфейс Провайдера, через который работает всё приложение.

package llm

import "context"

// Provider абстракция над LLM API.
//
// # Rule 4: LLM Abstraction
//
// Агент работает только через этот интерфейс, конкретные адаптеры
// (OpenAI-совместимые API) скрыты за ним.
type Provider interface {
	// Generate принимает историю сообщений и возвращает ответ модели.
	//
	// opts — опциональные параметры:
	//   - []tools.ToolDefinition — определения функций для Function Calling
	//   - GenerateOption — переопределение параметров генерации
	Generate(ctx context.Context, messages []Message, opts ...any) (Message, error)
}
