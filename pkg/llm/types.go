// Базовые типы - единый язык общения агента с моделями.
package llm

// Role роль автора сообщения в диалоге.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall запрос модели на вызов инструмента.
//
// Args содержит сырой JSON, который прислала модель.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// Message одно сообщение диалога.
//
// Для RoleTool заполняются Name и ToolCallID, чтобы результат
// можно было сопоставить с вызовом из предыдущего assistant сообщения.
type Message struct {
	Role       Role
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// HasToolCalls сообщает, запросила ли модель вызов инструментов.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
