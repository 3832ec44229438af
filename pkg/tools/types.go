// Интерфейс Tool и структуры определений.

package tools

import "context"

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Формат соответствует JSON Schema для Function Calling API.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// Kind тег варианта инструмента. Набор закрыт: поиск и скрейпинг.
type Kind int

const (
	KindSearch Kind = iota + 1
	KindScrape
)

// Имена инструментов, под которыми их видит модель.
const (
	NameSearch = "search"
	NameScrape = "scrape_website"
)

// String возвращает имя инструмента для данного тега.
func (k Kind) String() string {
	switch k {
	case KindSearch:
		return NameSearch
	case KindScrape:
		return NameScrape
	default:
		return "unknown"
	}
}

// KindFromName сопоставляет имя из tool call с тегом.
func KindFromName(name string) (Kind, bool) {
	switch name {
	case NameSearch:
		return KindSearch, true
	case NameScrape:
		return KindScrape, true
	default:
		return 0, false
	}
}

// Result исход вызова инструмента. Всегда текст.
//
// IsError отмечает текст-описание сбоя (транспорт, аргументы, timeout),
// который агент получает наравне с успешным результатом.
type Result struct {
	Text    string
	IsError bool
}

// Failure строит Result с описанием ошибки.
func Failure(text string) Result {
	return Result{Text: text, IsError: true}
}

// Tool контракт, который реализует каждый вариант инструмента.
//
// Rule 1: "Raw In, String Out": на входе сырой JSON аргументов от модели,
// на выходе текст.
type Tool interface {
	// Kind возвращает тег варианта.
	Kind() Kind

	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет инструмент.
	//
	// Сбои инструмента возвращаются в Result с IsError=true.
	// error зарезервирован для фатальных сбоев модели (engine.ErrEngine)
	// и отмены контекста запроса.
	Execute(ctx context.Context, argsJSON string) (Result, error)
}

// Invocation один выполненный вызов инструмента.
type Invocation struct {
	Kind   Kind
	Name   string
	Args   string
	Result Result
}
