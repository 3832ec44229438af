// Package std содержит инструменты research-агента: веб-поиск и
// чтение страниц с суммаризацией.
package std

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ilkoid/poncho-research/pkg/tools"
)

// Searcher поисковый бэкенд (serper.Client).
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchTool инструмент веб-поиска.
//
// Результатом служит сырой JSON ответа поискового API.
type SearchTool struct {
	searcher Searcher
}

// NewSearchTool создает инструмент поиска.
func NewSearchTool(searcher Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

// Kind возвращает тег варианта.
func (t *SearchTool) Kind() tools.Kind { return tools.KindSearch }

// Definition возвращает определение инструмента для function calling.
func (t *SearchTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name: tools.NameSearch,
		Description: "Useful for when you need to answer questions about current events, data. " +
			"You should ask targeted questions.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Execute выполняет поиск. Любой сбой возвращается текстом.
func (t *SearchTool) Execute(ctx context.Context, argsJSON string) (tools.Result, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return tools.Failure(fmt.Sprintf("Error: invalid arguments for %s: %v", tools.NameSearch, err)), nil
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return tools.Failure(fmt.Sprintf("Error: %s requires a non-empty \"query\" argument", tools.NameSearch)), nil
	}

	out, err := t.searcher.Search(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && ctxErr != context.DeadlineExceeded {
			return tools.Result{}, ctxErr
		}
		return tools.Failure(fmt.Sprintf("Search request failed: %v", err)), nil
	}
	return tools.Result{Text: out}, nil
}
