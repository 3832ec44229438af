package std

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ilkoid/poncho-research/pkg/htmltext"
	"github.com/ilkoid/poncho-research/pkg/render"
	"github.com/ilkoid/poncho-research/pkg/tools"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Summarizer сворачивает длинный текст относительно цели.
type Summarizer interface {
	Summarize(ctx context.Context, objective, content string) (string, error)
}

// ScrapeTool инструмент чтения страницы.
//
// Страница рендерится сервисом headless-браузера, из HTML берётся видимый
// текст. Текст длиннее threshold символов заменяется сводкой по objective.
type ScrapeTool struct {
	renderer   render.Renderer
	summarizer Summarizer
	threshold  int
}

// NewScrapeTool создает инструмент чтения страниц.
func NewScrapeTool(renderer render.Renderer, summarizer Summarizer, threshold int) *ScrapeTool {
	return &ScrapeTool{
		renderer:   renderer,
		summarizer: summarizer,
		threshold:  threshold,
	}
}

// Kind возвращает тег варианта.
func (t *ScrapeTool) Kind() tools.Kind { return tools.KindScrape }

// Definition возвращает определение инструмента для function calling.
func (t *ScrapeTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name: tools.NameScrape,
		Description: "Useful when you need to get data from a website url, passing both url and objective to the function; " +
			"DO NOT make up any url, the url should only be from the search results.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"objective": map[string]any{
					"type":        "string",
					"description": "The objective & task that users give to the agent",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "The url of the website to be scraped",
				},
			},
			"required": []string{"objective", "url"},
		},
	}
}

// Execute рендерит страницу и возвращает её текст или сводку.
//
// Сбои рендеринга и неверные аргументы возвращаются текстом. Ошибка
// суммаризатора означает отказ модели и возвращается как error.
func (t *ScrapeTool) Execute(ctx context.Context, argsJSON string) (tools.Result, error) {
	var args struct {
		Objective string `json:"objective"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return tools.Failure(fmt.Sprintf("Error: invalid arguments for %s: %v", tools.NameScrape, err)), nil
	}
	args.URL = strings.TrimSpace(args.URL)
	if args.URL == "" {
		return tools.Failure(fmt.Sprintf("Error: %s requires a non-empty \"url\" argument", tools.NameScrape)), nil
	}
	if u, err := url.Parse(args.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return tools.Failure(fmt.Sprintf("Error: %q is not an absolute http(s) url", args.URL)), nil
	}

	html, err := t.renderer.Render(ctx, args.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && ctxErr != context.DeadlineExceeded {
			return tools.Result{}, ctxErr
		}
		return tools.Failure(fmt.Sprintf("Scrape request failed: %v", err)), nil
	}

	text := htmltext.Extract(html)
	if utf8.RuneCountInString(text) <= t.threshold {
		return tools.Result{Text: text}, nil
	}

	objective := strings.TrimSpace(args.Objective)
	if objective == "" {
		objective = "the research objective"
	}

	utils.Info("Page text exceeds threshold, summarizing",
		"url", args.URL,
		"chars", utf8.RuneCountInString(text),
		"threshold", t.threshold)

	summary, err := t.summarizer.Summarize(ctx, objective, text)
	if err != nil {
		return tools.Result{}, fmt.Errorf("summarize %s: %w", args.URL, err)
	}
	return tools.Result{Text: summary}, nil
}
