package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Completer часть движка рассуждений, нужная суммаризатору.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Prompt строит промпт map и reduce шагов для цели objective.
func Prompt(objective, text string) string {
	return fmt.Sprintf("Write a summary of the following text for %s:\n\"%s\"\nSUMMARY:", objective, text)
}

// truncatedLabel предваряет сводку, которую пришлось обрезать
// после исчерпания глубины рекурсии.
const truncatedLabel = "[Summary truncated: content still exceeded the summarization budget after %d passes]\n"

// Summarizer сворачивает длинный текст через map-reduce:
// каждый кусок суммаризируется отдельно, затем частичные сводки
// склеиваются и сводятся одним вызовом. Если склейка не влезает в
// бюджет одного вызова, к ней рекурсивно применяется тот же map-reduce.
type Summarizer struct {
	engine       Completer
	splitter     Splitter
	threshold    int
	maxCallChars int
	maxDepth     int
}

// New создаёт суммаризатор.
//
// threshold длина текста (в символах), до которой текст возвращается как есть.
func New(engine Completer, cfg config.SummarizerConfig, threshold int) *Summarizer {
	return &Summarizer{
		engine:       engine,
		splitter:     NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		threshold:    threshold,
		maxCallChars: cfg.MaxCallChars,
		maxDepth:     cfg.MaxDepth,
	}
}

// Summarize возвращает сводку content относительно objective.
//
// Текст не длиннее порога возвращается без изменений и без вызовов модели.
// Ошибка движка фатальна и возвращается как есть.
func (s *Summarizer) Summarize(ctx context.Context, objective, content string) (string, error) {
	if runeLen(content) <= s.threshold {
		return content, nil
	}

	utils.Debug("Summarizing content", "chars", runeLen(content), "objective", objective)

	summary, err := s.mapReduce(ctx, objective, content, 1)
	if err != nil {
		return "", err
	}
	return utils.TruncateRunes(summary, s.maxCallChars, "…"), nil
}

func (s *Summarizer) mapReduce(ctx context.Context, objective, text string, depth int) (string, error) {
	chunks := s.splitter.Split(text)

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		partial, err := s.engine.Complete(ctx, Prompt(objective, chunk))
		if err != nil {
			return "", fmt.Errorf("summarize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, partial)
	}

	combined := strings.Join(partials, "\n\n")

	if runeLen(combined) > s.maxCallChars {
		if depth >= s.maxDepth {
			utils.Warn("Summarization depth exhausted, truncating",
				"depth", depth,
				"chars", runeLen(combined))
			label := fmt.Sprintf(truncatedLabel, depth)
			return label + utils.TruncateRunes(combined, s.maxCallChars-runeLen(label), "…"), nil
		}
		utils.Debug("Partial summaries exceed call budget, reducing again",
			"depth", depth,
			"chars", runeLen(combined))
		return s.mapReduce(ctx, objective, combined, depth+1)
	}

	summary, err := s.engine.Complete(ctx, Prompt(objective, combined))
	if err != nil {
		return "", fmt.Errorf("summarize combine: %w", err)
	}
	return summary, nil
}
