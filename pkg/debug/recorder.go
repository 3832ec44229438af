package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Recorder накапливает трассу прогона из событий агента.
//
// Потокобезопасен. Один Recorder обслуживает один прогон.
type Recorder struct {
	mu sync.Mutex

	config RecorderConfig
	log    DebugLog

	current      *Iteration
	iterStart    time.Time
	visitedTools map[string]struct{}
	savedPath    string
}

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// LogsDir — директория для сохранения логов
	LogsDir string

	// IncludeToolArgs — включать аргументы инструментов в лог
	IncludeToolArgs bool

	// IncludeToolResults — включать результаты инструментов в лог
	IncludeToolResults bool

	// MaxResultSize — максимальный размер результата в символах, 0 = без ограничений
	MaxResultSize int
}

// NewRecorder создаёт Recorder для прогона runID.
//
// Если LogsDir не существует, создаёт её.
func NewRecorder(cfg RecorderConfig, runID, objective string) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	return &Recorder{
		config: cfg,
		log: DebugLog{
			RunID:     runID,
			Timestamp: time.Now(),
			Objective: objective,
		},
		visitedTools: make(map[string]struct{}),
	}, nil
}

// Emit реализует events.Emitter.
//
// EventDone и EventError завершают прогон и записывают файл.
func (r *Recorder) Emit(_ context.Context, event events.Event) {
	switch data := event.Data.(type) {
	case events.ThinkingData:
		r.startIteration()
	case events.ToolResultData:
		r.recordTool(data)
	case events.CompactedData:
		r.mu.Lock()
		r.log.Compactions = append(r.log.Compactions, Compaction{
			FoldedTurns:  data.FoldedTurns,
			TokensBefore: data.TokensBefore,
			TokensAfter:  data.TokensAfter,
		})
		r.mu.Unlock()
	case events.DoneData:
		r.mu.Lock()
		if r.current != nil && len(r.current.ToolsExecuted) == 0 {
			r.current.IsFinal = true
		}
		r.log.FinalResult = data.Content
		r.log.Termination = data.Termination
		r.mu.Unlock()
		r.finish()
	case events.ErrorData:
		r.mu.Lock()
		if data.Err != nil {
			r.log.Error = data.Err.Error()
		}
		r.mu.Unlock()
		r.finish()
	}
}

func (r *Recorder) startIteration() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endIterationLocked()
	r.current = &Iteration{Number: len(r.log.Iterations) + 1}
	r.iterStart = time.Now()
}

func (r *Recorder) recordTool(data events.ToolResultData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}

	exec := ToolExecution{
		Name:     data.ToolName,
		Duration: data.Duration.Milliseconds(),
		Success:  !data.IsError,
	}
	if r.config.IncludeToolArgs {
		exec.Args = data.Args
	}
	if r.config.IncludeToolResults {
		exec.Result = data.Result
		if r.config.MaxResultSize > 0 {
			exec.Result = utils.TruncateRunes(data.Result, r.config.MaxResultSize, "... (truncated)")
			exec.ResultTruncated = exec.Result != data.Result
		}
	}

	r.current.ToolsExecuted = append(r.current.ToolsExecuted, exec)
	r.visitedTools[exec.Name] = struct{}{}
}

func (r *Recorder) endIterationLocked() {
	if r.current == nil {
		return
	}
	r.current.Duration = time.Since(r.iterStart).Milliseconds()
	r.log.Iterations = append(r.log.Iterations, *r.current)
	r.current = nil
}

// finish сохраняет трассу. Ошибка записи только логируется.
func (r *Recorder) finish() {
	path, err := r.Finalize()
	if err != nil {
		utils.Error("Failed to write debug trace", "error", err, "run_id", r.RunID())
		return
	}
	utils.Debug("Debug trace saved", "path", path)
}

// Finalize завершает запись и сохраняет лог в файл.
//
// Повторный вызов возвращает путь к уже сохранённому файлу.
func (r *Recorder) Finalize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.savedPath != "" {
		return r.savedPath, nil
	}

	r.endIterationLocked()
	r.log.Duration = time.Since(r.log.Timestamp).Milliseconds()
	r.buildSummary()

	data, err := json.MarshalIndent(r.log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal debug log: %w", err)
	}

	filePath := r.filePath()
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write debug log: %w", err)
	}

	r.savedPath = filePath
	return filePath, nil
}

// buildSummary формирует агрегированную статистику.
func (r *Recorder) buildSummary() {
	summary := Summary{
		TotalIterations: len(r.log.Iterations),
		VisitedTools:    make([]string, 0, len(r.visitedTools)),
	}
	for tool := range r.visitedTools {
		summary.VisitedTools = append(summary.VisitedTools, tool)
	}
	sort.Strings(summary.VisitedTools)

	for _, iter := range r.log.Iterations {
		for _, tool := range iter.ToolsExecuted {
			summary.TotalToolsExecuted++
			summary.TotalToolDuration += tool.Duration
			if !tool.Success {
				summary.FailedTools++
			}
		}
	}
	r.log.Summary = summary
}

func (r *Recorder) filePath() string {
	name := "research_" + r.log.RunID + ".json"
	if r.config.LogsDir != "" {
		return filepath.Join(r.config.LogsDir, name)
	}
	return name
}

// RunID возвращает идентификатор прогона.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.RunID
}

var _ events.Emitter = (*Recorder)(nil)
