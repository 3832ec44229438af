// Package debug записывает трассу прогона research-агента в JSON файл.
//
// Recorder подписывается на события агента (events.Emitter) и по
// завершении прогона сохраняет <logs_dir>/research_<run_id>.json.
package debug

import "time"

// DebugLog представляет полный трейс одного прогона.
type DebugLog struct {
	// RunID — идентификатор прогона (используется в имени файла)
	RunID string `json:"run_id"`

	// Timestamp — время начала прогона
	Timestamp time.Time `json:"timestamp"`

	// Objective — исходный запрос пользователя
	Objective string `json:"objective"`

	// Duration — общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	Iterations []Iteration `json:"iterations"`

	// Compactions — свёртки памяти за прогон
	Compactions []Compaction `json:"compactions,omitempty"`

	Summary Summary `json:"summary"`

	FinalResult string `json:"final_result,omitempty"`

	// Termination — "answer" или "max_iterations"
	Termination string `json:"termination,omitempty"`

	Error string `json:"error,omitempty"`
}

// Iteration один запрос решения у модели и вызванный по нему инструмент.
type Iteration struct {
	// Number — номер итерации (начиная с 1)
	Number int `json:"iteration"`

	Duration int64 `json:"duration_ms"`

	// ToolsExecuted — вызванный инструмент (не более одного)
	ToolsExecuted []ToolExecution `json:"tools_executed,omitempty"`

	// IsFinal — true если модель ответила без вызова инструмента
	IsFinal bool `json:"is_final,omitempty"`
}

// ToolExecution описывает выполнение одного инструмента.
type ToolExecution struct {
	Name string `json:"name"`

	// Args — аргументы (может быть обрезано по MaxResultSize)
	Args string `json:"args,omitempty"`

	// Result — результат (может быть обрезан по MaxResultSize)
	Result string `json:"result,omitempty"`

	ResultTruncated bool `json:"result_truncated,omitempty"`

	Duration int64 `json:"duration_ms"`

	// Success — false если результат описывает сбой
	Success bool `json:"success"`
}

// Compaction описывает одну свёртку памяти.
type Compaction struct {
	FoldedTurns  int `json:"folded_turns"`
	TokensBefore int `json:"tokens_before"`
	TokensAfter  int `json:"tokens_after"`
}

// Summary содержит агрегированную статистику прогона.
type Summary struct {
	TotalIterations    int      `json:"total_iterations"`
	TotalToolsExecuted int      `json:"total_tools_executed"`
	TotalToolDuration  int64    `json:"total_tool_duration_ms"`
	FailedTools        int      `json:"failed_tools"`
	VisitedTools       []string `json:"visited_tools,omitempty"`
}
