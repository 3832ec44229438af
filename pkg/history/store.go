// Package history хранит журнал research-прогонов в SQLite.
//
// Store подключается к агенту как events.Emitter: цель запоминается
// на первом EventThinking, запись сохраняется на EventDone или EventError.
// Журнал читается HTTP фронтом (GET /runs).
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// ErrNotFound возвращается, когда прогона с таким ID нет.
var ErrNotFound = errors.New("run not found")

// Run запись о завершённом прогоне.
type Run struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	Answer      string        `json:"answer,omitempty"`
	Termination string        `json:"termination,omitempty"`
	Error       string        `json:"error,omitempty"`
	Iterations  int           `json:"iterations"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	answer      TEXT NOT NULL DEFAULT '',
	termination TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	iterations  INTEGER NOT NULL DEFAULT 0,
	started_at  INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`

// pendingRun прогон, начавшийся, но ещё не завершённый.
type pendingRun struct {
	query     string
	startedAt time.Time
}

// Store журнал прогонов.
//
// Thread-safe.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	pending map[string]pendingRun
}

// Open открывает (или создаёт) базу по path и применяет схему.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// SQLite не любит параллельных писателей
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{
		db:      db,
		pending: make(map[string]pendingRun),
	}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Emit реализует events.Emitter.
//
// Ошибки записи логируются и не прерывают прогон.
func (s *Store) Emit(ctx context.Context, event events.Event) {
	if event.RunID == "" {
		return
	}

	switch data := event.Data.(type) {
	case events.ThinkingData:
		s.mu.Lock()
		if _, ok := s.pending[event.RunID]; !ok {
			s.pending[event.RunID] = pendingRun{query: data.Objective, startedAt: event.Timestamp}
		}
		s.mu.Unlock()

	case events.DoneData:
		s.complete(ctx, event, func(r *Run) {
			r.Answer = data.Content
			r.Termination = data.Termination
			r.Iterations = data.Iterations
		})

	case events.ErrorData:
		s.complete(ctx, event, func(r *Run) {
			if data.Err != nil {
				r.Error = data.Err.Error()
			}
		})
	}
}

// complete снимает прогон из pending и сохраняет его.
func (s *Store) complete(ctx context.Context, event events.Event, fill func(*Run)) {
	s.mu.Lock()
	p, ok := s.pending[event.RunID]
	delete(s.pending, event.RunID)
	s.mu.Unlock()
	if !ok {
		return
	}

	run := Run{
		ID:        event.RunID,
		Query:     p.query,
		StartedAt: p.startedAt,
		Duration:  event.Timestamp.Sub(p.startedAt),
	}
	fill(&run)

	// Прогон мог завершиться именно отменой ctx, запись всё равно нужна
	if err := s.Save(context.WithoutCancel(ctx), run); err != nil {
		utils.Warn("Failed to save run history", "run_id", run.ID, "error", err)
	}
}

// Save записывает прогон, перезаписывая запись с тем же ID.
func (s *Store) Save(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, query, answer, termination, error, iterations, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.Answer, run.Termination, run.Error,
		run.Iterations, run.StartedAt.UnixNano(), int64(run.Duration))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Get возвращает прогон по ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, query, answer, termination, error, iterations, started_at, duration_ns
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run %s: %w", id, err)
	}
	return run, nil
}

// List возвращает последние limit прогонов, новые первыми.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, answer, termination, error, iterations, started_at, duration_ns
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		startedAt int64
		duration  int64
	)
	err := row.Scan(&run.ID, &run.Query, &run.Answer, &run.Termination, &run.Error,
		&run.Iterations, &startedAt, &duration)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(0, startedAt)
	run.Duration = time.Duration(duration)
	return run, nil
}

var _ events.Emitter = (*Store)(nil)
