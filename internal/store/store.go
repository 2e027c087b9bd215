// Package store provides SQLite-backed persistence for schedule runs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/plancraft/plancraft/internal/models"
)

// Run is one persisted scheduling run.
type Run struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Algorithm    string    `json:"algorithm"`
	Strategy     string    `json:"strategy"`
	TaskCount    int       `json:"task_count"`
	WarningCount int       `json:"warning_count"`
}

// Store provides access to the plancraft SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		algorithm TEXT NOT NULL,
		strategy TEXT,
		task_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_tasks (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		duration_days REAL NOT NULL,
		resources TEXT,
		PRIMARY KEY (run_id, task_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_run_tasks_run ON run_tasks(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a scheduling result and returns the run id.
func (s *Store) SaveRun(result *models.Result) (string, error) {
	runID := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, created_at, algorithm, strategy, task_count, warning_count) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, now, result.Metadata["algorithm"], result.Metadata["strategy"],
		len(result.ScheduledTasks), len(result.Warnings),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, st := range result.ScheduledTasks {
		_, err = tx.Exec(
			`INSERT INTO run_tasks (run_id, task_id, start_date, end_date, duration_days, resources) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, st.TaskID, st.StartDate, st.EndDate, st.DurationDays, strings.Join(st.Resources, ","),
		)
		if err != nil {
			return "", fmt.Errorf("insert run task %s: %w", st.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// GetRun loads a run and its scheduled tasks.
func (s *Store) GetRun(runID string) (*Run, []models.ScheduledTask, error) {
	var run Run
	err := s.db.QueryRow(
		`SELECT id, created_at, algorithm, strategy, task_count, warning_count FROM runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &run.CreatedAt, &run.Algorithm, &run.Strategy, &run.TaskCount, &run.WarningCount)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT task_id, start_date, end_date, duration_days, resources FROM run_tasks WHERE run_id = ? ORDER BY start_date, task_id`,
		runID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("get run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.ScheduledTask
	for rows.Next() {
		var st models.ScheduledTask
		var resources string
		if err := rows.Scan(&st.TaskID, &st.StartDate, &st.EndDate, &st.DurationDays, &resources); err != nil {
			return nil, nil, fmt.Errorf("scan run task: %w", err)
		}
		if resources != "" {
			st.Resources = strings.Split(resources, ",")
		}
		tasks = append(tasks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return &run, tasks, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, algorithm, strategy, task_count, warning_count FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Algorithm, &run.Strategy, &run.TaskCount, &run.WarningCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
