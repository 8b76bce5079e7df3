package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/storage"
	"github.com/genimp/genimp/internal/storage/sqlite/migrations"
)

// LedgerFilename is the fixed name of the ledger file inside the run
// directory. Reopening the same directory resumes the previous ledger.
const LedgerFilename = "tasks.db"

// LedgerConfig is the configuration for the SQLite task ledger.
type LedgerConfig struct {
	// Directory is where the ledger file lives (created if needed).
	Directory string
	Logger    log.Logger
}

func (c *LedgerConfig) defaults() error {
	if c.Directory == "" {
		return fmt.Errorf("directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Ledger"})
	return nil
}

// Ledger is a SQLite implementation of storage.TaskLedger.
type Ledger struct {
	db     *sql.DB
	logger log.Logger
}

// NewLedger idempotently ensures a ledger exists under the configured
// directory and opens it. An already present ledger is opened unchanged.
func NewLedger(ctx context.Context, cfg LedgerConfig) (*Ledger, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("could not create ledger directory: %w: %w", err, model.ErrStorage)
	}

	dbPath := filepath.Join(cfg.Directory, LedgerFilename)
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open ledger: %w: %w", err, model.ErrStorage)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w: %w", err, model.ErrStorage)
	}

	cfg.Logger.Debugf("Task ledger initialized at %s", dbPath)

	return &Ledger{db: db, logger: cfg.Logger}, nil
}

// Close closes the ledger connection.
func (l *Ledger) Close() error { return l.db.Close() }

// RegisterTask inserts or relaunches a task with launch = start = now.
func (l *Ledger) RegisterTask(ctx context.Context, name string) error {
	query := `
		INSERT INTO pipeline_task (name, launch, start, "end", completed)
		VALUES (?, ?, ?, NULL, NULL)
		ON CONFLICT(name) DO UPDATE SET
			launch = excluded.launch,
			start = excluded.start,
			"end" = NULL,
			completed = NULL
	`

	now := time.Now().UTC().Unix()
	if _, err := l.db.ExecContext(ctx, query, name, now, now); err != nil {
		return fmt.Errorf("could not register task: %w", err)
	}

	l.logger.Debugf("Registered task: %s", name)
	return nil
}

// MarkCompleted records a successful local completion.
func (l *Ledger) MarkCompleted(ctx context.Context, name string) error {
	query := `UPDATE pipeline_task SET "end" = ?, completed = 1 WHERE name = ?`

	result, err := l.db.ExecContext(ctx, query, time.Now().UTC().Unix(), name)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	if err := requireRow(result, name); err != nil {
		return err
	}

	l.logger.Debugf("Completed task: %s", name)
	return nil
}

// MarkIncomplete flags a task that ran but did not succeed.
func (l *Ledger) MarkIncomplete(ctx context.Context, name string) error {
	query := `UPDATE pipeline_task SET "end" = NULL, completed = 0 WHERE name = ?`

	result, err := l.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	if err := requireRow(result, name); err != nil {
		return err
	}

	l.logger.Debugf("Marked task incomplete: %s", name)
	return nil
}

// MarkRemoteCompleted records a completion with scheduler-reported times.
func (l *Ledger) MarkRemoteCompleted(ctx context.Context, name string, launch, start, end time.Time) error {
	query := `UPDATE pipeline_task SET launch = ?, start = ?, "end" = ?, completed = 1 WHERE name = ?`

	result, err := l.db.ExecContext(ctx, query, launch.UTC().Unix(), start.UTC().Unix(), end.UTC().Unix(), name)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	if err := requireRow(result, name); err != nil {
		return err
	}

	l.logger.Debugf("Completed remote task: %s", name)
	return nil
}

// IsCompleted is true iff the stored completion flag is exactly 1. Missing
// rows and corrupted values resolve to false.
func (l *Ledger) IsCompleted(ctx context.Context, name string) (bool, error) {
	var completed sql.NullString
	err := l.db.QueryRowContext(ctx, `SELECT completed FROM pipeline_task WHERE name = ?`, name).Scan(&completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("could not query task: %w", err)
	}

	return completed.Valid && completed.String == "1", nil
}

// GetTask returns the stored task.
func (l *Ledger) GetTask(ctx context.Context, name string) (*model.Task, error) {
	query := `SELECT name, launch, start, "end", completed FROM pipeline_task WHERE name = ?`

	task, err := scanTask(l.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", name, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return task, nil
}

// TaskRuntime returns end minus start for an ended task.
func (l *Ledger) TaskRuntime(ctx context.Context, name string) (time.Duration, error) {
	task, err := l.GetTask(ctx, name)
	if err != nil {
		return 0, err
	}

	runtime, ok := task.Runtime()
	if !ok {
		return 0, fmt.Errorf("task %s has not ended: %w", name, model.ErrMissingData)
	}

	return runtime, nil
}

// AllRuntimes returns the runtime of every ended task.
func (l *Ledger) AllRuntimes(ctx context.Context) (map[string]time.Duration, error) {
	query := `SELECT name, start, "end" FROM pipeline_task WHERE "end" IS NOT NULL`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query runtimes: %w", err)
	}
	defer rows.Close()

	runtimes := map[string]time.Duration{}
	for rows.Next() {
		var name string
		var start, end int64
		if err := rows.Scan(&name, &start, &end); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runtimes[name] = time.Duration(end-start) * time.Second
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runtimes, nil
}

// ListTasks returns all recorded tasks ordered by name.
func (l *Ledger) ListTasks(ctx context.Context) ([]model.Task, error) {
	query := `SELECT name, launch, start, "end", completed FROM pipeline_task ORDER BY name ASC`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*model.Task, error) {
	var task model.Task
	var launch, start int64
	var end sql.NullInt64
	var completed sql.NullString

	if err := s.Scan(&task.Name, &launch, &start, &end, &completed); err != nil {
		return nil, err
	}

	task.LaunchAt = timeFromUnix(launch)
	task.StartAt = timeFromUnix(start)
	if end.Valid {
		t := timeFromUnix(end.Int64)
		task.EndAt = &t
	}

	// Anything but an explicit 0/1 flag (including corrupted values) reads
	// as "never finished".
	switch {
	case completed.Valid && completed.String == "1":
		task.State = model.TaskStateCompleted
	case completed.Valid && completed.String == "0":
		task.State = model.TaskStateIncomplete
	default:
		task.State = model.TaskStateRegistered
	}

	return &task, nil
}

func requireRow(result sql.Result, name string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", name, model.ErrNotFound)
	}
	return nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }

var _ storage.TaskLedger = (*Ledger)(nil)
