package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/storage"
)

// LedgerConfig is the configuration for the memory ledger.
type LedgerConfig struct {
	Logger log.Logger
}

func (c *LedgerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Ledger is an in-memory implementation of storage.TaskLedger, used in tests
// and dry runs.
type Ledger struct {
	tasks  map[string]model.Task
	mu     sync.RWMutex
	logger log.Logger
}

// NewLedger creates a new memory ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Ledger{
		tasks:  map[string]model.Task{},
		logger: cfg.Logger,
	}, nil
}

// RegisterTask inserts or relaunches a task.
func (l *Ledger) RegisterTask(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	l.tasks[name] = model.Task{
		Name:     name,
		State:    model.TaskStateRegistered,
		LaunchAt: now,
		StartAt:  now,
	}

	l.logger.Debugf("Registered task: %s", name)
	return nil
}

// MarkCompleted records a successful local completion.
func (l *Ledger) MarkCompleted(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[name]
	if !ok {
		return fmt.Errorf("task %s: %w", name, model.ErrNotFound)
	}

	now := time.Now().UTC()
	task.State = model.TaskStateCompleted
	task.EndAt = &now
	l.tasks[name] = task

	return nil
}

// MarkIncomplete flags a task that ran but did not succeed.
func (l *Ledger) MarkIncomplete(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[name]
	if !ok {
		return fmt.Errorf("task %s: %w", name, model.ErrNotFound)
	}

	task.State = model.TaskStateIncomplete
	task.EndAt = nil
	l.tasks[name] = task

	return nil
}

// MarkRemoteCompleted records a completion with scheduler-reported times.
func (l *Ledger) MarkRemoteCompleted(ctx context.Context, name string, launch, start, end time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[name]
	if !ok {
		return fmt.Errorf("task %s: %w", name, model.ErrNotFound)
	}

	endAt := end.UTC()
	task.State = model.TaskStateCompleted
	task.LaunchAt = launch.UTC()
	task.StartAt = start.UTC()
	task.EndAt = &endAt
	l.tasks[name] = task

	return nil
}

// IsCompleted is true iff the task finished successfully.
func (l *Ledger) IsCompleted(ctx context.Context, name string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	task, ok := l.tasks[name]
	if !ok {
		return false, nil
	}

	return task.Completed(), nil
}

// GetTask returns the stored task.
func (l *Ledger) GetTask(ctx context.Context, name string) (*model.Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	task, ok := l.tasks[name]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", name, model.ErrNotFound)
	}

	taskCopy := task
	return &taskCopy, nil
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

	return runtime.Round(time.Second), nil
}

// AllRuntimes returns the runtime of every ended task.
func (l *Ledger) AllRuntimes(ctx context.Context) (map[string]time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	runtimes := map[string]time.Duration{}
	for name, task := range l.tasks {
		if runtime, ok := task.Runtime(); ok {
			runtimes[name] = runtime.Round(time.Second)
		}
	}

	return runtimes, nil
}

// ListTasks returns all recorded tasks ordered by name.
func (l *Ledger) ListTasks(ctx context.Context) ([]model.Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tasks := make([]model.Task, 0, len(l.tasks))
	for _, task := range l.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	return tasks, nil
}

var _ storage.TaskLedger = (*Ledger)(nil)
