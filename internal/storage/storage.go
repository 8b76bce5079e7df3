package storage

import (
	"context"
	"time"

	"github.com/genimp/genimp/internal/model"
)

// TaskLedger is the durable record of pipeline task completion. It is the
// single source of truth for "has this unit of work already succeeded", and
// what makes a killed run resumable.
type TaskLedger interface {
	// RegisterTask inserts the task with launch = start = now and no
	// outcome. Registering an existing name is a relaunch: launch/start are
	// refreshed and any previous outcome is cleared.
	RegisterTask(ctx context.Context, name string) error

	// MarkCompleted records a successful local completion (end = now).
	MarkCompleted(ctx context.Context, name string) error

	// MarkIncomplete flags a task that ran but did not succeed. No end time
	// is recorded.
	MarkIncomplete(ctx context.Context, name string) error

	// MarkRemoteCompleted records a successful completion with the
	// timestamps reported by a cluster scheduler instead of locally
	// observed wall-clock times.
	MarkRemoteCompleted(ctx context.Context, name string, launch, start, end time.Time) error

	// IsCompleted is true iff the task finished successfully. Unknown tasks
	// and corrupted completion values resolve to false, never to an error.
	IsCompleted(ctx context.Context, name string) (bool, error)

	// GetTask returns the stored task, or model.ErrNotFound.
	GetTask(ctx context.Context, name string) (*model.Task, error)

	// TaskRuntime returns end minus start for an ended task.
	TaskRuntime(ctx context.Context, name string) (time.Duration, error)

	// AllRuntimes returns the runtime of every ended task.
	AllRuntimes(ctx context.Context) (map[string]time.Duration, error)

	// ListTasks returns all recorded tasks ordered by name.
	ListTasks(ctx context.Context) ([]model.Task, error)
}
