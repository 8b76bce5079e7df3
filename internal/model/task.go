package model

import (
	"time"
)

// TaskState represents the lifecycle state of a pipeline task.
type TaskState string

const (
	// TaskStateRegistered means the task has been launched but has not
	// reported an outcome yet.
	TaskStateRegistered TaskState = "registered"
	// TaskStateCompleted means the task finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateIncomplete means the task ran but did not succeed.
	TaskStateIncomplete TaskState = "incomplete"
)

// Task is a named unit of pipeline work recorded in the ledger.
//
// LaunchAt is set when the task is first registered, StartAt equals LaunchAt
// unless a cluster scheduler later reported a distinct start time, and EndAt
// is only present once the task reached a terminal state. Re-registering a
// task resets it to TaskStateRegistered with fresh launch/start times.
type Task struct {
	Name     string
	State    TaskState
	LaunchAt time.Time
	StartAt  time.Time
	EndAt    *time.Time
}

// Runtime returns the task wall time (end minus start). The second return
// value is false when the task has not ended.
func (t Task) Runtime() (time.Duration, bool) {
	if t.EndAt == nil {
		return 0, false
	}
	return t.EndAt.Sub(t.StartAt), true
}

// Completed reports whether the task finished successfully.
func (t Task) Completed() bool { return t.State == TaskStateCompleted }
