// Package cluster submits tool stages to a job scheduler through a pair of
// user-configured adapter commands, so any qsub/sbatch-style scheduler can
// drive the pipeline without a scheduler-specific binding.
package cluster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/genimp/genimp/internal/log"
)

// Job is one unit of work handed to the scheduler.
type Job struct {
	Name    string
	Tool    string
	Args    []string
	WorkDir string
}

// JobHandle identifies a submitted job for later polling.
type JobHandle string

// Backend is a cluster job-submission backend. The scheduler reports its own
// start/end times, which may differ widely from local submission time.
type Backend interface {
	Submit(ctx context.Context, job Job) (JobHandle, error)
	PollCompletion(ctx context.Context, handle JobHandle) (completed bool, start, end time.Time, err error)
}

// BackendConfig is the configuration for the shell adapter backend.
type BackendConfig struct {
	Config Config
	Logger log.Logger
}

func (c *BackendConfig) defaults() error {
	if err := c.Config.validate(); err != nil {
		return err
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "cluster.Shell"})
	return nil
}

// ShellBackend implements Backend over two adapter commands:
//
//   - the submit command receives a generated job script path and must print
//     the scheduler job ID on its first stdout line;
//   - the status command receives that job ID and must print one line
//     "running", "failed", or "done <start-unix> <end-unix>".
type ShellBackend struct {
	config Config
	logger log.Logger
}

// NewShellBackend creates a new shell adapter backend.
func NewShellBackend(cfg BackendConfig) (*ShellBackend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ShellBackend{config: cfg.Config, logger: cfg.Logger}, nil
}

// Submit writes the job script and hands it to the submit command.
func (b *ShellBackend) Submit(ctx context.Context, job Job) (JobHandle, error) {
	scriptPath := filepath.Join(job.WorkDir, fmt.Sprintf("%s.%s.sh", job.Name, ulid.Make()))
	script := fmt.Sprintf("#!/bin/sh\ncd %s\nexec %s\n", shellQuote(job.WorkDir), commandLine(job.Tool, job.Args))
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("could not write job script: %w", err)
	}

	args := append(append([]string{}, b.config.SubmitCommand[1:]...), scriptPath)
	out, err := exec.CommandContext(ctx, b.config.SubmitCommand[0], args...).Output()
	if err != nil {
		return "", fmt.Errorf("could not submit job %s: %w", job.Name, err)
	}

	jobID, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if jobID == "" {
		return "", fmt.Errorf("submit command returned no job ID for %s", job.Name)
	}

	b.logger.Debugf("Submitted job %s as %s", job.Name, jobID)
	return JobHandle(jobID), nil
}

// PollCompletion asks the status command about the job.
func (b *ShellBackend) PollCompletion(ctx context.Context, handle JobHandle) (bool, time.Time, time.Time, error) {
	args := append(append([]string{}, b.config.StatusCommand[1:]...), string(handle))
	out, err := exec.CommandContext(ctx, b.config.StatusCommand[0], args...).Output()
	if err != nil {
		return false, time.Time{}, time.Time{}, fmt.Errorf("could not poll job %s: %w", handle, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, time.Time{}, time.Time{}, fmt.Errorf("status command returned no state for job %s", handle)
	}

	switch fields[0] {
	case "running":
		return false, time.Time{}, time.Time{}, nil
	case "failed":
		return false, time.Time{}, time.Time{}, fmt.Errorf("job %s failed", handle)
	case "done":
		if len(fields) != 3 {
			return false, time.Time{}, time.Time{}, fmt.Errorf("malformed done state %q for job %s", line, handle)
		}
		start, err1 := strconv.ParseInt(fields[1], 10, 64)
		end, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil {
			return false, time.Time{}, time.Time{}, fmt.Errorf("malformed done state %q for job %s", line, handle)
		}
		return true, time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC(), nil
	default:
		return false, time.Time{}, time.Time{}, fmt.Errorf("unknown job state %q for job %s", fields[0], handle)
	}
}

func commandLine(tool string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(tool))
	for _, arg := range args {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}

// shellQuote single-quotes a string for POSIX sh, so `$`, backticks and
// backslashes stay literal.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var _ Backend = (*ShellBackend)(nil)
