package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/runner"
)

// RunnerConfig is the configuration for the local subprocess runner.
type RunnerConfig struct {
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Local"})
	return nil
}

// Runner runs tools as local synchronous subprocesses, capturing their
// combined output next to the stage outputs in the working directory.
type Runner struct {
	logger log.Logger
}

// NewRunner creates a new local runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{logger: cfg.Logger}, nil
}

// Run executes the tool in workDir and waits for it.
func (r *Runner) Run(ctx context.Context, tool string, args []string, workDir string) error {
	logPath := filepath.Join(workDir, filepath.Base(tool)+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("could not create tool log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	r.logger.Debugf("Running %s %v in %s", tool, args, workDir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed (see %s): %w", tool, logPath, err)
	}

	return nil
}

var _ runner.Runner = (*Runner)(nil)
