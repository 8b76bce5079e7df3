package cluster_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/runner/cluster"
)

func newBackend(t *testing.T, submit, status []string) *cluster.ShellBackend {
	t.Helper()
	backend, err := cluster.NewShellBackend(cluster.BackendConfig{
		Config: cluster.Config{
			SubmitCommand: submit,
			StatusCommand: status,
		},
	})
	require.NoError(t, err)
	return backend
}

func TestShellBackendSubmit(t *testing.T) {
	workDir := t.TempDir()
	backend := newBackend(t,
		[]string{"sh", "-c", "echo job-42"},
		[]string{"sh", "-c", "echo running"},
	)

	handle, err := backend.Submit(context.Background(), cluster.Job{
		Name:    "impute_chr1.1_5000000",
		Tool:    "impute2",
		Args:    []string{"-int", "1", "5000000"},
		WorkDir: workDir,
	})
	require.NoError(t, err)
	assert.Equal(t, cluster.JobHandle("job-42"), handle)

	// The job script exists and wraps the tool invocation.
	scripts, err := filepath.Glob(filepath.Join(workDir, "impute_chr1.1_5000000.*.sh"))
	require.NoError(t, err)
	require.Len(t, scripts, 1)

	script, err := os.ReadFile(scripts[0])
	require.NoError(t, err)
	assert.Contains(t, string(script), "#!/bin/sh")
	assert.Contains(t, string(script), `'impute2' '-int' '1' '5000000'`)
}

func TestShellBackendSubmitQuotesShellMetacharacters(t *testing.T) {
	workDir := t.TempDir()
	backend := newBackend(t,
		[]string{"sh", "-c", "echo job-7"},
		[]string{"sh", "-c", "echo running"},
	)

	_, err := backend.Submit(context.Background(), cluster.Job{
		Name:    "convert_chr1.1_5000000",
		Tool:    "plink",
		Args:    []string{"--out", "a$b`c\\d", "--note", "it's fine"},
		WorkDir: workDir,
	})
	require.NoError(t, err)

	scripts, err := filepath.Glob(filepath.Join(workDir, "convert_chr1.1_5000000.*.sh"))
	require.NoError(t, err)
	require.Len(t, scripts, 1)

	// Arguments are single-quoted so the shell takes $, backticks and
	// backslashes literally; embedded quotes use the '\'' escape.
	script, err := os.ReadFile(scripts[0])
	require.NoError(t, err)
	assert.Contains(t, string(script), "'a$b`c\\d'")
	assert.Contains(t, string(script), `'it'\''s fine'`)
}

func TestShellBackendSubmitNoJobID(t *testing.T) {
	backend := newBackend(t,
		[]string{"sh", "-c", "true"},
		[]string{"sh", "-c", "echo running"},
	)

	_, err := backend.Submit(context.Background(), cluster.Job{
		Name:    "phase_chr2.1_5000000",
		Tool:    "shapeit",
		WorkDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no job ID")
}

func TestShellBackendPollCompletion(t *testing.T) {
	tests := map[string]struct {
		statusOutput string
		completed    bool
		start        time.Time
		end          time.Time
		expectErr    string
	}{
		"still running": {
			statusOutput: "echo running",
		},
		"done with scheduler times": {
			statusOutput: "echo done 1700000100 1700000103",
			completed:    true,
			start:        time.Unix(1_700_000_100, 0).UTC(),
			end:          time.Unix(1_700_000_103, 0).UTC(),
		},
		"failed": {
			statusOutput: "echo failed",
			expectErr:    "failed",
		},
		"unknown state": {
			statusOutput: "echo pending",
			expectErr:    "unknown job state",
		},
		"malformed done": {
			statusOutput: "echo done soon",
			expectErr:    "malformed done state",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			backend := newBackend(t,
				[]string{"sh", "-c", "echo job-1"},
				[]string{"sh", "-c", test.statusOutput},
			)

			completed, start, end, err := backend.PollCompletion(context.Background(), "job-1")
			if test.expectErr != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, test.expectErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.completed, completed)
			assert.Equal(t, test.start, start)
			assert.Equal(t, test.end, end)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	content := `
submit_command: ["qsub"]
status_command: ["qstat", "-f"]
poll_interval_seconds: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := cluster.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"qsub"}, cfg.SubmitCommand)
	assert.Equal(t, []string{"qstat", "-f"}, cfg.StatusCommand)
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	content := `
submit_command: ["sbatch"]
status_command: ["squeue"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := cluster.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("no path", func(t *testing.T) {
		_, err := cluster.LoadConfig("")
		assert.ErrorIs(t, err, model.ErrConfiguration)
		assert.ErrorContains(t, err, "cluster configuration file was not provided, but cluster mode is used")
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope.yaml")
		_, err := cluster.LoadConfig(path)
		assert.ErrorIs(t, err, model.ErrMissingFile)
		assert.ErrorContains(t, err, "no such file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cluster.yaml")
		require.NoError(t, os.WriteFile(path, []byte("submit_command: [unclosed"), 0o644))
		_, err := cluster.LoadConfig(path)
		assert.ErrorIs(t, err, model.ErrInvalidData)
	})

	t.Run("missing commands", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cluster.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`submit_command: ["qsub"]`), 0o644))
		_, err := cluster.LoadConfig(path)
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})
}
