package run_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genimp/genimp/internal/app/run"
	"github.com/genimp/genimp/internal/genome"
	"github.com/genimp/genimp/internal/log/logtest"
	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/runner/cluster"
	"github.com/genimp/genimp/internal/storage/memory"
)

// writeLengthsCache writes a chromosome length cache where every required
// chromosome has the given length, so tests can plan tiny segments.
func writeLengthsCache(t *testing.T, runDir string, length int) {
	t.Helper()

	content := ""
	for _, label := range model.LengthChromosomes() {
		content += fmt.Sprintf("%s\t%d\n", label, length)
	}
	require.NoError(t, os.WriteFile(filepath.Join(runDir, genome.LengthsFilename), []byte(content), 0o644))
}

type runnerCall struct {
	tool    string
	args    []string
	workDir string
}

// fakeRunner records invocations and fabricates the output file named by the
// "-o" flag, standing in for the real tools.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []runnerCall
	failOn string
}

func (r *fakeRunner) Run(ctx context.Context, tool string, args []string, workDir string) error {
	r.mu.Lock()
	r.calls = append(r.calls, runnerCall{tool: tool, args: args, workDir: workDir})
	r.mu.Unlock()

	if tool == r.failOn {
		return fmt.Errorf("%s crashed", tool)
	}

	return writeOutputFlag(args, workDir)
}

func writeOutputFlag(args []string, workDir string) error {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			name := args[i+1]
			return os.WriteFile(filepath.Join(workDir, name), []byte(name+"\n"), 0o644)
		}
	}
	return nil
}

func newMemoryLedger(t *testing.T) *memory.Ledger {
	t.Helper()
	ledger, err := memory.NewLedger(memory.LedgerConfig{})
	require.NoError(t, err)
	return ledger
}

func TestRunExecutesAllStagesAndMerges(t *testing.T) {
	ctx := context.Background()
	runDir := t.TempDir()
	writeLengthsCache(t, runDir, 10)

	ledger := newMemoryLedger(t)
	fake := &fakeRunner{}
	svc, err := run.NewService(run.ServiceConfig{Ledger: ledger, Runner: fake})
	require.NoError(t, err)

	err = svc.Run(ctx, run.RunOptions{
		RunDir:      runDir,
		SegmentSize: 5,
		Chromosomes: []string{"1"},
	})
	require.NoError(t, err)

	// Two segments, three stages each.
	require.Len(t, fake.calls, 6)
	assert.Equal(t, "plink", fake.calls[0].tool)
	assert.Equal(t, "shapeit", fake.calls[1].tool)
	assert.Equal(t, "impute2", fake.calls[2].tool)

	for _, name := range []string{
		"convert_chr1.1_5", "phase_chr1.1_5", "impute_chr1.1_5",
		"convert_chr1.6_10", "phase_chr1.6_10", "impute_chr1.6_10",
		"merge_chr1",
	} {
		done, err := ledger.IsCompleted(ctx, name)
		require.NoError(t, err)
		assert.True(t, done, "task %s", name)
	}

	// The merged output concatenates the segment outputs in genome order.
	merged, err := os.ReadFile(filepath.Join(runDir, "chr1", "final_impute2", "chr1.imputed.impute2"))
	require.NoError(t, err)
	assert.Equal(t, "chr1.1_5.impute2\nchr1.6_10.impute2\n", string(merged))
}

func TestRunChromosomeXUsesNumericNaming(t *testing.T) {
	ctx := context.Background()
	runDir := t.TempDir()
	writeLengthsCache(t, runDir, 10)

	ledger := newMemoryLedger(t)
	fake := &fakeRunner{}
	svc, err := run.NewService(run.ServiceConfig{Ledger: ledger, Runner: fake})
	require.NoError(t, err)

	err = svc.Run(ctx, run.RunOptions{
		RunDir:      runDir,
		SegmentSize: 5,
		Chromosomes: []string{"X"},
	})
	require.NoError(t, err)

	// X is carried as 23 in every task name and segment file, so the
	// genome-order merge pattern matches and the run completes.
	for _, name := range []string{
		"convert_chr23.1_5", "impute_chr23.6_10", "merge_chr23",
	} {
		done, err := ledger.IsCompleted(ctx, name)
		require.NoError(t, err)
		assert.True(t, done, "task %s", name)
	}

	merged, err := os.ReadFile(filepath.Join(runDir, "chr23", "final_impute2", "chr23.imputed.impute2"))
	require.NoError(t, err)
	assert.Equal(t, "chr23.1_5.impute2\nchr23.6_10.impute2\n", string(merged))
}

func TestRunSkipsCompletedTasks(t *testing.T) {
	ctx := context.Background()
	runDir := t.TempDir()
	writeLengthsCache(t, runDir, 10)

	ledger := newMemoryLedger(t)

	// A previous run already finished every stage of the first segment.
	for _, name := range []string{"convert_chr1.1_5", "phase_chr1.1_5", "impute_chr1.1_5"} {
		require.NoError(t, ledger.RegisterTask(ctx, name))
		require.NoError(t, ledger.MarkCompleted(ctx, name))
	}

	fake := &fakeRunner{}
	svc, err := run.NewService(run.ServiceConfig{Ledger: ledger, Runner: fake})
	require.NoError(t, err)

	err = svc.Run(ctx, run.RunOptions{
		RunDir:      runDir,
		SegmentSize: 5,
		Chromosomes: []string{"1"},
	})
	require.NoError(t, err)

	// Only the second segment's stages actually ran.
	require.Len(t, fake.calls, 3)
	assert.Equal(t, "impute2", fake.calls[2].tool)
}

func TestRunStageFailureAborts(t *testing.T) {
	ctx := context.Background()
	runDir := t.TempDir()
	writeLengthsCache(t, runDir, 10)

	ledger := newMemoryLedger(t)
	fake := &fakeRunner{failOn: "shapeit"}
	svc, err := run.NewService(run.ServiceConfig{Ledger: ledger, Runner: fake})
	require.NoError(t, err)

	err = svc.Run(ctx, run.RunOptions{
		RunDir:      runDir,
		SegmentSize: 5,
		Chromosomes: []string{"1"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "phase_chr1.1_5")

	// The convert stage completed, the phase stage is recorded incomplete.
	task, err := ledger.GetTask(ctx, "convert_chr1.1_5")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateCompleted, task.State)

	task, err = ledger.GetTask(ctx, "phase_chr1.1_5")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateIncomplete, task.State)

	// Nothing past the failure ran.
	require.Len(t, fake.calls, 2)
}

func TestRunSegmentSizeWarnings(t *testing.T) {
	tests := map[string]struct {
		segmentSize int
		warning     string
	}{
		"above 5Mb": {segmentSize: 6_000_000, warning: "segment length (6000000 bp) is more than 5Mb"},
		"below 1kb": {segmentSize: 10, warning: "segment length (10 bp) is too small"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			runDir := t.TempDir()
			writeLengthsCache(t, runDir, 10)

			recorder := logtest.NewRecorder()
			svc, err := run.NewService(run.ServiceConfig{
				Ledger: newMemoryLedger(t),
				Runner: &fakeRunner{},
				Logger: recorder,
			})
			require.NoError(t, err)

			err = svc.Run(context.Background(), run.RunOptions{
				RunDir:      runDir,
				SegmentSize: test.segmentSize,
				Chromosomes: []string{"1"},
			})
			require.NoError(t, err)

			require.NotEmpty(t, recorder.Warnings)
			assert.Contains(t, recorder.Warnings[0], test.warning)
		})
	}
}

func TestRunInvalidSegmentSize(t *testing.T) {
	svc, err := run.NewService(run.ServiceConfig{
		Ledger: newMemoryLedger(t),
		Runner: &fakeRunner{},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background(), run.RunOptions{
		RunDir:      t.TempDir(),
		SegmentSize: -5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidData)
	assert.ErrorContains(t, err, "invalid segment length")
}

// fakeBackend completes every job on the second poll with fixed scheduler
// times, creating the "-o" output like the real tools would.
type fakeBackend struct {
	mu      sync.Mutex
	polls   map[cluster.JobHandle]int
	submits int
	start   time.Time
	end     time.Time
}

func (b *fakeBackend) Submit(ctx context.Context, job cluster.Job) (cluster.JobHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits++
	if err := writeOutputFlag(job.Args, job.WorkDir); err != nil {
		return "", err
	}
	return cluster.JobHandle(job.Name), nil
}

func (b *fakeBackend) PollCompletion(ctx context.Context, handle cluster.JobHandle) (bool, time.Time, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls[handle]++
	if b.polls[handle] < 2 {
		return false, time.Time{}, time.Time{}, nil
	}
	return true, b.start, b.end, nil
}

func TestRunClusterModeRecordsSchedulerTimes(t *testing.T) {
	ctx := context.Background()
	runDir := t.TempDir()
	writeLengthsCache(t, runDir, 5)

	start := time.Unix(1_700_000_100, 0).UTC()
	backend := &fakeBackend{
		polls: map[cluster.JobHandle]int{},
		start: start,
		end:   start.Add(3 * time.Second),
	}

	ledger := newMemoryLedger(t)
	svc, err := run.NewService(run.ServiceConfig{
		Ledger:       ledger,
		Cluster:      backend,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	err = svc.Run(ctx, run.RunOptions{
		RunDir:      runDir,
		SegmentSize: 5,
		Chromosomes: []string{"1"},
	})
	require.NoError(t, err)

	// One segment, three stages submitted.
	assert.Equal(t, 3, backend.submits)

	task, err := ledger.GetTask(ctx, "impute_chr1.1_5")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateCompleted, task.State)
	assert.Equal(t, start, task.StartAt)

	runtime, err := ledger.TaskRuntime(ctx, "impute_chr1.1_5")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, runtime)
}
