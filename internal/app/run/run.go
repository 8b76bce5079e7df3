package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/genimp/genimp/internal/genome"
	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/reference"
	"github.com/genimp/genimp/internal/runner"
	"github.com/genimp/genimp/internal/runner/cluster"
	"github.com/genimp/genimp/internal/storage"
)

const (
	// DefaultSegmentSize is the default imputation segment length in bases.
	DefaultSegmentSize = 5_000_000

	segmentSizeWarnHigh = 5_000_000
	segmentSizeWarnLow  = 1_000
)

// ToolSet names the three external tool binaries driven per segment.
type ToolSet struct {
	Convert string
	Phase   string
	Impute  string
}

func (t *ToolSet) defaults() {
	if t.Convert == "" {
		t.Convert = "plink"
	}
	if t.Phase == "" {
		t.Phase = "shapeit"
	}
	if t.Impute == "" {
		t.Impute = "impute2"
	}
}

// ServiceConfig is the configuration for the pipeline run service.
type ServiceConfig struct {
	Ledger storage.TaskLedger
	// Runner executes tool stages locally. Ignored when Cluster is set.
	Runner runner.Runner
	// Cluster, when set, dispatches tool stages to a job scheduler.
	Cluster cluster.Backend
	// PollInterval is how often cluster jobs are polled for completion.
	PollInterval time.Duration
	// Reference, when set, is used to resolve chromosome encodings;
	// chromosomes absent from the reference are skipped.
	Reference reference.Reference
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Ledger == nil {
		return fmt.Errorf("ledger is required")
	}
	if c.Runner == nil && c.Cluster == nil {
		return fmt.Errorf("a runner or a cluster backend is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	return nil
}

// Service orchestrates the imputation pipeline: it plans segments, skips
// work already recorded as completed in the ledger, dispatches the rest to
// the external tools and records completion back.
type Service struct {
	ledger       storage.TaskLedger
	runner       runner.Runner
	cluster      cluster.Backend
	pollInterval time.Duration
	ref          reference.Reference
	logger       log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		ledger:       cfg.Ledger,
		runner:       cfg.Runner,
		cluster:      cfg.Cluster,
		pollInterval: cfg.PollInterval,
		ref:          cfg.Reference,
		logger:       cfg.Logger,
	}, nil
}

// RunOptions are the options for a pipeline run.
type RunOptions struct {
	// RunDir holds all pipeline inputs and outputs, including the ledger
	// and the chromosome length cache.
	RunDir string
	// SegmentSize is the segment length in bases.
	SegmentSize int
	// Chromosomes to process. Defaults to the autosomes.
	Chromosomes []string
	Tools       ToolSet
}

func (o *RunOptions) defaults() error {
	if o.RunDir == "" {
		return fmt.Errorf("run directory is required")
	}
	if o.SegmentSize == 0 {
		o.SegmentSize = DefaultSegmentSize
	}
	if o.SegmentSize < 0 {
		return fmt.Errorf("%d: invalid segment length: %w", o.SegmentSize, model.ErrInvalidData)
	}
	if len(o.Chromosomes) == 0 {
		o.Chromosomes = model.Autosomes()
	}
	o.Tools.defaults()
	return nil
}

// Run executes the pipeline, resuming from whatever the ledger already
// records as completed.
func (s *Service) Run(ctx context.Context, opts RunOptions) error {
	if err := opts.defaults(); err != nil {
		return err
	}

	if opts.SegmentSize > segmentSizeWarnHigh {
		s.logger.Warningf("segment length (%d bp) is more than 5Mb", opts.SegmentSize)
	} else if opts.SegmentSize < segmentSizeWarnLow {
		s.logger.Warningf("segment length (%d bp) is too small", opts.SegmentSize)
	}

	lengths, err := genome.LoadChromosomeLengths(opts.RunDir, s.logger)
	if err != nil {
		return err
	}

	var encoding map[string]string
	if s.ref != nil {
		encoding = genome.ResolveChromosomeEncoding(s.ref, s.logger)
	}

	for _, chromosome := range opts.Chromosomes {
		// Task names, directories and segment files all use the numeric
		// form (X=23, Y=24); the length table stores the letter form.
		numeric, lengthLabel := chromosomeForms(chromosome)
		if encoding != nil {
			if _, ok := encoding[numeric]; !ok {
				s.logger.Debugf("chr%s: skipping, not resolvable in reference", chromosome)
				continue
			}
		}

		length, ok := lengths[lengthLabel]
		if !ok {
			return fmt.Errorf("missing chromosomes: %s: %w", lengthLabel, model.ErrMissingData)
		}

		if err := s.runChromosome(ctx, opts, numeric, length); err != nil {
			return err
		}
	}

	s.logger.Infof("Pipeline run finished")
	return nil
}

func (s *Service) runChromosome(ctx context.Context, opts RunOptions, chromosome string, length int) error {
	segments, err := genome.PlanSegments(chromosome, length, opts.SegmentSize)
	if err != nil {
		return err
	}

	chromDir := filepath.Join(opts.RunDir, "chr"+chromosome)
	if err := os.MkdirAll(chromDir, 0o755); err != nil {
		return fmt.Errorf("could not create chromosome directory: %w", err)
	}

	s.logger.Infof("chr%s: %d segments", chromosome, len(segments))

	for _, segment := range segments {
		for _, stage := range stages(opts.Tools, segment) {
			taskName := stage.name + "_" + segment.Region()
			if err := s.runTask(ctx, taskName, stage.tool, stage.args, chromDir); err != nil {
				return err
			}
		}
	}

	return s.mergeChromosome(ctx, opts.RunDir, chromosome)
}

type stage struct {
	name string
	tool string
	args []string
}

// stages builds the per-segment tool invocations: convert the study panel
// slice, phase it, then impute against the reference panel.
func stages(tools ToolSet, segment model.Segment) []stage {
	region := segment.Region()
	start := strconv.Itoa(segment.Start)
	end := strconv.Itoa(segment.End)

	return []stage{
		{
			name: "convert",
			tool: tools.Convert,
			args: []string{
				"--noweb", "--bfile", filepath.Join("..", "study"),
				"--chr", segment.Chromosome, "--from-bp", start, "--to-bp", end,
				"--make-bed", "--out", region,
			},
		},
		{
			name: "phase",
			tool: tools.Phase,
			args: []string{"-B", region, "-O", region + ".phased"},
		},
		{
			name: "impute",
			tool: tools.Impute,
			args: []string{
				"-known_haps_g", region + ".phased.haps",
				"-int", start, end,
				"-o", region + ".impute2",
			},
		},
	}
}

// runTask runs one ledger-tracked unit of work, skipping it when the ledger
// already records a success from a previous run.
func (s *Service) runTask(ctx context.Context, name, tool string, args []string, workDir string) error {
	done, err := s.ledger.IsCompleted(ctx, name)
	if err != nil {
		return fmt.Errorf("could not check task %s: %w", name, err)
	}
	if done {
		s.logger.Debugf("Skipping completed task: %s", name)
		return nil
	}

	if err := s.ledger.RegisterTask(ctx, name); err != nil {
		return fmt.Errorf("could not register task %s: %w", name, err)
	}

	if s.cluster != nil {
		return s.runClusterTask(ctx, name, tool, args, workDir)
	}

	if err := s.runner.Run(ctx, tool, args, workDir); err != nil {
		if markErr := s.ledger.MarkIncomplete(ctx, name); markErr != nil {
			s.logger.Errorf("could not mark task %s incomplete: %s", name, markErr)
		}
		return fmt.Errorf("task %s failed: %w", name, err)
	}

	if err := s.ledger.MarkCompleted(ctx, name); err != nil {
		return fmt.Errorf("could not mark task %s completed: %w", name, err)
	}

	s.logger.Infof("Completed task: %s", name)
	return nil
}

// runClusterTask submits the work to the scheduler and polls until the
// scheduler reports completion, recording the scheduler's own timestamps.
func (s *Service) runClusterTask(ctx context.Context, name, tool string, args []string, workDir string) error {
	launch := time.Now().UTC()
	handle, err := s.cluster.Submit(ctx, cluster.Job{
		Name:    name,
		Tool:    tool,
		Args:    args,
		WorkDir: workDir,
	})
	if err != nil {
		if markErr := s.ledger.MarkIncomplete(ctx, name); markErr != nil {
			s.logger.Errorf("could not mark task %s incomplete: %s", name, markErr)
		}
		return fmt.Errorf("could not submit task %s: %w", name, err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		completed, start, end, err := s.cluster.PollCompletion(ctx, handle)
		if err != nil {
			if markErr := s.ledger.MarkIncomplete(ctx, name); markErr != nil {
				s.logger.Errorf("could not mark task %s incomplete: %s", name, markErr)
			}
			return fmt.Errorf("task %s failed: %w", name, err)
		}
		if completed {
			if err := s.ledger.MarkRemoteCompleted(ctx, name, launch, start, end); err != nil {
				return fmt.Errorf("could not mark task %s completed: %w", name, err)
			}
			s.logger.Infof("Completed cluster task: %s", name)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
