package report

import (
	"context"
	"fmt"
	"time"

	"github.com/genimp/genimp/internal/aggregate"
	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/storage"
)

// ServiceConfig is the configuration for the report service.
type ServiceConfig struct {
	Ledger     storage.TaskLedger
	Aggregator *aggregate.Aggregator
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Ledger == nil {
		return fmt.Errorf("ledger is required")
	}
	if c.Aggregator == nil {
		return fmt.Errorf("aggregator is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Report"})
	return nil
}

// Service summarizes a finished (or partial) pipeline run: genome-wide MAF
// statistics folded from the per-chromosome outputs, plus per-task runtimes
// from the ledger.
type Service struct {
	ledger     storage.TaskLedger
	aggregator *aggregate.Aggregator
	logger     log.Logger
}

// NewService creates a new report service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		ledger:     cfg.Ledger,
		aggregator: cfg.Aggregator,
		logger:     cfg.Logger,
	}, nil
}

// Summary is the aggregated view of a pipeline run.
type Summary struct {
	// MAFStatistics holds the genome-wide MAF summary values, keyed by
	// statistic name, all pre-rendered as strings for reporting.
	MAFStatistics map[string]string
	// TaskRuntimes holds the runtime of every finished task, keyed by task
	// name.
	TaskRuntimes map[string]time.Duration
	// TotalRuntime is the sum of all finished task runtimes.
	TotalRuntime time.Duration
}

// Summarize folds the run outputs under runDir into a Summary.
func (s *Service) Summarize(ctx context.Context, runDir string) (*Summary, error) {
	stats, err := s.aggregator.FoldMAFStatistics(runDir)
	if err != nil {
		return nil, fmt.Errorf("could not fold MAF statistics: %w", err)
	}

	runtimes, err := s.ledger.AllRuntimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get task runtimes: %w", err)
	}

	var total time.Duration
	for _, runtime := range runtimes {
		total += runtime
	}

	s.logger.Infof("Summarized %d finished tasks", len(runtimes))

	return &Summary{
		MAFStatistics: stats,
		TaskRuntimes:  runtimes,
		TotalRuntime:  total,
	}, nil
}
