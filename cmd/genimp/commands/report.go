package commands

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"

	"github.com/genimp/genimp/internal/aggregate"
	"github.com/genimp/genimp/internal/app/report"
	"github.com/genimp/genimp/internal/storage/sqlite"
)

type ReportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runDir      string
	chromosomes []string
	chart       bool
}

// NewReportCommand returns the report command.
func NewReportCommand(rootCmd *RootCommand, app *kingpin.Application) *ReportCommand {
	c := &ReportCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("report", "Summarize a pipeline run: MAF statistics and task runtimes.")
	c.Cmd.Arg("run-dir", "Directory holding the pipeline outputs.").Required().StringVar(&c.runDir)
	c.Cmd.Flag("chromosome", "Chromosome to summarize (repeatable, defaults to all autosomes).").StringsVar(&c.chromosomes)
	c.Cmd.Flag("chart", "Render the MAF frequency pie chart.").BoolVar(&c.chart)

	return c
}

func (c ReportCommand) Name() string { return c.Cmd.FullCommand() }

func (c ReportCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	ledger, err := sqlite.NewLedger(ctx, sqlite.LedgerConfig{
		Directory: c.rootCmd.LedgerDir,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task ledger: %w", err)
	}

	aggregator, err := aggregate.NewAggregator(aggregate.AggregatorConfig{
		Chromosomes:     c.chromosomes,
		ChartingEnabled: c.chart,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create aggregator: %w", err)
	}

	// Create report service.
	svc, err := report.NewService(report.ServiceConfig{
		Ledger:     ledger,
		Aggregator: aggregator,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute report.
	summary, err := svc.Summarize(ctx, c.runDir)
	if err != nil {
		return fmt.Errorf("could not summarize run: %w", err)
	}

	w := tabwriter.NewWriter(c.rootCmd.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "STATISTIC\tVALUE")
	for _, key := range sortedKeys(summary.MAFStatistics) {
		fmt.Fprintf(w, "%s\t%s\n", key, summary.MAFStatistics[key])
	}

	fmt.Fprintln(w, "\nTASK\tRUNTIME")
	for _, name := range sortedKeys(summary.TaskRuntimes) {
		fmt.Fprintf(w, "%s\t%s\n", name, summary.TaskRuntimes[name])
	}
	fmt.Fprintf(w, "total\t%s\n", summary.TotalRuntime)

	return w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
