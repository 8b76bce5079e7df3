package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	apprun "github.com/genimp/genimp/internal/app/run"
	"github.com/genimp/genimp/internal/reference"
	"github.com/genimp/genimp/internal/runner/cluster"
	"github.com/genimp/genimp/internal/runner/docker"
	"github.com/genimp/genimp/internal/runner/local"
	"github.com/genimp/genimp/internal/storage/sqlite"
)

const (
	modeLocal   = "local"
	modeDocker  = "docker"
	modeCluster = "cluster"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runDir        string
	segmentSize   int
	chromosomes   []string
	mode          string
	clusterConfig string
	toolImages    map[string]string
	referencePath string
	convertTool   string
	phaseTool     string
	imputeTool    string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd, toolImages: map[string]string{}}

	c.Cmd = app.Command("run", "Run the genome-wide imputation pipeline, resuming completed work.")
	c.Cmd.Arg("run-dir", "Directory holding the pipeline inputs and outputs.").Required().StringVar(&c.runDir)
	c.Cmd.Flag("segment-size", "Imputation segment length in bases.").Default("5000000").IntVar(&c.segmentSize)
	c.Cmd.Flag("chromosome", "Chromosome to process (repeatable, defaults to all autosomes).").StringsVar(&c.chromosomes)
	c.Cmd.Flag("mode", "Execution mode.").Default(modeLocal).EnumVar(&c.mode, modeLocal, modeDocker, modeCluster)
	c.Cmd.Flag("cluster-config", "Cluster scheduler adapter configuration file (cluster mode).").StringVar(&c.clusterConfig)
	c.Cmd.Flag("tool-image", "Tool to container image mapping (docker mode, repeatable).").StringMapVar(&c.toolImages)
	c.Cmd.Flag("reference", "FAIDX-indexed reference FASTA used for strand checks.").StringVar(&c.referencePath)
	c.Cmd.Flag("convert-tool", "Binary used for the convert stage.").Default("plink").StringVar(&c.convertTool)
	c.Cmd.Flag("phase-tool", "Binary used for the phase stage.").Default("shapeit").StringVar(&c.phaseTool)
	c.Cmd.Flag("impute-tool", "Binary used for the impute stage.").Default("impute2").StringVar(&c.imputeTool)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	ledger, err := sqlite.NewLedger(ctx, sqlite.LedgerConfig{
		Directory: c.rootCmd.LedgerDir,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task ledger: %w", err)
	}

	cfg := apprun.ServiceConfig{
		Ledger: ledger,
		Logger: logger,
	}

	switch c.mode {
	case modeCluster:
		clusterCfg, err := cluster.LoadConfig(c.clusterConfig)
		if err != nil {
			return err
		}
		backend, err := cluster.NewShellBackend(cluster.BackendConfig{
			Config: clusterCfg,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create cluster backend: %w", err)
		}
		cfg.Cluster = backend
		cfg.PollInterval = clusterCfg.PollInterval()
	case modeDocker:
		cfg.Runner, err = docker.NewRunner(docker.RunnerConfig{
			Images: c.toolImages,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create Docker runner: %w", err)
		}
	default:
		cfg.Runner, err = local.NewRunner(local.RunnerConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create local runner: %w", err)
		}
	}

	if c.referencePath != "" {
		ref, err := reference.OpenFaidx(reference.FaidxConfig{
			FastaPath: c.referencePath,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("could not open reference: %w", err)
		}
		defer ref.Close()
		cfg.Reference = ref
	}

	// Create run service.
	svc, err := apprun.NewService(cfg)
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute pipeline run.
	err = svc.Run(ctx, apprun.RunOptions{
		RunDir:      c.runDir,
		SegmentSize: c.segmentSize,
		Chromosomes: c.chromosomes,
		Tools: apprun.ToolSet{
			Convert: c.convertTool,
			Phase:   c.phaseTool,
			Impute:  c.imputeTool,
		},
	})
	if err != nil {
		return fmt.Errorf("could not run pipeline: %w", err)
	}

	return nil
}
