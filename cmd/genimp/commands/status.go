package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"

	"github.com/genimp/genimp/internal/storage/sqlite"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "List recorded pipeline tasks and their state.")

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	ledger, err := sqlite.NewLedger(ctx, sqlite.LedgerConfig{
		Directory: c.rootCmd.LedgerDir,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task ledger: %w", err)
	}

	tasks, err := ledger.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	w := tabwriter.NewWriter(c.rootCmd.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tRUNTIME")
	for _, task := range tasks {
		runtime := "-"
		if d, ok := task.Runtime(); ok {
			runtime = d.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", task.Name, task.State, runtime)
	}

	return w.Flush()
}
