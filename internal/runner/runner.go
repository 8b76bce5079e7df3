package runner

import "context"

// Runner executes one external tool stage synchronously in a working
// directory. A nil error means the tool exited with status 0. Re-running a
// stage must be safe: the tools overwrite their outputs rather than append.
type Runner interface {
	Run(ctx context.Context, tool string, args []string, workDir string) error
}
