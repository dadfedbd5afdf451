package git

import "context"

// Runner executes a single git command. dir is the working directory of the
// child process; an empty dir means the current process directory.
// Implementations resolve with the merged stdout/stderr text when the command
// exits zero and fail with a *ProcessError otherwise.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, dir string, args ...string) (string, error)

// Run calls f(ctx, dir, args...).
func (f RunnerFunc) Run(ctx context.Context, dir string, args ...string) (string, error) {
	return f(ctx, dir, args...)
}
