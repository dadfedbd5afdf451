package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ExecRunner shells out to the system git binary. It performs exactly one
// process invocation per Run call and never retries.
type ExecRunner struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// Env is appended to the inherited environment of every child process.
	Env []string
}

// NewExecRunner returns a Runner backed by the given git executable.
func NewExecRunner(gitBinary string) *ExecRunner {
	return &ExecRunner{Git: gitBinary}
}

func (r *ExecRunner) gitBinary() string {
	if r == nil || r.Git == "" {
		return "git"
	}
	return r.Git
}

// Run executes git with args in dir. Stdout and stderr are written to the same
// buffer, so the captured text keeps the order in which each stream produced it.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.Command(r.gitBinary(), args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	setProcessGroup(cmd)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return "", &ProcessError{Args: args, ExitCode: -1, Output: output.String(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", newProcessError(args, output.String(), err)
		}
	}

	return output.String(), nil
}

func newProcessError(args []string, output string, err error) *ProcessError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ProcessError{Args: args, ExitCode: code, Output: output, Err: err}
}

// ProcessError reports a git invocation that exited with a non-zero status.
type ProcessError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e == nil {
		return ""
	}
	if e.Output != "" {
		return e.Output
	}
	return fmt.Sprintf("Process failed: %d", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExitCodeOf returns the exit code carried by a *ProcessError in err's chain.
func ExitCodeOf(err error) (int, bool) {
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		return 0, false
	}
	return procErr.ExitCode, true
}

// NetworkRunner decorates a Runner with a timeout and retries for commands
// that talk to a remote (clone, fetch, push). Other commands pass through
// untouched.
type NetworkRunner struct {
	Runner Runner

	// Retries controls how many additional attempts are made for network
	// commands. Zero disables retrying.
	Retries int

	// RetryDelay is the initial backoff between attempts. When zero, a default
	// of 1 second is used. Backoff grows exponentially per attempt.
	RetryDelay time.Duration

	// Timeout bounds a single network attempt when the caller's context has no
	// deadline. Zero means no bound.
	Timeout time.Duration
}

func (n *NetworkRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	primary := primaryGitCommand(args)
	if !isNetworkCommand(primary) {
		return n.Runner.Run(ctx, dir, args...)
	}

	retries := n.Retries
	if retries < 0 {
		retries = 0
	}
	delay := n.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := n.applyTimeout(ctx)
		out, err := n.Runner.Run(attemptCtx, dir, args...)
		cancel()

		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", lastErr
}

func (n *NetworkRunner) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.Timeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, n.Timeout)
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isNetworkCommand(cmd string) bool {
	switch cmd {
	case "clone", "fetch", "push", "pull":
		return true
	default:
		return false
	}
}
