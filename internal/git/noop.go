package git

import (
	"context"
	"strings"
	"sync"
)

// Call is one git invocation seen by a RecordingRunner.
type Call struct {
	Dir  string
	Args []string
}

// String renders the call as a git command line.
func (c Call) String() string {
	return "git " + strings.Join(c.Args, " ")
}

// RecordingRunner is a Runner that performs no git operations. Every call is
// recorded; Respond, when set, supplies the result, otherwise the call succeeds
// with empty output.
type RecordingRunner struct {
	Respond func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

// NewNoopRunner returns a Runner that succeeds without side effects.
func NewNoopRunner() *RecordingRunner {
	return &RecordingRunner{}
}

func (r *RecordingRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	call := Call{Dir: dir, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	respond := r.Respond
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond == nil {
		return "", nil
	}
	return respond(call)
}

// Calls returns a copy of the recorded invocations in order.
func (r *RecordingRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns the primary git command of every recorded invocation.
func (r *RecordingRunner) Commands() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, primaryGitCommand(c.Args))
	}
	return out
}
