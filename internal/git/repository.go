package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// exitRefNotFound is the status `git ls-remote --exit-code` uses when no
// matching ref exists.
const exitRefNotFound = 2

// Repository is bound to one working copy on disk. Every operation runs one or
// more git commands in Dir and records the output of the last one in Output.
type Repository struct {
	// Dir is the working copy the commands run in.
	Dir string

	// Output holds the captured text of the most recent successful command.
	Output string

	// BatchSize bounds the number of paths per add/rm invocation. When zero,
	// DefaultBatchSize is used.
	BatchSize int

	runner Runner
}

// NewRepository returns a handle for the working copy at dir. A nil runner
// defaults to the system git binary.
func NewRepository(dir string, runner Runner) *Repository {
	if runner == nil {
		runner = NewExecRunner("")
	}
	return &Repository{Dir: dir, runner: runner}
}

// Exec runs an arbitrary git command in the working copy.
func (r *Repository) Exec(ctx context.Context, args ...string) error {
	out, err := r.runner.Run(ctx, r.Dir, args...)
	if err != nil {
		return err
	}
	r.Output = out
	return nil
}

// Init creates an empty repository in the working copy.
func (r *Repository) Init(ctx context.Context) error {
	return r.Exec(ctx, "init")
}

// Clean removes untracked files and directories.
func (r *Repository) Clean(ctx context.Context) error {
	return r.Exec(ctx, "clean", "-f", "-d")
}

// Fetch updates the refs of remote.
func (r *Repository) Fetch(ctx context.Context, remote string) error {
	return r.Exec(ctx, "fetch", remote)
}

// Reset hard resets the working tree to remote/branch.
func (r *Repository) Reset(ctx context.Context, remote, branch string) error {
	return r.Exec(ctx, "reset", "--hard", remote+"/"+branch)
}

// RefStatus is the outcome of looking up a remote-tracking branch.
type RefStatus int

const (
	RefFound RefStatus = iota
	RefNotFound
	RefLookupFailed
)

func (s RefStatus) String() string {
	switch s {
	case RefFound:
		return "found"
	case RefNotFound:
		return "not_found"
	case RefLookupFailed:
		return "failed"
	default:
		return "RefStatus(" + strconv.Itoa(int(s)) + ")"
	}
}

// RefLookup carries the tagged result of LookupRemoteBranch. Err is only set
// when Status is RefLookupFailed.
type RefLookup struct {
	Status RefStatus
	Err    error
}

// LookupRemoteBranch reports whether remote/branch exists as a
// remote-tracking ref in the working copy.
func (r *Repository) LookupRemoteBranch(ctx context.Context, remote, branch string) RefLookup {
	treeish := "remotes/" + remote + "/" + branch
	err := r.Exec(ctx, "ls-remote", "--refs", "--exit-code", ".", treeish)
	if err == nil {
		return RefLookup{Status: RefFound}
	}
	if code, ok := ExitCodeOf(err); ok && code == exitRefNotFound {
		return RefLookup{Status: RefNotFound}
	}
	return RefLookup{Status: RefLookupFailed, Err: err}
}

// Checkout switches the working copy to branch. An existing remote branch is
// checked out and hard reset to the remote tip; a missing one is created as
// an empty orphan.
func (r *Repository) Checkout(ctx context.Context, remote, branch string) error {
	lookup := r.LookupRemoteBranch(ctx, remote, branch)
	switch lookup.Status {
	case RefFound:
		if err := r.Exec(ctx, "checkout", branch); err != nil {
			return fmt.Errorf("git checkout %s: %w", branch, err)
		}
		if err := r.Clean(ctx); err != nil {
			return fmt.Errorf("git clean: %w", err)
		}
		if err := r.Reset(ctx, remote, branch); err != nil {
			return fmt.Errorf("git reset %s/%s: %w", remote, branch, err)
		}
		return nil
	case RefNotFound:
		if err := r.Exec(ctx, "checkout", "--orphan", branch); err != nil {
			return fmt.Errorf("git checkout --orphan %s: %w", branch, err)
		}
		// A full clone leaves the default branch's files in the new branch.
		if err := r.Exec(ctx, "rm", "-r", "-f", "-q", "--ignore-unmatch", "--", "."); err != nil {
			return fmt.Errorf("git rm: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("look up %s/%s: %w", remote, branch, lookup.Err)
	}
}

// Rm removes paths from the index and working tree. Paths that do not exist
// are ignored.
func (r *Repository) Rm(ctx context.Context, paths []string) error {
	_, err := RunBatched(ctx, paths, r.BatchSize, func(ctx context.Context, chunk []string) (string, error) {
		args := append([]string{"rm", "--ignore-unmatch", "-r", "-f", "--"}, chunk...)
		return r.Output, r.Exec(ctx, args...)
	})
	return err
}

// Add stages paths.
func (r *Repository) Add(ctx context.Context, paths []string) error {
	_, err := RunBatched(ctx, paths, r.BatchSize, func(ctx context.Context, chunk []string) (string, error) {
		args := append([]string{"add", "--"}, chunk...)
		return r.Output, r.Exec(ctx, args...)
	})
	return err
}

// Commit records the staged changes with message. When the index matches HEAD
// nothing is committed and false is returned.
func (r *Repository) Commit(ctx context.Context, message string) (bool, error) {
	if err := r.Exec(ctx, "diff-index", "--quiet", "HEAD"); err == nil {
		return false, nil
	}
	if err := r.Exec(ctx, "commit", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// Tag creates a lightweight tag at HEAD.
func (r *Repository) Tag(ctx context.Context, name string) error {
	return r.Exec(ctx, "tag", name)
}

// Push pushes branch and all tags to remote. force allows a non-fast-forward
// update.
func (r *Repository) Push(ctx context.Context, remote, branch string, force bool) error {
	args := []string{"push", "--tags", remote, branch}
	if force {
		args = append(args, "--force")
	}
	return r.Exec(ctx, args...)
}

// SetConfig writes a repository-local config value.
func (r *Repository) SetConfig(ctx context.Context, key, value string) error {
	return r.Exec(ctx, "config", key, value)
}

// ConfigValue reads a config value visible from the working copy. The
// returned string has surrounding whitespace trimmed.
func (r *Repository) ConfigValue(ctx context.Context, key string) (string, error) {
	out, err := r.runner.Run(ctx, r.Dir, "config", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Head returns the commit SHA HEAD points at.
func (r *Repository) Head(ctx context.Context) (string, error) {
	if err := r.Exec(ctx, "rev-parse", "HEAD"); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.Output), nil
}

// RemoteURLError reports that the URL of a remote could not be read.
type RemoteURLError struct {
	Remote string
	Err    error
}

func (e *RemoteURLError) Error() string {
	return fmt.Sprintf("Failed to get remote.%s.url (task must either be run in a git repository with a configured %s remote or must be configured with the \"repo\" option).", e.Remote, e.Remote)
}

func (e *RemoteURLError) Unwrap() error {
	return e.Err
}

// RemoteURL returns the first line of remote.<remote>.url.
func (r *Repository) RemoteURL(ctx context.Context, remote string) (string, error) {
	if err := r.Exec(ctx, "config", "--get", "remote."+remote+".url"); err != nil {
		return "", &RemoteURLError{Remote: remote, Err: err}
	}
	url, _, _ := strings.Cut(strings.ReplaceAll(r.Output, "\r", "\n"), "\n")
	if url == "" {
		return "", &RemoteURLError{Remote: remote, Err: errors.New("remote url is empty")}
	}
	return url, nil
}

// DeleteRef deletes the local branch ref, discarding its history.
func (r *Repository) DeleteRef(ctx context.Context, branch string) error {
	return r.Exec(ctx, "update-ref", "-d", "refs/heads/"+branch)
}

// CloneOptions controls how Clone fetches a new working copy.
type CloneOptions struct {
	// Remote is the name given to the cloned remote. Defaults to "origin".
	Remote string

	// Depth limits the history of the scoped clone. Defaults to 1.
	Depth int
}

// Clone returns a handle for dir, cloning repoURL into it first when dir does
// not exist yet. An existing dir is reused as-is. The first attempt clones
// only branch with limited depth; if that fails, for example because branch
// does not exist on the remote yet, a full clone is made instead.
func Clone(ctx context.Context, runner Runner, repoURL, dir, branch string, opts CloneOptions) (*Repository, error) {
	if runner == nil {
		runner = NewExecRunner("")
	}
	if _, err := os.Stat(dir); err == nil {
		return NewRepository(dir, runner), nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat clone dir: %w", err)
	}

	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = 1
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve clone dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absDir), 0o755); err != nil {
		return nil, fmt.Errorf("create clone parent: %w", err)
	}

	scoped := []string{
		"clone", repoURL, absDir,
		"--branch", branch,
		"--single-branch",
		"--origin", remote,
		"--depth", strconv.Itoa(depth),
	}
	if _, err := runner.Run(ctx, "", scoped...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		_ = os.RemoveAll(absDir)
		if _, err := runner.Run(ctx, "", "clone", repoURL, absDir, "--origin", remote); err != nil {
			_ = os.RemoveAll(absDir)
			return nil, fmt.Errorf("git clone: %w", err)
		}
	}

	return NewRepository(dir, runner), nil
}
