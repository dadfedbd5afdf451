package gh

import (
	"context"
	"errors"
	"time"
)

// PagesSite describes the GitHub Pages configuration of a repository.
type PagesSite struct {
	URL    string
	Status string
	Branch string
	Path   string
	CNAME  string
}

// Client exposes the GitHub operations used after a publish.
type Client interface {
	GetPagesSite(ctx context.Context, owner, repo string) (PagesSite, error)
	GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error)
}

// Factory builds concrete GitHub clients (e.g., REST-backed).
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

var (
	// ErrPagesNotFound indicates GitHub Pages is not enabled for the repository.
	ErrPagesNotFound = errors.New("github: pages site not found")

	// ErrBranchNotFound indicates the requested branch does not exist.
	ErrBranchNotFound = errors.New("github: branch not found")
)

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or attempts
// are exhausted. The delay doubles after every failed attempt.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
