package publish

import (
	"errors"
	"fmt"

	"github.com/rancher/gh-pages-action/internal/cache"
)

var (
	// ErrBaseNotDirectory is returned when the base path is missing or is not a directory.
	ErrBaseNotDirectory = errors.New(`the "base" option must be an existing directory`)

	// ErrNoFilesMatched is returned when the src patterns select nothing.
	ErrNoFilesMatched = errors.New(`the pattern in the "src" property didn't match any files`)

	// ErrSilenced replaces every error returned in silent mode.
	ErrSilenced = errors.New("Unspecified error (run without silent option for detail)")
)

// RemoteMismatchError reports a cached working copy whose remote URL differs
// from the repository being published to.
type RemoteMismatchError struct {
	Got  string
	Want string
	Dir  string
}

func (e *RemoteMismatchError) Error() string {
	return fmt.Sprintf("remote url mismatch: got %q but expected %q in %s; try running \"gh-pages clean\" first",
		cache.Redact(e.Got), cache.Redact(e.Want), e.Dir)
}
