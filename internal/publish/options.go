package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rancher/gh-pages-action/internal/git"
	"github.com/rancher/gh-pages-action/internal/identity"
	"github.com/rancher/gh-pages-action/internal/refname"
)

const (
	DefaultBranch  = "gh-pages"
	DefaultRemote  = "origin"
	DefaultSrc     = "**/*"
	DefaultRemove  = "**/*"
	DefaultDest    = "."
	DefaultMessage = "Updates"
	DefaultGit     = "git"
	DefaultDepth   = 1
)

// BeforeAddFunc runs after files are copied into the working copy and before
// they are staged. A returned error aborts the publish.
type BeforeAddFunc func(ctx context.Context, repo *git.Repository) error

// Options configures a publish. Start from DefaultOptions; zero-valued strings
// and Depth fall back to their defaults.
type Options struct {
	// Src lists the patterns selecting files under the base directory.
	// Patterns prefixed with "!" exclude matches.
	Src []string

	Branch string

	// Dest is the directory within the branch that receives the files.
	Dest string

	Remote string

	// Repo is the repository URL. When empty it is read from Remote in the
	// current working directory.
	Repo string

	Message string

	// Tag, when set, is created on the new commit. Failing to tag is not fatal.
	Tag string

	// History keeps the branch history. When false the branch is recreated
	// with a single root commit and force pushed.
	History bool

	Dotfiles bool

	// Add only adds files and never removes existing ones.
	Add bool

	// Remove selects existing files under Dest to delete before copying.
	Remove string

	// Only is the deprecated name of Remove. It is honoured only while Remove
	// is unset or left at its default.
	Only string

	// User overrides the committer identity read from git config.
	User *identity.Identity

	// DefaultUser is used when User is nil and git config names no identity.
	DefaultUser *identity.Identity

	Push bool

	// Silent replaces returned errors with ErrSilenced.
	Silent bool

	BeforeAdd BeforeAddFunc

	// NoJekyll writes an empty .nojekyll file at the branch root.
	NoJekyll bool

	// CNAME, when set, is written to a CNAME file at the branch root.
	CNAME string

	// Git is the git executable used when the Publisher has no Runner.
	Git string

	// Depth is the history depth of the initial clone.
	Depth int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Src:     []string{DefaultSrc},
		Branch:  DefaultBranch,
		Dest:    DefaultDest,
		Remote:  DefaultRemote,
		Message: DefaultMessage,
		History: true,
		Push:    true,
		Remove:  DefaultRemove,
		Git:     DefaultGit,
		Depth:   DefaultDepth,
	}
}

// normalize fills defaults, resolves the Only alias and validates the result.
func (o Options) normalize(logger *slog.Logger) (Options, error) {
	if len(o.Src) == 0 {
		o.Src = []string{DefaultSrc}
	}
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}
	if o.Dest == "" {
		o.Dest = DefaultDest
	}
	if o.Remote == "" {
		o.Remote = DefaultRemote
	}
	if o.Message == "" {
		o.Message = DefaultMessage
	}
	if o.Git == "" {
		o.Git = DefaultGit
	}
	if o.Depth <= 0 {
		o.Depth = DefaultDepth
	}

	if o.Only != "" {
		switch o.Remove {
		case "", DefaultRemove:
			o.Remove = o.Only
		default:
			if o.Only != o.Remove && logger != nil {
				logger.Warn("both remove and deprecated only are set; using remove", "remove", o.Remove, "only", o.Only)
			}
		}
	}
	if o.Remove == "" {
		o.Remove = DefaultRemove
	}

	dest := filepath.Clean(filepath.FromSlash(o.Dest))
	if filepath.IsAbs(dest) || dest == ".." || strings.HasPrefix(dest, ".."+string(filepath.Separator)) {
		return o, fmt.Errorf("dest %q must be a relative path inside the branch", o.Dest)
	}
	o.Dest = dest

	if o.User != nil && o.User.Email == "" {
		return o, fmt.Errorf("%w: email is required", identity.ErrInvalidIdentity)
	}
	if o.DefaultUser != nil && o.DefaultUser.Email == "" {
		return o, fmt.Errorf("%w: default user email is required", identity.ErrInvalidIdentity)
	}
	o.Branch = refname.NormalizeBranch(o.Branch)
	if err := refname.ValidateBranch(o.Branch); err != nil {
		return o, err
	}
	if o.Tag != "" {
		o.Tag = refname.NormalizeTag(o.Tag)
		if err := refname.ValidateTag(o.Tag); err != nil {
			return o, err
		}
	}
	return o, nil
}
