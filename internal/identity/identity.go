// Package identity resolves the committer recorded on published commits.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rancher/gh-pages-action/internal/git"
)

// ErrInvalidIdentity is returned when an identity string cannot be parsed.
var ErrInvalidIdentity = errors.New(`could not parse name and email from user option (expected "Your Name <email@example.com>")`)

// Identity is a committer name and email. Name may be empty.
type Identity struct {
	Name  string
	Email string
}

func (i Identity) String() string {
	if i.Name == "" {
		return "<" + i.Email + ">"
	}
	return i.Name + " <" + i.Email + ">"
}

// Parse reads an identity of the form "Display Name <email@example.com>".
func Parse(s string) (*Identity, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	return &Identity{Name: addr.Name, Email: addr.Address}, nil
}

// exitConfigUnset is the status `git config <key>` uses when key is not set.
const exitConfigUnset = 1

// Resolve reads user.name and user.email from the git configuration visible
// in dir. Both lookups run concurrently. When either value is unset, Resolve
// returns nil without an error.
func Resolve(ctx context.Context, runner git.Runner, dir string) (*Identity, error) {
	repo := git.NewRepository(dir, runner)

	var name, email string
	var nameSet, emailSet bool
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		name, nameSet, err = lookup(ctx, repo, "user.name")
		return err
	})
	g.Go(func() error {
		var err error
		email, emailSet, err = lookup(ctx, repo, "user.email")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !nameSet || !emailSet || email == "" {
		return nil, nil
	}
	return &Identity{Name: name, Email: email}, nil
}

func lookup(ctx context.Context, repo *git.Repository, key string) (string, bool, error) {
	value, err := repo.ConfigValue(ctx, key)
	if err == nil {
		return value, true, nil
	}
	if code, ok := git.ExitCodeOf(err); ok && code == exitConfigUnset {
		return "", false, nil
	}
	return "", false, fmt.Errorf("git config %s: %w", key, err)
}
