// Package publish copies a directory into a branch of a git repository and
// pushes the result.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rancher/gh-pages-action/internal/cache"
	"github.com/rancher/gh-pages-action/internal/fileset"
	"github.com/rancher/gh-pages-action/internal/git"
	"github.com/rancher/gh-pages-action/internal/identity"
)

// Publisher drives the publish pipeline against working copies kept in a
// Cache. Publishes sharing a repository URL must not run concurrently.
type Publisher struct {
	cache  *cache.Cache
	runner git.Runner
	log    *slog.Logger

	// WorkDir is where the repository URL and committer identity are looked
	// up when not given explicitly. Empty means the process directory.
	WorkDir string

	// BatchSize bounds the paths per git add/rm invocation.
	BatchSize int

	// Copier copies the selected files into the working copy.
	Copier *fileset.Copier
}

// Result describes a completed publish.
type Result struct {
	// RepoURL is the target repository with credentials removed.
	RepoURL   string
	Dir       string
	Branch    string
	Files     int
	Removed   int
	Committed bool
	Tagged    bool
	Pushed    bool
	Commit    string
}

// New returns a Publisher. A nil runner runs the git executable named in each
// publish's Options.
func New(c *cache.Cache, runner git.Runner, logger *slog.Logger) *Publisher {
	return &Publisher{cache: c, runner: runner, log: logger}
}

type state struct {
	base    string
	opts    Options
	runner  git.Runner
	files   []string
	user    *identity.Identity
	repoURL string
	repo    *git.Repository
	result  Result
}

type step struct {
	name string
	run  func(ctx context.Context, s *state) error
}

func (p *Publisher) steps() []step {
	return []step{
		{"validate base", p.validateBase},
		{"discover files", p.discoverFiles},
		{"resolve identity", p.resolveIdentity},
		{"resolve repository", p.resolveRepository},
		{"acquire working copy", p.acquire},
		{"clean", func(ctx context.Context, s *state) error { return s.repo.Clean(ctx) }},
		{"fetch", func(ctx context.Context, s *state) error { return s.repo.Fetch(ctx, s.opts.Remote) }},
		{"checkout", func(ctx context.Context, s *state) error { return s.repo.Checkout(ctx, s.opts.Remote, s.opts.Branch) }},
		{"discard history", p.discardHistory},
		{"remove files", p.removeFiles},
		{"write markers", p.writeMarkers},
		{"copy files", p.copyFiles},
		{"before add", p.beforeAdd},
		{"stage", func(ctx context.Context, s *state) error { return s.repo.Add(ctx, []string{"."}) }},
		{"set identity", p.setIdentity},
		{"commit", p.commit},
		{"tag", p.tag},
		{"push", p.push},
	}
}

// Publish copies the files under basePath selected by opts into the target
// branch, commits and optionally pushes them. Steps run strictly in order and
// the first failing step aborts the rest.
func (p *Publisher) Publish(ctx context.Context, basePath string, opts Options) (Result, error) {
	opts, err := opts.normalize(p.log)
	if err != nil {
		return Result{}, p.surface(opts, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, p.surface(opts, err)
	}

	runner := p.runner
	if runner == nil {
		runner = git.NewExecRunner(opts.Git)
	}
	s := &state{base: basePath, opts: opts, runner: runner}
	s.result.Branch = opts.Branch

	level := slog.LevelInfo
	if opts.Silent {
		level = slog.LevelDebug
	}
	for _, st := range p.steps() {
		if p.log != nil {
			p.log.Log(ctx, level, "publish step", "step", st.name)
		}
		if err := st.run(ctx, s); err != nil {
			return s.result, p.surface(opts, fmt.Errorf("%s: %w", st.name, err))
		}
	}

	return s.result, nil
}

// PublishWithCallback runs Publish and hands its error to done before
// returning it. A panic inside done is recovered and logged.
func (p *Publisher) PublishWithCallback(ctx context.Context, basePath string, opts Options, done func(error)) (Result, error) {
	result, err := p.Publish(ctx, basePath, opts)
	if done != nil {
		p.invoke(done, err)
	}
	return result, err
}

func (p *Publisher) invoke(done func(error), err error) {
	defer func() {
		if r := recover(); r != nil && p.log != nil {
			p.log.Error("publish callback panicked", "panic", r)
		}
	}()
	done(err)
}

func (p *Publisher) surface(opts Options, err error) error {
	if !opts.Silent {
		return err
	}
	if p.log != nil {
		p.log.Debug("publish failed", "error", err)
	}
	return ErrSilenced
}

func (p *Publisher) validateBase(_ context.Context, s *state) error {
	info, err := os.Stat(s.base)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBaseNotDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrBaseNotDirectory, s.base)
	}
	return nil
}

func (p *Publisher) discoverFiles(_ context.Context, s *state) error {
	files, err := fileset.Match(s.base, s.opts.Src, fileset.MatchOptions{Dot: s.opts.Dotfiles})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoFilesMatched
	}
	s.files = files
	s.result.Files = len(files)
	return nil
}

func (p *Publisher) resolveIdentity(ctx context.Context, s *state) error {
	if s.opts.User != nil {
		s.user = s.opts.User
		return nil
	}
	user, err := identity.Resolve(ctx, s.runner, p.WorkDir)
	if err != nil {
		return err
	}
	if user == nil {
		user = s.opts.DefaultUser
		if p.log != nil {
			if user != nil {
				p.log.Debug("no committer identity configured; using default user", "user", user.String())
			} else {
				p.log.Debug("no committer identity configured; using git defaults")
			}
		}
	}
	s.user = user
	return nil
}

func (p *Publisher) resolveRepository(ctx context.Context, s *state) error {
	if s.opts.Repo != "" {
		s.repoURL = s.opts.Repo
	} else {
		url, err := git.NewRepository(p.WorkDir, s.runner).RemoteURL(ctx, s.opts.Remote)
		if err != nil {
			return err
		}
		s.repoURL = url
	}
	s.result.RepoURL = cache.Redact(s.repoURL)
	return nil
}

func (p *Publisher) acquire(ctx context.Context, s *state) error {
	if p.cache == nil {
		return errors.New("cache is required")
	}
	dir := p.cache.Path(s.repoURL)
	if p.log != nil && !s.opts.Silent {
		p.log.Info("cloning", "repo", cache.Redact(s.repoURL), "dir", dir)
	}

	repo, err := git.Clone(ctx, s.runner, s.repoURL, dir, s.opts.Branch, git.CloneOptions{
		Remote: s.opts.Remote,
		Depth:  s.opts.Depth,
	})
	if err != nil {
		return err
	}
	repo.BatchSize = p.BatchSize

	got, err := repo.RemoteURL(ctx, s.opts.Remote)
	if err != nil {
		return err
	}
	if got != s.repoURL {
		return &RemoteMismatchError{Got: got, Want: s.repoURL, Dir: repo.Dir}
	}

	s.repo = repo
	s.result.Dir = repo.Dir
	return nil
}

func (p *Publisher) discardHistory(ctx context.Context, s *state) error {
	if s.opts.History {
		return nil
	}
	return s.repo.DeleteRef(ctx, s.opts.Branch)
}

func (p *Publisher) removeFiles(ctx context.Context, s *state) error {
	if s.opts.Add {
		return nil
	}
	matches, err := fileset.Match(filepath.Join(s.repo.Dir, s.opts.Dest), []string{s.opts.Remove}, fileset.MatchOptions{Dot: true})
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		rel := filepath.Join(s.opts.Dest, m)
		if isGitDir(rel) {
			continue
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	if len(paths) == 0 {
		return nil
	}
	if err := s.repo.Rm(ctx, paths); err != nil {
		return err
	}
	s.result.Removed = len(paths)
	return nil
}

func isGitDir(rel string) bool {
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first == ".git"
}

func (p *Publisher) writeMarkers(_ context.Context, s *state) error {
	if s.opts.NoJekyll {
		if err := os.WriteFile(filepath.Join(s.repo.Dir, ".nojekyll"), nil, 0o644); err != nil {
			return fmt.Errorf("write .nojekyll: %w", err)
		}
	}
	if s.opts.CNAME != "" {
		if err := os.WriteFile(filepath.Join(s.repo.Dir, "CNAME"), []byte(s.opts.CNAME), 0o644); err != nil {
			return fmt.Errorf("write CNAME: %w", err)
		}
	}
	return nil
}

func (p *Publisher) copyFiles(ctx context.Context, s *state) error {
	copier := p.Copier
	if copier == nil {
		copier = &fileset.Copier{}
	}
	return copier.Copy(ctx, s.files, s.base, filepath.Join(s.repo.Dir, s.opts.Dest))
}

func (p *Publisher) beforeAdd(ctx context.Context, s *state) error {
	if s.opts.BeforeAdd == nil {
		return nil
	}
	return s.opts.BeforeAdd(ctx, s.repo)
}

func (p *Publisher) setIdentity(ctx context.Context, s *state) error {
	if s.user == nil {
		return nil
	}
	if err := s.repo.SetConfig(ctx, "user.email", s.user.Email); err != nil {
		return err
	}
	if s.user.Name != "" {
		if err := s.repo.SetConfig(ctx, "user.name", s.user.Name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) commit(ctx context.Context, s *state) error {
	committed, err := s.repo.Commit(ctx, s.opts.Message)
	if err != nil {
		return err
	}
	s.result.Committed = committed
	if !committed && p.log != nil {
		p.log.Info("no changes to commit", "branch", s.opts.Branch)
	}

	if sha, err := s.repo.Head(ctx); err == nil {
		s.result.Commit = sha
	} else if p.log != nil {
		p.log.Debug("could not read HEAD", "error", err)
	}
	return nil
}

func (p *Publisher) tag(ctx context.Context, s *state) error {
	if s.opts.Tag == "" {
		return nil
	}
	if err := s.repo.Tag(ctx, s.opts.Tag); err != nil {
		if p.log != nil {
			p.log.Warn("tagging failed, continuing", "tag", s.opts.Tag, "error", err)
		}
		return nil
	}
	s.result.Tagged = true
	return nil
}

func (p *Publisher) push(ctx context.Context, s *state) error {
	if !s.opts.Push {
		return nil
	}
	if err := s.repo.Push(ctx, s.opts.Remote, s.opts.Branch, !s.opts.History); err != nil {
		return err
	}
	s.result.Pushed = true
	return nil
}
