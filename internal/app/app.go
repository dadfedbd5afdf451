package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rancher/gh-pages-action/internal/cache"
	"github.com/rancher/gh-pages-action/internal/event"
	"github.com/rancher/gh-pages-action/internal/git"
	gh "github.com/rancher/gh-pages-action/internal/github"
	"github.com/rancher/gh-pages-action/internal/identity"
	"github.com/rancher/gh-pages-action/internal/publish"
)

const (
	pagesLookupAttempts = 3
	pagesLookupDelay    = 2 * time.Second
	defaultServerURL    = "https://github.com"
	defaultGitUserName  = "github-actions[bot]"
	defaultGitUserEmail = "41898282+github-actions[bot]@users.noreply.github.com"
)

// Runner glues together the publisher and supporting services to execute the action.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	gitRunner git.Runner // only set for testing via NewRunnerWithDeps
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL),
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, ghFactory gh.Factory, gitRunner git.Runner) *Runner {
	return &Runner{cfg: cfg, log: log, ghFactory: ghFactory, gitRunner: gitRunner}
}

// report is what a run writes to the step summary and action outputs.
type report struct {
	Result        publish.Result
	PagesURL      string
	SourceSHA     string
	Skipped       bool
	SkippedReason string
}

// Run executes the application using the provided context.
func (r *Runner) Run(ctx context.Context) error {
	if r.log != nil {
		r.log.Info("starting gh-pages action run", "dir", r.cfg.Dir, "branch", r.cfg.Branch, "push", r.cfg.Push)
	}

	var rep report

	payload, err := r.loadPushEvent()
	if err != nil {
		return err
	}
	if payload != nil {
		if payload.Deleted {
			rep.Skipped = true
			rep.SkippedReason = fmt.Sprintf("ref %s was deleted", payload.Ref)
			if r.log != nil {
				r.log.Info("skipping publish for deleted ref", "ref", payload.Ref)
			}
			r.writeReport(rep)
			return nil
		}
		rep.SourceSHA = payload.SourceSHA()
	}

	root := r.cfg.CacheDir
	if root == "" {
		root, err = cache.DefaultRoot()
		if err != nil {
			return fmt.Errorf("resolve cache dir: %w", err)
		}
	}
	c, err := cache.New(root)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	opts := r.cfg.PublishOptions()
	owner, repo := repositorySlug()
	if owner == "" && payload != nil {
		owner, repo = payload.Repository.Owner, payload.Repository.Name
	}
	if opts.Repo == "" && owner != "" && r.cfg.GitHubToken != "" {
		if build := remoteURLBuilder(r.cfg); build != nil {
			opts.Repo = build(owner, repo)
		}
	}

	opts.DefaultUser = &identity.Identity{Name: defaultGitUserName, Email: defaultGitUserEmail}

	publisher := publish.New(c, r.buildGitRunner(), r.log)
	result, err := publisher.Publish(ctx, r.cfg.Dir, opts)
	if err != nil {
		return fmt.Errorf("publish %s: %w", r.cfg.Dir, err)
	}
	rep.Result = result

	if owner != "" && r.cfg.GitHubToken != "" {
		rep.PagesURL = r.lookupPages(ctx, owner, repo, result)
	}

	if r.log != nil {
		r.log.Info("published", "repo", result.RepoURL, "branch", result.Branch, "files", result.Files,
			"committed", result.Committed, "pushed", result.Pushed, "commit", result.Commit)
	}

	r.writeReport(rep)
	return nil
}

func (r *Runner) writeReport(rep report) {
	if err := r.writeStepSummary(rep); err != nil && r.log != nil {
		r.log.Warn("failed to write step summary", "error", err)
	}
	if err := r.writeGitHubOutputs(rep); err != nil && r.log != nil {
		r.log.Warn("failed to write action outputs", "error", err)
	}
}

func (r *Runner) loadPushEvent() (*event.PushPayload, error) {
	if strings.TrimSpace(os.Getenv("GITHUB_EVENT_NAME")) != "push" {
		return nil, nil
	}
	eventPath := strings.TrimSpace(os.Getenv("GITHUB_EVENT_PATH"))
	if eventPath == "" {
		return nil, nil
	}
	payload, err := event.ParsePushEventFile(eventPath)
	if err != nil {
		return nil, fmt.Errorf("parse push event: %w", err)
	}
	return &payload, nil
}

func (r *Runner) buildGitRunner() git.Runner {
	if r.gitRunner != nil {
		return r.gitRunner
	}
	var runner git.Runner = git.NewExecRunner(r.cfg.Git)
	if r.cfg.NetworkRetries > 0 {
		runner = &git.NetworkRunner{Runner: runner, Retries: r.cfg.NetworkRetries}
	}
	return runner
}

// lookupPages returns the GitHub Pages URL of the repository. Lookup failures
// never fail the run.
func (r *Runner) lookupPages(ctx context.Context, owner, repo string, result publish.Result) string {
	client, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
	if err != nil {
		if r.log != nil {
			r.log.Warn("failed to initialize github client", "error", err)
		}
		return ""
	}

	if result.Pushed && result.Commit != "" {
		sha, err := client.GetBranchSHA(ctx, owner, repo, result.Branch)
		switch {
		case err != nil:
			if r.log != nil {
				r.log.Debug("could not read published branch", "branch", result.Branch, "error", err)
			}
		case sha != result.Commit:
			if r.log != nil {
				r.log.Warn("published branch does not point at the new commit", "branch", result.Branch, "remote", sha, "local", result.Commit)
			}
		}
	}

	var site gh.PagesSite
	err = gh.Retry(ctx, pagesLookupAttempts, pagesLookupDelay, func(ctx context.Context) error {
		var lookupErr error
		site, lookupErr = client.GetPagesSite(ctx, owner, repo)
		return lookupErr
	})
	if err != nil {
		if r.log != nil {
			if errors.Is(err, gh.ErrPagesNotFound) {
				r.log.Info("github pages is not enabled for repository", "owner", owner, "repo", repo)
			} else {
				r.log.Warn("failed to look up github pages site", "error", err)
			}
		}
		return ""
	}
	if site.Branch != "" && site.Branch != result.Branch && r.log != nil {
		r.log.Warn("github pages serves a different branch", "pages_branch", site.Branch, "branch", result.Branch)
	}
	return site.URL
}

func repositorySlug() (string, string) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")), "/")
	if !ok || owner == "" || repo == "" {
		return "", ""
	}
	return owner, repo
}

// remoteURLBuilder returns a function producing authenticated clone URLs on
// the configured GitHub host. It returns nil when no usable host is known.
func remoteURLBuilder(cfg Config) func(owner, repo string) string {
	base := strings.TrimSpace(cfg.GitHubBaseURL)
	if base == "" {
		base = strings.TrimSpace(os.Getenv("GITHUB_SERVER_URL"))
	}
	if base == "" {
		base = defaultServerURL
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}

	return func(owner, repo string) string {
		u := url.URL{
			Scheme: parsed.Scheme,
			Host:   parsed.Host,
			Path:   fmt.Sprintf("/%s/%s.git", owner, repo),
		}
		if cfg.GitHubToken != "" {
			u.User = url.UserPassword("x-access-token", cfg.GitHubToken)
		}
		return u.String()
	}
}
