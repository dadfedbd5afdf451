package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rancher/gh-pages-action/internal/identity"
	"github.com/rancher/gh-pages-action/internal/publish"
	"github.com/rancher/gh-pages-action/internal/refname"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config captures runtime options sourced from GitHub Action inputs or environment variables.
type Config struct {
	Dir      string
	Src      []string
	Branch   string
	Dest     string
	Add      bool
	Remove   string
	Message  string
	Tag      string
	Dotfiles bool
	Repo     string
	Depth    int
	Remote   string
	User     *identity.Identity
	Push     bool
	History  bool
	Silent   bool
	NoJekyll bool
	CNAME    string
	Git      string

	CacheDir       string
	NetworkRetries int

	Verbose   bool
	LogLevel  string
	LogFormat string

	GitHubToken     string
	GitHubBaseURL   string
	GitHubUploadURL string
}

// LoadConfig reads action inputs from the environment, applies defaults, and performs validation.
func LoadConfig() (Config, error) {
	cfg := Config{
		Dir:       strings.TrimSpace(os.Getenv("INPUT_DIR")),
		Src:       refname.ParseList(envOrDefault("INPUT_SRC", publish.DefaultSrc)),
		Branch:    envOrDefault("INPUT_BRANCH", publish.DefaultBranch),
		Dest:      envOrDefault("INPUT_DEST", publish.DefaultDest),
		Remove:    envOrDefault("INPUT_REMOVE", publish.DefaultRemove),
		Message:   envOrDefault("INPUT_MESSAGE", publish.DefaultMessage),
		Tag:       strings.TrimSpace(os.Getenv("INPUT_TAG")),
		Repo:      strings.TrimSpace(os.Getenv("INPUT_REPO")),
		Remote:    envOrDefault("INPUT_REMOTE", publish.DefaultRemote),
		CNAME:     strings.TrimSpace(os.Getenv("INPUT_CNAME")),
		Git:       envOrDefault("INPUT_GIT", publish.DefaultGit),
		CacheDir:  strings.TrimSpace(os.Getenv("INPUT_CACHE_DIR")),
		Depth:     publish.DefaultDepth,
		Push:      true,
		History:   true,
		LogLevel:  strings.ToLower(envOrDefault("INPUT_LOG_LEVEL", defaultLogLevel)),
		LogFormat: strings.ToLower(envOrDefault("INPUT_LOG_FORMAT", defaultLogFormat)),
	}

	cfg.GitHubToken = strings.TrimSpace(os.Getenv("INPUT_GITHUB_TOKEN"))
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.GitHubBaseURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_BASE_URL"))
	cfg.GitHubUploadURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_UPLOAD_URL"))

	bools := []struct {
		key string
		dst *bool
	}{
		{"INPUT_ADD", &cfg.Add},
		{"INPUT_DOTFILES", &cfg.Dotfiles},
		{"INPUT_PUSH", &cfg.Push},
		{"INPUT_HISTORY", &cfg.History},
		{"INPUT_SILENT", &cfg.Silent},
		{"INPUT_NOJEKYLL", &cfg.NoJekyll},
		{"INPUT_VERBOSE", &cfg.Verbose},
	}
	for _, b := range bools {
		raw := strings.TrimSpace(os.Getenv(b.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", b.key, err)
		}
		*b.dst = v
	}

	if rawDepth := strings.TrimSpace(os.Getenv("INPUT_DEPTH")); rawDepth != "" {
		depth, err := strconv.Atoi(rawDepth)
		if err != nil || depth < 1 {
			return Config{}, fmt.Errorf("parse INPUT_DEPTH: must be a positive integer, got %q", rawDepth)
		}
		cfg.Depth = depth
	}

	if rawRetries := strings.TrimSpace(os.Getenv("INPUT_NETWORK_RETRIES")); rawRetries != "" {
		retries, err := strconv.Atoi(rawRetries)
		if err != nil || retries < 0 {
			return Config{}, fmt.Errorf("parse INPUT_NETWORK_RETRIES: must be a non-negative integer, got %q", rawRetries)
		}
		cfg.NetworkRetries = retries
	}

	if rawUser := strings.TrimSpace(os.Getenv("INPUT_USER")); rawUser != "" {
		user, err := identity.Parse(rawUser)
		if err != nil {
			return Config{}, fmt.Errorf("parse INPUT_USER: %w", err)
		}
		cfg.User = user
	}

	if cfg.Dir == "" {
		return Config{}, fmt.Errorf("INPUT_DIR is required")
	}

	if len(cfg.Src) == 0 {
		cfg.Src = []string{publish.DefaultSrc}
	}

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return Config{}, fmt.Errorf("INPUT_GITHUB_BASE_URL and INPUT_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// PublishOptions converts the configuration into publish options.
func (c Config) PublishOptions() publish.Options {
	opts := publish.DefaultOptions()
	opts.Src = append([]string(nil), c.Src...)
	opts.Branch = c.Branch
	opts.Dest = c.Dest
	opts.Add = c.Add
	opts.Remove = c.Remove
	opts.Message = c.Message
	opts.Tag = c.Tag
	opts.Dotfiles = c.Dotfiles
	opts.Repo = c.Repo
	opts.Depth = c.Depth
	opts.Remote = c.Remote
	opts.User = c.User
	opts.Push = c.Push
	opts.History = c.History
	opts.Silent = c.Silent
	opts.NoJekyll = c.NoJekyll
	opts.CNAME = c.CNAME
	opts.Git = c.Git
	return opts
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
