package app

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/rancher/gh-pages-action/internal/identity"
	"github.com/rancher/gh-pages-action/internal/publish"
)

// Flags holds the command line options of the gh-pages command.
type Flags struct {
	Dist      string
	Src       []string
	Branch    string
	Dest      string
	Add       bool
	Silent    bool
	Message   string
	Tag       string
	Dotfiles  bool
	Repo      string
	Depth     int
	Remote    string
	User      string
	Remove    string
	Git       string
	NoPush    bool
	NoHistory bool
	NoJekyll  bool
	CNAME     string
	Config    string
	LogLevel  string
	LogFormat string

	fs *pflag.FlagSet
}

// BindFlags registers the publish flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.Dist, "dist", "d", "", "Base directory for all source files")
	fs.StringSliceVarP(&f.Src, "src", "s", []string{publish.DefaultSrc}, "Pattern used to select which files to publish (repeatable)")
	fs.StringVarP(&f.Branch, "branch", "b", publish.DefaultBranch, "Name of the branch you are pushing to")
	fs.StringVarP(&f.Dest, "dest", "e", publish.DefaultDest, "Target directory within the destination branch (relative to the root)")
	fs.BoolVarP(&f.Add, "add", "a", false, "Only add, and never remove existing files")
	fs.BoolVarP(&f.Silent, "silent", "x", false, "Do not output the repository url")
	fs.StringVarP(&f.Message, "message", "m", publish.DefaultMessage, "commit message")
	fs.StringVarP(&f.Tag, "tag", "g", "", "add tag to commit")
	fs.BoolVarP(&f.Dotfiles, "dotfiles", "t", false, "Include dotfiles")
	fs.StringVarP(&f.Repo, "repo", "r", "", "URL of the repository you are pushing to")
	fs.IntVarP(&f.Depth, "depth", "p", publish.DefaultDepth, "depth for clone")
	fs.StringVarP(&f.Remote, "remote", "o", publish.DefaultRemote, "The name of the remote")
	fs.StringVarP(&f.User, "user", "u", "", `The name and email of the user (defaults to the git config). Format is "Your Name <email@example.com>".`)
	fs.StringVarP(&f.Remove, "remove", "v", publish.DefaultRemove, "Remove files that match the given pattern (ignored if used together with --add).")
	fs.StringVar(&f.Git, "git", publish.DefaultGit, "Path to git executable")
	fs.BoolVarP(&f.NoPush, "no-push", "n", false, "Commit only (with no push)")
	fs.BoolVarP(&f.NoHistory, "no-history", "f", false, "Push force new commit without parent history")
	fs.BoolVar(&f.NoJekyll, "nojekyll", false, "Add a .nojekyll file to disable Jekyll")
	fs.StringVar(&f.CNAME, "cname", "", "Add a CNAME file with the name of your custom domain")
	fs.StringVar(&f.Config, "config", "", "Path to a YAML file with publish options")
	fs.StringVar(&f.LogLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFormat, "log-format", defaultLogFormat, "Log format (text, json)")
	return f
}

// Options builds publish options from defaults, the optional config file and
// the flags explicitly set on the command line, in increasing precedence. It
// also returns the base directory to publish.
func (f *Flags) Options() (publish.Options, string, error) {
	opts := publish.DefaultOptions()
	dist := f.Dist

	if f.Config != "" {
		fc, err := LoadFile(f.Config)
		if err != nil {
			return publish.Options{}, "", err
		}
		if err := fc.Apply(&opts); err != nil {
			return publish.Options{}, "", fmt.Errorf("config file %s: %w", f.Config, err)
		}
		if !f.changed("dist") && fc.Dist != "" {
			dist = fc.Dist
		}
	}

	if dist == "" {
		return publish.Options{}, "", fmt.Errorf("the base directory for all source files must be specified (--dist)")
	}

	if f.changed("src") {
		opts.Src = append([]string(nil), f.Src...)
	}
	f.override("branch", &opts.Branch, f.Branch)
	f.override("dest", &opts.Dest, f.Dest)
	f.override("message", &opts.Message, f.Message)
	f.override("tag", &opts.Tag, f.Tag)
	f.override("repo", &opts.Repo, f.Repo)
	f.override("remote", &opts.Remote, f.Remote)
	f.override("remove", &opts.Remove, f.Remove)
	f.override("git", &opts.Git, f.Git)
	f.override("cname", &opts.CNAME, f.CNAME)
	if f.changed("add") {
		opts.Add = f.Add
	}
	if f.changed("silent") {
		opts.Silent = f.Silent
	}
	if f.changed("dotfiles") {
		opts.Dotfiles = f.Dotfiles
	}
	if f.changed("nojekyll") {
		opts.NoJekyll = f.NoJekyll
	}
	if f.changed("no-push") {
		opts.Push = !f.NoPush
	}
	if f.changed("no-history") {
		opts.History = !f.NoHistory
	}
	if f.changed("depth") {
		if f.Depth < 1 {
			return publish.Options{}, "", fmt.Errorf("depth must be positive, got %d", f.Depth)
		}
		opts.Depth = f.Depth
	}
	if f.changed("user") {
		user, err := identity.Parse(f.User)
		if err != nil {
			return publish.Options{}, "", fmt.Errorf("parse --user: %w", err)
		}
		opts.User = user
	}

	return opts, dist, nil
}

func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

func (f *Flags) override(name string, dst *string, v string) {
	if f.changed(name) {
		*dst = v
	}
}
