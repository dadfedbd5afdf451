package publish_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/gh-pages-action/internal/cache"
	"github.com/rancher/gh-pages-action/internal/git"
	"github.com/rancher/gh-pages-action/internal/identity"
	"github.com/rancher/gh-pages-action/internal/publish"
)

var _ = Describe("Publisher", func() {
	var (
		ctx       context.Context
		tmp       string
		base      string
		remote    string
		remoteURL string
		store     *cache.Cache
		publisher *publish.Publisher
		opts      publish.Options
	)

	siteFiles := map[string]string{
		"index.html":       "<h1>home</h1>\n",
		"css/site.css":     "body {}\n",
		"js/app.js":        "app()\n",
		"js/vendor/lib.js": "lib()\n",
	}

	setup := func(pages map[string]string) {
		remote = newRemote(tmp, pages)
		remoteURL = "file://" + remote
		opts.Repo = remoteURL
	}

	BeforeEach(func() {
		ctx = context.Background()
		tmp = GinkgoT().TempDir()
		base = filepath.Join(tmp, "dist")
		writeFiles(base, siteFiles)

		var err error
		store, err = cache.New(filepath.Join(tmp, "cache"))
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		publisher = publish.New(store, nil, logger)

		opts = publish.DefaultOptions()
		opts.User = &identity.Identity{Name: "Pages Bot", Email: "pages@example.com"}
	})

	Context("when the branch does not exist yet", func() {
		BeforeEach(func() {
			setup(nil)
		})

		It("creates an orphan branch holding exactly the published files", func() {
			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Committed).To(BeTrue())
			Expect(result.Pushed).To(BeTrue())
			Expect(result.Files).To(Equal(4))
			Expect(result.Branch).To(Equal("gh-pages"))
			Expect(result.Dir).To(Equal(store.Path(remoteURL)))

			pages := readBranch(remote, "gh-pages")
			Expect(pages.files).To(Equal(siteFiles))
			Expect(pages.commit.NumParents()).To(Equal(0))
			Expect(pages.commit.Message).To(Equal("Updates\n"))
			Expect(pages.commit.Author.Email).To(Equal("pages@example.com"))
			Expect(pages.commit.Hash.String()).To(Equal(result.Commit))

			Expect(readBranch(remote, "main").names()).To(Equal([]string{"README.md"}))
		})

		It("skips the commit when nothing changed", func() {
			first, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			second, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Committed).To(BeFalse())
			Expect(second.Pushed).To(BeTrue())
			Expect(second.Commit).To(Equal(first.Commit))
			Expect(commitCount(remote, "gh-pages")).To(Equal(1))
		})

		It("keeps history across publishes", func() {
			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			writeFiles(base, map[string]string{"index.html": "<h1>v2</h1>\n"})
			_, err = publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			pages := readBranch(remote, "gh-pages")
			Expect(pages.files["index.html"]).To(Equal("<h1>v2</h1>\n"))
			Expect(pages.commit.NumParents()).To(Equal(1))
			Expect(commitCount(remote, "gh-pages")).To(Equal(2))
		})

		It("force pushes a single root commit when history is discarded", func() {
			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			writeFiles(base, map[string]string{"index.html": "<h1>fresh</h1>\n"})
			opts.History = false
			_, err = publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			pages := readBranch(remote, "gh-pages")
			Expect(pages.commit.NumParents()).To(Equal(0))
			Expect(commitCount(remote, "gh-pages")).To(Equal(1))
			Expect(pages.files["index.html"]).To(Equal("<h1>fresh</h1>\n"))
		})

		It("commits without pushing when push is disabled", func() {
			opts.Push = false
			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Committed).To(BeTrue())
			Expect(result.Pushed).To(BeFalse())
			Expect(branchExists(remote, "gh-pages")).To(BeFalse())
		})

		It("filters files with src patterns and honours dotfiles", func() {
			writeFiles(base, map[string]string{".well-known/security.txt": "contact\n"})
			opts.Src = []string{"**/*", "!js/vendor/**"}
			opts.Dotfiles = true

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(readBranch(remote, "gh-pages").names()).To(Equal([]string{
				".well-known/security.txt",
				"css/site.css",
				"index.html",
				"js/app.js",
			}))
		})

		It("writes marker files at the branch root", func() {
			opts.NoJekyll = true
			opts.CNAME = "pages.example.com"
			opts.Dest = "docs"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			pages := readBranch(remote, "gh-pages")
			Expect(pages.files).To(HaveKeyWithValue(".nojekyll", ""))
			Expect(pages.files).To(HaveKeyWithValue("CNAME", "pages.example.com"))
			Expect(pages.files).To(HaveKey("docs/index.html"))
		})

		It("leaves nothing from the default branch next to a dest directory", func() {
			opts.Dest = "target"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			pages := readBranch(remote, "gh-pages")
			Expect(pages.names()).To(Equal([]string{
				"target/css/site.css",
				"target/index.html",
				"target/js/app.js",
				"target/js/vendor/lib.js",
			}))
			Expect(pages.commit.NumParents()).To(Equal(0))
		})

		It("publishes more files than fit in one batch", func() {
			many := map[string]string{}
			for i := 0; i < 120; i++ {
				many[fmt.Sprintf("pages/page-%03d.html", i)] = fmt.Sprintf("page %d\n", i)
			}
			writeFiles(base, many)
			publisher.BatchSize = 50

			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Files).To(Equal(124))
			Expect(readBranch(remote, "gh-pages").files).To(HaveLen(124))
		})

		It("runs the before-add hook with the working copy", func() {
			var seen string
			opts.BeforeAdd = func(ctx context.Context, repo *git.Repository) error {
				seen = repo.Dir
				return os.Remove(filepath.Join(repo.Dir, "js", "app.js"))
			}

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal(store.Path(remoteURL)))
			Expect(readBranch(remote, "gh-pages").files).NotTo(HaveKey("js/app.js"))
		})

		It("aborts before staging when the before-add hook fails", func() {
			hookErr := errors.New("hook failed")
			opts.BeforeAdd = func(context.Context, *git.Repository) error {
				return hookErr
			}

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).To(MatchError(hookErr))
			Expect(branchExists(remote, "gh-pages")).To(BeFalse())
		})

		It("continues when the tag already exists", func() {
			opts.Tag = "v1.0.0"
			first, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Tagged).To(BeTrue())

			writeFiles(base, map[string]string{"index.html": "<h1>v2</h1>\n"})
			second, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Tagged).To(BeFalse())
			Expect(second.Pushed).To(BeTrue())
			Expect(readBranch(remote, "gh-pages").files["index.html"]).To(Equal("<h1>v2</h1>\n"))
		})

		It("discards local drift in the cached working copy", func() {
			first, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			writeFiles(first.Dir, map[string]string{
				"index.html": "local edit\n",
				"stray.txt":  "untracked\n",
			})
			runGit(first.Dir, "add", "index.html")
			runGit(first.Dir, "commit", "-m", "unpushed local commit")

			second, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Committed).To(BeFalse())

			pages := readBranch(remote, "gh-pages")
			Expect(pages.files).To(Equal(siteFiles))
			Expect(commitCount(remote, "gh-pages")).To(Equal(1))
		})

		It("reads the repository url from the working directory remote", func() {
			project := filepath.Join(tmp, "project")
			runGit(project, "init")
			runGit(project, "remote", "add", "upstream", remoteURL)

			publisher.WorkDir = project
			opts.Repo = ""
			opts.Remote = "upstream"

			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RepoURL).To(Equal(remoteURL))
			Expect(branchExists(remote, "gh-pages")).To(BeTrue())
		})

		It("fails with guidance when no remote is configured", func() {
			project := filepath.Join(tmp, "project")
			runGit(project, "init")

			publisher.WorkDir = project
			opts.Repo = ""

			_, err := publisher.Publish(ctx, base, opts)
			var urlErr *git.RemoteURLError
			Expect(errors.As(err, &urlErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(`"repo" option`))
		})

		It("rejects a cached working copy with a different remote", func() {
			other := filepath.Join(tmp, "other.git")
			runGit(tmp, "init", "--bare", other)
			dir := store.Path(remoteURL)
			runGit(dir, "init")
			runGit(dir, "remote", "add", "origin", "file://"+other)

			_, err := publisher.Publish(ctx, base, opts)
			var mismatch *publish.RemoteMismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Want).To(Equal(remoteURL))
			Expect(mismatch.Got).To(Equal("file://" + other))
			Expect(err.Error()).To(ContainSubstring("gh-pages clean"))

			Expect(store.Clean()).To(Succeed())
			_, err = publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("when the branch already exists", func() {
		BeforeEach(func() {
			setup(map[string]string{
				"keep.txt":          "root sibling\n",
				"old.html":          "stale\n",
				"target/old.txt":    "stale target\n",
				"target/keep.json":  "{}\n",
				"target/nested/x.md": "x\n",
			})
		})

		It("replaces the branch contents", func() {
			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Removed).To(Equal(5))

			pages := readBranch(remote, "gh-pages")
			Expect(pages.files).To(Equal(siteFiles))
			Expect(pages.commit.NumParents()).To(Equal(1))
		})

		It("only touches the destination directory", func() {
			opts.Dest = "target"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			Expect(readBranch(remote, "gh-pages").names()).To(Equal([]string{
				"keep.txt",
				"old.html",
				"target/css/site.css",
				"target/index.html",
				"target/js/app.js",
				"target/js/vendor/lib.js",
			}))
		})

		It("keeps existing files in add-only mode", func() {
			opts.Add = true

			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Removed).To(Equal(0))

			names := readBranch(remote, "gh-pages").names()
			Expect(names).To(ContainElements("keep.txt", "old.html", "target/old.txt", "index.html", "js/app.js"))
			Expect(names).To(HaveLen(9))
		})

		It("removes only files matching the remove pattern", func() {
			opts.Remove = "*.html"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			names := readBranch(remote, "gh-pages").names()
			Expect(names).NotTo(ContainElement("old.html"))
			Expect(names).To(ContainElements("keep.txt", "target/old.txt", "index.html"))
		})

		It("treats only as an alias of remove", func() {
			opts.Only = "target/**"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			names := readBranch(remote, "gh-pages").names()
			Expect(names).To(ContainElements("keep.txt", "old.html"))
			Expect(names).NotTo(ContainElement("target/old.txt"))
		})

		It("prefers an explicit remove over only", func() {
			opts.Remove = "old.html"
			opts.Only = "target/**"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			names := readBranch(remote, "gh-pages").names()
			Expect(names).NotTo(ContainElement("old.html"))
			Expect(names).To(ContainElement("target/old.txt"))
		})
	})

	Context("validation", func() {
		var runner *git.RecordingRunner

		BeforeEach(func() {
			runner = git.NewNoopRunner()
			publisher = publish.New(store, runner, nil)
			opts.Repo = "https://example.com/site.git"
		})

		It("fails without running git when no files match", func() {
			opts.Src = []string{"**/*.pdf"}

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).To(MatchError(publish.ErrNoFilesMatched))
			Expect(runner.Calls()).To(BeEmpty())
		})

		It("fails without running git when the base is not a directory", func() {
			_, err := publisher.Publish(ctx, filepath.Join(base, "index.html"), opts)
			Expect(err).To(MatchError(publish.ErrBaseNotDirectory))

			_, err = publisher.Publish(ctx, filepath.Join(tmp, "missing"), opts)
			Expect(err).To(MatchError(publish.ErrBaseNotDirectory))
			Expect(runner.Calls()).To(BeEmpty())
		})

		It("rejects a destination outside the branch", func() {
			opts.Dest = "../escape"

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).To(HaveOccurred())
			Expect(runner.Calls()).To(BeEmpty())
		})

		It("rejects invalid branch and tag names", func() {
			opts.Branch = "gh pages"
			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).To(MatchError(ContainSubstring("invalid branch")))

			opts.Branch = "refs/heads/gh-pages"
			opts.Tag = "v1..2"
			_, err = publisher.Publish(ctx, base, opts)
			Expect(err).To(MatchError(ContainSubstring("invalid tag")))
			Expect(runner.Calls()).To(BeEmpty())
		})

		It("masks errors in silent mode", func() {
			opts.Src = []string{"**/*.pdf"}
			opts.Silent = true

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).To(MatchError(publish.ErrSilenced))
			Expect(err.Error()).To(Equal("Unspecified error (run without silent option for detail)"))
		})

		It("hands the same error to the callback", func() {
			opts.Src = []string{"**/*.pdf"}

			var got error
			called := 0
			_, err := publisher.PublishWithCallback(ctx, base, opts, func(err error) {
				called++
				got = err
			})
			Expect(called).To(Equal(1))
			Expect(err).To(MatchError(publish.ErrNoFilesMatched))
			Expect(got).To(BeIdenticalTo(err))
		})

		It("recovers from a panicking callback", func() {
			opts.Src = []string{"**/*.pdf"}

			var err error
			Expect(func() {
				_, err = publisher.PublishWithCallback(ctx, base, opts, func(error) {
					panic("callback exploded")
				})
			}).NotTo(Panic())
			Expect(err).To(MatchError(publish.ErrNoFilesMatched))
		})

		It("falls back to the default user when git config names nobody", func() {
			runner.Respond = func(call git.Call) (string, error) {
				switch call.Args[0] {
				case "clone":
					return "", os.MkdirAll(call.Args[2], 0o755)
				case "config":
					if len(call.Args) == 2 {
						return "", &git.ProcessError{Args: call.Args, ExitCode: 1}
					}
					return opts.Repo + "\n", nil
				case "ls-remote":
					return "", &git.ProcessError{Args: call.Args, ExitCode: 2}
				case "diff-index":
					return "", &git.ProcessError{Args: call.Args, ExitCode: 1}
				}
				return "", nil
			}
			opts.User = nil
			opts.DefaultUser = &identity.Identity{Name: "Fallback Bot", Email: "fallback@example.com"}

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			var lines []string
			for _, call := range runner.Calls() {
				lines = append(lines, call.String())
			}
			Expect(lines).To(ContainElements(
				"git config user.email fallback@example.com",
				"git config user.name Fallback Bot",
			))
		})

		It("prefers the git config identity over the default user", func() {
			runner.Respond = func(call git.Call) (string, error) {
				switch call.Args[0] {
				case "clone":
					return "", os.MkdirAll(call.Args[2], 0o755)
				case "config":
					switch {
					case len(call.Args) == 2 && call.Args[1] == "user.email":
						return "dev@example.com\n", nil
					case len(call.Args) == 2 && call.Args[1] == "user.name":
						return "Dev\n", nil
					}
					return opts.Repo + "\n", nil
				case "ls-remote":
					return "", &git.ProcessError{Args: call.Args, ExitCode: 2}
				case "diff-index":
					return "", &git.ProcessError{Args: call.Args, ExitCode: 1}
				}
				return "", nil
			}
			opts.User = nil
			opts.DefaultUser = &identity.Identity{Name: "Fallback Bot", Email: "fallback@example.com"}

			_, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())

			var lines []string
			for _, call := range runner.Calls() {
				lines = append(lines, call.String())
			}
			Expect(lines).To(ContainElement("git config user.email dev@example.com"))
			Expect(lines).NotTo(ContainElement(ContainSubstring("fallback@example.com")))
		})

		It("issues the pipeline commands in order", func() {
			runner.Respond = func(call git.Call) (string, error) {
				switch call.Args[0] {
				case "clone":
					return "", os.MkdirAll(call.Args[2], 0o755)
				case "config":
					return opts.Repo + "\n", nil
				case "ls-remote":
					return "", &git.ProcessError{Args: call.Args, ExitCode: 2}
				case "diff-index":
					return "", &git.ProcessError{Args: call.Args, ExitCode: 1}
				case "rev-parse":
					return "abc123\n", nil
				}
				return "", nil
			}
			opts.Tag = "v1"
			opts.History = false

			result, err := publisher.Publish(ctx, base, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Commit).To(Equal("abc123"))

			Expect(runner.Commands()).To(Equal([]string{
				"clone",
				"config",
				"clean",
				"fetch",
				"ls-remote",
				"checkout",
				"rm",
				"update-ref",
				"add",
				"config",
				"config",
				"diff-index",
				"commit",
				"rev-parse",
				"tag",
				"push",
			}))
			calls := runner.Calls()
			Expect(calls[len(calls)-1].Args).To(Equal([]string{"push", "--tags", "origin", "gh-pages", "--force"}))
		})
	})
})
