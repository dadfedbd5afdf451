package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rancher/gh-pages-action/internal/app"
	"github.com/rancher/gh-pages-action/internal/cache"
	"github.com/rancher/gh-pages-action/internal/publish"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand creates the gh-pages command and its clean subcommand.
func newRootCommand() *cobra.Command {
	var flags *app.Flags

	cmd := &cobra.Command{
		Use:   "gh-pages",
		Short: "Publish files to a gh-pages branch on GitHub (or any other branch anywhere else)",
		Long: `Publish the files of a directory to a branch of a git repository.

The target repository is cloned into a per-user cache directory, the branch is
checked out (or created without history), the selected files are copied in,
committed and pushed.

Configuration sources (in precedence order):
  1. Command-line flags
  2. The YAML file given with --config
  3. Built-in defaults

Examples:
  gh-pages -d dist
  gh-pages -d dist -b main -e docs -m "Deploy docs"
  gh-pages -d dist -s "**/*.html" -s "!drafts/**" --nojekyll --cname example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, dist, err := flags.Options()
			if err != nil {
				return err
			}

			logger, err := app.NewLoggerTo(cmd.ErrOrStderr(), flags.LogLevel, flags.LogFormat)
			if err != nil {
				return err
			}

			c, err := openCache()
			if err != nil {
				return err
			}

			publisher := publish.New(c, nil, logger)
			if _, err := publisher.Publish(cmd.Context(), dist, opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Published")
			return nil
		},
	}

	flags = app.BindFlags(cmd.Flags())
	cmd.AddCommand(newCleanCommand())
	return cmd
}

func newCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the cache directory holding cloned repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			return c.Clean()
		},
	}
}

func openCache() (*cache.Cache, error) {
	root, err := cache.DefaultRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	return cache.New(root)
}
