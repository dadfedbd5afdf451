package fileset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
	"golang.org/x/sync/errgroup"
)

// DefaultCopyConcurrency bounds the number of files copied at once.
const DefaultCopyConcurrency = 8

// Copier copies a list of files from one tree into another.
type Copier struct {
	// Concurrency bounds parallel file copies. When zero,
	// DefaultCopyConcurrency is used.
	Concurrency int
}

// Copy copies files, given relative to base, into dest with the same relative
// layout using a default Copier.
func Copy(ctx context.Context, files []string, base, dest string) error {
	return (&Copier{}).Copy(ctx, files, base, dest)
}

// Copy creates every destination directory, shortest path first, before any
// file is copied. Files are then copied concurrently; existing destination
// files are overwritten and symlinks are copied as the file they point to.
func (c *Copier) Copy(ctx context.Context, files []string, base, dest string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("resolve base: %w", err)
	}

	srcs := make([]string, 0, len(files))
	targets := make([]string, 0, len(files))
	for _, file := range files {
		src := file
		if !filepath.IsAbs(src) {
			src = filepath.Join(base, file)
		}
		src, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", file, err)
		}
		rel, err := filepath.Rel(absBase, src)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", file, err)
		}
		target := filepath.Join(dest, rel)
		srcs = append(srcs, src)
		targets = append(targets, target)
	}

	manifest := NewManifest(targets)
	for _, dir := range manifest.Dirs {
		if err := makeDir(dir); err != nil {
			return err
		}
	}

	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultCopyConcurrency
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	opts := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Deep
		},
	}
	for i, target := range manifest.Files {
		target := target
		src := srcs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := cp.Copy(src, target, opts); err != nil {
				return fmt.Errorf("copy %s: %w", src, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// makeDir creates dir unless a directory already exists there.
func makeDir(dir string) error {
	if info, err := os.Stat(dir); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("create %s: %w", dir, fs.ErrExist)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
				return nil
			}
		}
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
