// Package cache owns the on-disk working copies reused across publishes.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnvCacheDir overrides the cache root.
const EnvCacheDir = "GH_PAGES_CACHE_DIR"

// Cache maps repository URLs to working-copy directories under Root. Callers
// must not run two publishes against the same directory at once.
type Cache struct {
	Root string
}

// New returns a Cache rooted at root, or at DefaultRoot when root is empty.
func New(root string) (*Cache, error) {
	if root == "" {
		var err error
		root, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	return &Cache{Root: abs}, nil
}

// DefaultRoot returns $GH_PAGES_CACHE_DIR, or gh-pages under the user cache
// directory.
func DefaultRoot() (string, error) {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate user cache dir: %w", err)
	}
	return filepath.Join(base, "gh-pages"), nil
}

// Path returns the working-copy directory for repoURL.
func (c *Cache) Path(repoURL string) string {
	return filepath.Join(c.Root, Key(repoURL))
}

// Clean deletes the whole cache tree. A missing root is not an error.
func (c *Cache) Clean() error {
	if c == nil || c.Root == "" {
		return errors.New("cache root is not set")
	}
	if filepath.Dir(c.Root) == c.Root {
		return fmt.Errorf("refusing to remove filesystem root %s", c.Root)
	}
	if err := os.RemoveAll(c.Root); err != nil {
		return fmt.Errorf("remove cache %s: %w", c.Root, err)
	}
	return nil
}
