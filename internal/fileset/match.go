package fileset

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchOptions controls how patterns are expanded.
type MatchOptions struct {
	// Dot lets wildcards match path segments that start with a dot.
	Dot bool
}

// Match expands patterns under root and returns the matching regular files as
// slash-free relative paths using the host separator, sorted and without
// duplicates. A pattern prefixed with "!" removes its matches from the result
// of the positive patterns. Directories never match.
func Match(root string, patterns []string, opts MatchOptions) ([]string, error) {
	fsys := os.DirFS(root)

	var positive, negative []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			negative = append(negative, filepath.ToSlash(neg))
			continue
		}
		positive = append(positive, filepath.ToSlash(p))
	}

	seen := make(map[string]struct{})
	var matches []string
	for _, pattern := range positive {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
		found, err := doublestar.Glob(fsys, strings.TrimPrefix(pattern, "./"), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		for _, m := range found {
			if !opts.Dot && hasHiddenSegment(m) && !explicitDot(pattern) {
				continue
			}
			if excluded(m, negative) {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			matches = append(matches, m)
		}
	}

	slices.Sort(matches)
	for i, m := range matches {
		matches[i] = filepath.FromSlash(m)
	}
	return matches, nil
}

func excluded(path string, negative []string) bool {
	for _, n := range negative {
		if ok, _ := doublestar.Match(strings.TrimPrefix(n, "./"), path); ok {
			return true
		}
	}
	return false
}

func hasHiddenSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// explicitDot reports whether a pattern names a dot segment literally, in
// which case hidden files it matches are kept even without Dot.
func explicitDot(pattern string) bool {
	for _, seg := range strings.Split(strings.TrimPrefix(pattern, "./"), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
