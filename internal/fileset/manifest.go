package fileset

import (
	"path/filepath"
	"slices"
	"strings"
)

// Manifest is an ordered set of files plus the directories needed to hold
// them, parents first.
type Manifest struct {
	Files []string
	Dirs  []string
}

// NewManifest builds a Manifest for files. Files keeps the order of files.
func NewManifest(files []string) Manifest {
	return Manifest{
		Files: slices.Clone(files),
		Dirs:  DirsToCreate(files),
	}
}

// UniqueDirs returns every directory on the parent chain of each file, in no
// particular order. Files at the top level contribute "."; absolute paths
// contribute the filesystem root.
func UniqueDirs(files []string) []string {
	sep := string(filepath.Separator)
	seen := make(map[string]struct{})
	var dirs []string
	add := func(d string) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}

	for _, file := range files {
		parts := strings.Split(filepath.Dir(file), sep)
		partial := parts[0]
		if partial == "" {
			partial = sep
		}
		add(partial)
		for _, part := range parts[1:] {
			partial = filepath.Join(partial, part)
			add(partial)
		}
	}
	return dirs
}

// ByShortPath orders paths with fewer segments first. Paths with the same
// number of segments compare segment by segment.
func ByShortPath(a, b string) int {
	sep := string(filepath.Separator)
	aParts := strings.Split(a, sep)
	bParts := strings.Split(b, sep)
	if len(aParts) != len(bParts) {
		if len(aParts) < len(bParts) {
			return -1
		}
		return 1
	}
	for i := range aParts {
		if c := strings.Compare(aParts[i], bParts[i]); c != 0 {
			return c
		}
	}
	return 0
}

// DirsToCreate returns the unique directories of files sorted by ByShortPath,
// so every parent precedes its children.
func DirsToCreate(files []string) []string {
	dirs := UniqueDirs(files)
	slices.SortFunc(dirs, ByShortPath)
	return dirs
}
