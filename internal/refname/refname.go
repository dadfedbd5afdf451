// Package refname normalizes and validates the branch and tag names a publish
// writes to.
package refname

import (
	"errors"
	"fmt"
	"strings"
)

// NormalizeBranch trims whitespace, removes leading/trailing slashes, and strips
// refs/heads prefixes from a branch name. It returns an empty string when the
// normalized branch would otherwise be empty.
func NormalizeBranch(branch string) string {
	return normalize(branch, "refs/heads/")
}

// NormalizeTag is NormalizeBranch for tags, stripping refs/tags.
func NormalizeTag(tag string) string {
	return normalize(tag, "refs/tags/")
}

func normalize(name, prefix string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "/")

	if len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
		name = name[len(prefix):]
	}

	name = strings.TrimSpace(name)
	name = strings.Trim(name, "/")

	return strings.TrimSpace(name)
}

// ValidateBranch reports whether branch is usable as a git branch name.
func ValidateBranch(branch string) error {
	if err := validate(branch); err != nil {
		return fmt.Errorf("invalid branch %q: %w", branch, err)
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("invalid branch %q: %w", branch, errors.New("name cannot start with '-'"))
	}
	return nil
}

// ValidateTag reports whether tag is usable as a git tag name.
func ValidateTag(tag string) error {
	if err := validate(tag); err != nil {
		return fmt.Errorf("invalid tag %q: %w", tag, err)
	}
	return nil
}

func validate(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}

	if strings.ContainsAny(name, " \t\n\r") {
		return errors.New("name cannot contain whitespace")
	}

	if strings.Contains(name, "..") {
		return errors.New("name cannot contain '..'")
	}

	if strings.ContainsAny(name, "~^:?*[]\\") || strings.Contains(name, "@{") {
		return errors.New("name contains forbidden git characters")
	}

	if strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") || strings.Contains(name, "//") {
		return errors.New("name is not a valid ref component")
	}

	return nil
}

// ParseList splits comma or newline separated input into trimmed, non-empty
// entries, preserving order.
func ParseList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}

	return items
}
