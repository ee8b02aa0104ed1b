package builtin

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreMatcher matches workspace-relative paths against the workspace
// .gitignore. The zero value never ignores.
type ignoreMatcher struct {
	matcher gitignore.Matcher
}

// loadIgnoreMatcher reads .gitignore from root. A missing or unreadable
// file yields a matcher that never ignores.
func loadIgnoreMatcher(root string) ignoreMatcher {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ignoreMatcher{}
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return ignoreMatcher{}
	}
	return ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}
}

// ShouldIgnore reports whether a workspace-relative path is ignored.
func (m ignoreMatcher) ShouldIgnore(relativePath string, isDir bool) bool {
	if m.matcher == nil {
		return false
	}
	segments := splitPath(relativePath)
	if len(segments) == 0 {
		return false
	}
	return m.matcher.Match(segments, isDir)
}

// splitPath splits a path into segments for gitignore matching.
// It normalizes path separators and filters out empty and "." segments.
func splitPath(path string) []string {
	var segments []string
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && part != "." {
			segments = append(segments, part)
		}
	}
	return segments
}
