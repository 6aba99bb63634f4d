package tidy

import (
	"path/filepath"
	"strings"
)

// excludePattern is a glob with its matching strategy.
type excludePattern struct {
	pattern   string
	matchPath bool // match the relative path instead of the base name
}

// ExcludeMatcher checks paths against exclusion globs.
// Patterns without '/' match the base name; patterns with '/' match the
// path relative to the scan root.
type ExcludeMatcher struct {
	patterns []excludePattern
}

// NewExcludeMatcher skips blank patterns and '#' comments.
func NewExcludeMatcher(rawPatterns []string) *ExcludeMatcher {
	var patterns []excludePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.TrimSuffix(filepath.ToSlash(raw), "/")
		patterns = append(patterns, excludePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &ExcludeMatcher{patterns: patterns}
}

// Match reports whether relativePath is excluded. Malformed patterns never match.
func (m *ExcludeMatcher) Match(relativePath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	normalized := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)
	for _, p := range m.patterns {
		subject := base
		if p.matchPath {
			subject = normalized
		}
		if ok, err := filepath.Match(p.pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}
