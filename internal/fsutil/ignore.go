// Package fsutil holds filesystem helpers shared by the build and the watcher.
package fsutil

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var ignoredExtensions = map[string]struct{}{
	".swp": {}, ".swo": {}, ".swx": {}, ".tmp": {}, ".bak": {},
	".orig": {}, ".part": {}, ".crdownload": {},
}

// IsIgnoredName reports whether a file name is a dotfile, an OS artifact, or an
// editor swap or backup file.
func IsIgnoredName(name string) bool {
	if name == "" {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	if lower == "thumbs.db" {
		return true
	}
	if strings.HasSuffix(name, "~") {
		return true
	}
	if len(name) > 1 && strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#") {
		return true
	}
	_, ok := ignoredExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Matcher combines the built-in name rules with user-supplied doublestar globs.
//
// Globs are matched against slash-separated paths relative to the content root.
type Matcher struct {
	patterns []string
}

// NewMatcher validates and stores patterns.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

// Ignored reports whether the relative slash path rel should be skipped.
// Any ignored path segment excludes the whole path.
func (m *Matcher) Ignored(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, seg := range strings.Split(rel, "/") {
		if seg != "" && IsIgnoredName(seg) {
			return true
		}
	}
	if m == nil {
		return false
	}
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

// PatternError reports an invalid glob.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string { return "invalid ignore pattern: " + e.Pattern }
