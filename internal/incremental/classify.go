// Package incremental decides how much of the site a single filesystem change
// invalidates and applies the narrowest correct rebuild.
package incremental

import (
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitegen/internal/fsutil"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/theme"
)

// ChangeType is the closed set of change categories.
type ChangeType int

const (
	ChangeUnrelated ChangeType = iota
	ChangeThemeRelated
	ChangeSiteConfig
	ChangeMarkdown
	ChangeAsset
)

func (c ChangeType) String() string {
	switch c {
	case ChangeThemeRelated:
		return "theme"
	case ChangeSiteConfig:
		return "site_config"
	case ChangeMarkdown:
		return "markdown"
	case ChangeAsset:
		return "asset"
	default:
		return "unrelated"
	}
}

// Change is the classification of one changed path.
type Change struct {
	Type ChangeType
	// RelativePath is set for ChangeMarkdown: slash-separated, relative to the content root.
	RelativePath string
}

// FullRebuild reports whether the change invalidates an unbounded set of pages.
func (c Change) FullRebuild() bool {
	switch c.Type {
	case ChangeThemeRelated, ChangeSiteConfig, ChangeUnrelated:
		return true
	}
	return false
}

// Classify maps a changed path to exactly one change category. It never fails and
// has no side effects beyond reading filesystem metadata.
//
// Rules, first match wins: inside the theme root, or an .html file under a
// templates directory, is a theme change; anything outside the content root is
// unrelated; site.toml is a site config change; .md is markdown; the rest are assets.
func Classify(changed, themeRoot, contentRoot string) Change {
	if isThemePath(changed, themeRoot) || isTemplateFile(changed) {
		return Change{Type: ChangeThemeRelated}
	}

	canonChanged := fsutil.Canonical(changed)
	canonRoot := fsutil.Canonical(contentRoot)
	if !fsutil.Within(canonChanged, canonRoot) {
		return Change{Type: ChangeUnrelated}
	}

	if filepath.Base(canonChanged) == site.ConfigFileName {
		return Change{Type: ChangeSiteConfig}
	}
	if filepath.Ext(canonChanged) == pipeline.MarkdownExt {
		rel, err := filepath.Rel(canonRoot, canonChanged)
		if err != nil {
			return Change{Type: ChangeUnrelated}
		}
		return Change{Type: ChangeMarkdown, RelativePath: filepath.ToSlash(rel)}
	}
	return Change{Type: ChangeAsset}
}

func isThemePath(changed, themeRoot string) bool {
	if themeRoot == "" {
		return false
	}
	info, err := os.Stat(themeRoot)
	if err != nil || !info.IsDir() {
		return false
	}
	abs, err := filepath.Abs(changed)
	if err != nil {
		abs = changed
	}
	root, err := filepath.Abs(themeRoot)
	if err != nil {
		root = themeRoot
	}
	return fsutil.Within(abs, root) || fsutil.Within(fsutil.Canonical(changed), fsutil.Canonical(themeRoot))
}

func isTemplateFile(changed string) bool {
	if !strings.EqualFold(filepath.Ext(changed), theme.TemplateExt) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(changed)), "/") {
		if part == theme.TemplatesDir {
			return true
		}
	}
	return false
}
