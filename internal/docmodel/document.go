// Package docmodel defines the parsed document value type and the per-path document cache.
package docmodel

import (
	"path"
	"strings"
	"time"
)

// FrontMatter is the typed metadata block of a content file.
type FrontMatter struct {
	Title       string
	Date        *time.Time
	Tags        []string
	Lang        string
	Draft       bool
	PDF         bool
	TOC         bool
	Layout      string
	Description string
	// Extra holds every key not mapped to a field above.
	Extra map[string]any
}

// Document is one parsed content file.
type Document struct {
	// FilePath is slash-separated and relative to the content root; it is the cache key.
	FilePath    string
	Language    string
	BaseName    string
	FrontMatter FrontMatter
	Content     string
	TOC         string
	Fingerprint string
}

// LayoutKind discriminates the closed set of page layouts.
type LayoutKind int

const (
	LayoutPage LayoutKind = iota
	LayoutPost
	LayoutCustom
)

// Layout is resolved once per document from its front matter and location.
type Layout struct {
	Kind LayoutKind
	Name string // set for LayoutCustom
}

// TemplateName returns the logical template name without extension.
func (l Layout) TemplateName() string {
	switch l.Kind {
	case LayoutPost:
		return "post"
	case LayoutCustom:
		return l.Name
	default:
		return "page"
	}
}

// Layout resolves the document's layout variant.
//
// An explicit front matter layout wins; "post" and "page" map to their variants.
// Without one, documents under posts/ are posts and everything else is a page.
func (d *Document) Layout() Layout {
	switch d.FrontMatter.Layout {
	case "post":
		return Layout{Kind: LayoutPost}
	case "page":
		return Layout{Kind: LayoutPage}
	case "":
		if strings.HasPrefix(d.FilePath, "posts/") {
			return Layout{Kind: LayoutPost}
		}
		return Layout{Kind: LayoutPage}
	default:
		return Layout{Kind: LayoutCustom, Name: d.FrontMatter.Layout}
	}
}

// IsPost reports whether the document is listed on the index and in the feed.
func (d *Document) IsPost() bool {
	return d.FrontMatter.Layout == "post" || strings.HasPrefix(d.FilePath, "posts/")
}

// Dir returns the slash-separated parent directory of the document, "" for the root.
func (d *Document) Dir() string {
	dir := path.Dir(d.FilePath)
	if dir == "." {
		return ""
	}
	return dir
}

// OutputPath returns the slash-separated output path relative to the output root.
func (d *Document) OutputPath() string {
	return HTMLPath(d.FilePath)
}

// PDFPath returns the slash-separated PDF output path relative to the output root.
func (d *Document) PDFPath() string {
	return strings.TrimSuffix(d.FilePath, path.Ext(d.FilePath)) + ".pdf"
}

// HTMLPath maps a markdown path to its mirrored HTML path.
func HTMLPath(mdPath string) string {
	return strings.TrimSuffix(mdPath, path.Ext(mdPath)) + ".html"
}

// Title returns the front matter title or "Untitled".
func (d *Document) Title() string {
	if d.FrontMatter.Title != "" {
		return d.FrontMatter.Title
	}
	return "Untitled"
}

// GroupKey identifies the logical page shared by all language variants.
func (d *Document) GroupKey() string {
	return path.Join(d.Dir(), d.BaseName)
}

// SplitLanguage strips a trailing ".xx" language suffix from a filename stem.
//
// The suffix is only treated as a language when isSupported accepts it; otherwise the
// stem is returned whole and lang is defaultLang.
func SplitLanguage(stem, defaultLang string, isSupported func(string) bool) (base, lang string) {
	dot := strings.LastIndexByte(stem, '.')
	if dot <= 0 || dot == len(stem)-1 {
		return stem, defaultLang
	}
	candidate := stem[dot+1:]
	if isSupported != nil && isSupported(candidate) {
		return stem[:dot], candidate
	}
	return stem, defaultLang
}

// Stem returns the file name of a slash path without its extension.
func Stem(p string) string {
	name := path.Base(p)
	return strings.TrimSuffix(name, path.Ext(name))
}
