// Package pipeline implements the build phases (scan, transform, render, emit)
// and the stage runner that sequences them into a full site build.
package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/fsutil"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/pdf"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/theme"
)

// Options configure a Site.
type Options struct {
	ContentRoot string
	OutputRoot  string
	// ThemeRoot selects an on-disk theme; empty uses the built-in one.
	ThemeRoot string
	// SiteRoot is searched for site.toml before ContentRoot. Defaults to the parent of ContentRoot.
	SiteRoot       string
	IgnorePatterns []string
	// PDF converts documents with pdf: true. Nil disables PDF output.
	PDF      pdf.Converter
	Recorder metrics.Recorder
	// Workers bounds scan and render parallelism; 0 uses GOMAXPROCS.
	Workers int
}

// Site bundles the roots and collaborators every build phase needs.
type Site struct {
	ContentRoot string
	OutputRoot  string
	ThemeRoot   string
	SiteRoot    string

	Theme    *theme.Theme
	Config   site.Config
	Ignore   *fsutil.Matcher
	PDF      pdf.Converter
	Recorder metrics.Recorder
	Workers  int
}

// New resolves the roots to absolute paths and loads the theme and site config.
func New(opts Options) (*Site, error) {
	if opts.ContentRoot == "" {
		return nil, ferrors.ValidationError("content root is required").Build()
	}
	if opts.OutputRoot == "" {
		return nil, ferrors.ValidationError("output root is required").Build()
	}

	contentRoot, err := absRoot(opts.ContentRoot)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(contentRoot)
	if err != nil || !info.IsDir() {
		return nil, ferrors.NotFoundError("content directory not found").
			Fatal().
			WithContext("path", contentRoot).
			WithCause(err).
			Build()
	}
	outputRoot, err := absRoot(opts.OutputRoot)
	if err != nil {
		return nil, err
	}

	s := &Site{
		ContentRoot: contentRoot,
		OutputRoot:  outputRoot,
		PDF:         opts.PDF,
		Recorder:    opts.Recorder,
		Workers:     opts.Workers,
	}
	if s.Recorder == nil {
		s.Recorder = metrics.NoopRecorder{}
	}
	if opts.ThemeRoot != "" {
		if s.ThemeRoot, err = absRoot(opts.ThemeRoot); err != nil {
			return nil, err
		}
	}
	s.SiteRoot = opts.SiteRoot
	if s.SiteRoot == "" {
		s.SiteRoot = filepath.Dir(contentRoot)
	}

	if s.Ignore, err = fsutil.NewMatcher(opts.IgnorePatterns); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "compiling ignore patterns").Build()
	}
	if err := s.ReloadTheme(); err != nil {
		return nil, err
	}
	s.ReloadConfig()
	return s, nil
}

// ReloadTheme recompiles the theme templates from ThemeRoot.
func (s *Site) ReloadTheme() error {
	t, err := theme.Load(s.ThemeRoot)
	if err != nil {
		return err
	}
	s.Theme = t
	slog.Debug("Theme loaded", slog.String("theme", t.Config.Name), slog.Int("templates", len(t.Names())))
	return nil
}

// ReloadConfig re-reads site.toml; a broken file falls back to defaults.
func (s *Site) ReloadConfig() {
	s.Config = site.LoadOrDefault(s.SiteRoot, s.ContentRoot)
	slog.Debug("Site config loaded", slog.String("title", s.Config.DisplayTitle()), logfields.URL(s.Config.BaseURL))
}

// PDFEnabled reports whether a working PDF toolchain is configured.
func (s *Site) PDFEnabled() bool {
	return s.PDF != nil && s.PDF.Available()
}

// ContentPath maps a slash path relative to the content root onto disk.
func (s *Site) ContentPath(rel string) string {
	return filepath.Join(s.ContentRoot, filepath.FromSlash(rel))
}

// OutputPath maps a slash path relative to the output root onto disk.
func (s *Site) OutputPath(rel string) string {
	return filepath.Join(s.OutputRoot, filepath.FromSlash(rel))
}

func absRoot(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryIO, "resolving path").WithContext("path", p).Build()
	}
	return abs, nil
}
