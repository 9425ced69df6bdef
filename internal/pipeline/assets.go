package pipeline

import (
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"git.home.luguber.info/inful/sitegen/internal/content"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/fsutil"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/site"
	"git.home.luguber.info/inful/sitegen/internal/theme"
)

// EnsureOutput creates the output root.
func (s *Site) EnsureOutput() error {
	if err := os.MkdirAll(s.OutputRoot, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "creating output directory").
			Fatal().
			WithContext("path", s.OutputRoot).
			Build()
	}
	return nil
}

// isContentAsset reports whether the content file at rel is mirrored as-is.
func (s *Site) isContentAsset(rel string) bool {
	if path.Ext(rel) == MarkdownExt || path.Base(rel) == site.ConfigFileName {
		return false
	}
	return !s.Ignore.Ignored(rel)
}

// CopyAssets mirrors every non-markdown content file and the theme's assets
// directory into the output root.
func (s *Site) CopyAssets() error {
	copied := 0
	err := walkFiles(s.ContentRoot, func(rel, abs string) error {
		if !s.isContentAsset(rel) {
			return nil
		}
		copied++
		return copyFile(abs, s.OutputPath(rel))
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "copying content assets").Build()
	}

	if dir := s.Theme.AssetsPath(); dir != "" {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			err = walkFiles(dir, func(rel, abs string) error {
				if s.Ignore.Ignored(rel) {
					return nil
				}
				copied++
				return copyFile(abs, s.OutputPath(path.Join(theme.AssetsDir, rel)))
			})
			if err != nil {
				return ferrors.WrapError(err, ferrors.CategoryGeneration, "copying theme assets").Build()
			}
		}
	}
	slog.Debug("Assets copied", slog.Int("files", copied))
	return nil
}

// CopyAsset mirrors the single content file at abs. Markdown files, site.toml,
// ignored names and paths that are not regular files are skipped.
func (s *Site) CopyAsset(abs string) error {
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	rel, ok := s.ContentRel(abs)
	if !ok || !s.isContentAsset(rel) {
		return nil
	}
	if err := copyFile(abs, s.OutputPath(rel)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "copying asset").WithContext("path", rel).Build()
	}
	slog.Debug("Copied asset", logfields.Path(rel))
	return nil
}

// RemoveAsset deletes the mirrored output of the content file at abs.
func (s *Site) RemoveAsset(abs string) error {
	rel, ok := s.ContentRel(abs)
	if !ok {
		return nil
	}
	dest := s.OutputPath(rel)
	if info, err := os.Stat(dest); err != nil || !info.Mode().IsRegular() {
		return nil
	}
	slog.Debug("Removing asset", logfields.Path(rel))
	return s.RemoveOutput(rel)
}

// ContentRel returns abs relative to the content root, comparing canonical forms
// when the literal paths disagree.
func (s *Site) ContentRel(abs string) (string, bool) {
	if a, err := filepath.Abs(abs); err == nil {
		abs = a
	}
	rel := content.RelativePath(s.ContentRoot, abs)
	if !filepath.IsAbs(filepath.FromSlash(rel)) {
		return rel, true
	}
	rel = content.RelativePath(fsutil.Canonical(s.ContentRoot), fsutil.Canonical(abs))
	return rel, !filepath.IsAbs(filepath.FromSlash(rel))
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src) // #nosec G304 -- path comes from the content walk
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest) // #nosec G304 -- path is under the output root
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
