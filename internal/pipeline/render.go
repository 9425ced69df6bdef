package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// RenderPages renders each document in pages to its mirrored .html path.
//
// Navigation data is computed against all. Pages render in parallel; the first
// failure is returned once every page has been attempted.
func (s *Site) RenderPages(all, pages []docmodel.Document) error {
	return firstError(pages, s.Workers, func(doc docmodel.Document) error {
		return s.RenderPage(&doc, all)
	})
}

// RenderPage renders a single document. Failures carry the page path as context.
func (s *Site) RenderPage(doc *docmodel.Document, all []docmodel.Document) error {
	name := doc.Layout().TemplateName()
	out, err := s.Theme.Render(name, s.PageContext(doc, all))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTemplate, "rendering page").
			WithContext("page", doc.FilePath).
			WithContext("template", name).
			Build()
	}
	if err := s.writeOutput(doc.OutputPath(), []byte(out)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "writing page").
			WithContext("page", doc.FilePath).
			Build()
	}
	slog.Debug("Rendered page", logfields.Path(doc.FilePath), logfields.Template(name))
	return nil
}

// RenderIndex renders index.html from the full document set.
func (s *Site) RenderIndex(all []docmodel.Document) error {
	out, err := s.Theme.Render("index", s.IndexContext(all))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTemplate, "rendering index").
			WithContext("page", IndexFile).
			Build()
	}
	return s.writeOutput(IndexFile, []byte(out))
}

// RemoveOutput deletes the output file at the slash path rel. A missing file is not an error.
func (s *Site) RemoveOutput(rel string) error {
	err := os.Remove(s.OutputPath(rel))
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return ferrors.WrapError(err, ferrors.CategoryIO, "removing output file").WithContext("path", rel).Build()
}

// RemoveOutputTree deletes the output directory mirroring the content directory rel.
func (s *Site) RemoveOutputTree(rel string) error {
	if rel == "" || rel == "." {
		return nil
	}
	if err := os.RemoveAll(s.OutputPath(rel)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "removing output directory").WithContext("path", rel).Build()
	}
	return nil
}

func (s *Site) writeOutput(rel string, data []byte) error {
	dest := s.OutputPath(rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "creating output directory").
			WithContext("path", filepath.Dir(dest)).
			Build()
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "writing output file").
			WithContext("path", rel).
			Build()
	}
	return nil
}
