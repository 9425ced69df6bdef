package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/pdf"
)

// GeneratePDF converts doc to <stem>.pdf next to its HTML output.
func (s *Site) GeneratePDF(ctx context.Context, doc *docmodel.Document) error {
	if !s.PDFEnabled() {
		return nil
	}
	return s.PDF.Convert(ctx, pdf.Request{
		Source:      s.ContentPath(doc.FilePath),
		RelPath:     doc.FilePath,
		ContentRoot: s.ContentRoot,
		Output:      s.OutputPath(doc.PDFPath()),
		Language:    doc.Language,
		BaseURL:     s.Config.BaseURL,
	})
}

// GeneratePDFs converts every document that sets pdf: true. Failures are logged
// and joined; none of them stops the remaining conversions.
func (s *Site) GeneratePDFs(ctx context.Context, docs []docmodel.Document) (int, error) {
	var errs []error
	generated := 0
	for i := range docs {
		if !docs[i].FrontMatter.PDF {
			continue
		}
		if err := s.GeneratePDF(ctx, &docs[i]); err != nil {
			slog.Warn("PDF generation failed", logfields.Path(docs[i].FilePath), logfields.Error(err))
			errs = append(errs, err)
			continue
		}
		generated++
	}
	if generated > 0 {
		slog.Info("Generated PDF files", slog.Int("count", generated))
	}
	return generated, errors.Join(errs...)
}

// RemovePDF deletes the generated PDF for doc, if any.
func (s *Site) RemovePDF(doc *docmodel.Document) error {
	return s.RemoveOutput(doc.PDFPath())
}
