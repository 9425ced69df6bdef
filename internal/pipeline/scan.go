package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path"
	"sort"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// MarkdownExt is the extension of content files.
const MarkdownExt = ".md"

// ScanStats counts the outcome of a content scan.
type ScanStats struct {
	Processed int
	Skipped   int
	Errors    int
}

// Scan parses every markdown file under the content root.
//
// Files that fail to parse are logged and left out; drafts are counted as skipped.
// The returned documents are sorted by FilePath.
func (s *Site) Scan(ctx context.Context) ([]docmodel.Document, ScanStats, error) {
	start := time.Now()
	var files []string
	err := walkFiles(s.ContentRoot, func(rel, _ string) error {
		if path.Ext(rel) != MarkdownExt || s.Ignore.Ignored(rel) {
			return nil
		}
		files = append(files, rel)
		return ctx.Err()
	})
	if err != nil {
		return nil, ScanStats{}, ferrors.WrapError(err, ferrors.CategoryIO, "walking content directory").
			WithContext("path", s.ContentRoot).
			Build()
	}
	sort.Strings(files)

	results := runOrdered(files, s.Workers, func(rel string) (docmodel.Document, error) {
		return content.ParseFile(s.ContentRoot, s.ContentPath(rel))
	})

	var stats ScanStats
	docs := make([]docmodel.Document, 0, len(files))
	for i, r := range results {
		switch {
		case r.Err == nil:
			docs = append(docs, r.Value)
			stats.Processed++
		case content.IsDraftSkip(r.Err):
			stats.Skipped++
			slog.Debug("Skipping draft", logfields.Path(files[i]))
		default:
			stats.Errors++
			slog.Warn("Failed to parse content file", logfields.Path(files[i]), logfields.Error(r.Err))
		}
	}
	docmodel.SortByPath(docs)

	slog.Info("Content scanned",
		slog.Int("processed", stats.Processed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.Errors),
		logfields.Since(start))
	return docs, stats, nil
}

// ParseOne parses a single content file given its slash path relative to the content root.
func (s *Site) ParseOne(rel string) (docmodel.Document, error) {
	return content.ParseFile(s.ContentRoot, s.ContentPath(rel))
}

// Transform fills a missing publish date from the source file's modification time.
func (s *Site) Transform(docs []docmodel.Document) {
	for i := range docs {
		if docs[i].FrontMatter.Date != nil {
			continue
		}
		info, err := os.Stat(s.ContentPath(docs[i].FilePath))
		if err != nil {
			slog.Debug("No modification time for document", logfields.Path(docs[i].FilePath), logfields.Error(err))
			continue
		}
		mod := info.ModTime().UTC()
		docs[i].FrontMatter.Date = &mod
	}
}
