package incremental

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	"git.home.luguber.info/inful/sitegen/internal/events"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/i18n"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
	"git.home.luguber.info/inful/sitegen/internal/theme"
)

// ErrVariantsNotFound means an updated document has no entry in the working set
// after the update was applied. Callers recover with a full rebuild.
var ErrVariantsNotFound = ferrors.NotFoundError("no language variant found in working set").Build()

const publishTimeout = 2 * time.Second

// Builder owns the document cache and the working document list of one site.
//
// A Builder is not safe for concurrent use; a single goroutine must drive it so
// that builds never overlap.
type Builder struct {
	site     *pipeline.Site
	cache    *docmodel.Cache
	docs     []docmodel.Document
	recorder metrics.Recorder
	bus      *events.Bus
	lastID   string
}

// Option configures a Builder.
type Option func(*Builder)

// WithRecorder overrides the site's metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithEventBus publishes BuildStarted and BuildFinished on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(b *Builder) { b.bus = bus }
}

// NewBuilder returns a Builder with an empty cache. Call GenerateSite to populate it.
func NewBuilder(s *pipeline.Site, opts ...Option) *Builder {
	b := &Builder{
		site:     s,
		cache:    docmodel.NewCache(),
		recorder: s.Recorder,
	}
	if b.recorder == nil {
		b.recorder = metrics.NoopRecorder{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Site returns the site the builder renders.
func (b *Builder) Site() *pipeline.Site { return b.site }

// Cache exposes the document cache for inspection.
func (b *Builder) Cache() *docmodel.Cache { return b.cache }

// Documents returns a copy of the working document list.
func (b *Builder) Documents() []docmodel.Document {
	return append([]docmodel.Document(nil), b.docs...)
}

// LastBuildID returns the id of the most recent build, empty before the first one.
func (b *Builder) LastBuildID() string { return b.lastID }

// GenerateSite runs a full build and repopulates the cache from the scan.
func (b *Builder) GenerateSite(ctx context.Context) error {
	return b.track(ctx, metrics.BuildFull, "", ChangeUnrelated, b.fullBuild)
}

// GenerateIncrementalForPath rebuilds what the change at path invalidates.
//
// Theme, site config and unrelated changes run a full build, as does a directory
// that appears under the content root. A removed directory drops every page below
// it. Assets are mirrored or deleted. Markdown changes update the cache, re-render
// every language variant of the page, then the index, feed, sitemap and
// robots.txt. Errors are returned unchanged; the caller decides whether to retry
// with GenerateSite.
func (b *Builder) GenerateIncrementalForPath(ctx context.Context, path string, isRemoved bool) error {
	change := Classify(path, b.site.ThemeRoot, b.site.ContentRoot)
	b.recorder.IncChange(change.Type.String())
	slog.Debug("Classified change",
		logfields.Path(path),
		logfields.Change(change.Type.String()),
		logfields.Removed(isRemoved))

	var dirAdded bool
	var dirRemoved string
	if change.Type == ChangeAsset {
		dirAdded, dirRemoved = b.directoryChange(path, isRemoved)
	}

	kind := metrics.BuildIncremental
	if change.FullRebuild() || dirAdded {
		kind = metrics.BuildFull
	}

	return b.track(ctx, kind, path, change.Type, func(ctx context.Context) ([]docmodel.Document, error) {
		switch change.Type {
		case ChangeThemeRelated:
			if err := b.site.ReloadTheme(); err != nil {
				return nil, err
			}
			return b.fullBuild(ctx)
		case ChangeSiteConfig:
			b.site.ReloadConfig()
			return b.fullBuild(ctx)
		case ChangeMarkdown:
			return b.markdownChange(ctx, change.RelativePath, isRemoved)
		case ChangeAsset:
			switch {
			case dirAdded:
				slog.Debug("Directory added under content root, rebuilding site", logfields.Path(path))
				return b.fullBuild(ctx)
			case dirRemoved != "":
				return nil, b.removeDirectory(dirRemoved)
			}
			return nil, b.assetChange(path, isRemoved)
		default:
			return b.fullBuild(ctx)
		}
	})
}

func (b *Builder) fullBuild(ctx context.Context) ([]docmodel.Document, error) {
	st, err := b.site.FullBuild(ctx)
	if err != nil {
		return nil, err
	}
	b.cache.Reset(st.Documents)
	b.docs = st.Documents
	return st.Documents, nil
}

// directoryChange detects changes that name a whole directory: one that exists
// now, or a removed path the cache or output tree still holds entries below.
// fsnotify reports a directory move as a single event on the directory.
func (b *Builder) directoryChange(path string, isRemoved bool) (added bool, removedRel string) {
	if info, err := os.Stat(path); err == nil {
		return info.IsDir(), ""
	}
	if !isRemoved {
		return false, ""
	}
	rel, ok := b.site.ContentRel(path)
	if !ok || rel == "." {
		return false, ""
	}
	if len(b.cache.Under(rel)) > 0 {
		return false, rel
	}
	if info, err := os.Stat(b.site.OutputPath(rel)); err == nil && info.IsDir() {
		return false, rel
	}
	return false, ""
}

// removeDirectory drops every page below rel, deletes the mirrored output
// directory and refreshes the aggregates.
func (b *Builder) removeDirectory(rel string) error {
	s := b.site
	if err := s.EnsureOutput(); err != nil {
		return err
	}
	gone := b.cache.Under(rel)
	for i := range gone {
		if err := b.removeMarkdown(gone[i].FilePath); err != nil {
			return err
		}
	}
	slog.Debug("Removing generated directory", logfields.Path(rel), logfields.Documents(len(gone)))
	if err := s.RemoveOutputTree(rel); err != nil {
		return err
	}
	if first, _, _ := strings.Cut(rel, "/"); first == theme.AssetsDir {
		// the output assets directory is shared with the theme
		if err := s.CopyAssets(); err != nil {
			return err
		}
	}
	return s.RefreshAggregates(b.docs)
}

func (b *Builder) assetChange(path string, isRemoved bool) error {
	if err := b.site.EnsureOutput(); err != nil {
		return err
	}
	if isRemoved {
		return b.site.RemoveAsset(path)
	}
	return b.site.CopyAsset(path)
}

func (b *Builder) markdownChange(ctx context.Context, rel string, isRemoved bool) ([]docmodel.Document, error) {
	s := b.site
	if s.Ignore.Ignored(rel) {
		slog.Debug("Ignoring change to excluded file", logfields.Path(rel))
		return nil, nil
	}
	if err := s.EnsureOutput(); err != nil {
		return nil, err
	}

	var up update
	if isRemoved {
		if err := b.removeMarkdown(rel); err != nil {
			return nil, err
		}
	} else {
		var err error
		if up, err = b.updateMarkdown(ctx, rel); err != nil {
			return nil, err
		}
		isRemoved = up.removed
	}

	s.Transform(b.docs)
	switch {
	case up.rescanned:
		b.cache.Reset(b.docs)
	case !isRemoved:
		if doc, ok := docmodel.Find(b.docs, rel); ok {
			b.cache.Put(doc)
			b.syncPDF(ctx, &doc, up.prevPDF)
		}
	}

	targets := b.docs
	if !up.rescanned {
		var err error
		if targets, err = b.variantsOf(rel, isRemoved); err != nil {
			return nil, err
		}
	}
	for _, v := range targets {
		slog.Debug("Re-rendering page", logfields.Path(v.FilePath))
	}
	if err := s.RenderPages(b.docs, targets); err != nil {
		return nil, err
	}

	slog.Debug("Updating index, feed, sitemap and robots after single-page change", logfields.Path(rel))
	if err := s.RefreshAggregates(b.docs); err != nil {
		return nil, err
	}
	return targets, nil
}

// variantsOf returns every language variant of rel in the working list. An updated
// page must find at least itself; a removed one may leave no siblings behind.
func (b *Builder) variantsOf(rel string, isRemoved bool) ([]docmodel.Document, error) {
	variants := docmodel.Variants(b.docs, rel, i18n.DefaultLanguage, i18n.IsSupported)
	if len(variants) == 0 && !isRemoved {
		return nil, ErrVariantsNotFound.WithContext("path", rel)
	}
	return variants, nil
}

// removeMarkdown drops rel from the cache and working list and deletes its outputs.
func (b *Builder) removeMarkdown(rel string) error {
	prev, ok := b.cache.Remove(rel)
	b.docs = docmodel.RemovePath(b.docs, rel)
	if ok && prev.FrontMatter.PDF {
		if err := b.site.RemovePDF(&prev); err != nil {
			return err
		}
	}
	slog.Debug("Removing generated page", logfields.Path(rel))
	return b.site.RemoveOutput(docmodel.HTMLPath(rel))
}

// update is the outcome of re-parsing one markdown file.
type update struct {
	removed   bool // the file became a draft
	rescanned bool // the working list was rebuilt from a full scan
	prevPDF   bool // the cached version had pdf: true
}

// updateMarkdown re-parses rel into the working list. A file that became a draft
// is handled as a removal; any other parse failure falls back to a full rescan of
// the content tree. The cache is written once the working list is transformed.
func (b *Builder) updateMarkdown(ctx context.Context, rel string) (update, error) {
	doc, parseErr := b.site.ParseOne(rel)
	if parseErr != nil {
		if content.IsDraftSkip(parseErr) {
			return update{removed: true}, b.removeMarkdown(rel)
		}
		slog.Warn("Failed to parse changed file, falling back to full rescan",
			logfields.Path(rel), logfields.Error(parseErr))
		docs, _, scanErr := b.site.Scan(ctx)
		if scanErr != nil {
			return update{}, scanErr
		}
		b.docs = docs
		return update{rescanned: true}, nil
	}

	prev, had := b.cache.Get(rel)
	b.docs = docmodel.Replace(b.docs, doc)
	docmodel.SortByPath(b.docs)
	return update{prevPDF: had && prev.FrontMatter.PDF}, nil
}

// syncPDF generates, keeps or deletes the derived PDF of doc. Failures are logged only.
func (b *Builder) syncPDF(ctx context.Context, doc *docmodel.Document, prevPDF bool) {
	s := b.site
	switch {
	case doc.FrontMatter.PDF && s.PDFEnabled():
		if err := s.GeneratePDF(ctx, doc); err != nil {
			slog.Warn("PDF generation failed", logfields.Path(doc.FilePath), logfields.Error(err))
		}
	case prevPDF:
		if err := s.RemovePDF(doc); err != nil {
			slog.Warn("Removing stale PDF failed", logfields.Path(doc.FilePath), logfields.Error(err))
		}
	}
}

type buildFunc func(ctx context.Context) ([]docmodel.Document, error)

// track runs fn under a fresh build id, recording metrics and lifecycle events.
func (b *Builder) track(ctx context.Context, kind metrics.BuildKind, trigger string, change ChangeType, fn buildFunc) error {
	id := uuid.NewString()
	b.lastID = id
	start := time.Now()
	b.publish(ctx, events.BuildStarted{BuildID: id, Kind: string(kind), Trigger: trigger, StartedAt: start})

	rendered, err := fn(ctx)
	dur := time.Since(start)
	b.recorder.ObserveBuildDuration(kind, dur)
	b.recorder.IncBuildOutcome(kind, err == nil)

	attrs := []any{logfields.BuildID(id), logfields.BuildKind(string(kind)), logfields.Since(start)}
	if trigger != "" {
		attrs = append(attrs, logfields.Path(content.RelativePath(b.site.ContentRoot, trigger)))
	}
	finished := events.BuildFinished{
		BuildID:    id,
		Kind:       string(kind),
		Trigger:    trigger,
		Change:     change.String(),
		Success:    err == nil,
		Documents:  b.cache.Len(),
		Duration:   dur,
		FinishedAt: time.Now(),
	}
	if err != nil {
		finished.Error = err.Error()
		slog.Error("Build failed", append(attrs, logfields.Error(err))...)
	} else {
		finished.Fingerprints = fingerprints(rendered)
		slog.Info("Build finished", append(attrs, logfields.Documents(b.cache.Len()))...)
	}
	b.publish(ctx, finished)
	return err
}

func (b *Builder) publish(ctx context.Context, evt any) {
	if b.bus == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := b.bus.Publish(pctx, evt); err != nil {
		slog.Debug("Dropping build event", logfields.Error(err))
	}
}

func fingerprints(docs []docmodel.Document) map[string]string {
	if len(docs) == 0 {
		return nil
	}
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[d.FilePath] = d.Fingerprint
	}
	return out
}
