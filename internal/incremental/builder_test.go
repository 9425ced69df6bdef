package incremental

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitegen/internal/events"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/pdf"
	"git.home.luguber.info/inful/sitegen/internal/pipeline"
)

func writeFile(t *testing.T, root, rel, data string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func readOutput(t *testing.T, s *pipeline.Site, rel string) string {
	t.Helper()
	data, err := os.ReadFile(s.OutputPath(rel))
	require.NoError(t, err)
	return string(data)
}

type fakeConverter struct {
	mu          sync.Mutex
	converted   []string
	unavailable bool
}

func (f *fakeConverter) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeConverter) setAvailable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = !ok
}

func (f *fakeConverter) Convert(_ context.Context, req pdf.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converted = append(f.converted, req.RelPath)
	return os.WriteFile(req.Output, []byte("%PDF"), 0o600)
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	changes map[string]int
}

func (r *countingRecorder) IncChange(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.changes == nil {
		r.changes = map[string]int{}
	}
	r.changes[kind]++
}

func newBuilder(t *testing.T, opts pipeline.Options, builderOpts ...Option) *Builder {
	t.Helper()
	dir := t.TempDir()
	if opts.ContentRoot == "" {
		opts.ContentRoot = filepath.Join(dir, "content")
	}
	opts.OutputRoot = filepath.Join(dir, "_site")
	root := opts.ContentRoot
	writeFile(t, root, "site.toml", "title = \"Test Site\"\nbase_url = \"https://example.com\"\n")
	writeFile(t, root, "posts/foo.md", "---\ntitle: Foo EN\ndate: 2024-03-01T10:00:00Z\n---\n\nHello.\n")
	writeFile(t, root, "posts/foo.it.md", "---\ntitle: Foo IT\ndate: 2024-03-01T10:00:00Z\n---\n\nCiao.\n")
	writeFile(t, root, "posts/older.md", "---\ntitle: Older\ndate: 2023-01-01T00:00:00Z\n---\n\nOld.\n")
	writeFile(t, root, "about.md", "---\ntitle: About\n---\n\nAbout page.\n")
	writeFile(t, root, "posts/wip.md", "---\ntitle: WIP\ndraft: true\n---\n\nLater.\n")
	writeFile(t, root, "images/logo.png", "png")

	s, err := pipeline.New(opts)
	require.NoError(t, err)
	b := NewBuilder(s, builderOpts...)
	require.NoError(t, b.GenerateSite(t.Context()))
	return b
}

func cachedPaths(b *Builder) []string {
	var out []string
	for _, d := range b.Cache().Documents() {
		out = append(out, d.FilePath)
	}
	return out
}

func TestGenerateSite_PopulatesCache(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	assert.Equal(t, []string{"about.md", "posts/foo.it.md", "posts/foo.md", "posts/older.md"}, cachedPaths(b))
	assert.Len(t, b.Documents(), 4)
	for _, d := range b.Documents() {
		assert.NotEmpty(t, d.Fingerprint, d.FilePath)
	}
}

func TestIncremental_EditRerendersSiblingVariant(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	require.NoError(t, os.Remove(s.OutputPath("posts/foo.it.html")))

	path := writeFile(t, s.ContentRoot, "posts/foo.md", "---\ntitle: Foo Updated\ndate: 2024-03-01T10:00:00Z\n---\n\nChanged.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.Contains(t, readOutput(t, s, "posts/foo.html"), "Changed.")
	assert.FileExists(t, s.OutputPath("posts/foo.it.html"))

	index := readOutput(t, s, "index.html")
	assert.Contains(t, index, "Foo Updated")
	assert.Contains(t, index, `href="posts/foo.html"`)
	assert.NotContains(t, index, "foo.it.html")
	assert.Contains(t, readOutput(t, s, "feed.xml"), "Foo Updated")

	cached, ok := b.Cache().Get("posts/foo.md")
	require.True(t, ok)
	assert.Equal(t, "Foo Updated", cached.FrontMatter.Title)
}

func TestIncremental_EditTranslationKeepsIndexOnDefault(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "posts/foo.it.md", "---\ntitle: Foo IT 2\ndate: 2024-03-01T10:00:00Z\n---\n\nNuovo.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.Contains(t, readOutput(t, s, "posts/foo.it.html"), "Nuovo.")
	index := readOutput(t, s, "index.html")
	assert.Contains(t, index, `href="posts/foo.html"`)
	assert.NotContains(t, index, "foo.it.html")
}

func TestIncremental_NewPageAppearsInAggregates(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "posts/brand-new.md", "---\ntitle: Brand New\ndate: 2025-01-01T00:00:00Z\n---\n\nFresh.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.FileExists(t, s.OutputPath("posts/brand-new.html"))
	assert.Contains(t, readOutput(t, s, "index.html"), "Brand New")
	assert.Contains(t, readOutput(t, s, "sitemap.xml"), "https://example.com/posts/brand-new.html")
	assert.Len(t, b.Documents(), 5)
}

func TestIncremental_RemovalProducesNoStaleOutput(t *testing.T) {
	conv := &fakeConverter{}
	b := newBuilder(t, pipeline.Options{PDF: conv})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "guide.md", "---\ntitle: Guide\npdf: true\n---\n\nBody.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	require.FileExists(t, s.OutputPath("guide.pdf"))
	require.FileExists(t, s.OutputPath("guide.html"))

	require.NoError(t, os.Remove(path))
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, true))

	_, ok := b.Cache().Get("guide.md")
	assert.False(t, ok)
	assert.NoFileExists(t, s.OutputPath("guide.html"))
	assert.NoFileExists(t, s.OutputPath("guide.pdf"))
	assert.NotContains(t, readOutput(t, s, "sitemap.xml"), "guide.html")
}

func TestIncremental_PDFFlagCleared(t *testing.T) {
	conv := &fakeConverter{}
	b := newBuilder(t, pipeline.Options{PDF: conv})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "guide.md", "---\ntitle: Guide\npdf: true\n---\n\nBody.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	require.FileExists(t, s.OutputPath("guide.pdf"))

	writeFile(t, s.ContentRoot, "guide.md", "---\ntitle: Guide\npdf: false\n---\n\nBody.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.NoFileExists(t, s.OutputPath("guide.pdf"))
	assert.FileExists(t, s.OutputPath("guide.html"))
	cached, ok := b.Cache().Get("guide.md")
	require.True(t, ok)
	assert.False(t, cached.FrontMatter.PDF)
}

func TestIncremental_PDFRemovedWhenToolchainMissing(t *testing.T) {
	conv := &fakeConverter{}
	b := newBuilder(t, pipeline.Options{PDF: conv})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "guide.md", "---\ntitle: Guide\npdf: true\n---\n\nBody.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	require.FileExists(t, s.OutputPath("guide.pdf"))

	conv.setAvailable(false)
	writeFile(t, s.ContentRoot, "guide.md", "---\ntitle: Guide\npdf: true\n---\n\nBody v2.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.NoFileExists(t, s.OutputPath("guide.pdf"))
	assert.Contains(t, readOutput(t, s, "guide.html"), "Body v2.")
	assert.Equal(t, []string{"guide.md"}, conv.converted)
}

func TestIncremental_CacheHoldsTransformedDocument(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "about.md", "---\ntitle: About\n---\n\nUndated.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	cached, ok := b.Cache().Get("about.md")
	require.True(t, ok)
	require.NotNil(t, cached.FrontMatter.Date, "date falls back to the file's modification time")

	var working *time.Time
	for _, d := range b.Documents() {
		if d.FilePath == "about.md" {
			working = d.FrontMatter.Date
		}
	}
	require.NotNil(t, working)
	assert.True(t, working.Equal(*cached.FrontMatter.Date))
}

func TestIncremental_DirectoryMovedIn(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	outside := t.TempDir()
	writeFile(t, outside, "guides/intro.md", "---\ntitle: Intro\n---\n\nStart here.\n")
	writeFile(t, outside, "guides/img/diagram.png", "png")

	dst := filepath.Join(s.ContentRoot, "guides")
	require.NoError(t, os.Rename(filepath.Join(outside, "guides"), dst))
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), dst, false))

	_, ok := b.Cache().Get("guides/intro.md")
	assert.True(t, ok)
	assert.Contains(t, readOutput(t, s, "guides/intro.html"), "Start here.")
	assert.Equal(t, "png", readOutput(t, s, "guides/img/diagram.png"))
	assert.Contains(t, readOutput(t, s, "sitemap.xml"), "https://example.com/guides/intro.html")
}

func TestIncremental_DirectoryMovedOut(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	src := filepath.Join(s.ContentRoot, "posts")
	require.NoError(t, os.Rename(src, filepath.Join(t.TempDir(), "posts")))
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), src, true))

	assert.Equal(t, []string{"about.md"}, cachedPaths(b))
	assert.Len(t, b.Documents(), 1)
	assert.NoFileExists(t, s.OutputPath("posts/foo.html"))
	assert.NoFileExists(t, s.OutputPath("posts/foo.it.html"))
	assert.NoDirExists(t, s.OutputPath("posts"))
	assert.NotContains(t, readOutput(t, s, "index.html"), "posts/foo.html")
	assert.NotContains(t, readOutput(t, s, "sitemap.xml"), "posts/")
	assert.NotContains(t, readOutput(t, s, "feed.xml"), "Foo EN")
}

func TestIncremental_AssetDirectoryRemoved(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	src := filepath.Join(s.ContentRoot, "images")
	require.NoError(t, os.RemoveAll(src))
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), src, true))

	assert.NoFileExists(t, s.OutputPath("images/logo.png"))
	assert.Len(t, b.Documents(), 4)
	assert.FileExists(t, s.OutputPath("about.html"))
}

func TestIncremental_RemovingDefaultRerendersTranslation(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := filepath.Join(s.ContentRoot, "posts", "foo.md")
	require.NoError(t, os.Remove(path))
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, true))

	assert.NoFileExists(t, s.OutputPath("posts/foo.html"))
	it := readOutput(t, s, "posts/foo.it.html")
	assert.NotContains(t, it, `href="foo.html"`)

	index := readOutput(t, s, "index.html")
	assert.Contains(t, index, `href="posts/foo.it.html"`)
}

func TestIncremental_RenameLeavesOneEntry(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	oldPath := filepath.Join(s.ContentRoot, "about.md")
	newPath := filepath.Join(s.ContentRoot, "team.md")
	require.NoError(t, os.Rename(oldPath, newPath))

	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), oldPath, true))
	_, hasOld := b.Cache().Get("about.md")
	_, hasNew := b.Cache().Get("team.md")
	assert.False(t, hasOld)
	assert.False(t, hasNew)

	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), newPath, false))
	_, hasNew = b.Cache().Get("team.md")
	assert.True(t, hasNew)
	assert.NoFileExists(t, s.OutputPath("about.html"))
	assert.FileExists(t, s.OutputPath("team.html"))
	assert.Len(t, b.Documents(), 4)
}

func TestIncremental_PageBecomesDraft(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "about.md", "---\ntitle: About\ndraft: true\n---\n\nHidden.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	_, ok := b.Cache().Get("about.md")
	assert.False(t, ok)
	assert.NoFileExists(t, s.OutputPath("about.html"))
	assert.NotContains(t, readOutput(t, s, "index.html"), "about.html")

	path = writeFile(t, s.ContentRoot, "about.md", "---\ntitle: About Again\n---\n\nBack.\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	assert.Contains(t, readOutput(t, s, "about.html"), "Back.")
}

func TestIncremental_ParseFailureRescans(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "about.md", "---\ntitle: [broken\n---\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.Equal(t, []string{"posts/foo.it.md", "posts/foo.md", "posts/older.md"}, cachedPaths(b))
	assert.Len(t, b.Documents(), 3)
}

func TestIncremental_IgnoredMarkdownIsNoop(t *testing.T) {
	b := newBuilder(t, pipeline.Options{IgnorePatterns: []string{"scratch/**"}})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "scratch/idea.md", "---\ntitle: Idea\n---\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	_, ok := b.Cache().Get("scratch/idea.md")
	assert.False(t, ok)
	assert.NoFileExists(t, s.OutputPath("scratch/idea.html"))
}

func TestIncremental_RenderErrorCarriesPage(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "odd.md", "---\ntitle: Odd\nlayout: nonexistent\n---\n\nBody.\n")

	err := b.GenerateIncrementalForPath(t.Context(), path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))
	page, ok := ferrors.ContextValue(err, "page")
	require.True(t, ok)
	assert.Equal(t, "odd.md", page)

	// the builder stays usable and a full build reports the same failure
	require.Error(t, b.GenerateSite(t.Context()))
	require.NoError(t, os.Remove(path))
	require.NoError(t, b.GenerateSite(t.Context()))
	assert.Len(t, b.Documents(), 4)
}

func TestVariantsOf(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})

	variants, err := b.variantsOf("posts/foo.md", false)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "posts/foo.it.md", variants[0].FilePath)

	variants, err = b.variantsOf("posts/ghost.md", true)
	require.NoError(t, err)
	assert.Empty(t, variants)

	_, err = b.variantsOf("posts/ghost.md", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVariantsNotFound))
	rel, ok := ferrors.ContextValue(err, "path")
	require.True(t, ok)
	assert.Equal(t, "posts/ghost.md", rel)
}

func TestIncremental_Assets(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "images/new.png", "new")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	assert.Equal(t, "new", readOutput(t, s, "images/new.png"))

	require.NoError(t, os.Remove(path))
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, true))
	assert.NoFileExists(t, s.OutputPath("images/new.png"))
	assert.FileExists(t, s.OutputPath("images/logo.png"))
}

func TestIncremental_SiteConfigRebuilds(t *testing.T) {
	b := newBuilder(t, pipeline.Options{})
	s := b.Site()
	path := writeFile(t, s.ContentRoot, "site.toml", "title = \"Renamed Site\"\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))

	assert.Equal(t, "Renamed Site", s.Config.Title)
	assert.Contains(t, readOutput(t, s, "index.html"), "Renamed Site")
	assert.Contains(t, readOutput(t, s, "about.html"), "Renamed Site")
}

func TestIncremental_ThemeChangeRebuilds(t *testing.T) {
	themeDir := t.TempDir()
	writeFile(t, themeDir, "templates/page.html", "page v1 {{.title}}")
	writeFile(t, themeDir, "templates/post.html", "post {{.title}}")
	writeFile(t, themeDir, "templates/index.html", "index")

	b := newBuilder(t, pipeline.Options{ThemeRoot: themeDir})
	s := b.Site()
	assert.Equal(t, "page v1 About", readOutput(t, s, "about.html"))

	path := writeFile(t, themeDir, "templates/page.html", "page v2 {{.title}}")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	assert.Equal(t, "page v2 About", readOutput(t, s, "about.html"))
	assert.Len(t, b.Documents(), 4)
}

func TestIncremental_RecordsChangeKinds(t *testing.T) {
	rec := &countingRecorder{}
	b := newBuilder(t, pipeline.Options{}, WithRecorder(rec))
	s := b.Site()

	md := writeFile(t, s.ContentRoot, "about.md", "---\ntitle: About\n---\n\nv2\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), md, false))
	outside := writeFile(t, t.TempDir(), "stray.txt", "x")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), outside, false))

	assert.Equal(t, map[string]int{"markdown": 1, "unrelated": 1}, rec.changes)
}

func TestBuilder_PublishesLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	started, unsubStarted := events.Subscribe[events.BuildStarted](bus, 4)
	defer unsubStarted()
	finished, unsubFinished := events.Subscribe[events.BuildFinished](bus, 4)
	defer unsubFinished()

	b := newBuilder(t, pipeline.Options{}, WithEventBus(bus))

	var first events.BuildStarted
	select {
	case first = <-started:
	case <-time.After(time.Second):
		t.Fatal("no BuildStarted event")
	}
	var done events.BuildFinished
	select {
	case done = <-finished:
	case <-time.After(time.Second):
		t.Fatal("no BuildFinished event")
	}
	assert.Equal(t, first.BuildID, done.BuildID)
	assert.Equal(t, string(metrics.BuildFull), done.Kind)
	assert.True(t, done.Success)
	assert.Equal(t, 4, done.Documents)
	assert.Len(t, done.Fingerprints, 4)

	path := writeFile(t, b.Site().ContentRoot, "about.md", "---\ntitle: About\n---\n\nv2\n")
	require.NoError(t, b.GenerateIncrementalForPath(t.Context(), path, false))
	<-started
	done = <-finished
	assert.Equal(t, string(metrics.BuildIncremental), done.Kind)
	assert.Equal(t, "markdown", done.Change)
	assert.Equal(t, []string{"about.md"}, keys(done.Fingerprints))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
