package docmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supported(code string) bool {
	switch code {
	case "en", "it", "de":
		return true
	}
	return false
}

func TestSplitLanguage(t *testing.T) {
	cases := []struct {
		stem, base, lang string
	}{
		{"hello", "hello", "en"},
		{"hello.it", "hello", "it"},
		{"hello.de", "hello", "de"},
		{"hello.xx", "hello.xx", "en"},
		{"v1.2", "v1.2", "en"},
		{".it", ".it", "en"},
		{"hello.", "hello.", "en"},
	}
	for _, c := range cases {
		base, lang := SplitLanguage(c.stem, "en", supported)
		assert.Equal(t, c.base, base, c.stem)
		assert.Equal(t, c.lang, lang, c.stem)
	}
}

func TestLayout(t *testing.T) {
	post := Document{FilePath: "posts/a.md"}
	assert.Equal(t, LayoutPost, post.Layout().Kind)
	assert.Equal(t, "post", post.Layout().TemplateName())
	assert.True(t, post.IsPost())

	page := Document{FilePath: "about.md"}
	assert.Equal(t, "page", page.Layout().TemplateName())
	assert.False(t, page.IsPost())

	explicit := Document{FilePath: "news/x.md", FrontMatter: FrontMatter{Layout: "post"}}
	assert.Equal(t, LayoutPost, explicit.Layout().Kind)
	assert.True(t, explicit.IsPost())

	custom := Document{FilePath: "landing.md", FrontMatter: FrontMatter{Layout: "landing"}}
	assert.Equal(t, Layout{Kind: LayoutCustom, Name: "landing"}, custom.Layout())
	assert.Equal(t, "landing", custom.Layout().TemplateName())
}

func TestPaths(t *testing.T) {
	d := Document{FilePath: "posts/hello.it.md", BaseName: "hello"}
	assert.Equal(t, "posts/hello.it.html", d.OutputPath())
	assert.Equal(t, "posts/hello.it.pdf", d.PDFPath())
	assert.Equal(t, "posts", d.Dir())
	assert.Equal(t, "posts/hello", d.GroupKey())

	root := Document{FilePath: "index.md", BaseName: "index"}
	assert.Equal(t, "", root.Dir())
	assert.Equal(t, "index", root.GroupKey())
	assert.Equal(t, "Untitled", root.Title())
}

func TestCacheLifecycle(t *testing.T) {
	c := NewCache()
	c.Reset([]Document{
		{FilePath: "b.md"},
		{FilePath: "a.md"},
		{FilePath: "draft.md", FrontMatter: FrontMatter{Draft: true}},
	})
	require.Equal(t, 2, c.Len())
	docs := c.Documents()
	assert.Equal(t, "a.md", docs[0].FilePath)
	assert.Equal(t, "b.md", docs[1].FilePath)

	c.Put(Document{FilePath: "a.md", Content: "new"})
	got, ok := c.Get("a.md")
	require.True(t, ok)
	assert.Equal(t, "new", got.Content)

	removed, ok := c.Remove("a.md")
	require.True(t, ok)
	assert.Equal(t, "new", removed.Content)
	_, ok = c.Remove("a.md")
	assert.False(t, ok)

	c.Put(Document{FilePath: "b.md", FrontMatter: FrontMatter{Draft: true}})
	assert.Equal(t, 0, c.Len(), "a draft replaces and evicts its entry")
}

func TestCacheUnder(t *testing.T) {
	c := NewCache()
	c.Reset([]Document{
		{FilePath: "posts/b.md"},
		{FilePath: "posts/a.md"},
		{FilePath: "posts-archive/c.md"},
		{FilePath: "posts.md"},
	})
	var paths []string
	for _, d := range c.Under("posts") {
		paths = append(paths, d.FilePath)
	}
	assert.Equal(t, []string{"posts/a.md", "posts/b.md"}, paths)
	assert.Len(t, c.Under("posts/"), 2)
	assert.Empty(t, c.Under("guides"))
}

func TestReplaceAndRemovePath(t *testing.T) {
	docs := []Document{{FilePath: "a.md"}, {FilePath: "b.md"}}
	docs = Replace(docs, Document{FilePath: "a.md", Content: "x"})
	require.Len(t, docs, 2)
	assert.Equal(t, "x", docs[0].Content)

	docs = Replace(docs, Document{FilePath: "c.md"})
	require.Len(t, docs, 3)

	got, ok := Find(docs, "a.md")
	require.True(t, ok)
	assert.Equal(t, "x", got.Content)

	docs = RemovePath(docs, "b.md")
	require.Len(t, docs, 2)
	assert.Equal(t, "c.md", docs[1].FilePath)
	_, ok = Find(docs, "b.md")
	assert.False(t, ok)
}

func TestVariants(t *testing.T) {
	docs := []Document{
		{FilePath: "posts/foo.md"},
		{FilePath: "posts/foo.it.md"},
		{FilePath: "posts/foo.xx.md"},
		{FilePath: "posts/bar.md"},
		{FilePath: "pages/foo.md"},
	}

	got := Variants(docs, "posts/foo.it.md", "en", supported)
	paths := make([]string, 0, len(got))
	for _, d := range got {
		paths = append(paths, d.FilePath)
	}
	assert.ElementsMatch(t, []string{"posts/foo.md", "posts/foo.it.md"}, paths)

	assert.Empty(t, Variants(docs, "posts/missing.md", "en", supported))
}
