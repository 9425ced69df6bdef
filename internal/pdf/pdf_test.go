package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareMarkdown_AddsTitleAndResolvesImages(t *testing.T) {
	raw := []byte("---\ntitle: Guide\n---\nIntro\n\n![shot](img/a.png \"Cap\")\n![abs](/static/b.png)\n![web](https://x.test/c.png)\n")
	out, err := PrepareMarkdown(raw, Request{RelPath: "docs/guide.md"}, time.Now())
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "# Guide\n\nIntro"), s)
	assert.Contains(t, s, `![shot](docs/img/a.png "Cap")`)
	assert.Contains(t, s, "![abs](/static/b.png)")
	assert.Contains(t, s, "![web](https://x.test/c.png)")
	assert.NotContains(t, s, "Document Information")
}

func TestPrepareMarkdown_KeepsExistingHeadingAndAddsAppendix(t *testing.T) {
	raw := []byte("---\ntitle: Guida\n---\n# Guida\n\nTesto\n")
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	out, err := PrepareMarkdown(raw, Request{
		RelPath: "posts/guida.it.md", Language: "it", BaseURL: "https://example.com/",
	}, now)
	require.NoError(t, err)

	s := string(out)
	assert.Equal(t, 1, strings.Count(s, "# Guida\n"))
	assert.Contains(t, s, "## Informazioni sul Documento")
	assert.Contains(t, s, "Questo documento è stato scaricato da https://example.com/posts/guida.it.pdf")
	assert.Contains(t, s, "Generato il 2024-05-06 07:08:09 UTC")
}

func TestTranslateFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, "Generated at", translate("generated_at", "xx"))
	assert.Equal(t, "unknown_key", translate("unknown_key", "en"))
}

func TestToolchainAvailability(t *testing.T) {
	var nilTC *Toolchain
	assert.False(t, nilTC.Available())
	assert.False(t, (&Toolchain{Pandoc: "/usr/bin/pandoc"}).Available())
	assert.True(t, (&Toolchain{Pandoc: "/usr/bin/pandoc", Typst: "/usr/bin/typst"}).Available())
}

func TestConvert_UnavailableIsSoftError(t *testing.T) {
	err := (&Toolchain{}).Convert(t.Context(), Request{})
	require.Error(t, err)
}

func TestDetect_EmptyPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	assert.False(t, Detect().Available())
}

func TestDetect_FindsExecutables(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pandoc", "typst"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", dir)
	tc := Detect()
	assert.True(t, tc.Available())
	assert.Equal(t, filepath.Join(dir, "pandoc"), tc.Pandoc)
}

func TestConvert_InvokesPandoc(t *testing.T) {
	bin := t.TempDir()
	script := "#!/bin/sh\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"--output\" ]; then shift; printf '%%PDF' > \"$1\"; fi\n  shift\ndone\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "pandoc"), []byte(script), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "typst"), []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", bin)

	root := t.TempDir()
	src := filepath.Join(root, "a.md")
	require.NoError(t, os.WriteFile(src, []byte("---\ntitle: A\n---\nbody\n"), 0o644))
	out := filepath.Join(t.TempDir(), "nested", "a.pdf")

	err := Detect().Convert(t.Context(), Request{Source: src, RelPath: "a.md", ContentRoot: root, Output: out})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}
