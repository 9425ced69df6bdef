package preview

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInject(t *testing.T) {
	out, changed := Inject("<html><body><p>x</p></BODY></html>")
	require.True(t, changed)
	assert.True(t, strings.HasSuffix(out, ReloadScript+"</BODY></html>"))

	again, changed := Inject(out)
	assert.False(t, changed)
	assert.Equal(t, out, again)
	assert.Equal(t, 1, strings.Count(again, ReloadMarker))

	bare, changed := Inject("<p>fragment</p>")
	require.True(t, changed)
	assert.Equal(t, "<p>fragment</p>"+ReloadScript, bare)
}

func TestInject_NonASCIIBeforeBody(t *testing.T) {
	for _, page := range []string{
		"<html><body><p>İstanbul İzmir</p></body></html>",
		"<html><body><p>273 \u212a</p></Body></html>",
		"<html><body><p>日本語</p></body></html>",
	} {
		out, changed := Inject(page)
		require.True(t, changed, page)
		idx := strings.Index(out, ReloadScript)
		require.GreaterOrEqual(t, idx, 0, page)
		assert.Equal(t, page[:idx], out[:idx], page)
		assert.Equal(t, page[idx:], out[idx+len(ReloadScript):], page)
		assert.True(t, strings.HasPrefix(strings.ToLower(out[idx+len(ReloadScript):]), "</body>"), page)
	}
}

func TestReloadScript(t *testing.T) {
	assert.Contains(t, ReloadScript, ReloadPath)
	assert.Contains(t, ReloadScript, `"reload"`)
	assert.Contains(t, ReloadScript, "1000")
	assert.Contains(t, ReloadScript, "10000")
}

func TestInjectTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<body></body>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "posts", "a.html"), []byte("<body>a</body>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "feed.xml"), []byte("<feed/>"), 0o600))

	n, err := InjectTree(root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = InjectTree(root)
	require.NoError(t, err)
	assert.Zero(t, n)

	data, err := os.ReadFile(filepath.Join(root, "posts", "a.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ReloadMarker)
	feed, err := os.ReadFile(filepath.Join(root, "feed.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<feed/>", string(feed))
}

func TestInjectTree_MissingRoot(t *testing.T) {
	_, err := InjectTree(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
