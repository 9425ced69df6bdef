package preview

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// ReloadMarker tags an injected client script so injection stays idempotent.
const ReloadMarker = "<!-- sitegen live reload -->"

// ReloadScript connects to the reload endpoint, refreshes the page on a reload
// frame and reconnects with backoff from 1s up to 10s.
const ReloadScript = ReloadMarker + `
<script>
(() => {
  let delay = 1000;
  function connect() {
    const proto = location.protocol === "https:" ? "wss:" : "ws:";
    const ws = new WebSocket(proto + "//" + location.host + "` + ReloadPath + `");
    ws.onopen = () => { delay = 1000; };
    ws.onmessage = (e) => { if (e.data === "` + ReloadMessage + `") location.reload(); };
    ws.onclose = () => {
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 10000);
    };
  }
  connect();
})();
</script>
`

// Inject places the reload script before the last </body>, or appends it when
// the page has none. Pages that already carry the marker are returned unchanged.
func Inject(page string) (string, bool) {
	if strings.Contains(page, ReloadMarker) {
		return page, false
	}
	idx := lastIndexFold(page, bodyClose)
	if idx < 0 {
		return page + ReloadScript, true
	}
	return page[:idx] + ReloadScript + page[idx:], true
}

const bodyClose = "</body>"

// lastIndexFold returns the byte offset of the last ASCII case-insensitive match
// of tag in page, or -1.
func lastIndexFold(page, tag string) int {
	for i := len(page) - len(tag); i >= 0; i-- {
		if page[i] == '<' && strings.EqualFold(page[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

// InjectTree injects the reload script into every .html file under root and
// returns the number of files rewritten.
func InjectTree(root string) (int, error) {
	changed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the output root
		if err != nil {
			return err
		}
		out, ok := Inject(string(data))
		if !ok {
			return nil
		}
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil { // #nosec G306 -- served files
			return err
		}
		changed++
		return nil
	})
	if err != nil {
		return changed, ferrors.WrapError(err, ferrors.CategoryIO, "injecting live reload script").
			WithContext("path", root).
			Build()
	}
	return changed, nil
}
