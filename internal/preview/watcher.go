// Package preview runs the development server: the file watcher, the debounced
// rebuild loop, static file serving and the live-reload channel.
package preview

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/fsutil"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

const watchBuffer = 256

// Event is one filesystem change under a watched root.
type Event struct {
	Path    string
	Removed bool
}

// Watcher reports create, write, remove and rename events for whole directory
// trees. Directories created after start are watched as they appear.
type Watcher struct {
	fs     *fsnotify.Watcher
	events chan Event
}

// NewWatcher watches every existing root recursively. A root that cannot be
// watched is logged and skipped; the others stay registered.
func NewWatcher(roots ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "creating file watcher").Build()
	}
	w := &Watcher{fs: fw, events: make(chan Event, watchBuffer)}
	for _, root := range roots {
		if root == "" {
			continue
		}
		if err := w.addRecursive(root); err != nil {
			slog.Warn("Not watching root", logfields.Path(root), logfields.Error(err))
			continue
		}
		slog.Debug("Watching root", logfields.Path(root))
	}
	return w, nil
}

// Events returns the output channel. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// Run forwards filesystem events until ctx ends or the watcher is closed. It
// blocks and is meant to own a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			out, keep := w.translate(ev)
			if !keep {
				continue
			}
			select {
			case w.events <- out:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// translate drops chmod-only events and editor scratch files. Renames report the
// old name as removed.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	if fsutil.IsIgnoredName(filepath.Base(ev.Name)) {
		return Event{}, false
	}
	switch {
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		return Event{Path: ev.Name, Removed: true}, true
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				slog.Warn("Not watching new directory", logfields.Path(ev.Name), logfields.Error(err))
			}
		}
		return Event{Path: ev.Name}, true
	case ev.Op.Has(fsnotify.Write):
		return Event{Path: ev.Name}, true
	default:
		return Event{}, false
	}
}

func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fs.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}
