package pipeline

import (
	"os"
	"path"
	"path/filepath"
)

// walkFiles visits every regular file below root, following symbolic links.
// rel is slash-separated and relative to root. Directories reached twice through
// links are visited once. Unreadable entries are skipped.
func walkFiles(root string, fn func(rel, abs string) error) error {
	seen := make(map[string]struct{})
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return nil
		}
		if _, dup := seen[real]; dup {
			return nil
		}
		seen[real] = struct{}{}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if rel == "" {
				return err
			}
			return nil
		}
		for _, e := range entries {
			abs := filepath.Join(dir, e.Name())
			childRel := e.Name()
			if rel != "" {
				childRel = path.Join(rel, e.Name())
			}
			info, err := os.Stat(abs)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := walk(abs, childRel); err != nil {
					return err
				}
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}
			if err := fn(childRel, abs); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, "")
}
