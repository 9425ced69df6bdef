package fsutil

import (
	"path/filepath"
	"strings"
)

// Canonical returns the absolute, symlink-resolved form of p.
//
// When p no longer exists its parent is resolved instead, so a deleted file keeps
// the canonical prefix of its directory. If nothing resolves the absolute literal
// path is returned.
func Canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(resolved, filepath.Base(abs))
	}
	return abs
}

// Within reports whether p equals root or lies below it. Both must be clean.
func Within(p, root string) bool {
	if p == root {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
