package docmodel

import (
	"path"
	"sort"
	"strings"
)

// Cache maps a document's FilePath to the last successfully parsed version.
//
// A Cache has a single owner and performs no locking.
type Cache struct {
	docs map[string]Document
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{docs: make(map[string]Document)}
}

// Get returns the cached document for filePath.
func (c *Cache) Get(filePath string) (Document, bool) {
	d, ok := c.docs[filePath]
	return d, ok
}

// Put inserts or replaces the entry keyed by doc.FilePath.
// Drafts are never stored.
func (c *Cache) Put(doc Document) {
	if doc.FrontMatter.Draft {
		delete(c.docs, doc.FilePath)
		return
	}
	c.docs[doc.FilePath] = doc
}

// Remove deletes the entry for filePath and returns it.
func (c *Cache) Remove(filePath string) (Document, bool) {
	d, ok := c.docs[filePath]
	if ok {
		delete(c.docs, filePath)
	}
	return d, ok
}

// Reset clears the cache and repopulates it from docs.
func (c *Cache) Reset(docs []Document) {
	c.docs = make(map[string]Document, len(docs))
	for _, d := range docs {
		c.Put(d)
	}
}

// Under returns the cached documents below the slash-separated directory dir,
// sorted by FilePath.
func (c *Cache) Under(dir string) []Document {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var out []Document
	for p, d := range c.docs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, d)
		}
	}
	SortByPath(out)
	return out
}

// Len returns the number of cached documents.
func (c *Cache) Len() int { return len(c.docs) }

// Documents returns the cached documents sorted by FilePath.
func (c *Cache) Documents() []Document {
	out := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, d)
	}
	SortByPath(out)
	return out
}

// SortByPath orders documents by FilePath.
func SortByPath(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].FilePath < docs[j].FilePath })
}

// Replace swaps the slot with the same FilePath as doc, or appends doc.
func Replace(docs []Document, doc Document) []Document {
	for i := range docs {
		if docs[i].FilePath == doc.FilePath {
			docs[i] = doc
			return docs
		}
	}
	return append(docs, doc)
}

// Find returns the slot with the given FilePath.
func Find(docs []Document, filePath string) (Document, bool) {
	for i := range docs {
		if docs[i].FilePath == filePath {
			return docs[i], true
		}
	}
	return Document{}, false
}

// RemovePath drops every slot with the given FilePath.
func RemovePath(docs []Document, filePath string) []Document {
	out := docs[:0]
	for _, d := range docs {
		if d.FilePath != filePath {
			out = append(out, d)
		}
	}
	return out
}

// Variants returns every document in docs that shares relPath's directory and base name,
// including the document at relPath itself when present.
func Variants(docs []Document, relPath, defaultLang string, isSupported func(string) bool) []Document {
	dir := path.Dir(relPath)
	base, _ := SplitLanguage(Stem(relPath), defaultLang, isSupported)

	var out []Document
	for _, d := range docs {
		if path.Dir(d.FilePath) != dir {
			continue
		}
		other, _ := SplitLanguage(Stem(d.FilePath), defaultLang, isSupported)
		if other == base {
			out = append(out, d)
		}
	}
	return out
}
