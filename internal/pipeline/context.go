package pipeline

import (
	"html/template"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	"git.home.luguber.info/inful/sitegen/internal/i18n"
)

// Site-absolute targets that every page links to.
const (
	AssetsTarget  = "/assets"
	HomeTarget    = "/index.html"
	FeedTarget    = "/feed.xml"
	SitemapTarget = "/sitemap.xml"
	IndexFile     = "index.html"

	descriptionLimit = 160
)

// RelativePath returns target, a site-absolute slash path, relative to the
// directory of from, which is a slash path relative to the site root.
func RelativePath(from, target string) string {
	dir := path.Dir(from)
	if dir == "." {
		dir = ""
	}
	target = strings.TrimPrefix(target, "/")

	var fromParts, toParts []string
	if dir != "" {
		fromParts = strings.Split(dir, "/")
	}
	if target != "" {
		toParts = strings.Split(target, "/")
	}
	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}
	parts := make([]string, 0, len(fromParts)-common+len(toParts)-common)
	for range fromParts[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, toParts[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

func (s *Site) siteContext(ctx map[string]any, lang, filePath string) {
	ctx["site_title"] = s.Config.DisplayTitle()
	ctx["file_path"] = filePath
	if s.Config.BaseURL != "" {
		ctx["base_url"] = s.Config.BaseURL
	}
	ctx["assets_path"] = RelativePath(filePath, AssetsTarget)
	ctx["home_path"] = RelativePath(filePath, HomeTarget)
	ctx["feed_path"] = RelativePath(filePath, FeedTarget)
	ctx["lang"] = lang
}

// PageContext builds the template data for doc against the full document set.
func (s *Site) PageContext(doc *docmodel.Document, all []docmodel.Document) map[string]any {
	ctx := make(map[string]any, len(doc.FrontMatter.Extra)+24)
	for k, v := range doc.FrontMatter.Extra {
		ctx[k] = v
	}

	ctx["title"] = doc.FrontMatter.Title
	ctx["content"] = template.HTML(doc.Content) // #nosec G203 -- rendered by the markdown engine
	ctx["date"] = formatDate(doc.FrontMatter.Date)
	ctx["tags"] = doc.FrontMatter.Tags
	ctx["language"] = doc.Language
	ctx["base_name"] = doc.BaseName
	ctx["pdf"] = doc.FrontMatter.PDF
	ctx["description"] = Description(doc.Content, doc.FrontMatter.Description)
	if doc.TOC != "" {
		ctx["toc"] = template.HTML(doc.TOC) // #nosec G203 -- generated from escaped headings
	}

	s.siteContext(ctx, doc.Language, doc.FilePath)

	if doc.IsPost() {
		ctx["show_back_to_home"] = true
	}
	ctx["language_name"] = i18n.LanguageName(doc.Language)

	if translations := availableTranslations(doc, all); len(translations) > 1 {
		ctx["available_translations"] = translations
	}
	ctx["page_links"] = pageLinks(all, doc.FilePath)

	if doc.FrontMatter.PDF && s.PDFEnabled() {
		ctx["pdf_path"] = RelativePath(doc.FilePath, "/"+doc.PDFPath())
	}
	return ctx
}

// IndexContext builds the template data for the home page.
func (s *Site) IndexContext(all []docmodel.Document) map[string]any {
	ctx := make(map[string]any, 12)
	s.siteContext(ctx, i18n.DefaultLanguage, IndexFile)
	ctx["site_description"] = s.Config.DisplayTitle() + " - Latest posts and articles"

	posts := IndexPosts(all, i18n.DefaultLanguage)
	entries := make([]map[string]any, 0, len(posts))
	for i := range posts {
		entries = append(entries, postObject(&posts[i], IndexFile))
	}
	ctx["posts"] = entries
	ctx["page_links"] = pageLinks(all, IndexFile)
	return ctx
}

// IndexPosts picks one post per logical page, preferring the default language,
// ordered newest first. Posts without a date sort last.
func IndexPosts(all []docmodel.Document, defaultLang string) []docmodel.Document {
	chosen := make(map[string]docmodel.Document)
	var keys []string
	for _, d := range all {
		if !d.IsPost() {
			continue
		}
		key := d.GroupKey()
		existing, ok := chosen[key]
		if !ok {
			keys = append(keys, key)
			chosen[key] = d
			continue
		}
		if existing.Language != defaultLang && d.Language == defaultLang {
			chosen[key] = d
		}
	}
	sort.Strings(keys)

	out := make([]docmodel.Document, 0, len(keys))
	for _, k := range keys {
		out = append(out, chosen[k])
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(docs []docmodel.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].FrontMatter.Date, docs[j].FrontMatter.Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func postObject(doc *docmodel.Document, from string) map[string]any {
	post := map[string]any{
		"title": doc.Title(),
		"url":   RelativePath(from, "/"+doc.OutputPath()),
		"date":  formatDate(doc.FrontMatter.Date),
	}
	if len(doc.FrontMatter.Tags) > 0 {
		post["tags"] = doc.FrontMatter.Tags
	}
	return post
}

func pageLinks(all []docmodel.Document, from string) []map[string]any {
	var pages []*docmodel.Document
	for i := range all {
		if !all[i].IsPost() && all[i].Language == i18n.DefaultLanguage {
			pages = append(pages, &all[i])
		}
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].FrontMatter.Title < pages[j].FrontMatter.Title
	})
	links := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		links = append(links, map[string]any{
			"title": p.Title(),
			"url":   RelativePath(from, "/"+p.OutputPath()),
		})
	}
	return links
}

func availableTranslations(doc *docmodel.Document, all []docmodel.Document) []map[string]any {
	key := doc.GroupKey()
	var out []map[string]any
	for i := range all {
		other := &all[i]
		if other.GroupKey() != key {
			continue
		}
		out = append(out, map[string]any{
			"lang":       other.Language,
			"lang_name":  i18n.LanguageName(other.Language),
			"path":       RelativePath(doc.FilePath, "/"+other.OutputPath()),
			"is_current": other.FilePath == doc.FilePath,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i]["lang"].(string) < out[j]["lang"].(string)
	})
	return out
}

// Description returns the cleaned front matter description, or the page text
// truncated to 160 characters.
func Description(contentHTML, frontMatter string) string {
	if fm := strings.TrimSpace(frontMatter); fm != "" {
		return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(fm)
	}
	text := strings.Join(strings.Fields(extractText(contentHTML)), " ")
	if utf8.RuneCountInString(text) <= descriptionLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:descriptionLimit-3]) + "..."
}

func extractText(contentHTML string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(contentHTML))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
