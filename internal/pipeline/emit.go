package pipeline

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/i18n"
	"git.home.luguber.info/inful/sitegen/internal/version"
)

// Aggregate output files.
const (
	FeedFile    = "feed.xml"
	SitemapFile = "sitemap.xml"
	RobotsFile  = "robots.txt"

	feedLimit = 20
)

// EmitFeed writes the Atom feed of the newest default-language posts.
func (s *Site) EmitFeed(all []docmodel.Document, now time.Time) error {
	data, err := s.Feed(all, now)
	if err == nil {
		err = s.writeOutput(FeedFile, data)
	}
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "writing feed").Build()
	}
	return nil
}

type atomFeed struct {
	XMLName   xml.Name      `xml:"feed"`
	Xmlns     string        `xml:"xmlns,attr"`
	Base      string        `xml:"xml:base,attr,omitempty"`
	Title     string        `xml:"title"`
	Links     []atomLink    `xml:"link"`
	ID        string        `xml:"id,omitempty"`
	Updated   string        `xml:"updated"`
	Generator atomGenerator `xml:"generator"`
	Entries   []atomEntry   `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomGenerator struct {
	Version string `xml:"version,attr"`
	Name    string `xml:",chardata"`
}

type atomEntry struct {
	Title      string         `xml:"title,omitempty"`
	Link       atomLink       `xml:"link"`
	ID         string         `xml:"id"`
	Updated    string         `xml:"updated,omitempty"`
	Published  string         `xml:"published,omitempty"`
	Content    atomContent    `xml:"content"`
	Categories []atomCategory `xml:"category"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",cdata"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// Feed renders the Atom document. now stamps the feed when no post carries a date.
func (s *Site) Feed(all []docmodel.Document, now time.Time) ([]byte, error) {
	var posts []docmodel.Document
	for _, d := range all {
		if d.IsPost() && d.Language == i18n.DefaultLanguage {
			posts = append(posts, d)
		}
	}
	sortNewestFirst(posts)
	if len(posts) > feedLimit {
		posts = posts[:feedLimit]
	}

	base := s.Config.BaseURL
	feed := atomFeed{
		Xmlns:     "http://www.w3.org/2005/Atom",
		Base:      base,
		Title:     s.Config.DisplayTitle(),
		Generator: atomGenerator{Version: version.Version, Name: "sitegen"},
	}
	if base != "" {
		feed.Links = []atomLink{
			{Href: s.Config.NormalizedBaseURL() + "/" + FeedFile, Rel: "self"},
			{Href: base},
		}
		feed.ID = base
	}
	updated := now.UTC()
	if len(posts) > 0 && posts[0].FrontMatter.Date != nil {
		updated = *posts[0].FrontMatter.Date
	}
	feed.Updated = updated.Format(time.RFC3339)

	for i := range posts {
		feed.Entries = append(feed.Entries, s.feedEntry(&posts[i]))
	}
	return marshalXML(feed)
}

func (s *Site) feedEntry(post *docmodel.Document) atomEntry {
	u := s.documentURL(post)
	entry := atomEntry{
		Title:   post.FrontMatter.Title,
		Link:    atomLink{Href: u},
		ID:      u,
		Content: atomContent{Type: "html", Body: post.Content},
	}
	if d := post.FrontMatter.Date; d != nil {
		entry.Updated = d.Format(time.RFC3339)
		entry.Published = entry.Updated
	}
	for _, tag := range post.FrontMatter.Tags {
		entry.Categories = append(entry.Categories, atomCategory{Term: tag})
	}
	return entry
}

func marshalXML(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}

// documentURL is the absolute URL of doc when a base URL is set, else its output path.
func (s *Site) documentURL(doc *docmodel.Document) string {
	if s.Config.BaseURL == "" {
		return doc.OutputPath()
	}
	return s.Config.NormalizedBaseURL() + "/" + doc.OutputPath()
}

// EmitSitemap writes sitemap.xml.
func (s *Site) EmitSitemap(all []docmodel.Document, now time.Time) error {
	data, err := s.Sitemap(all, now)
	if err == nil {
		err = s.writeOutput(SitemapFile, data)
	}
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "writing sitemap").Build()
	}
	return nil
}

type urlSet struct {
	XMLName        xml.Name     `xml:"urlset"`
	Xmlns          string       `xml:"xmlns,attr"`
	XhtmlNS        string       `xml:"xmlns:xhtml,attr"`
	XsiNS          string       `xml:"xmlns:xsi,attr"`
	SchemaLocation string       `xml:"xsi:schemaLocation,attr"`
	URLs           []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string           `xml:"loc"`
	LastMod    string           `xml:"lastmod,omitempty"`
	ChangeFreq string           `xml:"changefreq"`
	Priority   string           `xml:"priority"`
	Alternates []sitemapAltLink `xml:"xhtml:link"`
}

type sitemapAltLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// Sitemap renders the XML sitemap with one entry per logical page and
// xhtml:link alternates for every language variant.
func (s *Site) Sitemap(all []docmodel.Document, now time.Time) ([]byte, error) {
	groups := make(map[string][]*docmodel.Document)
	var order []string
	for i := range all {
		key := all[i].GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], &all[i])
	}

	set := urlSet{
		Xmlns:          "http://www.sitemaps.org/schemas/sitemap/0.9",
		XhtmlNS:        "http://www.w3.org/1999/xhtml",
		XsiNS:          "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.sitemaps.org/schemas/sitemap/0.9 http://www.sitemaps.org/schemas/sitemap/0.9/sitemap.xsd",
	}
	if s.Config.BaseURL != "" {
		latest := latestDate(all)
		if latest == nil {
			n := now.UTC()
			latest = &n
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.Config.BaseURL,
			LastMod:    latest.Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "1.0",
		})
	}
	for _, key := range order {
		set.URLs = append(set.URLs, s.sitemapEntry(groups[key]))
	}
	return marshalXML(set)
}

func (s *Site) sitemapEntry(variants []*docmodel.Document) sitemapURL {
	canonicalDoc := variants[0]
	for _, v := range variants {
		if v.Language == i18n.DefaultLanguage {
			canonicalDoc = v
			break
		}
	}

	entry := sitemapURL{Loc: s.documentURL(canonicalDoc), ChangeFreq: "monthly", Priority: "0.6"}
	if canonicalDoc.IsPost() {
		entry.Priority = "0.8"
	}
	var latest *time.Time
	for _, v := range variants {
		if d := v.FrontMatter.Date; d != nil && (latest == nil || d.After(*latest)) {
			latest = d
		}
	}
	if latest != nil {
		entry.LastMod = latest.Format("2006-01-02")
	}

	if len(variants) > 1 {
		sorted := append([]*docmodel.Document(nil), variants...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Language < sorted[j].Language })
		for _, v := range sorted {
			entry.Alternates = append(entry.Alternates, sitemapAltLink{
				Rel:      "alternate",
				Hreflang: hreflang(v.Language),
				Href:     s.documentURL(v),
			})
		}
	}
	return entry
}

func latestDate(docs []docmodel.Document) *time.Time {
	var latest *time.Time
	for i := range docs {
		if d := docs[i].FrontMatter.Date; d != nil && (latest == nil || d.After(*latest)) {
			latest = d
		}
	}
	return latest
}

// hreflang returns the canonical BCP 47 form of a content language code.
func hreflang(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// EmitRobots writes robots.txt, pointing at the sitemap when a base URL is set.
func (s *Site) EmitRobots() error {
	if err := s.writeOutput(RobotsFile, []byte(s.Robots())); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "writing robots.txt").Build()
	}
	return nil
}

// Robots renders robots.txt.
func (s *Site) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	if s.Config.BaseURL != "" {
		fmt.Fprintf(&b, "\nSitemap: %s%s\n", s.Config.NormalizedBaseURL(), SitemapTarget)
	}
	return b.String()
}
