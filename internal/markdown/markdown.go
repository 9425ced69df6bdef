// Package markdown converts markdown bodies to HTML and derives heading ids and tables of contents.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Heading is one heading of a rendered document.
type Heading struct {
	Level int
	Text  string
	ID    string
}

// Result is the output of Render.
type Result struct {
	HTML     string
	Headings []Heading
	TOC      string
}

// Options control a single Render call.
type Options struct {
	// Title is the document title; an h1 equal to it is removed from the body and the TOC.
	Title string
	// TOC enables table of contents generation.
	TOC bool
}

var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// Render converts a markdown body (front matter already removed) to HTML.
func Render(body []byte, opts Options) (Result, error) {
	ctx := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	root := engine.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	var headings []Heading
	var titleHeading gmast.Node
	title := strings.TrimSpace(opts.Title)

	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		hd := Heading{Level: h.Level, Text: strings.TrimSpace(nodeText(h, body))}
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				hd.ID = string(b)
			}
		}
		if titleHeading == nil && h.Level == 1 && title != "" && hd.Text == title {
			titleHeading = h
		}
		headings = append(headings, hd)
		return gmast.WalkSkipChildren, nil
	})

	if titleHeading != nil {
		parent := titleHeading.Parent()
		parent.RemoveChild(parent, titleHeading)
	}

	var buf bytes.Buffer
	if err := engine.Renderer().Render(&buf, body, root); err != nil {
		return Result{}, fmt.Errorf("render markdown: %w", err)
	}

	res := Result{HTML: buf.String(), Headings: headings}
	if opts.TOC {
		res.TOC = TOC(headings, opts.Title)
	}
	return res, nil
}

// TOC renders a nested-by-indent list of heading links, skipping an h1 equal to title.
func TOC(headings []Heading, title string) string {
	title = strings.TrimSpace(title)
	items := make([]string, 0, len(headings))
	for _, h := range headings {
		if h.Level == 1 && title != "" && h.Text == title {
			continue
		}
		indent := strings.Repeat("  ", max(h.Level-1, 0))
		items = append(items, fmt.Sprintf(`%s<li><a href="#%s">%s</a></li>`,
			indent, html.EscapeString(h.ID), html.EscapeString(h.Text)))
	}
	if len(items) == 0 {
		return ""
	}
	return "<ul class=\"toc\">\n" + strings.Join(items, "\n") + "\n</ul>"
}

// nodeText concatenates the literal text beneath n.
func nodeText(n gmast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, src))
		}
	}
	return b.String()
}
