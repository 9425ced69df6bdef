package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// front matter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml front matter start delimiter found but closing delimiter is missing")

// ErrInvalidDate is returned when the date field cannot be interpreted.
var ErrInvalidDate = errors.New("invalid front matter date")

// Split separates YAML front matter (`---` delimited) from the markdown body.
//
// Both LF and CRLF line endings are accepted. If the document does not start
// with a delimiter line, had is false and body is the full input.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := "\n"
	if bytes.HasPrefix(content, []byte("---\r\n")) {
		nl = "\r\n"
	} else if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, content, false, nil
	}

	rest := content[len("---")+len(nl):]
	if bytes.HasPrefix(rest, []byte("---"+nl)) {
		return []byte{}, rest[len("---")+len(nl):], true, nil
	}

	closing := []byte(nl + "---" + nl)
	if idx := bytes.Index(rest, closing); idx >= 0 {
		return rest[:idx+len(nl)], rest[idx+len(closing):], true, nil
	}
	// Closing delimiter as the last line without a trailing newline.
	if bytes.HasSuffix(rest, []byte(nl+"---")) {
		end := len(rest) - len("---")
		return rest[:end], []byte{}, true, nil
	}
	return nil, nil, false, ErrMissingClosingDelimiter
}

var knownKeys = map[string]struct{}{
	"title": {}, "date": {}, "tags": {}, "lang": {}, "draft": {},
	"pdf": {}, "toc": {}, "layout": {}, "description": {},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse decodes a raw YAML block into typed front matter.
//
// Keys other than the known fields are kept in Extra.
func Parse(raw []byte) (docmodel.FrontMatter, error) {
	var fm docmodel.FrontMatter
	fields := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return fm, err
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}

	fm.Title = stringField(fields, "title")
	fm.Lang = stringField(fields, "lang")
	fm.Layout = stringField(fields, "layout")
	fm.Description = stringField(fields, "description")
	fm.Draft = boolField(fields, "draft")
	fm.PDF = boolField(fields, "pdf")
	fm.TOC = boolField(fields, "toc")
	fm.Tags = tagsField(fields["tags"])

	if v, ok := fields["date"]; ok && v != nil {
		d, err := parseDate(v)
		if err != nil {
			return fm, err
		}
		fm.Date = &d
	}

	for k, v := range fields {
		if _, known := knownKeys[k]; known {
			continue
		}
		if fm.Extra == nil {
			fm.Extra = make(map[string]any)
		}
		fm.Extra[k] = v
	}
	return fm, nil
}

func parseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported value %v", ErrInvalidDate, v)
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func boolField(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func tagsField(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
