// Package content turns a single markdown file into a docmodel.Document.
package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/sitegen/internal/docmodel"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
	"git.home.luguber.info/inful/sitegen/internal/i18n"
	"git.home.luguber.info/inful/sitegen/internal/markdown"
)

// Parse failure kinds. Callers match them with errors.Is.
var (
	// ErrDraft marks a file skipped because its front matter sets draft: true.
	ErrDraft               = errors.New("draft skipped")
	ErrInvalidFrontMatter  = errors.New("invalid front matter")
	ErrUnsupportedLanguage = errors.New("unsupported language code")
)

// RelativePath returns path relative to root with forward slashes.
// Paths outside root are returned slash-converted as given.
func RelativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// ParseFile reads and parses the markdown file at path, which must lie under root.
func ParseFile(root, path string) (docmodel.Document, error) {
	rel := RelativePath(root, path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return docmodel.Document{}, ferrors.WrapError(err, ferrors.CategoryIO, "reading markdown file").
			WithContext("path", rel).
			Build()
	}
	return Parse(rel, raw)
}

// Parse builds a Document from the raw bytes of the file at the slash path rel.
func Parse(rel string, raw []byte) (docmodel.Document, error) {
	fmRaw, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return docmodel.Document{}, parseError(rel, ErrInvalidFrontMatter, err)
	}

	fm, err := frontmatter.Parse(fmRaw)
	if err != nil {
		if errors.Is(err, frontmatter.ErrInvalidDate) {
			return docmodel.Document{}, parseError(rel, frontmatter.ErrInvalidDate, err)
		}
		return docmodel.Document{}, parseError(rel, ErrInvalidFrontMatter, err)
	}
	if fm.Draft {
		return docmodel.Document{}, ferrors.ParseError("skipping draft file").
			Warning().
			WithContext("path", rel).
			WithCause(ErrDraft).
			Build()
	}

	base, lang := docmodel.SplitLanguage(docmodel.Stem(rel), i18n.DefaultLanguage, i18n.IsSupported)
	if fm.Lang != "" {
		if !i18n.IsSupported(fm.Lang) {
			return docmodel.Document{}, parseError(rel, ErrUnsupportedLanguage,
				errors.New("lang "+fm.Lang))
		}
		lang = fm.Lang
	}

	res, err := markdown.Render(body, markdown.Options{Title: fm.Title, TOC: fm.TOC})
	if err != nil {
		return docmodel.Document{}, ferrors.WrapError(err, ferrors.CategoryParse, "rendering markdown").
			WithContext("path", rel).
			Build()
	}

	return docmodel.Document{
		FilePath:    rel,
		Language:    lang,
		BaseName:    base,
		FrontMatter: fm,
		Content:     res.HTML,
		TOC:         res.TOC,
		Fingerprint: mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(fmRaw), "\n"), string(body)),
	}, nil
}

// IsDraftSkip reports whether err is the soft draft-skip outcome rather than a failure.
func IsDraftSkip(err error) bool {
	return errors.Is(err, ErrDraft)
}

func parseError(rel string, kind, cause error) error {
	return ferrors.ParseError(kind.Error()).
		WithContext("path", rel).
		WithCause(errors.Join(kind, cause)).
		Build()
}
