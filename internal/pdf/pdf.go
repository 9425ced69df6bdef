// Package pdf converts content files to PDF through pandoc with the typst engine.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
)

// Request describes one conversion.
type Request struct {
	// Source is the markdown file on disk.
	Source string
	// RelPath is Source relative to ContentRoot, slash-separated.
	RelPath     string
	ContentRoot string
	// Output is the PDF destination on disk.
	Output   string
	Language string
	// BaseURL enables the source appendix when set.
	BaseURL string
}

// Converter produces PDFs. Available reports whether the external tools are installed.
type Converter interface {
	Available() bool
	Convert(ctx context.Context, req Request) error
}

// Toolchain is the pandoc+typst converter found on PATH.
type Toolchain struct {
	Pandoc string
	Typst  string
	now    func() time.Time
}

// Detect looks up pandoc and typst on PATH. The returned toolchain reports
// Available false when either is missing.
func Detect() *Toolchain {
	tc := &Toolchain{now: time.Now}
	if p, err := exec.LookPath("pandoc"); err == nil {
		tc.Pandoc = p
	}
	if p, err := exec.LookPath("typst"); err == nil {
		tc.Typst = p
	}
	return tc
}

// Available reports whether both executables were found.
func (t *Toolchain) Available() bool {
	return t != nil && t.Pandoc != "" && t.Typst != ""
}

// Convert writes req.Output from req.Source.
func (t *Toolchain) Convert(ctx context.Context, req Request) error {
	if !t.Available() {
		return ferrors.GenerationError("pdf toolchain not available").Warning().Build()
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "creating pdf output directory").
			WithContext("path", filepath.Dir(req.Output)).
			Build()
	}

	raw, err := os.ReadFile(req.Source)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "reading markdown for pdf").
			WithContext("path", req.RelPath).
			Build()
	}
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	filtered, err := PrepareMarkdown(raw, req, now())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "sitegen-pdf-*.md")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "creating temporary markdown").Build()
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(filtered); err != nil {
		_ = tmp.Close()
		return ferrors.WrapError(err, ferrors.CategoryIO, "writing temporary markdown").Build()
	}
	if err := tmp.Close(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "writing temporary markdown").Build()
	}

	// #nosec G204 -- executable comes from PATH lookup, arguments are file paths
	cmd := exec.CommandContext(ctx, t.Pandoc, tmp.Name(), "--pdf-engine=typst", "--output", req.Output, "--standalone")
	cmd.Dir = req.ContentRoot
	cmd.Env = append(os.Environ(), "PATH="+filepath.Dir(t.Typst)+string(os.PathListSeparator)+os.Getenv("PATH"))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGeneration, "pandoc failed").
			Warning().
			WithContext("path", req.RelPath).
			WithContext("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}
	return nil
}

var imageRef = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(\s+["'][^"']*["'])?\)`)

// PrepareMarkdown builds the pandoc input: front matter stripped, a title heading
// added when the body has none, relative image paths resolved against the content
// root, and a source appendix when a base URL is set.
func PrepareMarkdown(raw []byte, req Request, now time.Time) ([]byte, error) {
	fmRaw, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryParse, "splitting front matter for pdf").
			WithContext("path", req.RelPath).
			Build()
	}
	fm, err := frontmatter.Parse(fmRaw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryParse, "parsing front matter for pdf").
			WithContext("path", req.RelPath).
			Build()
	}

	docDir := path.Dir(req.RelPath)
	resolved := imageRef.ReplaceAllStringFunc(string(body), func(m string) string {
		sub := imageRef.FindStringSubmatch(m)
		target := sub[2]
		if target == "" || strings.HasPrefix(target, "http") || strings.HasPrefix(target, "/") {
			return m
		}
		return fmt.Sprintf("![%s](%s%s)", sub[1], path.Clean(path.Join(docDir, target)), sub[3])
	})

	var b strings.Builder
	if fm.Title != "" && !strings.HasPrefix(strings.TrimLeft(resolved, " \t\r\n"), "# ") {
		fmt.Fprintf(&b, "# %s\n\n", fm.Title)
	}
	b.WriteString(resolved)

	if base := strings.TrimRight(req.BaseURL, "/"); base != "" {
		pdfURL := base + "/" + strings.TrimSuffix(req.RelPath, path.Ext(req.RelPath)) + ".pdf"
		b.WriteString("\n\n---\n\n")
		fmt.Fprintf(&b, "## %s\n\n", translate("document_information", req.Language))
		fmt.Fprintf(&b, "%s %s\n\n", translate("document_downloaded_from", req.Language), pdfURL)
		fmt.Fprintf(&b, "%s %s\n", translate("generated_at", req.Language), now.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return []byte(b.String()), nil
}
