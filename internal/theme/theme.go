// Package theme loads theme metadata and templates and renders named templates.
package theme

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

const (
	// ConfigFileName is the optional metadata file at the theme root.
	ConfigFileName = "theme.toml"
	// TemplatesDir is the folder holding page templates.
	TemplatesDir = "templates"
	// AssetsDir is the folder copied to <output>/assets.
	AssetsDir = "assets"
	// TemplateExt is the extension of template files.
	TemplateExt = ".html"
)

//go:embed builtin/templates/*.html
var builtin embed.FS

// Config is the decoded theme.toml.
type Config struct {
	Name        string            `toml:"name"`
	Version     string            `toml:"version"`
	Author      string            `toml:"author"`
	Description string            `toml:"description"`
	Templates   map[string]string `toml:"templates"`
}

// Theme is a loaded template set.
type Theme struct {
	Config Config
	// Dir is the theme root on disk, empty for the built-in theme.
	Dir       string
	templates *template.Template
}

// Load reads the theme rooted at dir. An empty dir, or one that does not exist,
// selects the built-in theme.
func Load(dir string) (*Theme, error) {
	if dir == "" {
		return Builtin()
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Builtin()
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "reading theme directory").
			WithContext("path", dir).
			Build()
	}
	if !info.IsDir() {
		return nil, ferrors.ConfigError("theme path is not a directory").WithContext("path", dir).Build()
	}

	cfg := Config{Name: filepath.Base(dir)}
	if data, err := os.ReadFile(filepath.Join(dir, ConfigFileName)); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parsing theme config").
				WithContext("path", filepath.Join(dir, ConfigFileName)).
				Build()
		}
	}

	set, err := parseTemplates(os.DirFS(filepath.Join(dir, TemplatesDir)))
	if err != nil {
		return nil, err
	}
	return &Theme{Config: cfg, Dir: dir, templates: set}, nil
}

// Builtin returns the theme compiled into the binary.
func Builtin() (*Theme, error) {
	sub, err := fs.Sub(builtin, "builtin/templates")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "opening built-in theme").Build()
	}
	set, err := parseTemplates(sub)
	if err != nil {
		return nil, err
	}
	return &Theme{Config: Config{Name: "builtin"}, templates: set}, nil
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	root := template.New("")
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == "." && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(p), TemplateExt) {
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err := root.New(p).Parse(string(src)); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryTemplate, "compiling template").
				WithContext("template", p).
				Build()
		}
		return nil
	})
	if err != nil {
		if ferrors.IsClassified(err) {
			return nil, err
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "loading templates").Build()
	}
	return root, nil
}

// Names returns the loaded template names, sorted.
func (t *Theme) Names() []string {
	var names []string
	for _, tmpl := range t.templates.Templates() {
		if tmpl.Name() != "" {
			names = append(names, tmpl.Name())
		}
	}
	sort.Strings(names)
	return names
}

// AssetsPath returns the on-disk assets directory, or "" when the theme has none.
func (t *Theme) AssetsPath() string {
	if t.Dir == "" {
		return ""
	}
	return filepath.Join(t.Dir, AssetsDir)
}

// Render executes the template addressed by name, trying "<name>.html" before the bare name.
func (t *Theme) Render(name string, data map[string]any) (string, error) {
	candidates := []string{name + TemplateExt, name}
	if mapped, ok := t.Config.Templates[name]; ok && mapped != "" {
		candidates = append([]string{mapped, mapped + TemplateExt}, candidates...)
	}
	for _, n := range candidates {
		tmpl := t.templates.Lookup(n)
		if tmpl == nil {
			continue
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryTemplate, "executing template").
				WithContext("template", n).
				Build()
		}
		return buf.String(), nil
	}
	return "", ferrors.TemplateError("template not found").WithContext("template", name).Build()
}
