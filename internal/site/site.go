// Package site loads the site-wide settings file.
package site

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// ConfigFileName is the site settings file looked up at the site root and the content root.
const ConfigFileName = "site.toml"

// DefaultTitle is used when site.toml sets no title.
const DefaultTitle = "Sitegen Site"

// Config holds the site-wide settings.
type Config struct {
	Title   string `toml:"title"`
	BaseURL string `toml:"base_url"`
}

// DisplayTitle returns the configured title or DefaultTitle.
func (c Config) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return DefaultTitle
}

// NormalizedBaseURL returns the base URL without a trailing slash.
func (c Config) NormalizedBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// Load reads site.toml from siteRoot, then from contentRoot.
//
// A missing file yields the zero Config. A file that fails to decode is reported.
func Load(siteRoot, contentRoot string) (Config, error) {
	for _, dir := range []string{siteRoot, contentRoot} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, ConfigFileName)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, ferrors.WrapError(err, ferrors.CategoryIO, "reading site config").
				WithContext("path", path).
				Build()
		}
		var cfg Config
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, ferrors.WrapError(err, ferrors.CategoryConfig, "parsing site config").
				WithContext("path", path).
				Build()
		}
		return cfg, nil
	}
	return Config{}, nil
}

// LoadOrDefault behaves like Load but logs failures and returns defaults instead.
func LoadOrDefault(siteRoot, contentRoot string) Config {
	cfg, err := Load(siteRoot, contentRoot)
	if err != nil {
		slog.Warn("Using default site config", logfields.Error(err))
		return Config{}
	}
	return cfg
}
