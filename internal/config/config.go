// Package config loads the optional sitegen.yaml tool configuration.
//
// Values are resolved in this order: built-in defaults, the YAML file (with
// ${VAR} references expanded from the environment and .env files), then the
// command line flags applied by the caller.
package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "sitegen.yaml"

// Config is the tool configuration.
type Config struct {
	Content string   `yaml:"content"`
	Output  string   `yaml:"output"`
	Theme   string   `yaml:"theme,omitempty"`
	Ignore  []string `yaml:"ignore,omitempty"`
	// Workers bounds build parallelism; 0 uses GOMAXPROCS.
	Workers int           `yaml:"workers,omitempty"`
	Server  ServerConfig  `yaml:"server"`
	PDF     PDFConfig     `yaml:"pdf"`
	Journal JournalConfig `yaml:"journal"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	LiveReload bool          `yaml:"live_reload"`
	Debounce   time.Duration `yaml:"debounce"`
	// RebuildInterval schedules periodic full rebuilds; 0 disables them.
	RebuildInterval time.Duration `yaml:"rebuild_interval,omitempty"`
}

// PDFConfig toggles PDF output for documents with pdf: true.
type PDFConfig struct {
	Enabled bool `yaml:"enabled"`
}

// JournalConfig enables the SQLite build journal when Path is set.
type JournalConfig struct {
	Path    string `yaml:"path,omitempty"`
	History int    `yaml:"history"`
}

// NATSConfig enables build notifications when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject"`
}

// MetricsConfig toggles the Prometheus endpoint on the development server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Content: "content",
		Output:  "public",
		Server: ServerConfig{
			Host:       "",
			Port:       3000,
			LiveReload: true,
			Debounce:   250 * time.Millisecond,
		},
		PDF:     PDFConfig{Enabled: true},
		Journal: JournalConfig{History: 50},
		NATS:    NATSConfig{Subject: "sitegen.builds"},
	}
}

// Load reads path on top of the defaults. A missing file is not an error when
// optional is true; the defaults are returned instead. Relative paths in the
// file are resolved against the file's directory.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path) // #nosec G304 -- user-selected config file
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return cfg, ferrors.WrapError(err, ferrors.CategoryConfig, "reading configuration").
			WithContext("path", path).
			Fatal().
			Build()
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, ferrors.WrapError(err, ferrors.CategoryConfig, "parsing configuration").
			WithContext("path", path).
			Fatal().
			Build()
	}
	cfg.resolve(filepath.Dir(path))
	slog.Debug("Loaded configuration", logfields.Path(path))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// resolve anchors relative paths at base.
func (c *Config) resolve(base string) {
	for _, p := range []*string{&c.Content, &c.Output, &c.Theme, &c.Journal.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Init writes the default configuration to path. It refuses to overwrite an
// existing file unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encoding configuration").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 -- config is not secret
		return ferrors.WrapError(err, ferrors.CategoryIO, "writing configuration").
			WithContext("path", path).
			Build()
	}
	return nil
}
