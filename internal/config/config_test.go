package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile), true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Server.LiveReload)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.Debounce)
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile), false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_OverridesAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
content: docs
output: /srv/site
theme: themes/plain
ignore: ["drafts/**"]
server:
  port: 8080
  live_reload: false
  debounce: 100ms
  rebuild_interval: 10m
journal:
  path: state/journal.db
metrics:
  enabled: true
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "docs"), cfg.Content)
	assert.Equal(t, "/srv/site", cfg.Output)
	assert.Equal(t, filepath.Join(dir, "themes/plain"), cfg.Theme)
	assert.Equal(t, filepath.Join(dir, "state/journal.db"), cfg.Journal.Path)
	assert.Equal(t, []string{"drafts/**"}, cfg.Ignore)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.LiveReload)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.Debounce)
	assert.Equal(t, 10*time.Minute, cfg.Server.RebuildInterval)
	assert.True(t, cfg.Metrics.Enabled)
	// untouched keys keep their defaults
	assert.True(t, cfg.PDF.Enabled)
	assert.Equal(t, "sitegen.builds", cfg.NATS.Subject)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("SITEGEN_TEST_NATS", "nats://example:4222")
	dir := t.TempDir()
	path := writeConfig(t, dir, "nats:\n  url: ${SITEGEN_TEST_NATS}\n")
	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "nats://example:4222", cfg.NATS.URL)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	const key = "SITEGEN_TEST_DOTENV_SUBJECT"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from.dotenv\n"), 0o600))
	path := writeConfig(t, dir, "nats:\n  subject: ${"+key+"}\n")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "from.dotenv", cfg.NATS.Subject)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server: [port")
	_, err := Load(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	mutate := func(fn func(*Config)) Config {
		c := Default()
		fn(&c)
		return c
	}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty content", mutate(func(c *Config) { c.Content = "" })},
		{"empty output", mutate(func(c *Config) { c.Output = "" })},
		{"output inside content", mutate(func(c *Config) { c.Output = "content/_site" })},
		{"content inside output", mutate(func(c *Config) { c.Content = "public/src" })},
		{"same directory", mutate(func(c *Config) { c.Output = "content" })},
		{"bad port", mutate(func(c *Config) { c.Server.Port = 70000 })},
		{"negative debounce", mutate(func(c *Config) { c.Server.Debounce = -time.Second })},
		{"negative interval", mutate(func(c *Config) { c.Server.RebuildInterval = -time.Second })},
		{"bad glob", mutate(func(c *Config) { c.Ignore = []string{"[unclosed"} })},
		{"negative workers", mutate(func(c *Config) { c.Workers = -1 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
	assert.NoError(t, Default().Validate())
	assert.NoError(t, mutate(func(c *Config) { c.Output = "content-old" }).Validate())
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Init(path, false))

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.NoError(t, Init(path, true))
}
