package config

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/fsutil"
)

const maxPort = 65535

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Content == "" {
		return ferrors.ValidationError("content directory is required").Build()
	}
	if c.Output == "" {
		return ferrors.ValidationError("output directory is required").Build()
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return ferrors.ValidationError("invalid ignore pattern").WithContext("pattern", p).Build()
		}
	}
	if c.Workers < 0 {
		return ferrors.ValidationError("workers cannot be negative").WithContext("workers", c.Workers).Build()
	}
	if c.Server.Port < 0 || c.Server.Port > maxPort {
		return ferrors.ValidationError("server port out of range").WithContext("port", c.Server.Port).Build()
	}
	if c.Server.Debounce < 0 {
		return ferrors.ValidationError("debounce cannot be negative").
			WithContext("debounce", c.Server.Debounce.String()).
			Build()
	}
	if c.Server.RebuildInterval < 0 {
		return ferrors.ValidationError("rebuild interval cannot be negative").
			WithContext("rebuild_interval", c.Server.RebuildInterval.String()).
			Build()
	}
	if c.Journal.History < 0 {
		return ferrors.ValidationError("journal history cannot be negative").Build()
	}
	return nil
}

// validatePaths rejects output and content directories nested in one another.
func (c Config) validatePaths() error {
	content, err := filepath.Abs(c.Content)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "resolving content directory").Build()
	}
	output, err := filepath.Abs(c.Output)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "resolving output directory").Build()
	}
	if fsutil.Within(output, content) || fsutil.Within(content, output) {
		return ferrors.ValidationError("output directory must not overlap the content directory").
			WithContext("content", content).
			WithContext("output", output).
			Build()
	}
	return nil
}
