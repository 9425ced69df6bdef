package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}

	switch classified.Category() {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7
	case CategoryNotFound, CategoryIO:
		return 8
	case CategoryParse, CategoryTemplate, CategoryGeneration, CategoryBuild:
		return 11
	case CategoryRuntime:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError renders the cause chain, one link per line.
//
// The first line is the outermost message. In verbose mode each classified link
// also prints its category and context.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Error: ")
	depth := 0
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		if depth > 0 {
			b.WriteString("\n  caused by: ")
		}
		b.WriteString(a.describe(cur))
		depth++
	}
	return b.String()
}

func (a *CLIErrorAdapter) describe(err error) string {
	classified, ok := err.(*ClassifiedError)
	if !ok {
		// Plain wrapped errors repeat their cause in Error(); print only the prefix.
		msg := err.Error()
		if inner := stdErrors.Unwrap(err); inner != nil {
			msg = strings.TrimSuffix(msg, ": "+inner.Error())
		}
		return msg
	}
	if !a.verbose {
		return classified.Message()
	}
	desc := fmt.Sprintf("%s [%s]", classified.Message(), classified.Category())
	for k, v := range classified.Context() {
		desc += fmt.Sprintf(" %s=%v", k, v)
	}
	return desc
}

// Report logs the error and writes the user-facing message to w, returning the exit code.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	if classified, ok := AsClassified(err); ok {
		a.logger.LogAttrs(context.Background(), slogLevelFromSeverity(classified.Severity()),
			classified.Message(), slog.String("category", string(classified.Category())))
	} else if a.verbose {
		a.logger.Error("Unclassified error", "error", err)
	}

	_, _ = fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
