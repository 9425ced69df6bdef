// Package errors provides the classified error primitives used across sitegen.
//
// Key features:
//   - ErrorCategory: broad classification (config, io, parse, template, generation, build, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ClassifiedError: structured error with category, severity, and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and cause-chain output for the command line
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryTemplate, "rendering page").
//		WithContext("page", "posts/hello.md").
//		Build()
package errors
