package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "sitegen.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "sitegen.yaml", file)
		assert.Equal(t, "[config:fatal] invalid configuration (file=sitegen.yaml)", err.Error())
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		base := TemplateError("missing template").Build()
		wrapped := fmt.Errorf("render index: %w", base)

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryTemplate))
		assert.Equal(t, CategoryTemplate, GetCategory(wrapped))
		assert.Equal(t, CategoryInternal, GetCategory(stdErrors.New("plain")))
		assert.True(t, base.IsFatal())
	})

	t.Run("Is compares category and message", func(t *testing.T) {
		a := NotFoundError("document variants not found").WithContext("path", "a.md").Build()
		b := NotFoundError("document variants not found").Build()
		assert.ErrorIs(t, a, b)
		assert.NotErrorIs(t, a, NotFoundError("other").Build())
	})
}

func TestErrorBuilder(t *testing.T) {
	original := stdErrors.New("permission denied")
	err := WrapError(original, CategoryIO, "write page").
		Warning().
		WithContext("path", "out/index.html").
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Equal(t, original, err.Cause())
	assert.ErrorIs(t, err, original)
	assert.Contains(t, err.Error(), "permission denied")

	copied := err.WithContext("attempt", 2)
	_, inOriginal := err.Context().Get("attempt")
	assert.False(t, inOriginal, "WithContext must not mutate the receiver")
	v, ok := copied.Context().Get("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestContextValue(t *testing.T) {
	inner := TemplateError("template not found").WithContext("template", "post").Build()
	outer := WrapError(inner, CategoryTemplate, "rendering page").WithContext("page", "posts/a.md").Build()
	chain := fmt.Errorf("incremental: %w", outer)

	page, ok := ContextValue(chain, "page")
	require.True(t, ok)
	assert.Equal(t, "posts/a.md", page)

	tmpl, ok := ContextValue(chain, "template")
	require.True(t, ok)
	assert.Equal(t, "post", tmpl)

	_, ok = ContextValue(chain, "missing")
	assert.False(t, ok)
}

func TestErrorContextMerge(t *testing.T) {
	var empty ErrorContext
	other := ErrorContext{"a": 1}
	assert.Equal(t, other, empty.Merge(other))

	merged := ErrorContext{"a": 1, "b": 2}.Merge(ErrorContext{"b": 3})
	assert.Equal(t, ErrorContext{"a": 1, "b": 3}, merged)
}
