// Package i18n holds the supported content languages and their display names.
package i18n

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is assigned to documents without a language suffix.
const DefaultLanguage = "en"

var supported = []string{"en", "it", "es", "fr", "de", "pt", "ja", "zh", "ru", "ar"}

// Supported returns the language codes recognized as filename suffixes.
func Supported() []string {
	return slices.Clone(supported)
}

// IsSupported reports whether code is one of the recognized language codes.
func IsSupported(code string) bool {
	return slices.Contains(supported, code)
}

// LanguageName returns the language's name in its own language, e.g. "Italiano" for "it".
// Unknown codes are returned upper-cased.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil || !IsSupported(code) {
		return strings.ToUpper(code)
	}
	name := display.Self.Name(tag)
	if name == "" {
		return strings.ToUpper(code)
	}
	return cases.Title(tag).String(name)
}
