package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("en"))
	assert.True(t, IsSupported("it"))
	assert.False(t, IsSupported("xx"))
	assert.False(t, IsSupported("EN"))
	assert.Len(t, Supported(), 10)
}

func TestSupportedIsCopy(t *testing.T) {
	s := Supported()
	s[0] = "zz"
	assert.True(t, IsSupported("en"))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", LanguageName("en"))
	assert.Equal(t, "Italiano", LanguageName("it"))
	assert.Equal(t, "Deutsch", LanguageName("de"))
	assert.Equal(t, "XX", LanguageName("xx"))
}
