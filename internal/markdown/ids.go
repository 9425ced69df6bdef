package markdown

import (
	"strconv"
	"strings"
	"unicode"

	gmast "github.com/yuin/goldmark/ast"
)

// headingIDs implements parser.IDs with slug ids deduplicated per document.
type headingIDs struct {
	used map[string]int
}

func newHeadingIDs() *headingIDs {
	return &headingIDs{used: make(map[string]int)}
}

func (s *headingIDs) Generate(value []byte, _ gmast.NodeKind) []byte {
	base := Slug(string(value))
	if base == "" {
		base = "section"
	}
	id := base
	if n, seen := s.used[base]; seen {
		for {
			n++
			id = base + "-" + strconv.Itoa(n)
			if _, taken := s.used[id]; !taken {
				break
			}
		}
		s.used[base] = n
	}
	s.used[id] = 0
	return []byte(id)
}

func (s *headingIDs) Put(value []byte) {
	s.used[string(value)] = 0
}

// Slug lowercases text, keeps letters, digits and spaces, and joins words with single hyphens.
func Slug(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteByte('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
