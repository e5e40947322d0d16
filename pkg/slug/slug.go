// Package slug turns free-text category labels into filesystem-safe names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Placeholder is returned for labels with no usable characters.
const Placeholder = "unknown"

// Normalize maps a label to a slug: accents are decomposed and dropped,
// the result is lowercased, spaces become underscores and anything outside
// [a-z0-9_-] is removed. Distinct labels may share a slug.
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	for _, r := range norm.NFKD.String(label) {
		if r > unicode.MaxASCII {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if r == ' ' {
			r = '_'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return Placeholder
	}
	return b.String()
}
