package coupon

import (
	"strings"
	"unicode"
)

// Normalize strips every whitespace rune and upper-cases the rest.
// All code comparisons are done on normalized text.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
