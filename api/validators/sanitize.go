package validators

import (
	"strings"
	"unicode"
)

// SanitizeString normalises free text from request bodies: control
// characters are dropped, whitespace runs collapse to one space, and the
// result is capped at maxRunes runes so multi-byte scripts are never cut
// mid character. maxRunes <= 0 disables the cap.
func SanitizeString(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))

	count := 0
	pendingSpace := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if pendingSpace {
			if maxRunes > 0 && count+1 >= maxRunes {
				break
			}
			b.WriteByte(' ')
			count++
			pendingSpace = false
		}
		if maxRunes > 0 && count >= maxRunes {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
