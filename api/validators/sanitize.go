package validators

import (
	"strings"
	"unicode"
)

// CleanQuery normalizes free-text query input: control characters are
// dropped, whitespace runs collapse to one space and the result is cut to at
// most maxRunes runes (no limit when maxRunes <= 0).
func CleanQuery(input string, maxRunes int) string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	out := strings.Join(fields, " ")
	if maxRunes <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) <= maxRunes {
		return out
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}
