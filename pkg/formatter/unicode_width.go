package formatter

import (
	"unicode"
)

// maxNameWidth bounds the NAME column of instance tables
const maxNameWidth = 24

// RuneWidth returns the display width of a rune
// ASCII characters have width 1, CJK characters have width 2
func RuneWidth(r rune) int {
	if r < 128 {
		return 1
	}

	if unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hangul, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) {
		return 2
	}

	return 1
}

// StringWidth returns the display width of a string
func StringWidth(s string) int {
	width := 0
	for _, r := range s {
		width += RuneWidth(r)
	}
	return width
}

// Truncate shortens s to at most width display columns, marking the cut
// with "~". Tag values are free text and can be arbitrarily long.
func Truncate(s string, width int) string {
	if StringWidth(s) <= width {
		return s
	}
	if width < 1 {
		return ""
	}

	used := 0
	for i, r := range s {
		w := RuneWidth(r)
		if used+w > width-1 {
			return s[:i] + "~"
		}
		used += w
	}
	return s
}
