package shared

import "strings"

const ellipsis = "..."

// CleanText collapses every whitespace run in s to a single space, trims it, and caps the result at maxLen
// characters. Truncated text ends in "..." within the cap. A non-positive maxLen disables the cap.
func CleanText(s string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 {
		return cleaned
	}

	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}
