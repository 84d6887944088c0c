package summarizer

import "strings"

// Structural glyphs every sendable summary carries.
const (
	SectionMark = "■"
	RuleLine    = "────"
)

// Eligible reports whether a summary may be mailed: its length in runes is
// within [minChars, maxChars] and it has both the section mark and a rule line.
func Eligible(text string, minChars, maxChars int) bool {
	n := runeLen(text)
	if n < minChars || n > maxChars {
		return false
	}
	return strings.Contains(text, SectionMark) && strings.Contains(text, RuleLine)
}
