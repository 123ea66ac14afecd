package safety

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxMessageLength bounds sanitized commit messages.
const DefaultMaxMessageLength = 500

// TruncationMarker ends a message that Sanitize shortened.
const TruncationMarker = "... (truncated)"

var excessNewlinesRe = regexp.MustCompile(`\n{3,}`)

// Sanitize trims msg, replaces backticks with single quotes, collapses runs
// of three or more newlines to two and truncates to maxLen runes including
// the truncation marker. It is idempotent.
func Sanitize(msg string, maxLen int) string {
	if maxLen <= utf8.RuneCountInString(TruncationMarker) {
		maxLen = DefaultMaxMessageLength
	}
	s := strings.TrimSpace(msg)
	s = strings.ReplaceAll(s, "`", "'")
	s = excessNewlinesRe.ReplaceAllString(s, "\n\n")

	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	keep := maxLen - utf8.RuneCountInString(TruncationMarker)
	head := strings.TrimSpace(string([]rune(s)[:keep]))
	return head + TruncationMarker
}
