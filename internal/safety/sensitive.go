package safety

import "regexp"

// Sensitive-data patterns grouped by category. Any match rejects the diff.
var sensitivePatterns = []struct {
	category string
	patterns []*regexp.Regexp
}{
	{
		category: "credential",
		patterns: compilePatterns(
			`(?i)password\s*=\s*['"][^'"]+['"]`,
			`(?i)api[_-]?key\s*=\s*['"][^'"]+['"]`,
			`(?i)secret\s*=\s*['"][^'"]+['"]`,
			`(?i)token\s*=\s*['"][^'"]+['"]`,
		),
	},
	{
		category: "card number",
		patterns: compilePatterns(`\b\d{16}\b`),
	},
	{
		category: "email address",
		patterns: compilePatterns(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z|]{2,}\b`),
	},
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// ScanSensitive returns the category of the first sensitive pattern found
// in text, or "" if there is none.
func ScanSensitive(text string) string {
	for _, sp := range sensitivePatterns {
		for _, re := range sp.patterns {
			if re.MatchString(text) {
				return sp.category
			}
		}
	}
	return ""
}
