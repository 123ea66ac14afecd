// Package tokenize splits messages and diffs into comparable word tokens.
//
// Every metric in smartcommit compares token streams produced here, so
// candidate, reference and diff text must all pass through the same rules:
// Unicode NFKC normalization, lower-casing, and word extraction where letters,
// digits and underscores form a word and an English clitic ('s, n't, 're, ...)
// is dropped from the word it is attached to.
package tokenize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+(?:['’][\p{L}]+)?`)

	hunkMarkerRe = regexp.MustCompile(`@@.*?@@`)
)

// MinMeaningfulLen is the shortest token kept by MeaningfulTokens.
const MinMeaningfulLen = 3

// Tokens lower-cases text and returns its word tokens in order.
func Tokens(text string) []string {
	if text == "" {
		return []string{}
	}
	text = cases.Lower(language.Und).String(norm.NFKC.String(text))

	words := wordRe.FindAllString(text, -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = dropClitic(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func dropClitic(w string) string {
	i := strings.IndexAny(w, "'’")
	if i < 0 {
		return w
	}
	stem, clitic := w[:i], w[i:]
	_, size := utf8.DecodeRuneInString(clitic)
	// "don't" keeps "do", matching how "n't" splits off as its own word.
	if clitic[size:] == "t" && strings.HasSuffix(stem, "n") {
		return stem[:len(stem)-1]
	}
	return stem
}

// MeaningfulTokens is Tokens without stopwords and without tokens shorter
// than MinMeaningfulLen. It feeds grounding checks only; n-gram metrics need
// the full stream.
func MeaningfulTokens(text string) []string {
	all := Tokens(text)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if utf8.RuneCountInString(t) < MinMeaningfulLen || IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ContentTokens is Tokens without stopwords, used for set-overlap similarity.
func ContentTokens(text string) []string {
	all := Tokens(text)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// StripDiffScaffolding removes the diff --git and index header lines, hunk
// @@ markers, and the leading +/- of every line, leaving the code text.
func StripDiffScaffolding(diff string) string {
	if diff == "" {
		return ""
	}
	lines := strings.Split(diff, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") || strings.HasPrefix(line, "index ") {
			continue
		}
		line = hunkMarkerRe.ReplaceAllString(line, "")
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			line = line[1:]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// DiffTokens tokenizes a diff after removing its scaffolding, so a token
// compares equal whether it was added or removed.
func DiffTokens(diff string) []string {
	return Tokens(StripDiffScaffolding(diff))
}
