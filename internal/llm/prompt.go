package llm

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultMaxPromptChars is the diff budget when none is configured.
const DefaultMaxPromptChars = 12000

const promptTemplate = `You are an expert software engineer writing git commit messages.

Write a commit message for the diff below.

Rules:
- First line: imperative mood, at most 72 characters, no trailing period.
- Describe what changed and why, using only names that appear in the diff.
- Do not invent functions, files or behaviour that the diff does not show.
- Output only the commit message, without quotes or code fences.

Examples:
Fix off-by-one in pagination cursor
Add retry with backoff to webhook delivery
Remove unused legacy config loader

Diff:
%s
`

var diffSeparators = []string{"\ndiff --git ", "\n@@", "\n", " ", ""}

// BuildPrompt renders the generation prompt for diff. Diffs longer than
// maxChars are split on file and hunk boundaries and only the leading
// chunks that fit are kept.
func BuildPrompt(diff string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}
	body := strings.TrimSpace(diff)
	if len(body) > maxChars {
		var err error
		body, err = truncateDiff(body, maxChars)
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf(promptTemplate, body), nil
}

func truncateDiff(diff string, maxChars int) (string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(max(maxChars/4, 200)),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators(diffSeparators),
	)
	chunks, err := splitter.SplitText(diff)
	if err != nil {
		return "", fmt.Errorf("splitting diff: %w", err)
	}

	var b strings.Builder
	for _, c := range chunks {
		if b.Len()+len(c)+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c)
	}
	fmt.Fprintf(&b, "\n[diff truncated: %d of %d characters shown]", b.Len(), len(diff))
	return b.String(), nil
}
