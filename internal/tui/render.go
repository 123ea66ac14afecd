package tui

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/safety"
	"github.com/sprite-ai/smartcommit/internal/tokenize"
)

// renderedLine is a single line of diff output ready for display.
type renderedLine struct {
	OldNum  int // 0 means not applicable (add-only)
	NewNum  int // 0 means not applicable (delete-only)
	Op      gitdiff.LineOp
	Content string
	IsHunk  bool

	Tokens []diff.Token

	// IsEvidence marks a changed line that shares a word with the message.
	IsEvidence bool
}

// tokenSet collects the tokens of text that grounding cares about.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize.MeaningfulTokens(text) {
		set[tok] = struct{}{}
	}
	return set
}

func mentions(line string, words map[string]struct{}) bool {
	if len(words) == 0 {
		return false
	}
	for _, tok := range tokenize.Tokens(line) {
		if _, ok := words[tok]; ok {
			return true
		}
	}
	return false
}

// renderFile produces renderedLines for a file's diff fragments. Changed
// lines mentioning any of words are marked as evidence.
func renderFile(f *diff.File, words map[string]struct{}) []renderedLine {
	var lines []renderedLine

	var contentLines []string
	for _, frag := range f.Fragments {
		for _, line := range frag.Lines {
			contentLines = append(contentLines, strings.TrimRight(line.Line, "\n\r"))
		}
	}

	highlighted := diff.HighlightLines(f.Path(), contentLines)
	hlIdx := 0

	for i, frag := range f.Fragments {
		lines = append(lines, renderedLine{
			IsHunk:  true,
			Content: formatHunkHeader(frag),
		})

		oldLine := int(frag.OldPosition)
		newLine := int(frag.NewPosition)

		for _, line := range frag.Lines {
			rl := renderedLine{
				Op:      line.Op,
				Content: strings.TrimRight(line.Line, "\n\r"),
			}

			if hlIdx < len(highlighted) {
				rl.Tokens = highlighted[hlIdx].Tokens
				hlIdx++
			}

			switch line.Op {
			case gitdiff.OpContext:
				rl.OldNum = oldLine
				rl.NewNum = newLine
				oldLine++
				newLine++
			case gitdiff.OpDelete:
				rl.OldNum = oldLine
				oldLine++
				rl.IsEvidence = mentions(rl.Content, words)
			case gitdiff.OpAdd:
				rl.NewNum = newLine
				newLine++
				rl.IsEvidence = mentions(rl.Content, words)
			}

			lines = append(lines, rl)
		}

		if i < len(f.Fragments)-1 {
			lines = append(lines, renderedLine{Content: ""})
		}
	}

	return lines
}

func formatHunkHeader(frag *gitdiff.TextFragment) string {
	old := fmt.Sprintf("-%d", frag.OldPosition)
	if frag.OldLines != 1 {
		old += fmt.Sprintf(",%d", frag.OldLines)
	}
	cur := fmt.Sprintf("+%d", frag.NewPosition)
	if frag.NewLines != 1 {
		cur += fmt.Sprintf(",%d", frag.NewLines)
	}

	header := fmt.Sprintf("@@ %s %s @@", old, cur)
	if frag.Comment != "" {
		header += " " + frag.Comment
	}
	return header
}

// renderHighlightedContent renders a context line with its syntax colors.
func renderHighlightedContent(rl renderedLine, prefix string) string {
	if len(rl.Tokens) == 0 {
		return prefix + rl.Content
	}

	var b strings.Builder
	b.WriteString(prefix)
	for _, tok := range rl.Tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

func evidenceMark(rl renderedLine) string {
	if rl.IsEvidence {
		return evidenceMarkStyle.Render("▎")
	}
	return " "
}

// styleLine applies styling to a rendered line for unified view.
func styleLine(rl renderedLine, width int) string {
	if rl.IsHunk {
		return hunkHeaderStyle.Width(width).Render(rl.Content)
	}

	oldNum, newNum := "    ", "    "
	if rl.OldNum > 0 {
		oldNum = fmt.Sprintf("%4d", rl.OldNum)
	}
	if rl.NewNum > 0 {
		newNum = fmt.Sprintf("%4d", rl.NewNum)
	}
	lineNums := lineNumberStyle.Render(oldNum) + " " + lineNumberStyle.Render(newNum)

	var prefix string
	var style *lipgloss.Style
	switch rl.Op {
	case gitdiff.OpAdd:
		prefix, style = "+", &addedLineStyle
	case gitdiff.OpDelete:
		prefix, style = "-", &deletedLineStyle
	default:
		prefix = " "
	}

	maxContent := width - 12
	var content string
	switch {
	case maxContent > 0 && len(prefix+rl.Content) > maxContent:
		content = truncate(prefix+rl.Content, maxContent)
		if style != nil {
			content = style.Render(content)
		}
	case style != nil:
		content = style.Render(prefix + rl.Content)
	default:
		content = renderHighlightedContent(rl, prefix)
	}

	return evidenceMark(rl) + lineNums + " " + content
}

// styleLineSplit renders a line for split (side-by-side) view.
func styleLineSplit(rl renderedLine, halfWidth int) (left, right string) {
	if rl.IsHunk {
		return hunkHeaderStyle.Width(halfWidth).Render(rl.Content), ""
	}

	maxContent := halfWidth - 8
	mark := evidenceMark(rl)

	switch rl.Op {
	case gitdiff.OpDelete:
		num := fmt.Sprintf("%4d", rl.OldNum)
		left = mark + lineNumberStyle.Render(num) + " " + deletedLineStyle.Render("-"+truncate(rl.Content, maxContent))
		right = strings.Repeat(" ", halfWidth)
	case gitdiff.OpAdd:
		left = strings.Repeat(" ", halfWidth)
		num := fmt.Sprintf("%4d", rl.NewNum)
		right = mark + lineNumberStyle.Render(num) + " " + addedLineStyle.Render("+"+truncate(rl.Content, maxContent))
	default:
		oldNum, newNum := "    ", "    "
		if rl.OldNum > 0 {
			oldNum = fmt.Sprintf("%4d", rl.OldNum)
		}
		if rl.NewNum > 0 {
			newNum = fmt.Sprintf("%4d", rl.NewNum)
		}
		content := truncate(rl.Content, maxContent)
		left = " " + lineNumberStyle.Render(oldNum) + " " + contextLineStyle.Render(" "+content)
		right = " " + lineNumberStyle.Render(newNum) + " " + contextLineStyle.Render(" "+content)
	}

	return left, right
}

// renderMessage styles message word by word, marking words that carry an
// ungrounded token.
func renderMessage(message string, ungrounded map[string]struct{}) string {
	var lines []string
	for _, line := range strings.Split(message, "\n") {
		words := strings.Fields(line)
		for i, w := range words {
			style := messageStyle
			for _, tok := range tokenize.Tokens(w) {
				if _, ok := ungrounded[tok]; ok {
					style = ungroundedStyle
					break
				}
			}
			words[i] = style.Render(w)
		}
		lines = append(lines, strings.Join(words, " "))
	}
	return strings.Join(lines, "\n")
}

// renderDecision formats one trail entry as a header line and its reasoning.
func renderDecision(i int, d agent.Decision, width int) string {
	meta := d.Meta()

	var style lipgloss.Style
	switch meta.Agent {
	case safety.AgentGenerator:
		style = trailGeneratorStyle
	case safety.AgentValidator:
		style = trailValidatorStyle
	default:
		style = trailRefinerStyle
	}

	mark := "✓"
	if !meta.Safety.Passed() {
		mark = "✗"
	}

	header := style.Render(fmt.Sprintf("%d. %s %s", i+1, meta.Agent, mark)) +
		metricStyle.Render(fmt.Sprintf("  %.1fms", meta.ExecutionMS))

	var detail string
	switch v := d.(type) {
	case *agent.ValidatorDecision:
		detail = fmt.Sprintf("quality %.2f  hallucination %.0f%%  %s", v.Quality, v.HallucinationRate*100, v.Severity)
	case *agent.RefinerDecision:
		detail = strings.Join(v.Changes, "; ")
	}

	body := trailReasonStyle.Width(width).Render(meta.Reasoning)
	if detail != "" {
		body += "\n" + metricStyle.Width(width).Render(detail)
	}
	return header + "\n" + body
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}
