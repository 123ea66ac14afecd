package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/smartcommit/internal/model"
)

var (
	colorRed    = lipgloss.Color("#ff5555")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorPurple = lipgloss.Color("#bd93f9")
	colorDim    = lipgloss.Color("#6272a4")
	colorBorder = lipgloss.Color("#44475a")

	messageStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(colorDim)
	validStyle  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	reviewStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	agentStyle  = lipgloss.NewStyle().Foreground(colorPurple)
)

func severityStyle(s model.SeverityLevel) lipgloss.Style {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	case model.SeverityMedium:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Foreground(colorGreen)
	}
}

// Text writes a terminal report.
func Text(w io.Writer, r *Report) error {
	var b strings.Builder

	b.WriteString(messageStyle.Render(r.Message))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%d file(s) changed, +%d -%d\n", r.Stats.Files, r.Stats.Insertions, r.Stats.Deletions)

	verdict := validStyle.Render(verdictWord(r.Verdict))
	if !r.Verdict.Valid {
		verdict = reviewStyle.Render(verdictWord(r.Verdict))
	}
	sev := r.Assessment.Severity
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n",
		labelStyle.Render("Verdict:"), verdict,
		labelStyle.Render("Severity:"), severityStyle(sev).Render(severityIcon(sev)+sev.String()),
		labelStyle.Render("Confidence:"), r.Assessment.Confidence)

	e := r.Evaluation
	fmt.Fprintf(&b, "%s BLEU %.2f  ROUGE-1 %.2f  ROUGE-2 %.2f  ROUGE-L %.2f  semantic %.4f  quality %.4f\n",
		labelStyle.Render("Scores:"), e.BLEU, e.ROUGE.Rouge1, e.ROUGE.Rouge2, e.ROUGE.RougeL, e.Semantic, e.Quality)
	fmt.Fprintf(&b, "%s %.2f%% of %d tokens ungrounded",
		labelStyle.Render("Grounding:"), e.Hallucination.Rate*100, e.Hallucination.TotalTokensChecked)
	if len(e.Hallucination.UngroundedTokens) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Hallucination.UngroundedTokens, ", "))
	}
	b.WriteString("\n")

	writeList(&b, "Issues", r.Verdict.Issues, reviewStyle)
	writeList(&b, "Suggestions", r.Verdict.Suggestions, lipgloss.NewStyle())
	writeList(&b, "Warnings", r.Assessment.Warnings, warnStyle)
	writeList(&b, "Recommendations", r.Assessment.Recommendations, lipgloss.NewStyle())

	if l := r.Loop; l != nil {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Agent trail"))
		fmt.Fprintf(&b, "  %s, %d refinement(s), converged %t, %.1fms\n", l.Generator, l.Refinements, l.Converged, l.ElapsedMS)
		for i, c := range l.Chain {
			mark := "ok"
			if !c.SafetyPassed {
				mark = "!!"
			}
			fmt.Fprintf(&b, "  %d. %s %s [%s] %s\n", i+1, agentStyle.Render(string(c.Agent)), c.Action, mark, c.Reasoning)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, title string, items []string, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", style.Render(it))
	}
}
