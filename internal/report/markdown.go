package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown writes a GitHub-flavoured Markdown report.
func Markdown(w io.Writer, r *Report) error {
	_, err := io.WriteString(w, markdown(r))
	return err
}

func markdown(r *Report) string {
	var b strings.Builder
	e := r.Evaluation

	b.WriteString("## Commit Message Report\n\n")
	fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.ReplaceAll(r.Message, "```", "'''"))
	fmt.Fprintf(&b, "**%d file(s)** changed, **+%d** insertions, **-%d** deletions\n\n",
		r.Stats.Files, r.Stats.Insertions, r.Stats.Deletions)
	fmt.Fprintf(&b, "**Verdict:** %s | **Severity:** %s | **Confidence:** %s | **Quality:** %.4f\n\n",
		verdictWord(r.Verdict), r.Assessment.Severity, r.Assessment.Confidence, e.Quality)

	b.WriteString("| Metric | Score |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| BLEU | %.2f |\n", e.BLEU)
	fmt.Fprintf(&b, "| ROUGE-1 | %.2f |\n", e.ROUGE.Rouge1)
	fmt.Fprintf(&b, "| ROUGE-2 | %.2f |\n", e.ROUGE.Rouge2)
	fmt.Fprintf(&b, "| ROUGE-L | %.2f |\n", e.ROUGE.RougeL)
	fmt.Fprintf(&b, "| Semantic | %.4f |\n", e.Semantic)
	fmt.Fprintf(&b, "| Hallucination rate | %.2f%% |\n\n", e.Hallucination.Rate*100)

	if toks := e.Hallucination.UngroundedTokens; len(toks) > 0 {
		quoted := make([]string, len(toks))
		for i, t := range toks {
			quoted[i] = "`" + t + "`"
		}
		fmt.Fprintf(&b, "**Ungrounded tokens:** %s\n\n", strings.Join(quoted, ", "))
	}

	mdList(&b, "Issues", r.Verdict.Issues)
	mdList(&b, "Suggestions", r.Verdict.Suggestions)
	mdList(&b, "Warnings", r.Assessment.Warnings)
	mdList(&b, "Recommendations", r.Assessment.Recommendations)

	if l := r.Loop; l != nil {
		fmt.Fprintf(&b, "### Agent trail\n\n`%s`, %d refinement(s), converged: %t, %.1f ms\n\n",
			l.Generator, l.Refinements, l.Converged, l.ElapsedMS)
		b.WriteString("| # | Agent | Action | Safety | Reasoning |\n")
		b.WriteString("|---|-------|--------|--------|-----------|\n")
		for i, c := range l.Chain {
			safe := "passed"
			if !c.SafetyPassed {
				safe = "failed"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", i+1, c.Agent, c.Action, safe, cell(c.Reasoning))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func mdList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>smartcommit Report</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 900px; margin: 40px auto; padding: 0 20px; background: #282a36; color: #f8f8f2; }
  h2 { color: #bd93f9; }
  h3 { color: #8be9fd; }
  pre { background: #343746; padding: 16px; border-radius: 8px; }
  table { width: 100%; border-collapse: collapse; margin-bottom: 16px; }
  th { text-align: left; padding: 8px 12px; background: #44475a; color: #f8f8f2; }
  td { padding: 8px 12px; border-bottom: 1px solid #44475a; }
  tr:hover { background: #343746; }
  code { background: #343746; padding: 2px 6px; border-radius: 4px; font-size: 0.9em; color: #ffb86c; }
  footer { margin-top: 32px; color: #6272a4; font-size: 0.85em; }
</style>
</head>
<body>
`

const htmlFoot = `<footer>Generated by <strong>smartcommit</strong></footer>
</body>
</html>
`

// HTML writes a standalone page rendered from the Markdown report.
// Raw HTML in the message is escaped, not passed through.
func HTML(w io.Writer, r *Report) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown(r)), &body); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	for _, s := range []string{htmlHead, body.String(), htmlFoot} {
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}
