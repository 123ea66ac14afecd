// Package report renders a commit-message evaluation as text, JSON,
// Markdown or HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name; "md" is short for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json, markdown or html)", s)
}

// Report is everything known about one message.
type Report struct {
	Message    string                  `json:"message"`
	Reference  string                  `json:"reference,omitempty"`
	Stats      model.DiffStats         `json:"diff_stats"`
	Verdict    model.ValidationVerdict `json:"verdict"`
	Evaluation model.EvaluationResult  `json:"quality_metrics"`
	Assessment safety.Assessment       `json:"assessment"`
	Loop       *Loop                   `json:"loop,omitempty"`
}

// Loop describes the agent run that produced the message.
type Loop struct {
	Generator   string             `json:"generator"`
	Refinements int                `json:"refinements"`
	Converged   bool               `json:"converged"`
	ElapsedMS   float64            `json:"total_execution_time_ms"`
	Chain       []agent.ChainEntry `json:"decision_chain"`
}

// FromResult builds a report for a loop result.
func FromResult(res *agent.Result, stats model.DiffStats) *Report {
	return &Report{
		Message:    res.Message,
		Stats:      stats,
		Verdict:    res.Verdict,
		Evaluation: res.Evaluation,
		Assessment: res.Assessment,
		Loop: &Loop{
			Generator:   res.Generator.String(),
			Refinements: res.Iterations,
			Converged:   res.Converged,
			ElapsedMS:   res.ElapsedMS,
			Chain:       res.Transparency.Chain,
		},
	}
}

// Write renders r to w in format f.
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatJSON:
		return JSON(w, r)
	case FormatMarkdown:
		return Markdown(w, r)
	case FormatHTML:
		return HTML(w, r)
	case FormatText, "":
		return Text(w, r)
	}
	return fmt.Errorf("unknown output format %q", f)
}

// JSON writes r as indented JSON.
func JSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ExitCode maps a report to a process exit status: 0 for a valid message,
// 1 for an invalid one, 2 when human oversight is required.
func ExitCode(r *Report) int {
	switch {
	case r.Assessment.HumanOversight:
		return 2
	case !r.Verdict.Valid:
		return 1
	default:
		return 0
	}
}

func severityIcon(s model.SeverityLevel) string {
	switch s {
	case model.SeverityCritical:
		return "!!"
	case model.SeverityHigh:
		return "! "
	case model.SeverityMedium:
		return "* "
	case model.SeverityLow:
		return "- "
	default:
		return "  "
	}
}

func verdictWord(v model.ValidationVerdict) string {
	if v.Valid {
		return "valid"
	}
	return "needs review"
}
