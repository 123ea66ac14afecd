package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// Validation limits.
const (
	MinQuality       = 0.3
	MinMessageLength = 10
	MaxMessageLength = 500
)

const (
	issueHallucination = "Hallucination detected"
	issueLowQuality    = "Low quality score"
	issueTooShort      = "Message too short"
	issueTooLong       = "Message too long"
	issueSeverity      = "Hallucination severity above LOW"
	issueConfidence    = "Low confidence"
)

var suggestionFor = map[string]string{
	issueHallucination: "Remove ungrounded tokens not present in diff",
	issueLowQuality:    "Add more specific details about code changes",
	issueTooShort:      "Expand message to include what was changed and why",
	issueTooLong:       "Condense message to focus on key changes",
	issueSeverity:      "Remove ungrounded tokens not present in diff",
	issueConfidence:    "Describe the change using identifiers from the diff",
}

// refinerVocabulary is kept by the hallucination filter even when the diff
// does not contain it.
var refinerVocabulary = map[string]bool{
	"fix": true, "add": true, "remove": true, "update": true, "change": true,
	"refactor": true, "the": true, "a": true, "to": true, "in": true, "for": true,
}

// Judge builds the validator's verdict for message from its evaluation and
// safety assessment. A message is valid when severity is at most LOW,
// confidence at least MEDIUM, quality at least MinQuality and its length
// within bounds. Every failed condition is listed as an issue.
func Judge(message string, res model.EvaluationResult, a safety.Assessment) model.ValidationVerdict {
	v := model.ValidationVerdict{
		Issues:      []string{},
		Suggestions: []string{},
		Severity:    a.Severity,
		Confidence:  a.Confidence,
	}

	n := utf8.RuneCountInString(message)
	if res.Hallucination.Detected {
		v.Issues = append(v.Issues, fmt.Sprintf("%s (%.1f%% ungrounded tokens)", issueHallucination, res.Hallucination.Rate*100))
	}
	if res.Quality < MinQuality {
		v.Issues = append(v.Issues, fmt.Sprintf("%s (%.2f)", issueLowQuality, res.Quality))
	}
	if n < MinMessageLength {
		v.Issues = append(v.Issues, fmt.Sprintf("%s (< %d chars)", issueTooShort, MinMessageLength))
	}
	if n > MaxMessageLength {
		v.Issues = append(v.Issues, fmt.Sprintf("%s (> %d chars)", issueTooLong, MaxMessageLength))
	}
	if a.Severity > model.SeverityLow && !res.Hallucination.Detected {
		v.Issues = append(v.Issues, fmt.Sprintf("%s (%s)", issueSeverity, a.Severity))
	}
	if a.Confidence < model.ConfidenceMedium {
		v.Issues = append(v.Issues, fmt.Sprintf("%s (%s < MEDIUM)", issueConfidence, a.Confidence))
	}

	for _, issue := range v.Issues {
		for prefix, s := range suggestionFor {
			if strings.HasPrefix(issue, prefix) {
				v.Suggestions = append(v.Suggestions, s)
			}
		}
	}

	v.Valid = a.Severity <= model.SeverityLow &&
		a.Confidence >= model.ConfidenceMedium &&
		res.Quality >= MinQuality &&
		n >= MinMessageLength && n <= MaxMessageLength
	return v
}

func validatorReasoning(v model.ValidationVerdict) string {
	decision := "NEEDS_REFINEMENT"
	if v.Valid {
		decision = "PASS"
	}
	return fmt.Sprintf("Validated message using BLEU/ROUGE/semantic similarity metrics. "+
		"Detected %d issues. Severity: %s, Confidence: %s. Decision: %s",
		len(v.Issues), v.Severity, v.Confidence, decision)
}

// Refine applies the rule-based fixes for the verdict's issues and returns
// the new message and a description of each change. It never returns an
// empty message.
func Refine(message string, v model.ValidationVerdict, diff string) (string, []string) {
	if v.Valid {
		return message, nil
	}

	refined := message
	var changes []string
	for _, issue := range v.Issues {
		switch {
		case strings.HasPrefix(issue, issueTooShort) && utf8.RuneCountInString(refined) < MinMessageLength:
			refined = "Update code: " + refined
			changes = append(changes, "Expanded short message")
		case strings.HasPrefix(issue, issueTooLong) && utf8.RuneCountInString(refined) > MaxMessageLength:
			refined = string([]rune(refined)[:MaxMessageLength-3]) + "..."
			changes = append(changes, "Truncated long message")
		case strings.HasPrefix(issue, issueHallucination):
			if filtered, ok := dropUngrounded(refined, diff); ok {
				refined = filtered
				changes = append(changes, "Removed ungrounded tokens")
			}
		}
	}

	if len(changes) == 0 {
		changes = append(changes, "No rule-based change applied; message kept for review")
	}
	return refined, changes
}

// dropUngrounded keeps the words of message that appear verbatim in diff
// or in refinerVocabulary. It reports false when nothing would be removed
// or everything would be.
func dropUngrounded(message, diff string) (string, bool) {
	diffWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(diff)) {
		diffWords[w] = true
	}

	words := strings.Fields(message)
	var kept []string
	for _, w := range words {
		lw := strings.ToLower(w)
		if diffWords[lw] || refinerVocabulary[lw] {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(words) || len(kept) == 0 {
		return message, false
	}
	return strings.Join(kept, " "), true
}

func refinerReasoning(v model.ValidationVerdict, changes []string) string {
	if v.Valid {
		return "Message passed validation. No refinement needed."
	}
	summary := "none"
	if len(changes) > 0 {
		summary = strings.Join(changes, ", ")
	}
	return fmt.Sprintf("Applied %d refinements based on validator feedback. Changes: %s", len(changes), summary)
}
