package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

func TestJudge(t *testing.T) {
	good := safety.Assessment{Severity: model.SeverityNone, Confidence: model.ConfidenceHigh}

	v := Judge("Update calculate_total", model.EvaluationResult{Quality: 0.8}, good)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Issues)
	assert.Empty(t, v.Suggestions)

	v = Judge("Fix", model.EvaluationResult{Quality: 0.8}, good)
	assert.False(t, v.Valid, "length issues invalidate")
	assert.Equal(t, []string{"Message too short (< 10 chars)"}, v.Issues)
	assert.Equal(t, []string{"Expand message to include what was changed and why"}, v.Suggestions)

	v = Judge(strings.Repeat("a", 501), model.EvaluationResult{Quality: 0.8}, good)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"Message too long (> 500 chars)"}, v.Issues)

	v = Judge("Add quantum flux", model.EvaluationResult{
		Quality:       0.25,
		Hallucination: model.HallucinationReport{Detected: true, Rate: 0.5},
	}, safety.Assessment{Severity: model.SeverityCritical, Confidence: model.ConfidenceVeryLow})
	assert.False(t, v.Valid)
	assert.Equal(t, []string{
		"Hallucination detected (50.0% ungrounded tokens)",
		"Low quality score (0.25)",
		"Low confidence (VERY_LOW < MEDIUM)",
	}, v.Issues)
	assert.Equal(t, []string{
		"Remove ungrounded tokens not present in diff",
		"Add more specific details about code changes",
		"Describe the change using identifiers from the diff",
	}, v.Suggestions)
	assert.Equal(t, model.SeverityCritical, v.Severity)
}

func TestJudgeExplainsEveryRejection(t *testing.T) {
	tests := []struct {
		name  string
		res   model.EvaluationResult
		a     safety.Assessment
		issue string
	}{
		{
			"low confidence only",
			model.EvaluationResult{Quality: 0.32},
			safety.Assessment{Severity: model.SeverityNone, Confidence: model.ConfidenceLow},
			"Low confidence (LOW < MEDIUM)",
		},
		{
			"severity without detection",
			model.EvaluationResult{Quality: 0.8, Hallucination: model.HallucinationReport{Rate: 0.25}},
			safety.Assessment{Severity: model.SeverityMedium, Confidence: model.ConfidenceMedium},
			"Hallucination severity above LOW (MEDIUM)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Judge("Update total in cart", tt.res, tt.a)
			assert.False(t, v.Valid)
			assert.Equal(t, []string{tt.issue}, v.Issues)
			assert.Len(t, v.Suggestions, 1)

			msg, changes := Refine("Update total in cart", v, cartDiff)
			assert.Equal(t, "Update total in cart", msg)
			assert.Equal(t, []string{"No rule-based change applied; message kept for review"}, changes)
			assert.Equal(t, "Applied 1 refinements based on validator feedback. "+
				"Changes: No rule-based change applied; message kept for review", refinerReasoning(v, changes))
		})
	}
}

func TestRefineInvalidWithoutIssues(t *testing.T) {
	v := model.ValidationVerdict{Valid: false, Issues: []string{}, Confidence: model.ConfidenceLow}
	msg, changes := Refine("Update total in cart", v, cartDiff)
	assert.Equal(t, "Update total in cart", msg)
	assert.Equal(t, []string{"No rule-based change applied; message kept for review"}, changes)
}

func TestJudgeGates(t *testing.T) {
	res := model.EvaluationResult{Quality: 0.8}
	tests := []struct {
		sev  model.SeverityLevel
		conf model.ConfidenceLevel
		want bool
	}{
		{model.SeverityNone, model.ConfidenceMedium, true},
		{model.SeverityLow, model.ConfidenceHigh, true},
		{model.SeverityMedium, model.ConfidenceMedium, false},
		{model.SeverityNone, model.ConfidenceLow, false},
	}
	for _, tt := range tests {
		v := Judge("Update calculate_total", res, safety.Assessment{Severity: tt.sev, Confidence: tt.conf})
		assert.Equal(t, tt.want, v.Valid, "%v/%v", tt.sev, tt.conf)
	}
}

func TestRefine(t *testing.T) {
	invalid := func(issues ...string) model.ValidationVerdict {
		v := model.ValidationVerdict{Issues: issues}
		for range issues {
			v.Suggestions = append(v.Suggestions, "s")
		}
		return v
	}

	msg, changes := Refine("Fix", invalid("Message too short (< 10 chars)"), cartDiff)
	assert.Equal(t, "Update code: Fix", msg)
	assert.Equal(t, []string{"Expanded short message"}, changes)

	long := strings.Repeat("é", 600)
	msg, changes = Refine(long, invalid("Message too long (> 500 chars)"), cartDiff)
	assert.Equal(t, 500, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Equal(t, []string{"Truncated long message"}, changes)

	msg, changes = Refine("Fix total in Cart flux", invalid("Hallucination detected (50.0% ungrounded tokens)"), "- total\n+ total cart")
	assert.Equal(t, "Fix total in Cart", msg)
	assert.Equal(t, []string{"Removed ungrounded tokens"}, changes)

	msg, changes = Refine("quantum flux", invalid("Hallucination detected (100.0% ungrounded tokens)"), cartDiff)
	assert.Equal(t, "quantum flux", msg, "never empties the message")
	assert.Equal(t, []string{"No rule-based change applied; message kept for review"}, changes)

	msg, changes = Refine("whatever", model.ValidationVerdict{Valid: true}, cartDiff)
	assert.Equal(t, "whatever", msg)
	assert.Empty(t, changes)
}

func TestReasoningStrings(t *testing.T) {
	v := model.ValidationVerdict{Valid: true, Severity: model.SeverityNone, Confidence: model.ConfidenceHigh}
	assert.Equal(t, "Validated message using BLEU/ROUGE/semantic similarity metrics. "+
		"Detected 0 issues. Severity: NONE, Confidence: HIGH. Decision: PASS", validatorReasoning(v))
	assert.Equal(t, "Message passed validation. No refinement needed.", refinerReasoning(v, nil))

	v.Valid = false
	assert.Equal(t, "Applied 2 refinements based on validator feedback. Changes: a, b", refinerReasoning(v, []string{"a", "b"}))
	assert.Equal(t, "Applied 0 refinements based on validator feedback. Changes: none", refinerReasoning(v, nil))
}
