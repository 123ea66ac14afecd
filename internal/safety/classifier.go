// Package safety turns evaluation scores into severity and confidence
// labels, gates diffs before they are evaluated, and enforces the
// pre/post conditions of every agent step.
package safety

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/smartcommit/internal/model"
)

// OversightQualityFloor is the quality below which a human must review the
// message regardless of severity.
const OversightQualityFloor = 0.25

// Thresholds are the upper bounds of the LOW, MEDIUM and HIGH severity bands.
type Thresholds struct {
	Low    float64
	Medium float64
	High   float64
}

// DefaultThresholds returns 10%, 20% and 35%.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.10, Medium: 0.20, High: 0.35}
}

// Severity maps a hallucination rate to a severity band. An undetected
// hallucination is always NONE.
func (t Thresholds) Severity(rate float64, detected bool) model.SeverityLevel {
	switch {
	case !detected:
		return model.SeverityNone
	case rate < t.Low:
		return model.SeverityLow
	case rate < t.Medium:
		return model.SeverityMedium
	case rate < t.High:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

// AssessSeverity is Severity with DefaultThresholds.
func AssessSeverity(rate float64, detected bool) model.SeverityLevel {
	return DefaultThresholds().Severity(rate, detected)
}

// Confidence maps quality and severity to a confidence level. Severity
// caps the level that quality can reach.
func Confidence(quality float64, severity model.SeverityLevel) model.ConfidenceLevel {
	switch severity {
	case model.SeverityCritical:
		return model.ConfidenceVeryLow
	case model.SeverityHigh:
		if quality < 0.30 {
			return model.ConfidenceVeryLow
		}
		return model.ConfidenceLow
	case model.SeverityMedium:
		switch {
		case quality >= 0.45:
			return model.ConfidenceMedium
		case quality >= 0.30:
			return model.ConfidenceLow
		default:
			return model.ConfidenceVeryLow
		}
	}
	switch {
	case quality >= 0.50:
		return model.ConfidenceHigh
	case quality >= 0.35:
		return model.ConfidenceMedium
	case quality >= 0.20:
		return model.ConfidenceLow
	default:
		return model.ConfidenceVeryLow
	}
}

// RequiresHumanOversight reports whether a message must not be used
// without a developer reviewing it.
func RequiresHumanOversight(severity model.SeverityLevel, quality float64) bool {
	return severity >= model.SeverityMedium || quality < OversightQualityFloor
}

func pct(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Warnings returns the human-readable warnings for a result. The last entry
// is always an oversight or review directive.
func (t Thresholds) Warnings(severity model.SeverityLevel, report model.HallucinationReport, quality float64) []string {
	var warnings []string

	switch severity {
	case model.SeverityCritical:
		warnings = append(warnings, fmt.Sprintf("CRITICAL: Very high hallucination rate (>%s). "+
			"Generated message contains significant ungrounded information. "+
			"DO NOT use without thorough manual review.", pct(t.High)))
	case model.SeverityHigh:
		warnings = append(warnings, fmt.Sprintf("HIGH: High hallucination rate (%s-%s). "+
			"Generated message may contain invented function/variable names. "+
			"Manual verification strongly recommended.", pct(t.Medium), pct(t.High)))
	case model.SeverityMedium:
		warnings = append(warnings, fmt.Sprintf("MEDIUM: Moderate hallucination detected (%s-%s). "+
			"Verify all mentioned functions and files exist in the diff.", pct(t.Low), pct(t.Medium)))
	case model.SeverityLow:
		warnings = append(warnings, fmt.Sprintf("LOW: Minor hallucination detected (<%s). "+
			"Quick review recommended before committing.", pct(t.Low)))
	}

	switch {
	case quality < 0.20:
		warnings = append(warnings, "Very low quality score (<0.20). "+
			"Generated message may not accurately reflect changes. "+
			"Consider regenerating or writing manually.")
	case quality < 0.35:
		warnings = append(warnings, "Low quality score (0.20-0.35). "+
			"Review carefully and consider improvements.")
	}

	if n := len(report.UngroundedTokens); n > 0 {
		shown := report.UngroundedTokens[:min(n, 5)]
		warnings = append(warnings, fmt.Sprintf("Ungrounded tokens detected: %s... (%d total). "+
			"Verify these appear in your diff.", strings.Join(shown, ", "), n))
	}

	if RequiresHumanOversight(severity, quality) {
		warnings = append(warnings, "HUMAN OVERSIGHT REQUIRED: This message should not be used "+
			"without thorough manual review by a developer familiar with the changes.")
	} else {
		warnings = append(warnings, "Human review recommended: While quality is acceptable, "+
			"always verify AI-generated commit messages before pushing.")
	}
	return warnings
}

// Recommendations returns usage advice keyed by confidence.
func Recommendations(confidence model.ConfidenceLevel, severity model.SeverityLevel) []string {
	var recs []string
	switch confidence {
	case model.ConfidenceVeryLow:
		recs = append(recs,
			"NOT RECOMMENDED FOR USE: Consider writing commit message manually",
			"If you choose to use: Thoroughly verify every mentioned file, function, and change against your actual diff")
	case model.ConfidenceLow:
		recs = append(recs,
			"USE WITH CAUTION: Extensive manual review required",
			"Verify: All file names, function names, and described changes match your diff")
	case model.ConfidenceMedium:
		recs = append(recs,
			"ACCEPTABLE WITH REVIEW: Quick verification recommended",
			"Check: Main changes are accurately described")
	default:
		recs = append(recs,
			"GOOD QUALITY: Minor review recommended",
			"Quick check: Verify message accurately summarizes your changes")
	}
	if severity >= model.SeverityHigh {
		recs = append(recs, "Hallucination detected: Pay special attention to function/variable names")
	}
	return recs
}

// Feedback describes each metric band of a result in one line.
func Feedback(res model.EvaluationResult) []string {
	var fb []string

	if res.BLEU > 15 {
		fb = append(fb, "Good lexical similarity with reference")
	} else {
		fb = append(fb, "Low BLEU score - message differs significantly from reference")
	}

	switch {
	case res.Semantic > 0.7:
		fb = append(fb, "Semantically similar to reference")
	case res.Semantic > 0.5:
		fb = append(fb, "Moderate semantic similarity")
	default:
		fb = append(fb, "Low semantic similarity")
	}

	if res.Hallucination.Detected {
		toks := res.Hallucination.UngroundedTokens
		fb = append(fb, "Potential hallucination detected: "+strings.Join(toks[:min(len(toks), 5)], ", "))
	} else {
		fb = append(fb, "No hallucinations detected")
	}

	switch {
	case res.Quality > 0.7:
		fb = append(fb, "High overall quality")
	case res.Quality > 0.5:
		fb = append(fb, "Acceptable quality")
	default:
		fb = append(fb, "Low quality - consider regenerating")
	}
	return fb
}

// Assessment is the classifier's full output for one evaluation.
type Assessment struct {
	Severity        model.SeverityLevel   `json:"severity"`
	Confidence      model.ConfidenceLevel `json:"confidence"`
	HumanOversight  bool                  `json:"human_oversight_required"`
	Warnings        []string              `json:"warnings"`
	Recommendations []string              `json:"recommendations"`
	Feedback        []string              `json:"feedback"`
}

// Assess classifies res.
func (t Thresholds) Assess(res model.EvaluationResult) Assessment {
	sev := t.Severity(res.Hallucination.Rate, res.Hallucination.Detected)
	conf := Confidence(res.Quality, sev)
	return Assessment{
		Severity:        sev,
		Confidence:      conf,
		HumanOversight:  RequiresHumanOversight(sev, res.Quality),
		Warnings:        t.Warnings(sev, res.Hallucination, res.Quality),
		Recommendations: Recommendations(conf, sev),
		Feedback:        Feedback(res),
	}
}
