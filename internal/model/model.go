// Package model defines the value types shared across smartcommit.
package model

import (
	"fmt"
	"strings"
)

// SeverityLevel is the hallucination-risk tier of a generated message.
type SeverityLevel int

const (
	SeverityNone SeverityLevel = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s SeverityLevel) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity is the inverse of SeverityLevel.String, case-insensitive.
func ParseSeverity(s string) (SeverityLevel, error) {
	for l := SeverityNone; l <= SeverityCritical; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", s)
}

func (s SeverityLevel) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SeverityLevel) UnmarshalText(b []byte) error {
	l, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = l
	return nil
}

// ConfidenceLevel is the trust tier of the final message. Severity caps it.
type ConfidenceLevel int

const (
	ConfidenceVeryLow ConfidenceLevel = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceVeryLow:
		return "VERY_LOW"
	case ConfidenceLow:
		return "LOW"
	case ConfidenceMedium:
		return "MEDIUM"
	case ConfidenceHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// ParseConfidence is the inverse of ConfidenceLevel.String, case-insensitive.
func ParseConfidence(s string) (ConfidenceLevel, error) {
	for l := ConfidenceVeryLow; l <= ConfidenceHigh; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return ConfidenceVeryLow, fmt.Errorf("unknown confidence %q", s)
}

func (c ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ConfidenceLevel) UnmarshalText(b []byte) error {
	l, err := ParseConfidence(string(b))
	if err != nil {
		return err
	}
	*c = l
	return nil
}

// HallucinationReport lists the message tokens that no diff token attests.
// Rate is len(UngroundedTokens)/TotalTokensChecked, or 0 when nothing was checked.
type HallucinationReport struct {
	Detected           bool     `json:"detected"`
	Rate               float64  `json:"rate"`
	UngroundedTokens   []string `json:"ungrounded_tokens"`
	TotalTokensChecked int      `json:"total_tokens_checked"`
}

// RougeScores are recall-oriented overlaps on a 0-100 scale.
type RougeScores struct {
	Rouge1 float64 `json:"rouge1"`
	Rouge2 float64 `json:"rouge2"`
	RougeL float64 `json:"rougeL"`
}

// EvaluationResult scores one (candidate, reference, diff) triple.
type EvaluationResult struct {
	BLEU          float64             `json:"bleu"`
	ROUGE         RougeScores         `json:"rouge"`
	Semantic      float64             `json:"semantic_similarity"`
	Hallucination HallucinationReport `json:"hallucination"`
	Quality       float64             `json:"quality_score"`
}

// ValidationVerdict is the validator's decision on one candidate message.
type ValidationVerdict struct {
	Valid       bool            `json:"is_valid"`
	Issues      []string        `json:"issues"`
	Suggestions []string        `json:"suggestions"`
	Severity    SeverityLevel   `json:"severity"`
	Confidence  ConfidenceLevel `json:"confidence"`
}

// DiffStats summarizes the size of a change.
type DiffStats struct {
	Files      int `json:"files_changed"`
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
}
