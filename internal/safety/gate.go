package safety

import (
	"fmt"
	"strings"
)

// Input checks, in the order the gate runs them.
const (
	CheckRateLimit     = "rate_limit"
	CheckEmpty         = "empty"
	CheckSizeLimit     = "size_limit"
	CheckLineCount     = "line_count"
	CheckFormat        = "format"
	CheckSensitiveData = "sensitive_data"
)

// formatSniffLines is how many leading lines must carry a diff marker.
const formatSniffLines = 20

var diffMarkers = []string{"diff --git", "@@", "---", "+++", "+", "-"}

// Rejection is returned when a diff fails an input check. It is always
// recoverable by correcting the input.
type Rejection struct {
	Check  string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("input rejected (%s): %s", r.Check, r.Reason)
}

// GateConfig bounds the diffs a Gate admits.
type GateConfig struct {
	MaxDiffKB    float64
	MaxDiffLines int
	// WarnOnFormat admits input without diff markers, recording a warning.
	WarnOnFormat bool
}

// DefaultGateConfig admits diffs up to 100 KB and 1000 lines.
func DefaultGateConfig() GateConfig {
	return GateConfig{MaxDiffKB: 100, MaxDiffLines: 1000}
}

// InputReport describes an admitted diff.
type InputReport struct {
	Checks   []string `json:"checks_performed"`
	SizeKB   float64  `json:"diff_size_kb"`
	Lines    int      `json:"line_count"`
	Warnings []string `json:"warnings,omitempty"`
}

// Gate validates diffs before they reach the generator.
type Gate struct {
	cfg     GateConfig
	limiter *RateLimiter
}

// NewGate returns a gate. A nil limiter disables rate limiting.
func NewGate(cfg GateConfig, limiter *RateLimiter) *Gate {
	return &Gate{cfg: cfg, limiter: limiter}
}

// ValidateInput runs the input checks in order and stops at the first
// failure, returning a *Rejection.
func (g *Gate) ValidateInput(clientID, diff string) (InputReport, error) {
	var rep InputReport

	if g.limiter != nil {
		rep.Checks = append(rep.Checks, CheckRateLimit)
		if _, ok := g.limiter.Allow(clientID); !ok {
			return rep, &Rejection{CheckRateLimit, fmt.Sprintf(
				"rate limit exceeded: maximum %d requests per minute", g.limiter.Limit())}
		}
	}

	rep.Checks = append(rep.Checks, CheckEmpty)
	if strings.TrimSpace(diff) == "" {
		return rep, &Rejection{CheckEmpty, "diff is empty; provide a valid git diff"}
	}

	rep.Checks = append(rep.Checks, CheckSizeLimit)
	rep.SizeKB = float64(len(diff)) / 1024
	if rep.SizeKB > g.cfg.MaxDiffKB {
		return rep, &Rejection{CheckSizeLimit, fmt.Sprintf(
			"diff size (%.2f KB) exceeds maximum allowed size (%g KB); split into smaller commits",
			rep.SizeKB, g.cfg.MaxDiffKB)}
	}

	rep.Checks = append(rep.Checks, CheckLineCount)
	lines := strings.Split(diff, "\n")
	rep.Lines = len(lines)
	if rep.Lines > g.cfg.MaxDiffLines {
		return rep, &Rejection{CheckLineCount, fmt.Sprintf(
			"diff has %d lines, exceeding maximum of %d", rep.Lines, g.cfg.MaxDiffLines)}
	}

	rep.Checks = append(rep.Checks, CheckFormat)
	if !looksLikeDiff(lines) {
		msg := "input does not appear to be a git diff; expected markers (@@, +++, ---, +, -) not found"
		if !g.cfg.WarnOnFormat {
			return rep, &Rejection{CheckFormat, msg}
		}
		rep.Warnings = append(rep.Warnings, msg)
	}

	rep.Checks = append(rep.Checks, CheckSensitiveData)
	if cat := ScanSensitive(diff); cat != "" {
		return rep, &Rejection{CheckSensitiveData, fmt.Sprintf(
			"diff appears to contain sensitive data (%s); remove it before processing", cat)}
	}

	return rep, nil
}

func looksLikeDiff(lines []string) bool {
	for _, line := range lines[:min(len(lines), formatSniffLines)] {
		for _, m := range diffMarkers {
			if strings.HasPrefix(line, m) {
				return true
			}
		}
	}
	return false
}
