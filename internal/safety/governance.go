package safety

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sprite-ai/smartcommit/internal/model"
)

// Agent names a stage of the generate/validate/refine loop.
type Agent string

const (
	AgentGenerator Agent = "generator"
	AgentValidator Agent = "validator"
	AgentRefiner   Agent = "refiner"
)

// Governance check names.
const (
	CheckRequiredFields = "has_required_fields"
	CheckSizeLimits     = "within_size_limits"
	CheckMaliciousInput = "no_malicious_content"
	CheckOutputFormat   = "has_valid_format"
	CheckOutputSize     = "no_unsafe_content"
	CheckQualityFloor   = "meets_quality_threshold"
)

// Governance limits on agent inputs and outputs.
const (
	MaxStepDiffChars    = 100000
	MaxStepMessageChars = 5000
	MaxStepOutputChars  = 10000
	MinGeneratedLen     = 10
	MaxGeneratedLen     = 500
)

var forbiddenSubstrings = []string{"<script>", "eval(", "exec(", "__import__"}

// StepInput is what an agent step consumes.
type StepInput struct {
	Diff      string
	Message   string
	Reference string
	Verdict   *model.ValidationVerdict
}

// StepOutput is what an agent step produces.
type StepOutput struct {
	Message   string
	Verdict   *model.ValidationVerdict
	Reasoning string
}

// CheckResult records which governance checks ran and which failed.
type CheckResult struct {
	Passed bool     `json:"passed"`
	Checks []string `json:"checks"`
	Failed []string `json:"failed,omitempty"`
}

func (c *CheckResult) check(name string, ok bool) {
	c.Checks = append(c.Checks, name)
	if !ok {
		c.Failed = append(c.Failed, name)
	}
}

// GovernanceViolation means an agent step broke its contract. It aborts
// the loop and should be surfaced, never swallowed.
type GovernanceViolation struct {
	Agent  Agent
	Stage  string // "input" or "output"
	Failed []string
}

func (v *GovernanceViolation) Error() string {
	return fmt.Sprintf("governance violation: %s %s failed %s", v.Agent, v.Stage, strings.Join(v.Failed, ", "))
}

// CheckInput validates an agent's input before it runs.
func CheckInput(agent Agent, in StepInput) (CheckResult, error) {
	res := CheckResult{}
	res.check(CheckRequiredFields, hasRequiredFields(agent, in))
	res.check(CheckSizeLimits, len(in.Diff) < MaxStepDiffChars && len(in.Message) < MaxStepMessageChars)
	res.check(CheckMaliciousInput, !containsForbidden(inputStrings(in)...))
	return finish(agent, "input", res)
}

// CheckOutput validates an agent's output after it runs.
func CheckOutput(agent Agent, out StepOutput) (CheckResult, error) {
	res := CheckResult{}
	res.check(CheckOutputFormat, hasValidFormat(agent, out))
	res.check(CheckOutputSize, outputSize(out) < MaxStepOutputChars)
	res.check(CheckQualityFloor, meetsQualityFloor(agent, out))
	return finish(agent, "output", res)
}

func finish(agent Agent, stage string, res CheckResult) (CheckResult, error) {
	res.Passed = len(res.Failed) == 0
	if !res.Passed {
		return res, &GovernanceViolation{Agent: agent, Stage: stage, Failed: res.Failed}
	}
	return res, nil
}

func hasRequiredFields(agent Agent, in StepInput) bool {
	switch agent {
	case AgentGenerator:
		return in.Diff != ""
	case AgentValidator:
		return in.Message != "" && in.Diff != ""
	case AgentRefiner:
		return in.Message != "" && in.Verdict != nil
	}
	return true
}

func hasValidFormat(agent Agent, out StepOutput) bool {
	switch agent {
	case AgentGenerator, AgentRefiner:
		return out.Message != ""
	case AgentValidator:
		return out.Verdict != nil
	}
	return true
}

func meetsQualityFloor(agent Agent, out StepOutput) bool {
	if agent != AgentGenerator {
		return true
	}
	n := utf8.RuneCountInString(out.Message)
	return n >= MinGeneratedLen && n <= MaxGeneratedLen
}

func inputStrings(in StepInput) []string {
	s := []string{in.Diff, in.Message, in.Reference}
	if in.Verdict != nil {
		s = append(s, in.Verdict.Issues...)
		s = append(s, in.Verdict.Suggestions...)
	}
	return s
}

func outputSize(out StepOutput) int {
	n := len(out.Message) + len(out.Reasoning)
	if out.Verdict != nil {
		for _, s := range out.Verdict.Issues {
			n += len(s)
		}
		for _, s := range out.Verdict.Suggestions {
			n += len(s)
		}
	}
	return n
}

func containsForbidden(texts ...string) bool {
	for _, t := range texts {
		for _, f := range forbiddenSubstrings {
			if strings.Contains(t, f) {
				return true
			}
		}
	}
	return false
}
