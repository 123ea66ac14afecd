package agent

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// ErrMissingReasoning is returned when a decision is built without reasoning.
var ErrMissingReasoning = errors.New("agent decision requires non-empty reasoning")

// Actions recorded on decisions.
const (
	ActionGenerate = "generate_initial_message"
	ActionValidate = "validate_message"
	ActionRefine   = "refine_message"
)

// SafetyRecord holds the governance checks run around one step.
type SafetyRecord struct {
	Input  safety.CheckResult `json:"input"`
	Output safety.CheckResult `json:"output"`
}

// Passed reports whether both checks passed.
func (s SafetyRecord) Passed() bool { return s.Input.Passed && s.Output.Passed }

// DecisionBase is the part of a decision every agent records.
type DecisionBase struct {
	ID          string        `json:"id"`
	Agent       safety.Agent  `json:"agent"`
	Action      string        `json:"action"`
	Timestamp   time.Time     `json:"timestamp"`
	Reasoning   string        `json:"reasoning"`
	Safety      SafetyRecord  `json:"safety_check"`
	Duration    time.Duration `json:"-"`
	ExecutionMS float64       `json:"execution_time_ms"`
}

func newBase(agent safety.Agent, action, reasoning string, checks SafetyRecord, start, end time.Time) (DecisionBase, error) {
	if strings.TrimSpace(reasoning) == "" {
		return DecisionBase{}, ErrMissingReasoning
	}
	d := end.Sub(start)
	return DecisionBase{
		ID:          uuid.NewString(),
		Agent:       agent,
		Action:      action,
		Timestamp:   start.UTC(),
		Reasoning:   reasoning,
		Safety:      checks,
		Duration:    d,
		ExecutionMS: float64(d.Microseconds()) / 1000,
	}, nil
}

// Decision is one immutable entry of the audit trail.
type Decision interface {
	Meta() DecisionBase
}

// Meta returns the shared fields.
func (b DecisionBase) Meta() DecisionBase { return b }

// GeneratorDecision records the initial generation.
type GeneratorDecision struct {
	DecisionBase
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature"`
	DiffChars    int     `json:"diff_size"`
	MessageChars int     `json:"message_length"`
}

// ValidatorDecision records one validation pass.
type ValidatorDecision struct {
	DecisionBase
	MessageChars      int                   `json:"message_length"`
	Valid             bool                  `json:"is_valid"`
	IssueCount        int                   `json:"issues_count"`
	Severity          model.SeverityLevel   `json:"severity"`
	Confidence        model.ConfidenceLevel `json:"confidence"`
	Quality           float64               `json:"quality_score"`
	HallucinationRate float64               `json:"hallucination_rate"`
}

// RefinerDecision records one refinement.
type RefinerDecision struct {
	DecisionBase
	OriginalChars int      `json:"original_length"`
	RefinedChars  int      `json:"refined_length"`
	Changes       []string `json:"changes_made"`
}
