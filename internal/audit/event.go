// Package audit persists what smartcommit did and why: API calls,
// hallucinations, safety violations and agent trails.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// Kind identifies the type of an audit event.
type Kind string

const (
	KindAPICall         Kind = "api_call"
	KindHallucination   Kind = "hallucination"
	KindSafetyViolation Kind = "safety_violation"
	KindAgentTrail      Kind = "agent_trail"
)

// Kinds lists every event kind.
var Kinds = []Kind{KindAPICall, KindHallucination, KindSafetyViolation, KindAgentTrail}

// ParseKind accepts a kind name or its short alias (api, hallucination, safety, trail).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "api", string(KindAPICall):
		return KindAPICall, nil
	case string(KindHallucination):
		return KindHallucination, nil
	case "safety", string(KindSafetyViolation):
		return KindSafetyViolation, nil
	case "trail", string(KindAgentTrail):
		return KindAgentTrail, nil
	}
	return "", fmt.Errorf("unknown audit event kind %q", s)
}

// Snippets of user content are cut to keep the log small and private.
const (
	maxSnippetChars = 200
	maxTokensLogged = 20
)

// Event is one audit record. Fields that do not apply to the kind are empty.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id,omitempty"`

	Endpoint   string  `json:"endpoint,omitempty"`
	StatusCode int     `json:"status_code,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
	DiffSizeKB float64 `json:"diff_size_kb,omitempty"`
	DiffLines  int     `json:"diff_lines,omitempty"`

	Message     string `json:"message,omitempty"`
	DiffSnippet string `json:"diff_snippet,omitempty"`

	Severity          string   `json:"severity,omitempty"`
	Confidence        string   `json:"confidence,omitempty"`
	Quality           *float64 `json:"quality_score,omitempty"`
	HallucinationRate float64  `json:"hallucination_rate,omitempty"`
	UngroundedTokens  []string `json:"ungrounded_tokens,omitempty"`
	UngroundedCount   int      `json:"ungrounded_count,omitempty"`
	TotalTokens       int      `json:"total_tokens,omitempty"`

	ViolationType string `json:"violation_type,omitempty"`
	Details       string `json:"details,omitempty"`

	Trail json.RawMessage `json:"trail,omitempty"`
}

// now is replaced in tests.
var now = time.Now

func newEvent(kind Kind, clientID string) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Timestamp: now().UTC(), ClientID: clientID}
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= maxSnippetChars {
		return s
	}
	return string(r[:maxSnippetChars])
}

func withDiffSize(e Event, diff string) Event {
	if diff != "" {
		e.DiffSizeKB = float64(len(diff)) / 1024
		e.DiffLines = strings.Count(diff, "\n")
	}
	return e
}

// NewAPICall records one API request.
func NewAPICall(endpoint, clientID string, status int, latency time.Duration, diff string) Event {
	e := newEvent(KindAPICall, clientID)
	e.Endpoint = endpoint
	e.StatusCode = status
	e.LatencyMS = float64(latency.Microseconds()) / 1000
	return withDiffSize(e, diff)
}

// WithResult attaches the scores of an evaluated message.
func (e Event) WithResult(message string, res model.EvaluationResult, a safety.Assessment) Event {
	q := res.Quality
	e.Message = snippet(message)
	e.Quality = &q
	e.Severity = a.Severity.String()
	e.Confidence = a.Confidence.String()
	e.HallucinationRate = res.Hallucination.Rate
	return e
}

// NewHallucination records a message whose grounding check failed.
func NewHallucination(clientID, message, diff string, report model.HallucinationReport, severity model.SeverityLevel) Event {
	e := newEvent(KindHallucination, clientID)
	e.Message = snippet(message)
	e.DiffSnippet = snippet(diff)
	e.Severity = severity.String()
	e.HallucinationRate = report.Rate
	e.UngroundedTokens = report.UngroundedTokens[:min(len(report.UngroundedTokens), maxTokensLogged)]
	e.UngroundedCount = len(report.UngroundedTokens)
	e.TotalTokens = report.TotalTokensChecked
	return e
}

// NewSafetyViolation records a rejected input or a governance violation.
// Other errors yield ok false.
func NewSafetyViolation(clientID, diff string, err error) (Event, bool) {
	var (
		rej *safety.Rejection
		gv  *safety.GovernanceViolation
	)
	e := newEvent(KindSafetyViolation, clientID)
	switch {
	case errors.As(err, &rej):
		e.ViolationType = rej.Check
		e.Details = rej.Reason
	case errors.As(err, &gv):
		e.ViolationType = fmt.Sprintf("governance_%s_%s", gv.Agent, gv.Stage)
		e.Details = gv.Error()
	default:
		return Event{}, false
	}
	return withDiffSize(e, diff), true
}

// NewAgentTrail records the decision trail of a loop run.
func NewAgentTrail(clientID string, res *agent.Result) (Event, error) {
	trail, err := json.Marshal(res.Trail)
	if err != nil {
		return Event{}, fmt.Errorf("encoding agent trail: %w", err)
	}
	e := newEvent(KindAgentTrail, clientID)
	e.Message = snippet(res.Message)
	e.Severity = res.Verdict.Severity.String()
	e.Confidence = res.Verdict.Confidence.String()
	q := res.Evaluation.Quality
	e.Quality = &q
	e.Details = fmt.Sprintf("converged=%t refinements=%d decisions=%d", res.Converged, res.Iterations, res.Trail.Len())
	e.Trail = trail
	return e, nil
}
