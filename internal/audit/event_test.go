package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/llm"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

const cartDiff = "diff --git a/cart.py b/cart.py\n" +
	"--- a/cart.py\n" +
	"+++ b/cart.py\n" +
	"@@ -1 +1 @@ def calculate_total(items):\n" +
	"-total += item.price\n" +
	"+total += item.price * item.quantity\n"

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"api":              KindAPICall,
		"api_call":         KindAPICall,
		"hallucination":    KindHallucination,
		"SAFETY":           KindSafetyViolation,
		"safety_violation": KindSafetyViolation,
		"trail":            KindAgentTrail,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("metrics")
	assert.Error(t, err)
}

func TestNewAPICall(t *testing.T) {
	e := NewAPICall("/api/generate", "10.0.0.1", 200, 1500*time.Microsecond, cartDiff)
	assert.Equal(t, KindAPICall, e.Kind)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, 1.5, e.LatencyMS)
	assert.Equal(t, 6, e.DiffLines)
	assert.InDelta(t, float64(len(cartDiff))/1024, e.DiffSizeKB, 1e-9)
	assert.Nil(t, e.Quality)

	res := model.EvaluationResult{Quality: 0.42, Hallucination: model.HallucinationReport{Rate: 0.25}}
	a := safety.Assessment{Severity: model.SeverityHigh, Confidence: model.ConfidenceLow}
	e = e.WithResult("Fix cart total", res, a)
	require.NotNil(t, e.Quality)
	assert.Equal(t, 0.42, *e.Quality)
	assert.Equal(t, "HIGH", e.Severity)
	assert.Equal(t, "LOW", e.Confidence)
	assert.Equal(t, 0.25, e.HallucinationRate)
}

func TestNewHallucinationTruncates(t *testing.T) {
	tokens := make([]string, 25)
	for i := range tokens {
		tokens[i] = "tok"
	}
	report := model.HallucinationReport{Detected: true, Rate: 0.5, UngroundedTokens: tokens, TotalTokensChecked: 50}

	e := NewHallucination("cli", strings.Repeat("é", 300), strings.Repeat("x", 1000), report, model.SeverityCritical)
	assert.Equal(t, KindHallucination, e.Kind)
	assert.Equal(t, 200, len([]rune(e.Message)))
	assert.Len(t, e.DiffSnippet, 200)
	assert.Len(t, e.UngroundedTokens, 20)
	assert.Equal(t, 25, e.UngroundedCount)
	assert.Equal(t, 50, e.TotalTokens)
	assert.Equal(t, "CRITICAL", e.Severity)
}

func TestNewSafetyViolation(t *testing.T) {
	e, ok := NewSafetyViolation("c1", "secret diff\n", &safety.Rejection{Check: safety.CheckSensitiveData, Reason: "Potential password detected"})
	require.True(t, ok)
	assert.Equal(t, KindSafetyViolation, e.Kind)
	assert.Equal(t, safety.CheckSensitiveData, e.ViolationType)
	assert.Equal(t, "Potential password detected", e.Details)
	assert.Equal(t, 1, e.DiffLines)

	gv := &safety.GovernanceViolation{Agent: safety.AgentRefiner, Stage: "output", Failed: []string{safety.CheckOutputFormat}}
	e, ok = NewSafetyViolation("c1", "", fmtWrap(gv))
	require.True(t, ok)
	assert.Equal(t, "governance_refiner_output", e.ViolationType)
	assert.Contains(t, e.Details, safety.CheckOutputFormat)

	_, ok = NewSafetyViolation("c1", "", errors.New("boom"))
	assert.False(t, ok)
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("agent loop stopped"), err)
}

func TestNewAgentTrail(t *testing.T) {
	res, err := agent.NewController(llm.NewHeuristic()).Run(context.Background(), cartDiff, "")
	require.NoError(t, err)

	e, err := NewAgentTrail("cli", res)
	require.NoError(t, err)
	assert.Equal(t, KindAgentTrail, e.Kind)
	assert.Equal(t, res.Message, e.Message)
	assert.Contains(t, e.Details, "decisions=")
	assert.True(t, strings.HasPrefix(string(e.Trail), "["))
	assert.Contains(t, string(e.Trail), `"agent":"generator"`)
}
