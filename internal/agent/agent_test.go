package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/smartcommit/internal/llm"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

const cartDiff = "diff --git a/cart.py b/cart.py\n" +
	"index 1111111..2222222 100644\n" +
	"--- a/cart.py\n" +
	"+++ b/cart.py\n" +
	"@@ -1 +1 @@ def calculate_total(items):\n" +
	"-total += item.price\n" +
	"+total += item.price * item.quantity\n"

type fakeGenerator struct {
	msg   string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, _ string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.msg, f.err
}

func (f *fakeGenerator) Info() llm.Info {
	return llm.Info{Provider: "fake", Model: "fixed", Temperature: 0.1}
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingGenerator) Info() llm.Info { return llm.Info{Provider: "fake", Model: "block"} }

func agents(tr *Trail) []safety.Agent {
	var out []safety.Agent
	for _, d := range tr.Decisions() {
		out = append(out, d.Meta().Agent)
	}
	return out
}

func TestRunValidFirstPass(t *testing.T) {
	gen := &fakeGenerator{msg: "Update calculate_total total with item price and quantity"}
	res, err := NewController(gen).Run(context.Background(), cartDiff, "")
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, gen.msg, res.Message)
	assert.True(t, res.Verdict.Valid)
	assert.Empty(t, res.Verdict.Issues)
	assert.Equal(t, []safety.Agent{safety.AgentGenerator, safety.AgentValidator}, agents(res.Trail))
	assert.False(t, res.Evaluation.Hallucination.Detected)
	assert.Equal(t, 1, gen.calls)
}

func TestRunRefinesUntilValid(t *testing.T) {
	gen := &fakeGenerator{msg: "Fix multiplication bug in calculate_total using quantum flux"}
	res, err := NewController(gen).Run(context.Background(), cartDiff, "")
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, "Update code: Fix in", res.Message)
	assert.Equal(t, []safety.Agent{
		safety.AgentGenerator, safety.AgentValidator,
		safety.AgentRefiner, safety.AgentValidator,
		safety.AgentRefiner, safety.AgentValidator,
	}, agents(res.Trail))

	decisions := res.Trail.Decisions()
	first, ok := decisions[1].(*ValidatorDecision)
	require.True(t, ok)
	assert.False(t, first.Valid)
	assert.Equal(t, "CRITICAL", first.Severity.String())
	assert.InDelta(t, 0.8, first.HallucinationRate, 1e-9)

	r1, ok := decisions[2].(*RefinerDecision)
	require.True(t, ok)
	assert.Equal(t, []string{"Removed ungrounded tokens"}, r1.Changes)
	r2 := decisions[4].(*RefinerDecision)
	assert.Equal(t, []string{"Expanded short message"}, r2.Changes)

	rep := res.Transparency
	assert.Equal(t, 3, rep.AgentsInvolved)
	assert.Equal(t, 6, rep.TotalDecisions)
	assert.Equal(t, 12, rep.Compliance.SafetyChecksPerformed)
	assert.True(t, rep.Compliance.ExplainabilityProvided)
	assert.True(t, rep.Compliance.AccountabilityTraced)
	assert.Equal(t, 3, rep.TotalIterations)
	for _, c := range rep.Chain {
		assert.True(t, c.SafetyPassed)
		assert.NotEmpty(t, c.Reasoning)
	}
}

func TestRunExhaustsBudget(t *testing.T) {
	for _, budget := range []int{1, 2, 3, 5} {
		gen := &fakeGenerator{msg: "Quantum flux capacitor realignment"}
		res, err := NewController(gen, WithMaxIterations(budget)).Run(context.Background(), cartDiff, "")
		require.NoError(t, err, "budget=%d", budget)

		assert.False(t, res.Converged)
		assert.Equal(t, budget, res.Iterations)
		assert.Equal(t, gen.msg, res.Message)
		assert.Equal(t, 2+2*budget, res.Trail.Len())
		assert.Equal(t, budget+1, res.Trail.Count(safety.AgentValidator))
		assert.Contains(t, res.Verdict.Issues[0], "Hallucination detected (100.0% ungrounded tokens)")

		last := res.Trail.Decisions()[2].(*RefinerDecision)
		assert.Equal(t, []string{"No rule-based change applied; message kept for review"}, last.Changes)
	}
}

func TestRunWithReference(t *testing.T) {
	gen := &fakeGenerator{msg: "Update calculate_total total with item price and quantity"}
	res, err := NewController(gen).Run(context.Background(), cartDiff, "Multiply item price by quantity in calculate_total")
	require.NoError(t, err)
	assert.Less(t, res.Evaluation.BLEU, 100.0)
	assert.Greater(t, res.Evaluation.ROUGE.Rouge1, 0.0)
}

func TestRunGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream 503")}
	res, err := NewController(gen).Run(context.Background(), cartDiff, "")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorContains(t, err, "upstream 503")
}

func TestRunGenerationTimeout(t *testing.T) {
	c := NewController(blockingGenerator{}, WithTimeout(10*time.Millisecond))
	_, err := c.Run(context.Background(), cartDiff, "")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{msg: "Update calculate_total total"}
	_, err := NewController(gen).Run(ctx, cartDiff, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, gen.calls)
}

func TestRunCanceledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []Decision
	gen := &fakeGenerator{msg: "Quantum flux capacitor realignment"}
	c := NewController(gen, WithObserver(func(d Decision) {
		seen = append(seen, d)
		if len(seen) == 2 {
			cancel()
		}
	}))
	_, err := c.Run(ctx, cartDiff, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "REFINING")
	assert.Len(t, seen, 2)
}

func TestRunGovernanceViolations(t *testing.T) {
	var gv *safety.GovernanceViolation

	_, err := NewController(&fakeGenerator{msg: "Update calculate_total"}).
		Run(context.Background(), cartDiff+"+eval(total)\n", "")
	require.True(t, errors.As(err, &gv))
	assert.Equal(t, safety.AgentGenerator, gv.Agent)
	assert.Equal(t, "input", gv.Stage)

	_, err = NewController(&fakeGenerator{msg: "  tiny  "}).Run(context.Background(), cartDiff, "")
	require.True(t, errors.As(err, &gv))
	assert.Equal(t, "output", gv.Stage)
	assert.Equal(t, []string{safety.CheckQualityFloor}, gv.Failed)
}

func TestRunSanitizesGeneratedMessage(t *testing.T) {
	gen := &fakeGenerator{msg: "Update `calculate_total` total\n\n\n\nwith item price and quantity"}
	res, err := NewController(gen).Run(context.Background(), cartDiff, "")
	require.NoError(t, err)
	assert.NotContains(t, res.Message, "`")
	assert.NotContains(t, res.Message, "\n\n\n")
}

func TestResultJSON(t *testing.T) {
	gen := &fakeGenerator{msg: "Update calculate_total total with item price and quantity"}
	res, err := NewController(gen).Run(context.Background(), cartDiff, "")
	require.NoError(t, err)

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var out struct {
		Message string `json:"message"`
		Trail   []struct {
			Agent     string `json:"agent"`
			Action    string `json:"action"`
			Reasoning string `json:"reasoning"`
			ID        string `json:"id"`
		} `json:"agent_trail"`
		Verdict struct {
			Severity   string `json:"severity"`
			Confidence string `json:"confidence"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out.Trail, 2)
	assert.Equal(t, "generator", out.Trail[0].Agent)
	assert.Equal(t, ActionGenerate, out.Trail[0].Action)
	assert.Equal(t, ActionValidate, out.Trail[1].Action)
	assert.NotEqual(t, out.Trail[0].ID, out.Trail[1].ID)
	assert.True(t, strings.HasPrefix(out.Trail[0].Reasoning, "Generated with fake/fixed"))
	assert.Equal(t, "NONE", out.Verdict.Severity)
	assert.Equal(t, "HIGH", out.Verdict.Confidence)
}

func TestNewBaseRequiresReasoning(t *testing.T) {
	now := time.Now()
	_, err := newBase(safety.AgentRefiner, ActionRefine, "  ", SafetyRecord{}, now, now)
	assert.ErrorIs(t, err, ErrMissingReasoning)

	b, err := newBase(safety.AgentRefiner, ActionRefine, "why", SafetyRecord{}, now, now.Add(1500*time.Microsecond))
	require.NoError(t, err)
	assert.Equal(t, 1.5, b.ExecutionMS)
	assert.NotEmpty(t, b.ID)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "GENERATING", PhaseGenerating.String())
	assert.Equal(t, "DONE", PhaseDone.String())
	assert.Equal(t, "UNKNOWN", Phase(42).String())
}
