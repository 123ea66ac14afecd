package agent

import (
	"encoding/json"

	"github.com/sprite-ai/smartcommit/internal/safety"
)

// Trail is the append-only record of one loop run. It is owned by a single
// run and is not safe for concurrent appends.
type Trail struct {
	decisions []Decision
}

// Append adds d to the end of the trail.
func (t *Trail) Append(d Decision) {
	t.decisions = append(t.decisions, d)
}

// Len is the number of decisions recorded.
func (t *Trail) Len() int { return len(t.decisions) }

// Decisions returns a copy of the recorded decisions in order.
func (t *Trail) Decisions() []Decision {
	out := make([]Decision, len(t.decisions))
	copy(out, t.decisions)
	return out
}

// Count returns how many decisions agent made.
func (t *Trail) Count(agent safety.Agent) int {
	n := 0
	for _, d := range t.decisions {
		if d.Meta().Agent == agent {
			n++
		}
	}
	return n
}

func (t *Trail) MarshalJSON() ([]byte, error) {
	if t.decisions == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.decisions)
}

// ChainEntry is one decision as shown in the transparency report.
type ChainEntry struct {
	Agent        safety.Agent `json:"agent"`
	Action       string       `json:"action"`
	Reasoning    string       `json:"reasoning"`
	SafetyPassed bool         `json:"safety_passed"`
}

// Compliance summarises the governance guarantees of a run.
type Compliance struct {
	SafetyChecksPerformed  int  `json:"safety_checks_performed"`
	TransparencyEnabled    bool `json:"transparency_enabled"`
	ExplainabilityProvided bool `json:"explainability_provided"`
	AccountabilityTraced   bool `json:"accountability_traced"`
}

// TransparencyReport is the human-readable account of a run.
type TransparencyReport struct {
	AgentsInvolved int          `json:"total_agents_involved"`
	TotalDecisions int          `json:"total_decisions"`
	Chain          []ChainEntry `json:"decision_chain"`
	Compliance     Compliance   `json:"governance_compliance"`
	// TotalIterations counts validation rounds: one plus each refinement.
	TotalIterations int `json:"total_iterations"`
}

// TransparencyReport summarises the trail.
func (t *Trail) TransparencyReport() TransparencyReport {
	agents := make(map[safety.Agent]bool)
	rep := TransparencyReport{
		TotalDecisions: len(t.decisions),
		Chain:          make([]ChainEntry, 0, len(t.decisions)),
		Compliance: Compliance{
			SafetyChecksPerformed:  2 * len(t.decisions),
			TransparencyEnabled:    true,
			ExplainabilityProvided: true,
			AccountabilityTraced:   len(t.decisions) > 0,
		},
		TotalIterations: t.Count(safety.AgentRefiner) + 1,
	}
	for _, d := range t.decisions {
		m := d.Meta()
		agents[m.Agent] = true
		if m.Reasoning == "" {
			rep.Compliance.ExplainabilityProvided = false
		}
		rep.Chain = append(rep.Chain, ChainEntry{
			Agent:        m.Agent,
			Action:       m.Action,
			Reasoning:    m.Reasoning,
			SafetyPassed: m.Safety.Passed(),
		})
	}
	rep.AgentsInvolved = len(agents)
	return rep
}
