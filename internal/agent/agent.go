// Package agent runs the generate, validate and refine loop that produces
// a commit message, recording every step on an audit trail.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sprite-ai/smartcommit/internal/evaluate"
	"github.com/sprite-ai/smartcommit/internal/llm"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// DefaultMaxIterations is the refinement budget.
const DefaultMaxIterations = 3

// ErrGenerationFailed wraps any error or timeout from the generator.
var ErrGenerationFailed = errors.New("generation failed")

// Phase is the state of the loop.
type Phase int

const (
	PhaseGenerating Phase = iota
	PhaseValidating
	PhaseRefining
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseGenerating:
		return "GENERATING"
	case PhaseValidating:
		return "VALIDATING"
	case PhaseRefining:
		return "REFINING"
	case PhaseDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// State is what the loop carries between steps.
type State struct {
	Phase      Phase
	Diff       string
	Reference  string
	Message    string
	Verdict    *model.ValidationVerdict
	Evaluation model.EvaluationResult
	Assessment safety.Assessment
	// Iteration counts refinements applied so far.
	Iteration int
}

// Result is the outcome of a completed run.
type Result struct {
	Message      string                  `json:"message"`
	Verdict      model.ValidationVerdict `json:"verdict"`
	Evaluation   model.EvaluationResult  `json:"quality_metrics"`
	Assessment   safety.Assessment       `json:"assessment"`
	Trail        *Trail                  `json:"agent_trail"`
	Iterations   int                     `json:"iterations"`
	Converged    bool                    `json:"converged"`
	Generator    llm.Info                `json:"generator"`
	ElapsedMS    float64                 `json:"total_execution_time_ms"`
	Transparency TransparencyReport      `json:"transparency_report"`
}

// Controller drives the loop. It holds no per-run state and may run
// concurrent requests.
type Controller struct {
	gen        llm.Generator
	evaluator  *evaluate.Evaluator
	thresholds safety.Thresholds
	maxIter    int
	maxMsgLen  int
	observer   func(Decision)
	now        func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithEvaluator sets the evaluator used by the validator.
func WithEvaluator(e *evaluate.Evaluator) Option {
	return func(c *Controller) { c.evaluator = e }
}

// WithThresholds sets the severity bands.
func WithThresholds(t safety.Thresholds) Option {
	return func(c *Controller) { c.thresholds = t }
}

// WithMaxIterations sets the refinement budget. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.maxIter = n
		}
	}
}

// WithMaxMessageLength sets where generated messages are truncated.
func WithMaxMessageLength(n int) Option {
	return func(c *Controller) { c.maxMsgLen = n }
}

// WithTimeout bounds each generator call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.gen = llm.WithTimeout(c.gen, d)
		}
	}
}

// WithObserver is called with each decision as it is appended.
func WithObserver(fn func(Decision)) Option {
	return func(c *Controller) { c.observer = fn }
}

// NewController returns a controller around gen.
func NewController(gen llm.Generator, opts ...Option) *Controller {
	c := &Controller{
		gen:        gen,
		evaluator:  evaluate.New(),
		thresholds: safety.DefaultThresholds(),
		maxIter:    DefaultMaxIterations,
		maxMsgLen:  safety.DefaultMaxMessageLength,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run generates a message for diff and refines it until it validates or
// the iteration budget is spent. reference may be empty, in which case the
// message is scored against itself. Exhausting the budget is not an error:
// the last message is returned with Converged false.
//
// Errors are ErrGenerationFailed, *safety.GovernanceViolation or the
// context's error.
func (c *Controller) Run(ctx context.Context, diff, reference string) (*Result, error) {
	start := c.now()
	s := State{Phase: PhaseGenerating, Diff: diff, Reference: reference}
	trail := &Trail{}

	for s.Phase != PhaseDone {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent loop stopped while %s: %w", s.Phase, err)
		}

		var (
			d   Decision
			err error
		)
		switch s.Phase {
		case PhaseGenerating:
			s, d, err = c.generate(ctx, s)
		case PhaseValidating:
			s, d, err = c.validate(ctx, s)
		case PhaseRefining:
			s, d, err = c.refine(s)
		}
		if err != nil {
			var gv *safety.GovernanceViolation
			if errors.As(err, &gv) {
				log.Errorf("agent loop aborted: %v", err)
			} else {
				log.Warnf("agent loop failed: %v", err)
			}
			return nil, err
		}

		trail.Append(d)
		if c.observer != nil {
			c.observer(d)
		}
	}

	res := &Result{
		Message:      s.Message,
		Verdict:      *s.Verdict,
		Evaluation:   s.Evaluation,
		Assessment:   s.Assessment,
		Trail:        trail,
		Iterations:   s.Iteration,
		Converged:    s.Verdict.Valid,
		Generator:    c.gen.Info(),
		ElapsedMS:    float64(c.now().Sub(start).Microseconds()) / 1000,
		Transparency: trail.TransparencyReport(),
	}
	log.Infof("agent loop done: converged=%v refinements=%d decisions=%d", res.Converged, res.Iterations, trail.Len())
	return res, nil
}

func (c *Controller) generate(ctx context.Context, s State) (State, Decision, error) {
	start := c.now()
	inCheck, err := safety.CheckInput(safety.AgentGenerator, safety.StepInput{Diff: s.Diff})
	if err != nil {
		return s, nil, err
	}

	raw, err := c.gen.Generate(ctx, s.Diff)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s, nil, fmt.Errorf("agent loop stopped while %s: %w", s.Phase, ctxErr)
		}
		return s, nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	msg := safety.Sanitize(raw, c.maxMsgLen)

	info := c.gen.Info()
	reasoning := fmt.Sprintf("Generated with %s at temperature %.1f. "+
		"Sanitized the %d-character output to %d characters.",
		info, info.Temperature, utf8.RuneCountInString(raw), utf8.RuneCountInString(msg))

	outCheck, err := safety.CheckOutput(safety.AgentGenerator, safety.StepOutput{Message: msg, Reasoning: reasoning})
	if err != nil {
		return s, nil, err
	}
	base, err := newBase(safety.AgentGenerator, ActionGenerate, reasoning, SafetyRecord{inCheck, outCheck}, start, c.now())
	if err != nil {
		return s, nil, err
	}

	s.Message = msg
	s.Phase = PhaseValidating
	return s, &GeneratorDecision{
		DecisionBase: base,
		Provider:     info.Provider,
		Model:        info.Model,
		Temperature:  info.Temperature,
		DiffChars:    len(s.Diff),
		MessageChars: utf8.RuneCountInString(msg),
	}, nil
}

func (c *Controller) validate(ctx context.Context, s State) (State, Decision, error) {
	start := c.now()
	inCheck, err := safety.CheckInput(safety.AgentValidator, safety.StepInput{
		Diff: s.Diff, Message: s.Message, Reference: s.Reference,
	})
	if err != nil {
		return s, nil, err
	}

	ref := s.Reference
	if strings.TrimSpace(ref) == "" {
		ref = s.Message
	}
	res := c.evaluator.Evaluate(ctx, s.Message, ref, s.Diff)
	a := c.thresholds.Assess(res)
	v := Judge(s.Message, res, a)
	reasoning := validatorReasoning(v)

	outCheck, err := safety.CheckOutput(safety.AgentValidator, safety.StepOutput{Verdict: &v, Reasoning: reasoning})
	if err != nil {
		return s, nil, err
	}
	base, err := newBase(safety.AgentValidator, ActionValidate, reasoning, SafetyRecord{inCheck, outCheck}, start, c.now())
	if err != nil {
		return s, nil, err
	}

	s.Verdict = &v
	s.Evaluation = res
	s.Assessment = a
	switch {
	case v.Valid:
		s.Phase = PhaseDone
	case s.Iteration < c.maxIter:
		s.Phase = PhaseRefining
	default:
		s.Phase = PhaseDone
	}
	return s, &ValidatorDecision{
		DecisionBase:      base,
		MessageChars:      utf8.RuneCountInString(s.Message),
		Valid:             v.Valid,
		IssueCount:        len(v.Issues),
		Severity:          v.Severity,
		Confidence:        v.Confidence,
		Quality:           res.Quality,
		HallucinationRate: res.Hallucination.Rate,
	}, nil
}

func (c *Controller) refine(s State) (State, Decision, error) {
	start := c.now()
	inCheck, err := safety.CheckInput(safety.AgentRefiner, safety.StepInput{
		Diff: s.Diff, Message: s.Message, Verdict: s.Verdict,
	})
	if err != nil {
		return s, nil, err
	}

	refined, changes := Refine(s.Message, *s.Verdict, s.Diff)
	reasoning := refinerReasoning(*s.Verdict, changes)

	outCheck, err := safety.CheckOutput(safety.AgentRefiner, safety.StepOutput{Message: refined, Reasoning: reasoning})
	if err != nil {
		return s, nil, err
	}
	base, err := newBase(safety.AgentRefiner, ActionRefine, reasoning, SafetyRecord{inCheck, outCheck}, start, c.now())
	if err != nil {
		return s, nil, err
	}

	d := &RefinerDecision{
		DecisionBase:  base,
		OriginalChars: utf8.RuneCountInString(s.Message),
		RefinedChars:  utf8.RuneCountInString(refined),
		Changes:       changes,
	}
	s.Message = refined
	s.Iteration++
	s.Phase = PhaseValidating
	return s, d, nil
}
