// Package engine assembles the evaluator, classifier, safety gate, agent
// loop and audit sink from configuration, and runs them the same way for
// the CLI and the API.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/audit"
	"github.com/sprite-ai/smartcommit/internal/config"
	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/evaluate"
	"github.com/sprite-ai/smartcommit/internal/llm"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/report"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// Engine is safe for concurrent use.
type Engine struct {
	cfg        *config.Config
	gen        llm.Generator
	evaluator  *evaluate.Evaluator
	thresholds safety.Thresholds
	gate       *safety.Gate
	sink       audit.Sink
}

// Option overrides a component New would otherwise build from config.
type Option func(*Engine)

// WithGenerator replaces the configured generator.
func WithGenerator(g llm.Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithSink replaces the configured audit sink.
func WithSink(s audit.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// New builds an engine from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: cfg,
		thresholds: safety.Thresholds{
			Low:    cfg.Hallucination.Low,
			Medium: cfg.Hallucination.Medium,
			High:   cfg.Hallucination.High,
		},
		gate: safety.NewGate(safety.GateConfig{
			MaxDiffKB:    cfg.Safety.MaxDiffKB,
			MaxDiffLines: cfg.Safety.MaxDiffLines,
			WarnOnFormat: cfg.Safety.FormatCheck == "warn",
		}, safety.NewRateLimiter(cfg.Safety.RPMLimit)),
	}
	for _, opt := range opts {
		opt(e)
	}

	sim, err := similarity(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	e.evaluator = evaluate.New(
		evaluate.WithThreshold(cfg.Hallucination.DetectionThreshold),
		evaluate.WithWeights(evaluate.Weights{
			BLEU:                 cfg.Quality.BLEU,
			RougeL:               cfg.Quality.RougeL,
			Semantic:             cfg.Quality.Semantic,
			NoHallucinationBonus: cfg.Quality.NoHallucinationBonus,
			Clamp:                cfg.Quality.Clamp,
		}),
		evaluate.WithSimilarity(sim),
	)

	if e.gen == nil {
		if e.gen, err = llm.New(ctx, cfg.Generator); err != nil {
			return nil, err
		}
	}
	if e.sink == nil {
		if e.sink, err = audit.Open(cfg.Audit); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func similarity(cfg config.SimilarityConfig) (evaluate.SimilarityProvider, error) {
	switch cfg.Provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai similarity: %w", llm.ErrMissingAPIKey)
		}
		return evaluate.NewEmbeddingSimilarity(openai.NewClient(key), cfg.Model), nil
	default:
		return evaluate.JaccardSimilarity{}, nil
	}
}

// Generator is the generator in use.
func (e *Engine) Generator() llm.Generator { return e.gen }

// Evaluator is the configured evaluator.
func (e *Engine) Evaluator() *evaluate.Evaluator { return e.evaluator }

// Sink is the audit sink.
func (e *Engine) Sink() audit.Sink { return e.sink }

// Close releases the audit sink.
func (e *Engine) Close() error { return e.sink.Close() }

// Controller returns an agent loop configured from the engine. extra
// options apply last.
func (e *Engine) Controller(extra ...agent.Option) *agent.Controller {
	opts := []agent.Option{
		agent.WithEvaluator(e.evaluator),
		agent.WithThresholds(e.thresholds),
		agent.WithMaxIterations(e.cfg.Agent.MaxIterations),
		agent.WithMaxMessageLength(e.cfg.Safety.MaxMessageLength),
	}
	return agent.NewController(e.gen, append(opts, extra...)...)
}

// Admit runs the safety gate on diff. Rejections are recorded.
func (e *Engine) Admit(ctx context.Context, clientID, diff string) (safety.InputReport, error) {
	rep, err := e.gate.ValidateInput(clientID, diff)
	if err != nil {
		log.Warnf("input from %s rejected: %v", clientID, err)
		e.recordViolation(ctx, clientID, diff, err)
		return rep, err
	}
	for _, w := range rep.Warnings {
		log.Warnf("input from %s admitted with warning: %s", clientID, w)
	}
	return rep, nil
}

// Generate admits diff, runs the agent loop and records the outcome.
// observer, when non-nil, sees each decision as it is made.
func (e *Engine) Generate(ctx context.Context, clientID, diff, reference string, observer func(agent.Decision)) (*agent.Result, error) {
	if _, err := e.Admit(ctx, clientID, diff); err != nil {
		return nil, err
	}

	var extra []agent.Option
	if observer != nil {
		extra = append(extra, agent.WithObserver(observer))
	}
	res, err := e.Controller(extra...).Run(ctx, diff, reference)
	if err != nil {
		e.recordViolation(ctx, clientID, diff, err)
		return nil, err
	}

	if h := res.Evaluation.Hallucination; h.Detected {
		e.Record(ctx, audit.NewHallucination(clientID, res.Message, diff, h, res.Verdict.Severity))
	}
	if ev, err := audit.NewAgentTrail(clientID, res); err != nil {
		log.Errorf("audit: %v", err)
	} else {
		e.Record(ctx, ev)
	}
	return res, nil
}

// Check scores an existing message against diff and, if given, a
// reference. Without a reference the message is compared with itself.
func (e *Engine) Check(ctx context.Context, clientID, message, reference, rawDiff string) *report.Report {
	ref := reference
	if strings.TrimSpace(ref) == "" {
		ref = message
	}
	res := e.evaluator.Evaluate(ctx, message, ref, rawDiff)
	a := e.thresholds.Assess(res)

	r := &report.Report{
		Message:    message,
		Reference:  reference,
		Stats:      Stats(rawDiff),
		Verdict:    agent.Judge(message, res, a),
		Evaluation: res,
		Assessment: a,
	}
	if res.Hallucination.Detected {
		e.Record(ctx, audit.NewHallucination(clientID, message, rawDiff, res.Hallucination, a.Severity))
	}
	return r
}

// Report builds a report for a loop result.
func (e *Engine) Report(res *agent.Result, rawDiff string) *report.Report {
	return report.FromResult(res, Stats(rawDiff))
}

// Stats counts files and lines in rawDiff. A diff that does not parse
// counts as empty.
func Stats(rawDiff string) model.DiffStats {
	ds, err := diff.Parse(rawDiff)
	if err != nil {
		return model.DiffStats{}
	}
	return ds.Summary()
}

func (e *Engine) recordViolation(ctx context.Context, clientID, diff string, err error) {
	if ev, ok := audit.NewSafetyViolation(clientID, diff, err); ok {
		e.Record(ctx, ev)
	}
}

// Record stores ev, logging rather than returning sink failures so an
// audit outage never fails a request.
func (e *Engine) Record(ctx context.Context, ev audit.Event) {
	if err := e.sink.Record(context.WithoutCancel(ctx), ev); err != nil {
		log.Errorf("audit %s: %v", ev.Kind, err)
	}
}
