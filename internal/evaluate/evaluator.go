package evaluate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/model"
)

// Evaluator runs the full metric suite. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	threshold  float64
	weights    Weights
	similarity SimilarityProvider
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithThreshold sets the hallucination detection threshold.
func WithThreshold(t float64) Option {
	return func(e *Evaluator) { e.threshold = t }
}

// WithWeights sets the quality-score weights.
func WithWeights(w Weights) Option {
	return func(e *Evaluator) { e.weights = w }
}

// WithSimilarity replaces the Jaccard similarity provider.
func WithSimilarity(p SimilarityProvider) Option {
	return func(e *Evaluator) {
		if p != nil {
			e.similarity = p
		}
	}
}

// New returns an Evaluator with the default threshold, weights and Jaccard
// similarity unless overridden.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		threshold:  DefaultDetectionThreshold,
		weights:    DefaultWeights(),
		similarity: JaccardSimilarity{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold is the detection threshold in use.
func (e *Evaluator) Threshold() float64 { return e.threshold }

// Evaluate scores candidate against reference and checks it is grounded in
// diff. It never fails: a similarity provider error falls back to Jaccard.
func (e *Evaluator) Evaluate(ctx context.Context, candidate, reference, diff string) model.EvaluationResult {
	var res model.EvaluationResult
	res.BLEU = BLEU(candidate, reference)
	res.ROUGE = ROUGE(candidate, reference)

	sem, err := e.similarity.Similarity(ctx, candidate, reference)
	if err != nil {
		log.Warnf("similarity provider %s failed, using jaccard: %v", e.similarity.Name(), err)
		sem = Jaccard(candidate, reference)
	}
	res.Semantic = round4(sem)

	res.Hallucination = DetectHallucination(candidate, diff, e.threshold)
	res.Quality = QualityScore(res.BLEU, res.ROUGE.RougeL, res.Semantic, res.Hallucination.Detected, e.weights)
	return res
}

// Sample is one record for batch evaluation.
type Sample struct {
	Candidate string `json:"candidate"`
	Reference string `json:"reference"`
	Diff      string `json:"diff"`
}

// EvaluateBatch evaluates samples with at most parallelism workers and
// returns results in input order. It stops early only when ctx is done.
func (e *Evaluator) EvaluateBatch(ctx context.Context, samples []Sample, parallelism int) ([]model.EvaluationResult, error) {
	if parallelism <= 0 {
		parallelism = 4
	}
	results := make([]model.EvaluationResult, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, s := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			results[i] = e.Evaluate(gctx, s.Candidate, s.Reference, s.Diff)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary aggregates a batch of results.
type Summary struct {
	Count             int     `json:"count"`
	MeanBLEU          float64 `json:"mean_bleu"`
	MeanRougeL        float64 `json:"mean_rougeL"`
	MeanSemantic      float64 `json:"mean_semantic"`
	MeanQuality       float64 `json:"mean_quality"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// Summarize averages results. An empty slice yields a zero Summary.
func Summarize(results []model.EvaluationResult) Summary {
	s := Summary{Count: len(results)}
	if s.Count == 0 {
		return s
	}
	var detected int
	for _, r := range results {
		s.MeanBLEU += r.BLEU
		s.MeanRougeL += r.ROUGE.RougeL
		s.MeanSemantic += r.Semantic
		s.MeanQuality += r.Quality
		if r.Hallucination.Detected {
			detected++
		}
	}
	n := float64(s.Count)
	s.MeanBLEU = round2(s.MeanBLEU / n)
	s.MeanRougeL = round2(s.MeanRougeL / n)
	s.MeanSemantic = round4(s.MeanSemantic / n)
	s.MeanQuality = round4(s.MeanQuality / n)
	s.HallucinationRate = round4(float64(detected) / n)
	return s
}
