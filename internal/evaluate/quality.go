package evaluate

// Weights combine the individual metrics into one quality score.
type Weights struct {
	BLEU                 float64
	RougeL               float64
	Semantic             float64
	NoHallucinationBonus float64
	// Clamp limits the score to [0,1]; otherwise the bonus can reach 1.1.
	Clamp bool
}

// DefaultWeights is 30% BLEU, 30% ROUGE-L, 30% semantic, plus a 0.1 bonus
// when no hallucination was detected.
func DefaultWeights() Weights {
	return Weights{
		BLEU:                 0.3,
		RougeL:               0.3,
		Semantic:             0.3,
		NoHallucinationBonus: 0.1,
		Clamp:                true,
	}
}

// QualityScore combines BLEU and ROUGE-L (0-100) with semantic overlap
// (0-1). The bonus is binary, not a continuous penalty.
func QualityScore(bleu, rougeL, semantic float64, hallucinationDetected bool, w Weights) float64 {
	q := w.BLEU*bleu/100 + w.RougeL*rougeL/100 + w.Semantic*semantic
	if !hallucinationDetected {
		q += w.NoHallucinationBonus
	}
	if w.Clamp {
		q = max(0, min(1, q))
	}
	return round4(q)
}
