// Package evaluate scores generated commit messages against a reference
// message and the diff they describe.
package evaluate

import (
	"math"
	"strings"

	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/tokenize"
)

// MaxBLEUOrder is the largest n-gram order in the BLEU geometric mean.
const MaxBLEUOrder = 4

// BLEU returns the clipped n-gram precision score of candidate against
// reference on a 0-100 scale, rounded to two decimals.
func BLEU(candidate, reference string) float64 {
	return round2(100 * bleu(tokenize.Tokens(candidate), tokenize.Tokens(reference)))
}

// ROUGE returns ROUGE-1, ROUGE-2 and ROUGE-L recall on a 0-100 scale,
// rounded to two decimals.
func ROUGE(candidate, reference string) model.RougeScores {
	cand := tokenize.Tokens(candidate)
	ref := tokenize.Tokens(reference)
	return model.RougeScores{
		Rouge1: round2(100 * rougeN(cand, ref, 1)),
		Rouge2: round2(100 * rougeN(cand, ref, 2)),
		RougeL: round2(100 * rougeL(cand, ref)),
	}
}

func bleu(cand, ref []string) float64 {
	if len(cand) == 0 {
		return 0
	}

	var logSum float64
	for n := 1; n <= MaxBLEUOrder; n++ {
		p := clippedPrecision(cand, ref, n)
		if p == 0 {
			return 0
		}
		logSum += math.Log(p)
	}
	geoMean := math.Exp(logSum / MaxBLEUOrder)

	bp := 1.0
	if len(cand) < len(ref) {
		bp = math.Exp(1 - float64(len(ref))/float64(len(cand)))
	}
	return bp * geoMean
}

// clippedPrecision credits each candidate n-gram at most as many times as it
// occurs in the reference.
func clippedPrecision(cand, ref []string, n int) float64 {
	candNGrams := createNGrams(cand, n)
	if len(candNGrams) == 0 {
		return 0
	}
	refNGrams := createNGrams(ref, n)

	var clipped, total int
	for key, cnt := range candNGrams {
		total += cnt
		clipped += min(cnt, refNGrams[key])
	}
	return float64(clipped) / float64(total)
}

func rougeN(cand, ref []string, n int) float64 {
	refNGrams := createNGrams(ref, n)
	if len(refNGrams) == 0 {
		return 0
	}
	candNGrams := createNGrams(cand, n)

	var matches, total int
	for key, cnt := range refNGrams {
		total += cnt
		matches += min(cnt, candNGrams[key])
	}
	return float64(matches) / float64(total)
}

func rougeL(cand, ref []string) float64 {
	if len(ref) == 0 {
		return 0
	}
	return float64(LCS(cand, ref)) / float64(len(ref))
}

func createNGrams(tokens []string, n int) map[string]int {
	if n <= 0 || len(tokens) < n {
		return map[string]int{}
	}
	ngrams := make(map[string]int, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		ngrams[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return ngrams
}

// LCS returns the length of the longest common subsequence of two token
// sequences using the O(len(a)*len(b)) dynamic program with two rows.
func LCS(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		curr[0] = 0
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				continue
			}
			curr[j] = max(prev[j], curr[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
