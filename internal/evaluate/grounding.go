package evaluate

import (
	"strings"

	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/tokenize"
)

// DefaultDetectionThreshold is the ungrounded-token rate above which a
// message counts as hallucinating.
const DefaultDetectionThreshold = 0.10

// genericVocabulary holds software-engineering words a message may use
// without the diff spelling them out.
var genericVocabulary = map[string]struct{}{
	"fix": {}, "bug": {}, "issue": {}, "error": {}, "refactor": {},
	"update": {}, "add": {}, "remove": {}, "delete": {}, "implement": {},
	"feature": {}, "change": {}, "modify": {}, "improve": {}, "optimize": {},
	"clean": {}, "rename": {}, "move": {}, "merge": {}, "function": {},
	"method": {}, "class": {}, "variable": {}, "parameter": {}, "return": {},
	"import": {}, "export": {}, "test": {}, "tests": {}, "testing": {},
	"code": {}, "file": {},
}

// IsGeneric reports whether tok is exempt from grounding.
func IsGeneric(tok string) bool {
	_, ok := genericVocabulary[tok]
	return ok
}

// DetectHallucination lists the meaningful message tokens that are not a
// substring of any diff token. Generic vocabulary is skipped and does not
// count toward TotalTokensChecked.
func DetectHallucination(message, diff string, threshold float64) model.HallucinationReport {
	report := model.HallucinationReport{UngroundedTokens: []string{}}

	diffTokens := tokenize.DiffTokens(diff)
	exact := make(map[string]struct{}, len(diffTokens))
	for _, t := range diffTokens {
		exact[t] = struct{}{}
	}

	for _, tok := range tokenize.MeaningfulTokens(message) {
		if IsGeneric(tok) {
			continue
		}
		report.TotalTokensChecked++
		if !grounded(tok, exact, diffTokens) {
			report.UngroundedTokens = append(report.UngroundedTokens, tok)
		}
	}

	if report.TotalTokensChecked > 0 {
		report.Rate = float64(len(report.UngroundedTokens)) / float64(report.TotalTokensChecked)
	}
	report.Detected = report.Rate > threshold
	return report
}

func grounded(tok string, exact map[string]struct{}, diffTokens []string) bool {
	if _, ok := exact[tok]; ok {
		return true
	}
	for _, dt := range diffTokens {
		if strings.Contains(dt, tok) {
			return true
		}
	}
	return false
}
