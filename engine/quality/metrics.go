// Package quality computes retrieval-quality metrics.
//
// The pure functions in this file never fail: empty inputs produce 0 through
// SafeRatio. Metrics that need embeddings or a similarity search live on
// Prober and report provider failures as errors.
package quality

import (
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/similarity"
)

// SafeRatio returns num/den, or 0 when den is 0.
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ContextPrecisionRecall matches retrieved items to true contexts by exact
// equality. True positives are the multiset intersection, so a duplicate
// counts only as often as it occurs on both sides and both ratios stay in [0,1].
func ContextPrecisionRecall(trueCtx, retrieved domain.ContextSet) (precision, recall float64) {
	remaining := make(map[string]int, len(trueCtx))
	for _, c := range trueCtx {
		remaining[c]++
	}
	var tp float64
	for _, c := range retrieved {
		if remaining[c] > 0 {
			remaining[c]--
			tp++
		}
	}
	return SafeRatio(tp, float64(len(retrieved))), SafeRatio(tp, float64(len(trueCtx)))
}

// ContextRelevance is the mean cosine similarity between query and each retrieved vector.
func ContextRelevance(query domain.Vector, retrieved []domain.Vector) float64 {
	set := make([][]float32, len(retrieved))
	for i, v := range retrieved {
		set[i] = v
	}
	return similarity.MeanCosine(query, set)
}

// ContextEntityRecall tokenizes on whitespace (punctuation stays attached) and
// divides the multiset intersection by the number of true tokens.
func ContextEntityRecall(trueCtx string, retrieved domain.ContextSet) float64 {
	trueTokens := strings.Fields(trueCtx)
	have := make(map[string]int)
	for _, c := range retrieved {
		for _, tok := range strings.Fields(c) {
			have[tok]++
		}
	}
	var hit float64
	for _, tok := range trueTokens {
		if have[tok] > 0 {
			have[tok]--
			hit++
		}
	}
	return SafeRatio(hit, float64(len(trueTokens)))
}

// Faithfulness is 1 when trueCtx occurs verbatim in answer. Case-sensitive.
func Faithfulness(answer, trueCtx string) int {
	if strings.Contains(answer, trueCtx) {
		return 1
	}
	return 0
}

// InformationIntegration is the fraction of contexts that occur verbatim in answer.
func InformationIntegration(answer string, contexts domain.ContextSet) float64 {
	var found float64
	for _, c := range contexts {
		if strings.Contains(answer, c) {
			found++
		}
	}
	return SafeRatio(found, float64(len(contexts)))
}
