package retrieval

import (
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/korean"
)

// RetrievalEvaluator is the rule-based retrieval-quality judge (spec §4.7).
type RetrievalEvaluator struct {
	minDocCount     int
	minKeywordRatio float64
	minAvgSimilarity float64
}

// NewRetrievalEvaluator builds an evaluator with the configured floors.
func NewRetrievalEvaluator(minDocCount int, minKeywordRatio, minAvgSimilarity float64) *RetrievalEvaluator {
	return &RetrievalEvaluator{minDocCount: minDocCount, minKeywordRatio: minKeywordRatio, minAvgSimilarity: minAvgSimilarity}
}

// Evaluate implements spec §4.7. exhaustedRetries signals that this is the
// last possible attempt, so an empty result is a hard FAIL rather than
// NEEDS_RETRY.
func (e *RetrievalEvaluator) Evaluate(query string, docs []document.Document, scores []float64, exhaustedRetries bool) EvaluationResult {
	docCountOK := len(docs) >= e.minDocCount

	queryLemmas := korean.Lemmas(query)
	matched := 0
	for lemma := range queryLemmas {
		for _, d := range docs {
			if containsLemma(d.Content, lemma) {
				matched++
				break
			}
		}
	}
	keywordRatio := 1.0
	if len(queryLemmas) > 0 {
		keywordRatio = float64(matched) / float64(len(queryLemmas))
	}

	avgSim := 0.0
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		avgSim = sum / float64(len(scores))
	}

	result := EvaluationResult{
		DocCountOK:        docCountOK,
		KeywordMatchRatio: keywordRatio,
		AvgSimilarity:     avgSim,
	}

	switch {
	case len(docs) == 0 && exhaustedRetries:
		result.Verdict = VerdictFail
	case docCountOK && keywordRatio >= e.minKeywordRatio && avgSim >= e.minAvgSimilarity:
		result.Verdict = VerdictPass
	default:
		result.Verdict = VerdictNeedsRetry
	}
	return result
}

func containsLemma(content, lemma string) bool {
	for token := range korean.Lemmas(content) {
		if token == lemma {
			return true
		}
	}
	return false
}
