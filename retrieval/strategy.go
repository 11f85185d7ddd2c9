package retrieval

import (
	"strings"

	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/korean"
)

// factualQuestionCues are Korean interrogatives that mark a query as asking
// for one concrete fact (a date, an amount, a threshold) rather than open
// advice.
var factualQuestionCues = []string{"언제", "얼마", "며칠", "몇", "누구", "어디"}

func hasFactualCue(query string) bool {
	for _, cue := range factualQuestionCues {
		if strings.Contains(query, cue) {
			return true
		}
	}
	return false
}

// complexConnectives join clauses in a multi-part question, a cheap signal
// for IsComplex alongside raw length.
var complexConnectives = []string{"그리고", "또한", "그런데", "하지만"}

func hasComplexConnective(query string) bool {
	for _, c := range complexConnectives {
		if strings.Contains(query, c) {
			return true
		}
	}
	return false
}

// AnalyzeQuery derives QueryCharacteristics from raw query text (spec
// §3.1, §4.6.1 feeds SearchStrategySelector).
func AnalyzeQuery(query string) QueryCharacteristics {
	lemmas := korean.Lemmas(query)
	termCount := len(lemmas)
	words := korean.Tokenize(query)
	wordCount := len(words)

	keywordHits := 0
	for lemma := range lemmas {
		for _, ks := range domainlabel.DefaultKeywordSets {
			if ks.Contains(lemma) {
				keywordHits++
				break
			}
		}
	}
	keywordDensity := 0.0
	if wordCount > 0 {
		keywordDensity = float64(keywordHits) / float64(wordCount)
	}

	citesArticle := korean.CitesArticle(query)

	return QueryCharacteristics{
		CitesArticle:   citesArticle,
		TermCount:      termCount,
		IsBroad:        termCount <= 2,
		IsSpecific:     termCount >= 5,
		LengthChars:    len([]rune(query)),
		WordCount:      wordCount,
		KeywordDensity: keywordDensity,
		IsFactual:      citesArticle || hasFactualCue(query),
		IsComplex:      wordCount >= 12 || hasComplexConnective(query),
		IsAmbiguous:    termCount <= 1 && keywordHits == 0,
	}
}

// SearchStrategySelector picks a SearchMode and recommended k for a query
// (spec §4.6.1).
type SearchStrategySelector struct {
	dynamicKMin int
	dynamicKMax int
}

// NewSearchStrategySelector builds a selector with the configured dynamic-k
// bounds (default 3-8, spec §4.6.1).
func NewSearchStrategySelector(dynamicKMin, dynamicKMax int) *SearchStrategySelector {
	return &SearchStrategySelector{dynamicKMin: dynamicKMin, dynamicKMax: dynamicKMax}
}

// bm25HeavyKeywordDensityThreshold is the KeywordDensity above which a
// query is treated as dense with domain jargon -- lexical-match territory
// favoring BM25 over vector similarity.
const bm25HeavyKeywordDensityThreshold = 0.5

// Select returns the SearchMode and recommended k for the given query.
func (s *SearchStrategySelector) Select(query string) (SearchMode, int) {
	qc := AnalyzeQuery(query)

	switch {
	case qc.CitesArticle:
		return ModeExactPlusVector, s.clampK(s.dynamicKMin + 1)
	case qc.IsBroad:
		// A one- or two-term query is broad even if that term is a domain
		// keyword (e.g. "창업"); it still wants recall/diversity, not a
		// literal lexical match on the single term it has.
		return ModeMMRDiverse, s.dynamicKMax
	case qc.KeywordDensity >= bm25HeavyKeywordDensityThreshold:
		return ModeBM25Heavy, s.clampK(s.dynamicKMin + 1)
	case qc.IsSpecific:
		return ModeVectorHeavy, s.dynamicKMin
	default:
		return ModeHybrid, s.clampK((s.dynamicKMin + s.dynamicKMax) / 2)
	}
}

func (s *SearchStrategySelector) clampK(k int) int {
	if k < s.dynamicKMin {
		return s.dynamicKMin
	}
	if k > s.dynamicKMax {
		return s.dynamicKMax
	}
	return k
}

// DocumentBudgetCalculator allocates per-domain document budgets under a
// global cap (spec §4.6.1).
type DocumentBudgetCalculator struct {
	retrievalK       int
	maxRetrievalDocs int
	minDomainK       int
}

// NewDocumentBudgetCalculator builds a calculator from the configured
// budget knobs.
func NewDocumentBudgetCalculator(retrievalK, maxRetrievalDocs, minDomainK int) *DocumentBudgetCalculator {
	return &DocumentBudgetCalculator{retrievalK: retrievalK, maxRetrievalDocs: maxRetrievalDocs, minDomainK: minDomainK}
}

// Allocate computes a RetrievalBudget per domain. domains[0] is primary.
// recommendedK is the SearchStrategySelector's per-domain recommendation,
// indexed the same as domains.
func (c *DocumentBudgetCalculator) Allocate(domains []domainlabel.Label, recommendedK []int) []RetrievalBudget {
	if len(domains) == 0 {
		return nil
	}
	if len(domains) == 1 {
		k := recommendedK[0]
		if k > c.retrievalK {
			k = c.retrievalK
		}
		return []RetrievalBudget{{Domain: domains[0], AllocatedK: k, IsPrimary: true}}
	}

	// Multi-domain bounded mode: equal k per domain initially, then scale
	// down to satisfy the global cap while respecting the per-domain floor.
	equalK := c.retrievalK
	for _, k := range recommendedK {
		if k < equalK {
			equalK = k
		}
	}
	if equalK < c.minDomainK {
		equalK = c.minDomainK
	}

	total := equalK * len(domains)
	if total > c.maxRetrievalDocs && len(domains) > 0 {
		scaled := c.maxRetrievalDocs / len(domains)
		if scaled < c.minDomainK {
			scaled = c.minDomainK
		}
		equalK = scaled
	}

	budgets := make([]RetrievalBudget, len(domains))
	for i, d := range domains {
		budgets[i] = RetrievalBudget{Domain: d, AllocatedK: equalK, IsPrimary: i == 0}
	}
	return budgets
}
