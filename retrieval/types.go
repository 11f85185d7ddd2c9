// Package retrieval implements hybrid search, query expansion, and the
// retrieval-orchestration subsystem (spec §4.2-§4.7): the hardest part of
// the pipeline, responsible for turning one or more domain sub-queries into
// a merged, evaluated, budget-respecting document set.
package retrieval

import (
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
)

// SearchMode selects the fusion/selection strategy HybridSearcher uses.
type SearchMode string

const (
	ModeHybrid          SearchMode = "HYBRID"
	ModeVectorHeavy     SearchMode = "VECTOR_HEAVY"
	ModeBM25Heavy       SearchMode = "BM25_HEAVY"
	ModeMMRDiverse      SearchMode = "MMR_DIVERSE"
	ModeExactPlusVector SearchMode = "EXACT_PLUS_VECTOR"
)

// rrfWeight returns the vector-fusion weight w for a SearchMode (spec §4.2
// step 3).
func (m SearchMode) rrfWeight() float64 {
	switch m {
	case ModeVectorHeavy:
		return 0.9
	case ModeBM25Heavy:
		return 0.3
	case ModeMMRDiverse:
		return 0.7
	case ModeExactPlusVector:
		return 0.7
	default:
		return 0.7
	}
}

// SubQuery is one domain-scoped question produced by decompose.Decomposer.
type SubQuery struct {
	Domain domainlabel.Label
	Query  string
}

// QueryCharacteristics are the derived features SearchStrategySelector uses
// to pick a SearchMode and recommended k (spec §3.1, §4.6.1).
type QueryCharacteristics struct {
	CitesArticle   bool
	TermCount      int
	IsBroad        bool // few, generic terms -> favor recall/diversity
	IsSpecific     bool // many distinctive terms -> favor precision

	LengthChars    int
	WordCount      int
	KeywordDensity float64 // fraction of tokens that hit a domain keyword table
	IsFactual      bool    // statute citation or a factual question cue ("언제"/"얼마"/...)
	IsComplex      bool    // long query or multiple clauses joined by a connective
	IsAmbiguous    bool    // one or zero terms and no keyword hits at all
}

// RetrievalBudget is the per-domain document allocation computed by
// DocumentBudgetCalculator (spec §4.6.1).
type RetrievalBudget struct {
	Domain      domainlabel.Label
	AllocatedK  int
	IsPrimary   bool
}

// EvaluationVerdict is RetrievalEvaluator's rule-based verdict (spec §4.7).
type EvaluationVerdict string

const (
	VerdictPass      EvaluationVerdict = "PASS"
	VerdictNeedsRetry EvaluationVerdict = "NEEDS_RETRY"
	VerdictFail      EvaluationVerdict = "FAIL"
)

// EvaluationResult carries the rule-based retrieval-quality judgement.
type EvaluationResult struct {
	Verdict           EvaluationVerdict
	DocCountOK        bool
	KeywordMatchRatio float64
	AvgSimilarity     float64
}

// DomainResult is the outcome of retrieval (with retries applied) for one
// SubQuery.
type DomainResult struct {
	Domain     domainlabel.Label
	SubQuery   SubQuery
	Documents  []document.Document
	Scores     []float64
	Evaluation EvaluationResult
	NeedsRetry bool // set when L4 PARTIAL_ANSWER was reached
	RetryLevel int
}
