package retrieval

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/korean"
	"github.com/hanbit-ai/advisor-rag/store"
)

// retryLevel identifies a step in the graduated-retry ladder (spec §4.6.3).
type retryLevel int

const (
	retryNone retryLevel = iota
	retryRelaxParams
	retryMultiQueryStrong
	retryCrossDomain
	retryPartialAnswer
)

// OrchestratorConfig collects the budget/retry knobs the orchestrator needs
// from config.Config, kept narrow so retrieval doesn't import config
// directly (mirrors the teacher's narrow per-package config structs).
type OrchestratorConfig struct {
	RetrievalK              int
	MaxRetrievalDocs        int
	MinDomainK              int
	DynamicKMin             int
	DynamicKMax             int
	MaxRetryLevel           int
	MultiQueryCount         int
	EnableLegalSupplement   bool
	LegalSupplementK        int
	EnableCrossDomainRerank bool
	CrossDomainRerankRatio  float64
	MinDocEmbeddingSim      float64
	MinRetrievalDocCount    int
	MinKeywordMatchRatio    float64
	MinAvgSimilarityScore   float64
}

// Orchestrator implements RetrievalOrchestrator (spec §4.6): per-domain
// retrieval under budget, graduated retry, legal supplementation, and
// cross-domain merge/rerank.
type Orchestrator struct {
	cfg       OrchestratorConfig
	searcher  *HybridSearcher
	expander  *MultiQueryExpander
	evaluator *RetrievalEvaluator
	selector  *SearchStrategySelector
	budgeter  *DocumentBudgetCalculator
	embedder  capability.EmbeddingModel
	reranker  capability.Reranker
}

// NewOrchestrator wires the retrieval subsystem's components together.
func NewOrchestrator(cfg OrchestratorConfig, searcher *HybridSearcher, expander *MultiQueryExpander, embedder capability.EmbeddingModel, reranker capability.Reranker) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		searcher:  searcher,
		expander:  expander,
		evaluator: NewRetrievalEvaluator(cfg.MinRetrievalDocCount, cfg.MinKeywordMatchRatio, cfg.MinAvgSimilarityScore),
		selector:  NewSearchStrategySelector(cfg.DynamicKMin, cfg.DynamicKMax),
		budgeter:  NewDocumentBudgetCalculator(cfg.RetrievalK, cfg.MaxRetrievalDocs, cfg.MinDomainK),
		embedder:  embedder,
		reranker:  reranker,
	}
}

// MergedResult is the orchestrator's final output, ready for generation.
type MergedResult struct {
	Documents  []document.Document
	DomainOf   []domainlabel.Label // parallel to Documents
	PerDomain  []DomainResult
	NeedsRetry bool
}

// Run executes the full §4.6 contract for a decomposed query.
func (o *Orchestrator) Run(ctx context.Context, subQueries []SubQuery, originalQuery string) (MergedResult, error) {
	domains := make([]domainlabel.Label, len(subQueries))
	modes := make([]SearchMode, len(subQueries))
	recommendedK := make([]int, len(subQueries))
	for i, sq := range subQueries {
		domains[i] = sq.Domain
		modes[i], recommendedK[i] = o.selector.Select(sq.Query)
	}
	budgets := o.budgeter.Allocate(domains, recommendedK)
	budgetByDomain := make(map[domainlabel.Label]int, len(budgets))
	for _, b := range budgets {
		budgetByDomain[b.Domain] = b.AllocatedK
	}

	results := make([]DomainResult, len(subQueries))
	g, gctx := errgroup.WithContext(ctx)
	for i := range subQueries {
		i := i
		g.Go(func() error {
			results[i] = o.retrieveDomainWithRetry(gctx, subQueries[i], modes[i], budgetByDomain[subQueries[i].Domain])
			return nil
		})
	}
	_ = g.Wait() // per-domain errors are captured in each DomainResult, not propagated

	if o.cfg.EnableLegalSupplement {
		o.applyLegalSupplement(ctx, originalQuery, domains, &results)
	}

	return o.mergeAndRerank(ctx, results)
}

func (o *Orchestrator) retrieveDomainWithRetry(ctx context.Context, sq SubQuery, mode SearchMode, k int) DomainResult {
	minKeywordRatio := o.cfg.MinKeywordMatchRatio
	minSim := o.cfg.MinAvgSimilarityScore
	var cachedVariants []string

	var result DomainResult
	for level := retryNone; ; level++ {
		exhausted := int(level) > o.cfg.MaxRetryLevel || level == retryPartialAnswer

		switch level {
		case retryRelaxParams:
			k += 3
			minKeywordRatio = 0.15
			minSim = 0.35
		case retryCrossDomain:
			adj := domainlabel.AdjacentDomains[sq.Domain]
			for _, d := range adj {
				extra := o.retrieveOnce(ctx, SubQuery{Domain: d, Query: sq.Query}, mode, k, cachedVariants)
				result.Documents = append(result.Documents, extra.Documents...)
				result.Scores = append(result.Scores, extra.Scores...)
			}
		case retryPartialAnswer:
			result.NeedsRetry = true
			result.RetryLevel = int(level)
			eval := NewRetrievalEvaluator(o.cfg.MinRetrievalDocCount, minKeywordRatio, minSim)
			result.Evaluation = eval.Evaluate(sq.Query, result.Documents, result.Scores, true)
			result.Domain = sq.Domain
			result.SubQuery = sq
			return result
		}

		variants := o.expander.Expand(ctx, sq.Query, o.cfg.MultiQueryCount)
		if level == retryMultiQueryStrong && len(cachedVariants) > 0 {
			variants = cachedVariants
		}
		cachedVariants = variants

		attempt := o.retrieveOnce(ctx, sq, mode, k, variants)
		if level == retryCrossDomain {
			attempt.Documents = append(attempt.Documents, result.Documents...)
			attempt.Scores = append(attempt.Scores, result.Scores...)
		}
		result = attempt
		result.Domain = sq.Domain
		result.SubQuery = sq
		result.RetryLevel = int(level)

		eval := NewRetrievalEvaluator(o.cfg.MinRetrievalDocCount, minKeywordRatio, minSim)
		result.Evaluation = eval.Evaluate(sq.Query, result.Documents, result.Scores, exhausted)

		if result.Evaluation.Verdict == VerdictPass || exhausted {
			return result
		}
	}
}

// retrieveOnce runs §4.6.2's per-domain retrieval body: expand (already
// done by caller), fan out over variants, union by content hash keeping the
// best score, then apply the embedding-similarity floor.
func (o *Orchestrator) retrieveOnce(ctx context.Context, sq SubQuery, mode SearchMode, k int, variants []string) DomainResult {
	collection := document.CollectionForDomain(sq.Domain)
	byHash := make(map[string]store.Scored)

	for _, variant := range variants {
		scored, err := o.searcher.Search(ctx, variant, collection, k, mode)
		if err != nil {
			continue
		}
		for _, s := range scored {
			h := s.Document.Hash()
			if existing, ok := byHash[h]; !ok || s.Score > existing.Score {
				byHash[h] = s
			}
		}
	}

	queryVec, embErr := o.embedder.Embed(ctx, sq.Query)

	docs := make([]document.Document, 0, len(byHash))
	scores := make([]float64, 0, len(byHash))
	for _, s := range byHash {
		if embErr == nil && o.cfg.MinDocEmbeddingSim > 0 {
			docVec, err := o.embedder.Embed(ctx, s.Document.Content)
			if err == nil && cosine(queryVec, docVec) < o.cfg.MinDocEmbeddingSim {
				continue
			}
		}
		docs = append(docs, s.Document)
		scores = append(scores, s.Score)
	}

	if len(docs) > k && k > 0 {
		idx := topScoreIndices(scores, k)
		trimmedDocs := make([]document.Document, len(idx))
		trimmedScores := make([]float64, len(idx))
		for i, j := range idx {
			trimmedDocs[i] = docs[j]
			trimmedScores[i] = scores[j]
		}
		docs, scores = trimmedDocs, trimmedScores
	}

	return DomainResult{Documents: docs, Scores: scores}
}

func topScoreIndices(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return scores[idx[i]] > scores[idx[j]] })
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}

// applyLegalSupplement implements spec §4.6.4.
func (o *Orchestrator) applyLegalSupplement(ctx context.Context, originalQuery string, domains []domainlabel.Label, results *[]DomainResult) {
	if !korean.MatchesLegalKeywords(originalQuery) {
		return
	}
	for _, d := range domains {
		if d == domainlabel.LawCommon {
			return // already classified, spec §4.6.4 skip condition
		}
	}

	seen := make(map[string]bool)
	for _, r := range *results {
		for _, d := range r.Documents {
			seen[d.Hash()] = true
		}
	}

	legal := o.retrieveOnce(ctx, SubQuery{Domain: domainlabel.LawCommon, Query: originalQuery}, ModeHybrid, o.cfg.LegalSupplementK, []string{originalQuery})
	var docs []document.Document
	var scores []float64
	for i, d := range legal.Documents {
		if seen[d.Hash()] {
			continue
		}
		docs = append(docs, d)
		scores = append(scores, legal.Scores[i])
	}
	if len(docs) == 0 {
		return
	}
	*results = append(*results, DomainResult{Domain: domainlabel.LawCommon, Documents: docs, Scores: scores})
}

// mergeAndRerank implements spec §4.6.5.
func (o *Orchestrator) mergeAndRerank(ctx context.Context, results []DomainResult) (MergedResult, error) {
	var pool []mergedDoc
	var anyNeedsRetry bool
	for _, r := range results {
		anyNeedsRetry = anyNeedsRetry || r.NeedsRetry
		normalized := minMaxNormalizeFloat(r.Scores)
		for i, d := range r.Documents {
			if d.Metadata == nil {
				d.Metadata = map[string]any{}
			}
			d.Metadata[document.MetaDomain] = string(r.Domain)
			pool = append(pool, mergedDoc{doc: d, domain: r.Domain, score: normalized[i]})
		}
	}

	seen := make(map[string]bool)
	deduped := pool[:0]
	for _, m := range pool {
		h := m.doc.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		deduped = append(deduped, m)
	}
	pool = deduped

	primary := domainlabel.Label("")
	if len(results) > 0 {
		primary = results[0].Domain
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		iPrimary, jPrimary := pool[i].domain == primary, pool[j].domain == primary
		if iPrimary != jPrimary {
			return iPrimary
		}
		return pool[i].doc.Hash() < pool[j].doc.Hash()
	})

	multiDomain := len(results) > 1
	if multiDomain && o.cfg.EnableCrossDomainRerank && o.reranker != nil && len(pool) > 0 {
		ratio := o.cfg.CrossDomainRerankRatio
		pool = o.rerankPool(ctx, pool, ratio)

		docs := make([]document.Document, len(pool))
		scores := make([]float64, len(pool))
		for i, m := range pool {
			docs[i] = m.doc
			scores[i] = m.score
		}
		verdict := o.evaluator.Evaluate("", docs, scores, false).Verdict
		if verdict == VerdictFail || verdict == VerdictNeedsRetry {
			pool = o.rerankPool(ctx, pool, math.Min(1.0, ratio+0.1))
		}
	}

	out := MergedResult{PerDomain: results, NeedsRetry: anyNeedsRetry}
	for _, m := range pool {
		out.Documents = append(out.Documents, m.doc)
		out.DomainOf = append(out.DomainOf, m.domain)
	}
	return out, nil
}

// mergedDoc is one document in the cross-domain merge pool (spec §4.6.5).
type mergedDoc struct {
	doc        document.Document
	domain     domainlabel.Label
	score      float64
	needsRetry bool
}

// rerankPool reranks the merge pool with the shared Reranker and keeps the
// top ceil(len(pool) * ratio) (spec §4.6.5 step 4).
func (o *Orchestrator) rerankPool(ctx context.Context, pool []mergedDoc, ratio float64) []mergedDoc {
	docs := make([]capability.ScoredDocument, len(pool))
	for i, m := range pool {
		docs[i] = capability.ScoredDocument{Content: m.doc.Content, Index: i, Score: m.score}
	}
	keep := int(math.Ceil(float64(len(pool)) * ratio))
	reranked, err := o.reranker.Rerank(ctx, "", docs, keep)
	if err != nil {
		if len(pool) > keep {
			pool = pool[:keep]
		}
		return pool
	}
	out := make([]mergedDoc, len(reranked))
	for i, r := range reranked {
		out[i] = pool[r.Index]
		out[i].score = r.Score
	}
	return out
}

func minMaxNormalizeFloat(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	rang := max - min
	for i, s := range scores {
		if rang == 0 {
			out[i] = 1.0
			continue
		}
		out[i] = (s - min) / rang
	}
	return out
}
