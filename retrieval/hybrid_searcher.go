package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/korean"
	"github.com/hanbit-ai/advisor-rag/store"
)

// defaultRRFK is the default k_rrf constant (spec §4.2 step 3).
const defaultRRFK = 30

// fetchMultiplier controls how many extra candidates each leg of the search
// fetches before fusion (spec §4.2 step 1).
const fetchMultiplier = 3

// BM25Warmer builds (or rebuilds) a collection's lexical index in the
// background when it's found missing (spec §4.2 failure semantics).
type BM25Warmer interface {
	Warm(collection document.Collection)
}

// HybridSearcher fuses BM25 lexical and vector-similarity search per spec
// §4.2, grounded on the dual-goroutine fan-out + RRF fusion shape of
// other_examples' kubestack-ai hybrid_search.go, adapted to the richer
// mode/rerank/MMR/article-boost contract this spec requires.
type HybridSearcher struct {
	vectorStore VectorSearcher
	bm25        BM25Provider
	embedder    capability.EmbeddingModel
	reranker    capability.Reranker
	rrfK        int
}

// VectorSearcher is the slice of store.VectorStore the searcher needs.
type VectorSearcher interface {
	SimilaritySearchWithScore(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]store.Scored, error)
}

// BM25Provider looks up (or lazily builds) the lexical index for a
// collection. Returns ok=false if the index isn't ready yet, in which case
// HybridSearcher warms it asynchronously and falls back to vector-only.
type BM25Provider interface {
	Index(collection document.Collection) (idx *store.BM25Index, ready bool)
	Warm(collection document.Collection)
}

// NewHybridSearcher builds a searcher. reranker may be nil (identity
// ordering, spec §4.1).
func NewHybridSearcher(vectorStore VectorSearcher, bm25 BM25Provider, embedder capability.EmbeddingModel, reranker capability.Reranker) *HybridSearcher {
	return &HybridSearcher{vectorStore: vectorStore, bm25: bm25, embedder: embedder, reranker: reranker, rrfK: defaultRRFK}
}

type rankedDoc struct {
	doc        document.Document
	vecRank    int // 1-based, 0 = absent
	bm25Rank   int
	vecScore   float64
	bm25Score  float64
}

// Search implements spec §4.2's full contract for one (query, collection,
// k, mode) call.
func (s *HybridSearcher) Search(ctx context.Context, query string, collection document.Collection, k int, mode SearchMode) ([]store.Scored, error) {
	fetchK := k * fetchMultiplier
	if fetchK < k {
		fetchK = k
	}

	var vecResults []store.Scored
	var vecErr error
	var bm25Results []store.Scored

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			vecErr = err
			return
		}
		vecResults, vecErr = s.vectorStore.SimilaritySearchWithScore(ctx, collection, vec, fetchK)
	}()

	idx, ready := s.bm25.Index(collection)
	if !ready {
		s.bm25.Warm(collection)
	} else {
		bm25Results = idx.Search(query, fetchK)
	}

	wg.Wait()
	if vecErr != nil && len(bm25Results) == 0 {
		return nil, fmt.Errorf("hybrid search: vector backend failed and no lexical results available: %w", vecErr)
	}

	normalizedBM25 := minMaxNormalize(bm25Results)

	merged := fuseRanked(vecResults, normalizedBM25)

	w := mode.rrfWeight()
	scored := make([]store.Scored, 0, len(merged))
	for _, rd := range merged {
		rrf := 0.0
		if rd.vecRank > 0 {
			rrf += w * 1.0/float64(rd.vecRank+s.rrfK)
		}
		if rd.bm25Rank > 0 {
			rrf += (1 - w) * 1.0/float64(rd.bm25Rank+s.rrfK)
		}
		scored = append(scored, store.Scored{Document: rd.doc, Score: rrf})
	}

	if mode == ModeExactPlusVector {
		boostExactArticle(scored, query)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	var selected []store.Scored
	if mode == ModeMMRDiverse {
		selected = s.mmrSelect(ctx, query, scored, k)
	} else {
		candidates := scored
		if len(candidates) > fetchK {
			candidates = candidates[:fetchK]
		}
		if s.reranker != nil {
			selected = s.rerank(ctx, query, candidates, k)
		} else {
			if len(candidates) > k {
				candidates = candidates[:k]
			}
			selected = candidates
		}
	}

	return dedupByContentHash(selected, k), nil
}

func (s *HybridSearcher) rerank(ctx context.Context, query string, candidates []store.Scored, k int) []store.Scored {
	docs := make([]capability.ScoredDocument, len(candidates))
	for i, c := range candidates {
		docs[i] = capability.ScoredDocument{Content: c.Document.Content, Index: i, Score: c.Score}
	}
	reranked, err := s.reranker.Rerank(ctx, query, docs, k)
	if err != nil {
		// A reranker error is skipped (not logged): keep the fused order, cut to k.
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		return candidates
	}
	out := make([]store.Scored, len(reranked))
	for i, r := range reranked {
		out[i] = store.Scored{Document: candidates[r.Index].Document, Score: r.Score}
	}
	return out
}

// mmrSelect implements spec §4.2 step 5: greedy maximal-marginal-relevance
// selection over the fused candidate pool.
func (s *HybridSearcher) mmrSelect(ctx context.Context, query string, candidates []store.Scored, k int) []store.Scored {
	const lambda = 0.7
	if len(candidates) == 0 {
		return nil
	}
	fetchK := k * fetchMultiplier
	if len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}

	embeddings := make([][]float32, len(candidates))
	for i, c := range candidates {
		vec, err := s.embedder.Embed(ctx, c.Document.Content)
		if err != nil {
			vec = nil
		}
		embeddings[i] = vec
	}

	selected := make([]int, 0, k)
	remaining := make(map[int]bool, len(candidates))
	for i := range candidates {
		remaining[i] = true
	}

	for len(selected) < k && len(remaining) > 0 {
		bestIdx, bestScore := -1, math.Inf(-1)
		for i := range remaining {
			maxSim := 0.0
			for _, j := range selected {
				sim := cosine(embeddings[i], embeddings[j])
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*candidates[i].Score - (1-lambda)*maxSim
			if mmr > bestScore {
				bestScore, bestIdx = mmr, i
			}
		}
		selected = append(selected, bestIdx)
		delete(remaining, bestIdx)
	}

	out := make([]store.Scored, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func minMaxNormalize(scored []store.Scored) []store.Scored {
	if len(scored) == 0 {
		return scored
	}
	min, max := scored[0].Score, scored[0].Score
	for _, s := range scored {
		if s.Score < min {
			min = s.Score
		}
		if s.Score > max {
			max = s.Score
		}
	}
	out := make([]store.Scored, len(scored))
	rang := max - min
	for i, s := range scored {
		norm := 1.0
		if rang > 0 {
			norm = (s.Score - min) / rang
		}
		out[i] = store.Scored{Document: s.Document, Score: norm}
	}
	return out
}

func fuseRanked(vec, bm25 []store.Scored) []rankedDoc {
	byHash := make(map[string]*rankedDoc)
	var order []string

	for i, v := range vec {
		h := v.Document.Hash()
		rd, ok := byHash[h]
		if !ok {
			rd = &rankedDoc{doc: v.Document}
			byHash[h] = rd
			order = append(order, h)
		}
		rd.vecRank = i + 1
		rd.vecScore = v.Score
	}
	for i, b := range bm25 {
		h := b.Document.Hash()
		rd, ok := byHash[h]
		if !ok {
			rd = &rankedDoc{doc: b.Document}
			byHash[h] = rd
			order = append(order, h)
		}
		rd.bm25Rank = i + 1
		rd.bm25Score = b.Score
	}

	out := make([]rankedDoc, 0, len(order))
	for _, h := range order {
		out = append(out, *byHash[h])
	}
	return out
}

func boostExactArticle(scored []store.Scored, query string) {
	citations := korean.ExtractArticleCitations(query)
	if len(citations) == 0 {
		return
	}
	for i := range scored {
		for _, c := range citations {
			if korean.CitesArticle(scored[i].Document.Content) &&
				containsArticle(scored[i].Document.Content, c) {
				scored[i].Score += 0.5
				break
			}
		}
	}
}

func containsArticle(content, citation string) bool {
	for _, c := range korean.ExtractArticleCitations(content) {
		if c == citation {
			return true
		}
	}
	return false
}

// dedupByContentHash implements the output invariant of spec §4.2: output
// length ≤ k, deduplicated by hash(content[:500]).
func dedupByContentHash(scored []store.Scored, k int) []store.Scored {
	seen := make(map[string]bool, len(scored))
	out := make([]store.Scored, 0, k)
	for _, s := range scored {
		h := s.Document.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, s)
		if k > 0 && len(out) >= k {
			break
		}
	}
	return out
}
