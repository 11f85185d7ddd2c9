package store

import (
	"math"
	"sort"
	"sync"

	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/korean"
)

// bm25 default tuning constants, standard Okapi BM25 values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Index is an in-memory lexical index, one per collection, scored with
// Okapi BM25 over Korean-lemmatized tokens. No BM25/full-text-search
// library appears anywhere in the example pack, so this is a from-scratch
// implementation kept deliberately small, in the plain-function scoring
// style of straga-Mimir_lite's apoc/scoring package.
type BM25Index struct {
	mu sync.RWMutex

	docs     []document.Document
	postings []map[string]int // term -> term frequency, per doc
	docLens  []int
	df       map[string]int // document frequency per term
	totalLen int
}

// NewBM25Index returns an empty index.
func NewBM25Index() *BM25Index {
	return &BM25Index{df: make(map[string]int)}
}

// Add indexes a document's lemmatized content. Index building (like vector
// ingestion) is otherwise out of scope, but the hybrid searcher needs
// something to query, so this is exposed for warm-up and tests.
func (idx *BM25Index) Add(doc document.Document) {
	tokens := korean.Tokenize(doc.Content)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[korean.Lemmatize(t)]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = append(idx.docs, doc)
	idx.postings = append(idx.postings, tf)
	idx.docLens = append(idx.docLens, len(tokens))
	idx.totalLen += len(tokens)
	for term := range tf {
		idx.df[term]++
	}
}

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search scores every indexed document against query's lemmatized terms
// and returns the top k by BM25 score, descending.
func (idx *BM25Index) Search(query string, k int) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(idx.totalLen) / float64(n)
	lemmaSet := korean.Lemmas(query)
	if len(lemmaSet) == 0 {
		return nil
	}
	terms := make([]string, 0, len(lemmaSet))
	for t := range lemmaSet {
		terms = append(terms, t)
	}

	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		df := idx.df[t]
		idf[t] = math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	}

	scored := make([]Scored, 0, n)
	for i, tf := range idx.postings {
		var score float64
		docLen := float64(idx.docLens[i])
		for _, t := range terms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			denom := f + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
			score += idf[t] * (f * (bm25K1 + 1)) / denom
		}
		if score > 0 {
			scored = append(scored, Scored{Document: idx.docs[i], Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
