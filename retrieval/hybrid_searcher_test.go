package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/store"
)

func TestHybridSearcher_FusesAndDedupes(t *testing.T) {
	coll := document.Collection("hr_labor")
	dupContent := "해고 예고 수당 규정 설명"

	vecStore := fakeVectorStore{byCollection: map[document.Collection][]store.Scored{
		coll: {
			{Document: makeDoc(dupContent), Score: 0.9},
			{Document: makeDoc("연차 휴가 계산법"), Score: 0.5},
		},
	}}

	bm25 := store.NewBM25Index()
	bm25.Add(makeDoc(dupContent))
	bm25.Add(makeDoc("최저임금 인상 안내"))
	provider := fakeBM25Provider{indices: map[document.Collection]*store.BM25Index{coll: bm25}}

	searcher := NewHybridSearcher(vecStore, provider, fakeEmbedder{dim: 8}, identityReranker{})

	results, err := searcher.Search(context.Background(), "해고 예고 수당", coll, 3, ModeHybrid)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)

	seen := make(map[string]bool)
	for _, r := range results {
		h := r.Document.Hash()
		assert.False(t, seen[h], "dedup invariant violated")
		seen[h] = true
	}
}

func TestHybridSearcher_WarmsMissingBM25AndFallsBackToVector(t *testing.T) {
	coll := document.Collection("finance_tax")
	vecStore := fakeVectorStore{byCollection: map[document.Collection][]store.Scored{
		coll: {{Document: makeDoc("부가가치세 신고 기한"), Score: 0.8}},
	}}
	provider := fakeBM25Provider{indices: map[document.Collection]*store.BM25Index{}}

	searcher := NewHybridSearcher(vecStore, provider, fakeEmbedder{dim: 8}, nil)
	results, err := searcher.Search(context.Background(), "부가가치세 신고", coll, 2, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "부가가치세 신고 기한", results[0].Document.Content)
}

func TestMinMaxNormalize(t *testing.T) {
	in := []store.Scored{{Score: 1}, {Score: 3}, {Score: 5}}
	out := minMaxNormalize(in)
	assert.Equal(t, 0.0, out[0].Score)
	assert.Equal(t, 1.0, out[2].Score)
}

func TestMinMaxNormalize_SingleElement(t *testing.T) {
	out := minMaxNormalize([]store.Scored{{Score: 0.5}})
	assert.Equal(t, 1.0, out[0].Score)
}
