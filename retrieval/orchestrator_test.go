package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/store"
)

func newTestOrchestrator(t *testing.T, byCollection map[document.Collection][]store.Scored) *Orchestrator {
	t.Helper()
	vecStore := fakeVectorStore{byCollection: byCollection}
	bm25 := fakeBM25Provider{indices: map[document.Collection]*store.BM25Index{}}
	for coll := range byCollection {
		idx := store.NewBM25Index()
		for _, s := range byCollection[coll] {
			idx.Add(s.Document)
		}
		bm25.indices[coll] = idx
	}

	embedder := fakeEmbedder{dim: 8}
	searcher := NewHybridSearcher(vecStore, bm25, embedder, identityReranker{})
	expander, err := NewMultiQueryExpander(fakeLLM{response: "대체 질문"}, 16, time.Minute)
	require.NoError(t, err)

	cfg := OrchestratorConfig{
		RetrievalK:              5,
		MaxRetrievalDocs:        20,
		MinDomainK:              2,
		DynamicKMin:             3,
		DynamicKMax:             8,
		MaxRetryLevel:           2,
		MultiQueryCount:         1,
		EnableLegalSupplement:   true,
		LegalSupplementK:        2,
		EnableCrossDomainRerank: true,
		CrossDomainRerankRatio:  0.7,
		MinDocEmbeddingSim:      0, // disabled for deterministic fakes
		MinRetrievalDocCount:    1,
		MinKeywordMatchRatio:    0.0,
		MinAvgSimilarityScore:   0.0,
	}
	return NewOrchestrator(cfg, searcher, expander, embedder, identityReranker{})
}

func TestOrchestrator_SingleDomainRun(t *testing.T) {
	coll := document.CollectionForDomain(domainlabel.HRLabor)
	o := newTestOrchestrator(t, map[document.Collection][]store.Scored{
		coll: {{Document: makeDoc("해고 예고 수당 규정 안내"), Score: 0.9}},
	})

	result, err := o.Run(context.Background(), []SubQuery{{Domain: domainlabel.HRLabor, Query: "해고 수당"}}, "해고 수당")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Documents)
	assert.Equal(t, domainlabel.HRLabor, result.DomainOf[0])
}

func TestOrchestrator_MultiDomainMergeTagsDomainMetadata(t *testing.T) {
	hrColl := document.CollectionForDomain(domainlabel.HRLabor)
	taxColl := document.CollectionForDomain(domainlabel.FinanceTax)
	o := newTestOrchestrator(t, map[document.Collection][]store.Scored{
		hrColl:  {{Document: makeDoc("퇴직금 계산 방법 안내"), Score: 0.8}},
		taxColl: {{Document: makeDoc("부가가치세 신고 기한 안내"), Score: 0.7}},
	})

	result, err := o.Run(context.Background(), []SubQuery{
		{Domain: domainlabel.HRLabor, Query: "퇴직금 계산"},
		{Domain: domainlabel.FinanceTax, Query: "부가가치세 신고"},
	}, "퇴직금 계산하고 부가가치세 신고는 어떻게 하나요")
	require.NoError(t, err)
	require.NotEmpty(t, result.Documents)
	for _, doc := range result.Documents {
		assert.NotEmpty(t, doc.StringMeta(document.MetaDomain))
	}
}

func TestOrchestrator_LegalSupplementSkippedWhenLawAlreadyClassified(t *testing.T) {
	lawColl := document.CollectionForDomain(domainlabel.LawCommon)
	o := newTestOrchestrator(t, map[document.Collection][]store.Scored{
		lawColl: {{Document: makeDoc("법원 소송 절차 안내"), Score: 0.9}},
	})

	result, err := o.Run(context.Background(), []SubQuery{{Domain: domainlabel.LawCommon, Query: "소송 절차"}}, "소송 절차가 궁금합니다")
	require.NoError(t, err)
	for _, r := range result.PerDomain {
		assert.Equal(t, domainlabel.LawCommon, r.Domain)
	}
	assert.Len(t, result.PerDomain, 1)
}
