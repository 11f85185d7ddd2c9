package pipeline

import (
	"context"
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/cache"
	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/classify"
	"github.com/hanbit-ai/advisor-rag/config"
	"github.com/hanbit-ai/advisor-rag/decompose"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/evaluation"
	"github.com/hanbit-ai/advisor-rag/generation"
	"github.com/hanbit-ai/advisor-rag/retrieval"
	"github.com/hanbit-ai/advisor-rag/store"
)

// scriptedLLM routes Complete calls by a marker substring in the system
// prompt, so one fake can stand in for the classifier, decomposer,
// generator, and evaluator LLM dependencies in an end-to-end test.
type scriptedLLM struct {
	byMarker map[string]string
}

func (f *scriptedLLM) Complete(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (capability.CompletionResult, error) {
	for _, m := range messages {
		if m.Role != "system" {
			continue
		}
		for marker, resp := range f.byMarker {
			if strings.Contains(m.Content, marker) {
				return capability.CompletionResult{Content: resp}, nil
			}
		}
	}
	return capability.CompletionResult{Content: ""}, nil
}

func (f *scriptedLLM) Stream(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (<-chan capability.StreamChunk, error) {
	return nil, nil
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (f fakeEmbedder) Dimension() int { return f.dim }

type fakeVectorStore struct {
	byCollection map[document.Collection][]store.Scored
}

func (f fakeVectorStore) SimilaritySearchWithScore(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]store.Scored, error) {
	docs := f.byCollection[collection]
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

type identityReranker struct{}

func (identityReranker) Rerank(ctx context.Context, query string, docs []capability.ScoredDocument, topK int) ([]capability.ScoredDocument, error) {
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

func buildTestRouter(t *testing.T, llm *scriptedLLM) *Router {
	t.Helper()
	cfg := config.Default()
	cfg.RequestDeadline = 5 * time.Second
	cfg.EnableGraduatedRetry = false
	cfg.EnableLegalSupplement = false
	cfg.EnableMultiQuery = false

	embedder := fakeEmbedder{dim: 16}
	hrDoc := document.Document{Content: "해고 예고 수당은 30일분의 통상임금입니다", Metadata: map[string]any{document.MetaDomain: string(domainlabel.HRLabor)}}
	bm25 := store.NewBM25Index()
	bm25.Add(hrDoc)

	vecStore := fakeVectorStore{byCollection: map[document.Collection][]store.Scored{
		document.CollectionForDomain(domainlabel.HRLabor): {{Document: hrDoc, Score: 0.9}},
	}}
	bm25Provider := testBM25Provider{indices: map[document.Collection]*store.BM25Index{
		document.CollectionForDomain(domainlabel.HRLabor): bm25,
	}}

	searcher := retrieval.NewHybridSearcher(vecStore, bm25Provider, embedder, identityReranker{})
	expander, err := retrieval.NewMultiQueryExpander(llm, 16, time.Minute)
	require.NoError(t, err)

	orchestrator := retrieval.NewOrchestrator(retrieval.OrchestratorConfig{
		RetrievalK:            cfg.RetrievalK,
		MaxRetrievalDocs:      cfg.MaxRetrievalDocs,
		MinDomainK:            cfg.MinDomainK,
		DynamicKMin:           cfg.DynamicKMin,
		DynamicKMax:           cfg.DynamicKMax,
		MaxRetryLevel:         cfg.MaxRetryLevel,
		MultiQueryCount:       cfg.MultiQueryCount,
		EnableLegalSupplement: cfg.EnableLegalSupplement,
		LegalSupplementK:      cfg.LegalSupplementK,
		MinDocEmbeddingSim:    cfg.MinDocEmbeddingSimilarity,
		MinRetrievalDocCount:  cfg.MinRetrievalDocCount,
		MinKeywordMatchRatio:  cfg.MinKeywordMatchRatio,
		MinAvgSimilarityScore: cfg.MinAvgSimilarityScore,
	}, searcher, expander, embedder, identityReranker{})

	classifier := classify.NewDomainClassifier(classify.Config{
		EnableLLM:                     true,
		DomainClassificationThreshold: cfg.DomainClassificationThreshold,
		MultiDomainGapThreshold:       cfg.MultiDomainGapThreshold,
		KeywordHitRatioBoostThreshold: cfg.KeywordHitRatioBoostThreshold,
		KeywordBoostDelta:             cfg.KeywordBoostDelta,
	}, llm, embedder, nil, nil)

	decomposer, err := decompose.NewQuestionDecomposer(llm, 16)
	require.NoError(t, err)

	generator := generation.NewResponseGenerator(generation.Config{
		FormatContextLength: cfg.FormatContextLength,
		GenerationMaxTokens: cfg.GenerationMaxTokens,
		StreamHardTimeout:   cfg.StreamHardTimeout,
		DomainTemperature:   cfg.DomainTemperature,
	}, llm, nil)

	evaluator := evaluation.NewAnswerEvaluator(llm, evaluation.ScoreWeights{
		Accuracy: cfg.EvaluationWeights.Accuracy, Completeness: cfg.EvaluationWeights.Completeness,
		Relevance: cfg.EvaluationWeights.Relevance, Citation: cfg.EvaluationWeights.Citation,
		RetrievalQuality: cfg.EvaluationWeights.RetrievalQuality,
	})

	respCache, err := cache.NewResponseCache(10)
	require.NoError(t, err)

	return NewRouter(cfg, llm, embedder, classifier, decomposer, orchestrator, generator, evaluator, respCache)
}

type testBM25Provider struct {
	indices map[document.Collection]*store.BM25Index
}

func (p testBM25Provider) Index(collection document.Collection) (*store.BM25Index, bool) {
	idx, ok := p.indices[collection]
	return idx, ok
}

func (p testBM25Provider) Warm(collection document.Collection) {}

func TestRouter_HappyPathProducesPassingAnswer(t *testing.T) {
	llm := &scriptedLLM{byMarker: map[string]string{
		"classify":  `{"domains":[{"domain":"hr_labor","confidence":0.9}]}`,
		"전문 상담사":    "해고 예고 수당은 30일분의 통상임금입니다 [1]",
		"evaluator": `{"accuracy":18,"completeness":17,"relevance":18,"citation":16,"retrieval_quality":17,"feedback":"ok"}`,
	}}
	router := buildTestRouter(t, llm)

	state, err := router.Run(context.Background(), "해고 예고 수당은 얼마인가요", nil, "user-1")
	require.NoError(t, err)
	assert.False(t, state.Rejected)
	assert.Equal(t, []domainlabel.Label{domainlabel.HRLabor}, state.Classification.Domains)
	assert.NotEmpty(t, state.Answer.Text)
	assert.Equal(t, evaluation.VerdictPass, state.Evaluation.Verdict)
	assert.Contains(t, state.stepNames(), stepClassify)
	assert.Contains(t, state.stepNames(), stepGenerate)
}

func TestRouter_RejectsOutOfScopeQuery(t *testing.T) {
	llm := &scriptedLLM{byMarker: map[string]string{
		"classify": `{"domains":[]}`,
	}}
	router := buildTestRouter(t, llm)

	state, err := router.Run(context.Background(), "오늘 날씨 어때요", nil, "user-2")
	require.NoError(t, err)
	assert.True(t, state.Rejected)
	assert.Contains(t, state.Answer.Text, "창업")
}

func TestRouter_CacheHitSkipsRegeneration(t *testing.T) {
	llm := &scriptedLLM{byMarker: map[string]string{
		"classify":  `{"domains":[{"domain":"hr_labor","confidence":0.9}]}`,
		"evaluator": `{"accuracy":18,"completeness":17,"relevance":18,"citation":16,"retrieval_quality":17}`,
	}}
	router := buildTestRouter(t, llm)
	ctx := context.Background()

	first, err := router.Run(ctx, "해고 예고 수당은 얼마인가요", nil, "user-3")
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := router.Run(ctx, "해고 예고 수당은 얼마인가요", nil, "user-3")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer.Text, second.Answer.Text)
}
