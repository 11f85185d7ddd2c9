package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
)

type fakeKeywordStore struct{}

func (fakeKeywordStore) KeywordSet(ctx context.Context, domain domainlabel.Label) (domainlabel.KeywordSet, error) {
	return domainlabel.DefaultKeywordSets[domain], nil
}

type fakeCentroidStore struct {
	byDomain map[domainlabel.Label][]float32
}

func (f fakeCentroidStore) Centroid(ctx context.Context, domain domainlabel.Label) ([]float32, error) {
	return f.byDomain[domain], nil
}

type fakeEmbedder struct{ vec []float32 }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return f.vec, nil }
func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f fakeEmbedder) Dimension() int { return len(f.vec) }

type fakeLLM struct {
	response string
	err      error
}

func (f fakeLLM) Complete(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (capability.CompletionResult, error) {
	if f.err != nil {
		return capability.CompletionResult{}, f.err
	}
	return capability.CompletionResult{Content: f.response}, nil
}
func (f fakeLLM) Stream(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (<-chan capability.StreamChunk, error) {
	return nil, nil
}

func TestDomainClassifier_LLMModeParsesJSON(t *testing.T) {
	cfg := Config{EnableLLM: true}
	c := NewDomainClassifier(cfg, fakeLLM{response: `{"domains":[{"domain":"hr_labor","confidence":0.9}]}`}, fakeEmbedder{}, fakeKeywordStore{}, fakeCentroidStore{})
	result := c.Classify(context.Background(), "직원을 해고하려면 어떻게 해야 하나요")
	assert.True(t, result.IsRelevant)
	assert.Equal(t, []domainlabel.Label{domainlabel.HRLabor}, result.Domains)
}

func TestDomainClassifier_LLMModeNotRelevant(t *testing.T) {
	cfg := Config{EnableLLM: true}
	c := NewDomainClassifier(cfg, fakeLLM{response: `{"domains":[]}`}, fakeEmbedder{}, fakeKeywordStore{}, fakeCentroidStore{})
	result := c.Classify(context.Background(), "오늘 날씨 어때요")
	assert.False(t, result.IsRelevant)
}

func TestDomainClassifier_LLMRetryFailedAfterTwoFailures(t *testing.T) {
	cfg := Config{EnableLLM: true}
	c := NewDomainClassifier(cfg, fakeLLM{err: assertError{}}, fakeEmbedder{}, fakeKeywordStore{}, fakeCentroidStore{})
	result := c.Classify(context.Background(), "해고 관련 질문")
	assert.True(t, result.LLMRetryFailed)
	assert.True(t, result.IsRelevant)
}

type assertError struct{}

func (assertError) Error() string { return "llm failure" }

func TestDomainClassifier_HeuristicModeKeywordBoost(t *testing.T) {
	cfg := Config{
		EnableLLM:                      false,
		DomainClassificationThreshold:  0.6,
		MultiDomainGapThreshold:        0.1,
		KeywordHitRatioBoostThreshold:  0.3,
		KeywordBoostDelta:              0.2,
	}
	centroids := fakeCentroidStore{byDomain: map[domainlabel.Label][]float32{
		domainlabel.HRLabor: {1, 0, 0},
	}}
	c := NewDomainClassifier(cfg, fakeLLM{}, fakeEmbedder{vec: []float32{1, 0, 0}}, fakeKeywordStore{}, centroids)
	result := c.Classify(context.Background(), "직원 해고 절차가 궁금합니다")
	assert.True(t, result.IsRelevant)
	assert.Contains(t, result.Domains, domainlabel.HRLabor)
}

func TestDomainClassifier_HeuristicModeNotRelevantWhenBelowThreshold(t *testing.T) {
	cfg := Config{
		EnableLLM:                     false,
		DomainClassificationThreshold: 0.9,
		KeywordHitRatioBoostThreshold: 0.9,
	}
	c := NewDomainClassifier(cfg, fakeLLM{}, fakeEmbedder{vec: []float32{0, 0, 1}}, fakeKeywordStore{}, fakeCentroidStore{byDomain: map[domainlabel.Label][]float32{}})
	result := c.Classify(context.Background(), "오늘 점심 뭐 먹지")
	assert.False(t, result.IsRelevant)
}
