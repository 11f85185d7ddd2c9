package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/capability"
)

type fakeLLM struct {
	response string
}

func (f fakeLLM) Complete(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (capability.CompletionResult, error) {
	return capability.CompletionResult{Content: f.response}, nil
}
func (f fakeLLM) Stream(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (<-chan capability.StreamChunk, error) {
	return nil, nil
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

func TestAnswerEvaluator_PassAboveThreshold(t *testing.T) {
	llm := fakeLLM{response: `{"accuracy":18,"completeness":17,"relevance":18,"citation":16,"retrieval_quality":17,"feedback":"good"}`}
	e := NewAnswerEvaluator(llm, ScoreWeights{Accuracy: 1, Completeness: 1, Relevance: 1, Citation: 1, RetrievalQuality: 1})

	result, err := e.Evaluate(context.Background(), "질문", "답변", "문맥", 70)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, result.Verdict)
	assert.Greater(t, result.WeightedTotal, 70.0)
}

func TestAnswerEvaluator_FailBelowThreshold(t *testing.T) {
	llm := fakeLLM{response: `{"accuracy":5,"completeness":5,"relevance":5,"citation":5,"retrieval_quality":5}`}
	e := NewAnswerEvaluator(llm, ScoreWeights{Accuracy: 1, Completeness: 1, Relevance: 1, Citation: 1, RetrievalQuality: 1})

	result, err := e.Evaluate(context.Background(), "질문", "답변", "문맥", 70)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, result.Verdict)
}

func TestAnswerEvaluator_DomainWeightsSkewTotal(t *testing.T) {
	llm := fakeLLM{response: `{"accuracy":20,"completeness":0,"relevance":0,"citation":0,"retrieval_quality":0}`}
	e := NewAnswerEvaluator(llm, ScoreWeights{Accuracy: 5, Completeness: 1, Relevance: 1, Citation: 1, RetrievalQuality: 1})

	result, err := e.Evaluate(context.Background(), "질문", "답변", "문맥", 50)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, result.Verdict)
}

func TestComputeRAGAS_NoGroundTruthLeavesRecallZero(t *testing.T) {
	llm := fakeLLM{response: "0.8"}
	embedder := fakeEmbedder{vec: []float32{1, 0, 0}}

	metrics, err := ComputeRAGAS(context.Background(), llm, embedder, "질문", "답변", []string{"문맥1", "문맥2"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, metrics.ContextRecall)
	assert.InDelta(t, 0.8, metrics.Faithfulness, 1e-9)
	assert.Equal(t, 1.0, metrics.ContextPrecision)
}

func TestComputeRAGAS_WithGroundTruthFillsRecall(t *testing.T) {
	llm := fakeLLM{response: "0.6"}
	embedder := fakeEmbedder{vec: []float32{1, 0, 0}}

	metrics, err := ComputeRAGAS(context.Background(), llm, embedder, "질문", "답변", []string{"문맥1"}, "정답 근거")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, metrics.ContextRecall, 1e-9)
}

func TestParseFraction_ClampsToRange(t *testing.T) {
	assert.Equal(t, 1.0, parseFraction("2.5"))
	assert.Equal(t, 0.0, parseFraction("-1"))
	assert.Equal(t, 0.0, parseFraction("not a number"))
}
