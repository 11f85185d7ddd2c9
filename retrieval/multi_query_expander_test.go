package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/capability"
)

type failingLLM struct{}

func (failingLLM) Complete(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (capability.CompletionResult, error) {
	return capability.CompletionResult{}, assert.AnError
}
func (failingLLM) Stream(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (<-chan capability.StreamChunk, error) {
	return nil, assert.AnError
}

func TestMultiQueryExpander_ExpandsAndIncludesOriginal(t *testing.T) {
	e, err := NewMultiQueryExpander(fakeLLM{response: "대안 질문 1\n대안 질문 2"}, 16, time.Minute)
	require.NoError(t, err)

	out := e.Expand(context.Background(), "해고 수당 계산법", 2)
	require.Len(t, out, 3)
	assert.Equal(t, "해고 수당 계산법", out[0])
}

func TestMultiQueryExpander_FallsBackOnLLMFailure(t *testing.T) {
	e, err := NewMultiQueryExpander(failingLLM{}, 16, time.Minute)
	require.NoError(t, err)

	out := e.Expand(context.Background(), "부가가치세 신고", 2)
	assert.Equal(t, []string{"부가가치세 신고"}, out)
}

func TestMultiQueryExpander_CachesWithinTTL(t *testing.T) {
	callCount := 0
	llm := countingLLM{response: "변형1\n변형2", count: &callCount}
	e, err := NewMultiQueryExpander(llm, 16, time.Minute)
	require.NoError(t, err)

	e.Expand(context.Background(), "연차 휴가", 2)
	e.Expand(context.Background(), "연차 휴가", 2)
	assert.Equal(t, 1, callCount)
}

type countingLLM struct {
	response string
	count    *int
}

func (c countingLLM) Complete(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (capability.CompletionResult, error) {
	*c.count = *c.count + 1
	return capability.CompletionResult{Content: c.response}, nil
}
func (c countingLLM) Stream(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (<-chan capability.StreamChunk, error) {
	return nil, nil
}
