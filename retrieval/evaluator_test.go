package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hanbit-ai/advisor-rag/document"
)

func TestRetrievalEvaluator_Pass(t *testing.T) {
	e := NewRetrievalEvaluator(1, 0.3, 0.5)
	docs := []document.Document{makeDoc("해고 예고 수당은 근로기준법에 규정되어 있습니다")}
	result := e.Evaluate("해고 수당", docs, []float64{0.8}, false)
	assert.Equal(t, VerdictPass, result.Verdict)
}

func TestRetrievalEvaluator_NeedsRetryOnLowSimilarity(t *testing.T) {
	e := NewRetrievalEvaluator(1, 0.3, 0.8)
	docs := []document.Document{makeDoc("해고 예고 수당 규정")}
	result := e.Evaluate("해고 수당", docs, []float64{0.1}, false)
	assert.Equal(t, VerdictNeedsRetry, result.Verdict)
}

func TestRetrievalEvaluator_FailOnlyWhenExhaustedAndEmpty(t *testing.T) {
	e := NewRetrievalEvaluator(1, 0.3, 0.5)

	needsRetry := e.Evaluate("해고 수당", nil, nil, false)
	assert.Equal(t, VerdictNeedsRetry, needsRetry.Verdict)

	fail := e.Evaluate("해고 수당", nil, nil, true)
	assert.Equal(t, VerdictFail, fail.Verdict)
}
