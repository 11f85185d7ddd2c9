// Package evaluation implements AnswerEvaluator (spec §4.9): LLM
// five-criterion scoring against a weighted threshold and optional RAGAS
// metrics (logged only). The bounded post-evaluation retry that consumes
// these scores lives in pipeline.Router.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hanbit-ai/advisor-rag/capability"
)

// ScoreWeights are the five per-criterion weights (spec §3.1
// EvaluationScore, each sub-score 0-20).
type ScoreWeights struct {
	Accuracy         float64
	Completeness     float64
	Relevance        float64
	Citation         float64
	RetrievalQuality float64
}

// Scores holds the five raw 0-20 sub-scores an LLM judge returns.
type Scores struct {
	Accuracy         float64
	Completeness     float64
	Relevance        float64
	Citation         float64
	RetrievalQuality float64
	Feedback         string
}

// Verdict is the evaluator's pass/fail judgement.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Result is AnswerEvaluator's output for one answer.
type Result struct {
	Scores      Scores
	WeightedTotal float64
	Verdict     Verdict
}

const evaluatorSystemPrompt = "You are a strict evaluator of a Korean small-business advisory answer. " +
	"Score the answer against the provided question, context, and answer on five criteria, each 0-20: " +
	"accuracy, completeness, relevance, citation (correct [n] usage), retrieval_quality. Reply as JSON: " +
	"{\"accuracy\":0,\"completeness\":0,\"relevance\":0,\"citation\":0,\"retrieval_quality\":0,\"feedback\":\"...\"}"

// AnswerEvaluator implements spec §4.9's LLM scoring.
type AnswerEvaluator struct {
	llm     capability.LLM
	weights ScoreWeights
}

// NewAnswerEvaluator builds an evaluator with the configured weights.
func NewAnswerEvaluator(llm capability.LLM, weights ScoreWeights) *AnswerEvaluator {
	return &AnswerEvaluator{llm: llm, weights: weights}
}

// Evaluate scores an answer and compares the weighted total to threshold.
func (e *AnswerEvaluator) Evaluate(ctx context.Context, question, answer, context string, threshold float64) (Result, error) {
	resp, err := e.llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: evaluatorSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("질문: %s\n\n문맥:\n%s\n\n답변: %s", question, context, answer)},
	}, 512, 0.0)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate answer: %w", err)
	}

	scores, err := parseScores(resp.Content)
	if err != nil {
		return Result{}, fmt.Errorf("parse evaluator response: %w", err)
	}

	total := e.weightedTotal(scores)
	verdict := VerdictFail
	if total >= threshold {
		verdict = VerdictPass
	}
	return Result{Scores: scores, WeightedTotal: total, Verdict: verdict}, nil
}

func (e *AnswerEvaluator) weightedTotal(s Scores) float64 {
	w := e.weights
	sumWeights := w.Accuracy + w.Completeness + w.Relevance + w.Citation + w.RetrievalQuality
	if sumWeights == 0 {
		sumWeights = 1
	}
	weighted := w.Accuracy*s.Accuracy + w.Completeness*s.Completeness + w.Relevance*s.Relevance +
		w.Citation*s.Citation + w.RetrievalQuality*s.RetrievalQuality
	// Normalize to the 0-100 scale evaluation_threshold is expressed in
	// (five 0-20 criteria sum to at most 100 when equally weighted).
	return weighted / sumWeights * 5
}

func parseScores(content string) (Scores, error) {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "{"); idx > 0 {
		content = content[idx:]
	}
	var parsed struct {
		Accuracy         float64 `json:"accuracy"`
		Completeness     float64 `json:"completeness"`
		Relevance        float64 `json:"relevance"`
		Citation         float64 `json:"citation"`
		RetrievalQuality float64 `json:"retrieval_quality"`
		Feedback         string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Scores{}, err
	}
	return Scores{
		Accuracy:         parsed.Accuracy,
		Completeness:     parsed.Completeness,
		Relevance:        parsed.Relevance,
		Citation:         parsed.Citation,
		RetrievalQuality: parsed.RetrievalQuality,
		Feedback:         parsed.Feedback,
	}, nil
}

// RAGASMetrics are the optional, log-only quality metrics of spec §4.9.
// They never trigger retry.
type RAGASMetrics struct {
	Faithfulness     float64
	AnswerRelevancy  float64
	ContextPrecision float64
	ContextRecall    float64 // 0 if no ground truth supplied
}

// ComputeRAGAS computes the four RAGAS-style metrics via LLM-judged NLI and
// embedding similarity. groundTruth may be empty, in which case
// ContextRecall is left at zero.
func ComputeRAGAS(ctx context.Context, llm capability.LLM, embedder capability.EmbeddingModel, question, answer string, contexts []string, groundTruth string) (RAGASMetrics, error) {
	faithfulness, err := judgeFaithfulness(ctx, llm, answer, contexts)
	if err != nil {
		return RAGASMetrics{}, err
	}
	relevancy, err := answerRelevancy(ctx, llm, embedder, question, answer)
	if err != nil {
		return RAGASMetrics{}, err
	}
	precision := contextPrecision(contexts)

	metrics := RAGASMetrics{Faithfulness: faithfulness, AnswerRelevancy: relevancy, ContextPrecision: precision}
	if groundTruth != "" {
		recall, err := contextRecall(ctx, llm, contexts, groundTruth)
		if err == nil {
			metrics.ContextRecall = recall
		}
	}
	return metrics, nil
}

func judgeFaithfulness(ctx context.Context, llm capability.LLM, answer string, contexts []string) (float64, error) {
	resp, err := llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: "Judge what fraction (0.0-1.0) of the answer's claims are directly " +
			"supported by the given contexts. Reply with only the number."},
		{Role: "user", Content: fmt.Sprintf("Contexts:\n%s\n\nAnswer: %s", strings.Join(contexts, "\n---\n"), answer)},
	}, 32, 0.0)
	if err != nil {
		return 0, err
	}
	return parseFraction(resp.Content), nil
}

func answerRelevancy(ctx context.Context, llm capability.LLM, embedder capability.EmbeddingModel, question, answer string) (float64, error) {
	resp, err := llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: "Generate a single question that the following answer would best respond to. Reply with only the question."},
		{Role: "user", Content: answer},
	}, 64, 0.0)
	if err != nil {
		return 0, err
	}
	qVec, err := embedder.Embed(ctx, question)
	if err != nil {
		return 0, err
	}
	backVec, err := embedder.Embed(ctx, resp.Content)
	if err != nil {
		return 0, err
	}
	return cosine(qVec, backVec), nil
}

// contextPrecision approximates order-weighted relevance of the retrieved
// contexts. A faithful RAGAS context-precision needs a per-context
// relevance label, which this log-only metric doesn't have (that judgement
// lives upstream in retrieval.RetrievalEvaluator) — every non-empty context
// list is treated as fully precise.
func contextPrecision(contexts []string) float64 {
	if len(contexts) == 0 {
		return 0
	}
	return 1.0
}

func contextRecall(ctx context.Context, llm capability.LLM, contexts []string, groundTruth string) (float64, error) {
	resp, err := llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: "Judge what fraction (0.0-1.0) of the ground-truth claims are covered by the given contexts. Reply with only the number."},
		{Role: "user", Content: fmt.Sprintf("Ground truth: %s\n\nContexts:\n%s", groundTruth, strings.Join(contexts, "\n---\n"))},
	}, 32, 0.0)
	if err != nil {
		return 0, err
	}
	return parseFraction(resp.Content), nil
}

func parseFraction(s string) float64 {
	var f float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f); err != nil {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
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
