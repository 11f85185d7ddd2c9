package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LLMReranker scores query-document pairs with an LLM, adapted from the
// teacher's rag/retriever/llm_reranker.go to the capability.LLM interface
// and capability.ScoredDocument shape.
type LLMReranker struct {
	llm            LLM
	systemPrompt   string
	batchSize      int
	scoreThreshold float64
}

// NewLLMReranker creates an LLM-backed reranker. batchSize <= 0 defaults to 5.
func NewLLMReranker(llm LLM, batchSize int, scoreThreshold float64) *LLMReranker {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &LLMReranker{
		llm:       llm,
		batchSize: batchSize,
		systemPrompt: "You are a relevance scoring assistant. Rate how well each document answers " +
			"the query on a scale of 0.0 to 1.0, where 1.0 is perfectly relevant and 0.0 is not relevant.",
		scoreThreshold: scoreThreshold,
	}
}

// Rerank implements Reranker. On LLM failure for a batch, that batch keeps
// its original retrieval scores rather than failing the whole call (spec
// §4.2 "Reranker errors are logged and skipped").
func (r *LLMReranker) Rerank(ctx context.Context, query string, docs []ScoredDocument, topK int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(docs))
	for i := range docs {
		scores[i] = docs[i].Score
	}

	for start := 0; start < len(docs); start += r.batchSize {
		end := min(start+r.batchSize, len(docs))
		batchScores, err := r.scoreBatch(ctx, query, docs[start:end])
		if err != nil {
			continue // keep original scores for this batch
		}
		copy(scores[start:end], batchScores)
	}

	out := make([]ScoredDocument, len(docs))
	for i, d := range docs {
		llmWeight, originalWeight := 0.7, 0.3
		out[i] = ScoredDocument{
			Content: d.Content,
			Index:   d.Index,
			Score:   llmWeight*scores[i] + originalWeight*d.Score,
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if r.scoreThreshold > 0 {
		filtered := out[:0]
		for _, d := range out {
			if d.Score >= r.scoreThreshold {
				filtered = append(filtered, d)
			}
		}
		out = filtered
	}

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (r *LLMReranker) scoreBatch(ctx context.Context, query string, docs []ScoredDocument) ([]float64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nDocuments:\n", query)
	for i, d := range docs {
		content := d.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, content)
	}
	sb.WriteString("\nReturn scores in format: [score1, score2, ...] where each score is between 0.0 and 1.0")

	resp, err := r.llm.Complete(ctx, []Message{
		{Role: "system", Content: r.systemPrompt},
		{Role: "user", Content: sb.String()},
	}, 256, 0.0)
	if err != nil {
		return nil, err
	}
	return parseScores(resp.Content, len(docs)), nil
}

func parseScores(response string, expected int) []float64 {
	response = strings.TrimSpace(response)
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	scores := make([]float64, 0, expected)

	if start != -1 && end != -1 && end > start {
		for _, part := range strings.Split(response[start+1:end], ",") {
			var f float64
			if _, err := fmt.Sscanf(strings.TrimSpace(part), "%f", &f); err == nil {
				scores = append(scores, f)
			}
		}
	}

	if len(scores) != expected {
		for i := range scores {
			_ = i
		}
		scores = scores[:0]
		for _, tok := range strings.Fields(response) {
			var f float64
			if _, err := fmt.Sscanf(tok, "%f", &f); err == nil && f >= 0 && f <= 1 {
				scores = append(scores, f)
				if len(scores) == expected {
					break
				}
			}
		}
	}

	for len(scores) < expected {
		scores = append(scores, 0.5)
	}
	return scores[:expected]
}

var _ Reranker = (*LLMReranker)(nil)
