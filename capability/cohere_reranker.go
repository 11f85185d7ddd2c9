package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// CohereRerankerConfig configures CohereReranker.
type CohereRerankerConfig struct {
	// Model is the Cohere rerank model, e.g. "rerank-v3.5",
	// "rerank-multilingual-v3.0" (the Korean-capable one).
	Model   string
	APIBase string
	Timeout time.Duration
}

// DefaultCohereRerankerConfig returns Cohere's multilingual model, since
// advisory queries and retrieved documents are in Korean.
func DefaultCohereRerankerConfig() CohereRerankerConfig {
	return CohereRerankerConfig{
		Model:   "rerank-multilingual-v3.0",
		APIBase: "https://api.cohere.ai/v1/rerank",
		Timeout: 30 * time.Second,
	}
}

// CohereReranker reranks documents via Cohere's hosted Rerank API,
// adapted from the teacher's rag/retriever/cohere_reranker.go to
// implement the Reranker capability interface instead of rag.Retriever.
type CohereReranker struct {
	apiKey string
	client *http.Client
	config CohereRerankerConfig
}

// NewCohereReranker builds a CohereReranker. apiKey falls back to the
// COHERE_API_KEY environment variable when empty.
func NewCohereReranker(apiKey string, config CohereRerankerConfig) *CohereReranker {
	if apiKey == "" {
		apiKey = os.Getenv("COHERE_API_KEY")
	}
	if config.Model == "" {
		config = DefaultCohereRerankerConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.APIBase == "" {
		config.APIBase = "https://api.cohere.ai/v1/rerank"
	}
	return &CohereReranker{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

type cohereRerankRequest struct {
	Query     string           `json:"query"`
	Documents []cohereDocument `json:"documents"`
	TopN      int              `json:"top_n,omitempty"`
	Model     string           `json:"model,omitempty"`
}

type cohereDocument struct {
	Text string `json:"text"`
}

type cohereRerankResponse struct {
	Results []cohereRerankResult `json:"results"`
}

type cohereRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Rerank implements Reranker. On any API failure it returns the error
// rather than degrading silently — callers decide whether to fall back
// to identity order (spec §4.1: a missing reranker degrades gracefully,
// but a configured one that fails should be visible).
func (r *CohereReranker) Rerank(ctx context.Context, query string, docs []ScoredDocument, topK int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if r.apiKey == "" {
		return nil, fmt.Errorf("cohere reranker: API key required (set COHERE_API_KEY or pass apiKey)")
	}

	reqDocs := make([]cohereDocument, len(docs))
	for i, d := range docs {
		reqDocs[i] = cohereDocument{Text: d.Content}
	}

	jsonBody, err := json.Marshal(cohereRerankRequest{
		Query:     query,
		Documents: reqDocs,
		TopN:      topK,
		Model:     r.config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.APIBase, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("cohere reranker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cohere reranker: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere reranker: API returned status %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp cohereRerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("cohere reranker: parse response: %w", err)
	}

	results := make([]ScoredDocument, len(rerankResp.Results))
	for i, result := range rerankResp.Results {
		original := docs[result.Index]
		original.Score = result.RelevanceScore
		results[i] = original
	}
	return results, nil
}

var _ Reranker = (*CohereReranker)(nil)
