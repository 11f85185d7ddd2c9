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

// JinaRerankerConfig configures JinaReranker.
type JinaRerankerConfig struct {
	Model   string
	APIBase string
	Timeout time.Duration
}

// DefaultJinaRerankerConfig returns Jina's multilingual rerank model.
func DefaultJinaRerankerConfig() JinaRerankerConfig {
	return JinaRerankerConfig{
		Model:   "jina-reranker-v2-base-multilingual",
		APIBase: "https://api.jina.ai/v1/rerank",
		Timeout: 30 * time.Second,
	}
}

// JinaReranker reranks documents via Jina AI's hosted Rerank API, adapted
// from the teacher's rag/retriever/jina_reranker.go to implement the
// Reranker capability interface instead of rag.Retriever.
type JinaReranker struct {
	apiKey string
	client *http.Client
	config JinaRerankerConfig
}

// NewJinaReranker builds a JinaReranker. apiKey falls back to the
// JINA_API_KEY environment variable when empty.
func NewJinaReranker(apiKey string, config JinaRerankerConfig) *JinaReranker {
	if apiKey == "" {
		apiKey = os.Getenv("JINA_API_KEY")
	}
	if config.Model == "" {
		config = DefaultJinaRerankerConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.APIBase == "" {
		config.APIBase = "https://api.jina.ai/v1/rerank"
	}
	return &JinaReranker{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

type jinaRerankRequest struct {
	Query     string         `json:"query"`
	Documents []jinaDocument `json:"documents"`
	TopN      int            `json:"top_n,omitempty"`
	Model     string         `json:"model,omitempty"`
}

type jinaDocument struct {
	Text string `json:"text"`
}

type jinaRerankResponse struct {
	Results []jinaRerankResult `json:"results"`
}

type jinaRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Rerank implements Reranker.
func (r *JinaReranker) Rerank(ctx context.Context, query string, docs []ScoredDocument, topK int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if r.apiKey == "" {
		return nil, fmt.Errorf("jina reranker: API key required (set JINA_API_KEY or pass apiKey)")
	}

	reqDocs := make([]jinaDocument, len(docs))
	for i, d := range docs {
		reqDocs[i] = jinaDocument{Text: d.Content}
	}

	jsonBody, err := json.Marshal(jinaRerankRequest{
		Query:     query,
		Documents: reqDocs,
		TopN:      topK,
		Model:     r.config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("jina reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.APIBase, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("jina reranker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jina reranker: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina reranker: API returned status %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp jinaRerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("jina reranker: parse response: %w", err)
	}

	results := make([]ScoredDocument, len(rerankResp.Results))
	for i, result := range rerankResp.Results {
		original := docs[result.Index]
		original.Score = result.RelevanceScore
		results[i] = original
	}
	return results, nil
}

var _ Reranker = (*JinaReranker)(nil)
