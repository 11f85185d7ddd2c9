package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CrossEncoderRerankerConfig configures CrossEncoderReranker.
type CrossEncoderRerankerConfig struct {
	ModelName string
	APIBase   string // a self-hosted sentence-transformers rerank service
	Timeout   time.Duration
}

// DefaultCrossEncoderRerankerConfig returns a multilingual cross-encoder
// model, since a Korean-trained ms-marco variant is the expected deployment.
func DefaultCrossEncoderRerankerConfig() CrossEncoderRerankerConfig {
	return CrossEncoderRerankerConfig{
		ModelName: "cross-encoder/mmarco-mMiniLMv2-L12-H384-v1",
		APIBase:   "http://localhost:8000/rerank",
		Timeout:   30 * time.Second,
	}
}

// CrossEncoderReranker calls a self-hosted cross-encoder scoring service,
// adapted from the teacher's rag/retriever/cross_encoder_reranker.go to
// implement the Reranker capability interface instead of rag.Retriever.
// Unlike CohereReranker/JinaReranker it needs no API key, since it targets
// a locally-operated model server.
type CrossEncoderReranker struct {
	client *http.Client
	config CrossEncoderRerankerConfig
}

// NewCrossEncoderReranker builds a CrossEncoderReranker.
func NewCrossEncoderReranker(config CrossEncoderRerankerConfig) *CrossEncoderReranker {
	if config.ModelName == "" {
		config = DefaultCrossEncoderRerankerConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.APIBase == "" {
		config.APIBase = "http://localhost:8000/rerank"
	}
	return &CrossEncoderReranker{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

type crossEncoderRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
	Model     string   `json:"model,omitempty"`
}

type crossEncoderResponse struct {
	Scores  []float64 `json:"scores"`
	Indices []int     `json:"indices"`
}

// Rerank implements Reranker.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, docs []ScoredDocument, topK int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	jsonBody, err := json.Marshal(crossEncoderRequest{
		Query:     query,
		Documents: texts,
		TopN:      topK,
		Model:     r.config.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("cross-encoder reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.APIBase, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("cross-encoder reranker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder reranker: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cross-encoder reranker: service returned status %d: %s", resp.StatusCode, string(body))
	}

	var ceResp crossEncoderResponse
	if err := json.Unmarshal(body, &ceResp); err != nil {
		return nil, fmt.Errorf("cross-encoder reranker: parse response: %w", err)
	}

	results := make([]ScoredDocument, 0, len(ceResp.Indices))
	for i, idx := range ceResp.Indices {
		if idx < 0 || idx >= len(docs) || i >= len(ceResp.Scores) {
			continue
		}
		doc := docs[idx]
		doc.Score = ceResp.Scores[i]
		results = append(results, doc)
	}
	return results, nil
}

var _ Reranker = (*CrossEncoderReranker)(nil)
