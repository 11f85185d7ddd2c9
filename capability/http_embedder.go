package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPEmbedder is a generic batch-embedding HTTP client, generalized from
// the teacher's llms/qwen/embedder.go (which hardcoded the Qwen
// encoding_format quirk). It retries on 429/5xx with exponential backoff
// and L2-normalizes every embedding before returning it, per spec §4.1
// ("results are L2-normalised").
type HTTPEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	maxRetries int
	httpClient *http.Client
	log        *logrus.Logger
}

// HTTPEmbedderOption configures an HTTPEmbedder.
type HTTPEmbedderOption func(*HTTPEmbedder)

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.maxRetries = n }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c *http.Client) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.httpClient = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *logrus.Logger) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.log = l }
}

// NewHTTPEmbedder creates a client against an OpenAI-compatible
// /embeddings endpoint.
func NewHTTPEmbedder(baseURL, apiKey, model string, dimension int, opts ...HTTPEmbedderOption) *HTTPEmbedder {
	e := &HTTPEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		maxRetries: 5,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements EmbeddingModel.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements EmbeddingModel.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embeddingRequest{
		Model:          e.model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := e.baseURL + "/embeddings"
	retryDelay := 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			e.log.WithFields(logrus.Fields{"attempt": attempt, "delay": retryDelay}).Warn("retrying embedding request")
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			retryDelay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			var result embeddingResponse
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, fmt.Errorf("decode embedding response: %w", err)
			}
			vecs := make([][]float32, len(result.Data))
			for _, item := range result.Data {
				vecs[item.Index] = l2Normalize(item.Embedding)
			}
			return vecs, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("embedding backend returned %d: %s", resp.StatusCode, string(body))
			continue
		}

		return nil, &BackendUnavailable{Backend: "embedding", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	return nil, &BackendUnavailable{Backend: "embedding", Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}

// Dimension implements EmbeddingModel.
func (e *HTTPEmbedder) Dimension() int { return e.dimension }

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

var _ EmbeddingModel = (*HTTPEmbedder)(nil)
