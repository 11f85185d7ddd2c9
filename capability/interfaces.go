// Package capability defines the three external capability interfaces the
// pipeline consumes but does not implement (spec §4.1, §6): embedding,
// reranking, and LLM completion. Concrete adapters live alongside the
// interfaces, generalized from the teacher's adapter/llm_adapter.go and
// llms/qwen/embedder.go.
package capability

import "context"

// EmbeddingModel embeds text into a fixed-dimension, L2-normalized vector
// space. Backends (local model server, remote HTTP batch endpoint) are
// interchangeable.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ScoredDocument is a minimal (content, score) pair — the capability layer
// doesn't need the full retrieval.Document type to rerank.
type ScoredDocument struct {
	Content string
	Score   float64
	Index   int // original position, for identity-order fallback
}

// Reranker reorders documents by relevance to query. A missing reranker
// degrades gracefully to identity ordering (spec §4.1) — callers should
// treat a nil Reranker as "skip reranking", not an error.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []ScoredDocument, topK int) ([]ScoredDocument, error)
}

// Message is a single chat turn.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// TokenUsage reports LLM token accounting for one completion call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is the outcome of a non-streaming LLM call.
type CompletionResult struct {
	Content string
	Usage   TokenUsage
}

// StreamChunk is one token/fragment of a streaming completion.
type StreamChunk struct {
	Content string
	Done    bool
	Usage   TokenUsage // populated only on the final (Done) chunk
}

// LLM is the chat-completion capability. Complete blocks for the whole
// response; Stream delivers incremental chunks on the returned channel,
// which the caller must drain until closed or ctx is done.
type LLM interface {
	Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (CompletionResult, error)
	Stream(ctx context.Context, messages []Message, maxTokens int, temperature float64) (<-chan StreamChunk, error)
}

// BackendUnavailable wraps a failure from one of the three capability
// backends so the orchestrator can tell "this backend is down" apart from
// other errors and decide whether to degrade gracefully (spec §4.1, §7.3).
type BackendUnavailable struct {
	Backend string // "embedding" | "reranker" | "llm" | "vectorstore"
	Err     error
}

func (e *BackendUnavailable) Error() string {
	return e.Backend + " backend unavailable: " + e.Err.Error()
}

func (e *BackendUnavailable) Unwrap() error { return e.Err }
