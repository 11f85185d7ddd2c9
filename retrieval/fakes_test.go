package retrieval

import (
	"context"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/store"
)

// fakeEmbedder returns a deterministic vector derived from text length and
// Hangul content, good enough to exercise cosine math without a real model.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	for i, r := range text {
		v[i%f.dim] += float32(r % 7)
	}
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (f fakeEmbedder) Dimension() int { return f.dim }

var _ capability.EmbeddingModel = fakeEmbedder{}

// fakeVectorStore returns canned scored documents regardless of the query
// vector, sufficient to exercise fusion/merge logic deterministically.
type fakeVectorStore struct {
	byCollection map[document.Collection][]store.Scored
}

func (f fakeVectorStore) SimilaritySearchWithScore(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]store.Scored, error) {
	docs := f.byCollection[collection]
	if len(docs) > k && k > 0 {
		docs = docs[:k]
	}
	return docs, nil
}

// fakeBM25Provider always reports an index as ready (never needs warm-up).
type fakeBM25Provider struct {
	indices map[document.Collection]*store.BM25Index
}

func (f fakeBM25Provider) Index(collection document.Collection) (*store.BM25Index, bool) {
	idx, ok := f.indices[collection]
	return idx, ok
}

func (f fakeBM25Provider) Warm(collection document.Collection) {}

// fakeLLM echoes a fixed response, used where expansion/reranking LLM calls
// are exercised but content doesn't matter to the assertion.
type fakeLLM struct {
	response string
}

func (f fakeLLM) Complete(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (capability.CompletionResult, error) {
	return capability.CompletionResult{Content: f.response}, nil
}

func (f fakeLLM) Stream(ctx context.Context, messages []capability.Message, maxTokens int, temperature float64) (<-chan capability.StreamChunk, error) {
	ch := make(chan capability.StreamChunk, 1)
	ch <- capability.StreamChunk{Content: f.response, Done: true}
	close(ch)
	return ch, nil
}

var _ capability.LLM = fakeLLM{}

// identityReranker returns documents unchanged, for tests that only care
// about upstream fusion behavior.
type identityReranker struct{}

func (identityReranker) Rerank(ctx context.Context, query string, docs []capability.ScoredDocument, topK int) ([]capability.ScoredDocument, error) {
	if topK > 0 && len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

var _ capability.Reranker = identityReranker{}

func makeDoc(content string) document.Document {
	return document.Document{Content: content, Metadata: map[string]any{}}
}
