// Package store implements the VectorStore capability interface (spec
// §4.1, C1): similarity search per collection, returning scored documents.
package store

import (
	"context"

	"github.com/hanbit-ai/advisor-rag/document"
)

// Scored pairs a Document with its cosine similarity to the query vector
// (already converted from distance: sim = 1 - cosine_distance, spec §4.1).
type Scored struct {
	Document document.Document
	Score    float64
}

// VectorStore is the capability interface the core consumes for similarity
// search. It does not implement ingestion/indexing (out of scope, spec
// §1 "preprocessing pipelines that build the vector store").
type VectorStore interface {
	// SimilaritySearch returns the k nearest documents in collection to
	// queryVector.
	SimilaritySearch(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]document.Document, error)

	// SimilaritySearchWithScore is the same, but also returns each
	// document's similarity score.
	SimilaritySearchWithScore(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]Scored, error)
}
