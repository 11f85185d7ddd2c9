package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hanbit-ai/advisor-rag/document"
)

// SQLiteVectorStore is a brute-force cosine-scan vector store backed by
// github.com/mattn/go-sqlite3, intended for embedded/dev/test deployments
// (spec §4.1 notes SQLite as an acceptable small-scale backend). Vectors are
// stored as JSON-encoded float32 slices and the entire collection is
// scanned and scored in process on every query — fine at the corpus sizes
// this system targets (hundreds to low thousands of chunks per domain).
type SQLiteVectorStore struct {
	db *sql.DB
}

// NewSQLiteVectorStore opens (creating if absent) a SQLite-backed store at
// path and ensures its schema exists.
func NewSQLiteVectorStore(path string) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite vector store: %w", err)
	}
	s := &SQLiteVectorStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteVectorStoreWithDB wraps an already-open *sql.DB, for tests.
func NewSQLiteVectorStoreWithDB(db *sql.DB) *SQLiteVectorStore {
	return &SQLiteVectorStore{db: db}
}

func (s *SQLiteVectorStore) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`)
	if err != nil {
		return fmt.Errorf("ensure sqlite index: %w", err)
	}
	return nil
}

// Upsert inserts a document with its embedding into collection. Indexing is
// otherwise out of scope for this module; this exists so tests can seed a
// store without an external ingestion pipeline.
func (s *SQLiteVectorStore) Upsert(ctx context.Context, collection document.Collection, doc document.Document, embedding []float32) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, content, metadata, embedding) VALUES (?, ?, ?, ?)`,
		string(collection), doc.Content, string(metaJSON), string(embJSON))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// SimilaritySearch implements VectorStore.
func (s *SQLiteVectorStore) SimilaritySearch(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]document.Document, error) {
	scored, err := s.SimilaritySearchWithScore(ctx, collection, queryVector, k)
	if err != nil {
		return nil, err
	}
	out := make([]document.Document, len(scored))
	for i, sd := range scored {
		out[i] = sd.Document
	}
	return out, nil
}

// SimilaritySearchWithScore implements VectorStore.
func (s *SQLiteVectorStore) SimilaritySearchWithScore(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]Scored, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, metadata, embedding FROM documents WHERE collection = ?`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		var content, metaJSON, embJSON string
		if err := rows.Scan(&content, &metaJSON, &embJSON); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
		scored = append(scored, Scored{
			Document: document.Document{Content: content, Metadata: meta},
			Score:    cosineSimilarity(queryVector, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ VectorStore = (*SQLiteVectorStore)(nil)
