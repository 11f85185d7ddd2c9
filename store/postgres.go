package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanbit-ai/advisor-rag/document"
)

// pgxIface is the subset of pgxpool.Pool's surface this store needs,
// grounded on checkpoint/postgres's NewPostgresCheckpointStoreWithPool
// convention so tests can substitute pgxmock.PgxPoolIface.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGVectorStore is a Postgres-backed VectorStore. It keeps all collections
// in one table, filtered by a collection column, and scores similarity
// application-side (cosine distance over a float8[] column) rather than
// assuming the pgvector extension is
// installed, since the example pack's only Postgres usage (the teacher's
// checkpoint store) never brought in pgvector either.
type PGVectorStore struct {
	pool      pgxIface
	tableName string
}

// NewPostgresVectorStore connects to dsn and ensures the given table exists.
func NewPostgresVectorStore(ctx context.Context, dsn, tableName string) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres vector store: %w", err)
	}
	s := NewPGVectorStoreWithPool(pool, tableName)
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPGVectorStoreWithPool wraps an already-connected pool, for tests
// (mirrors checkpoint/postgres.NewPostgresCheckpointStoreWithPool).
func NewPGVectorStoreWithPool(pool pgxIface, tableName string) *PGVectorStore {
	return &PGVectorStore{pool: pool, tableName: tableName}
}

func (s *PGVectorStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		collection TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL,
		embedding DOUBLE PRECISION[] NOT NULL
	)`, s.tableName))
	if err != nil {
		return fmt.Errorf("ensure postgres schema: %w", err)
	}
	return nil
}

// Upsert inserts a document with its embedding into collection.
func (s *PGVectorStore) Upsert(ctx context.Context, collection document.Collection, doc document.Document, embedding []float32) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	vec := make([]float64, len(embedding))
	for i, v := range embedding {
		vec[i] = float64(v)
	}
	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (collection, content, metadata, embedding) VALUES ($1, $2, $3, $4)`, s.tableName),
		string(collection), doc.Content, metaJSON, vec)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// SimilaritySearch implements VectorStore.
func (s *PGVectorStore) SimilaritySearch(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]document.Document, error) {
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

// SimilaritySearchWithScore implements VectorStore. It pulls the whole
// collection and scores it in Go, same tradeoff as SQLiteVectorStore —
// acceptable at this system's corpus sizes and avoids depending on a
// Postgres extension the example pack never demonstrates.
func (s *PGVectorStore) SimilaritySearchWithScore(ctx context.Context, collection document.Collection, queryVector []float32, k int) ([]Scored, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT content, metadata, embedding FROM %s WHERE collection = $1`, s.tableName),
		string(collection))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		var content string
		var metaJSON []byte
		var vec []float64
		if err := rows.Scan(&content, &metaJSON, &vec); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		emb := make([]float32, len(vec))
		for i, v := range vec {
			emb[i] = float32(v)
		}
		scored = append(scored, Scored{
			Document: document.Document{Content: content, Metadata: meta},
			Score:    pgCosineSimilarity(queryVector, emb),
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

func pgCosineSimilarity(a, b []float32) float64 {
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

var _ VectorStore = (*PGVectorStore)(nil)
