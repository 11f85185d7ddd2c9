package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
)

func TestPGVectorStore_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPGVectorStoreWithPool(mock, "chunks")
	doc := document.Document{Content: "해고 통지 관련 규정", Metadata: map[string]any{document.MetaDomain: string(domainlabel.HRLabor)}}
	metaJSON, _ := json.Marshal(doc.Metadata)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chunks")).
		WithArgs(string(domainlabel.HRLabor), doc.Content, metaJSON, []float64{0.1, 0.2}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.Upsert(context.Background(), document.Collection(domainlabel.HRLabor), doc, []float32{0.1, 0.2})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_SimilaritySearchWithScore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPGVectorStoreWithPool(mock, "chunks")
	metaJSON, _ := json.Marshal(map[string]any{})

	rows := pgxmock.NewRows([]string{"content", "metadata", "embedding"}).
		AddRow("부가가치세 신고 방법", metaJSON, []float64{1, 0}).
		AddRow("창업 지원금 안내", metaJSON, []float64{0, 1})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT content, metadata, embedding FROM chunks WHERE collection = $1")).
		WithArgs(string(domainlabel.FinanceTax)).
		WillReturnRows(rows)

	results, err := s.SimilaritySearchWithScore(context.Background(), document.Collection(domainlabel.FinanceTax), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "부가가치세 신고 방법", results[0].Document.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, pgCosineSimilarity([]float32{1, 1}, []float32{2, 2}), 1e-9)
	assert.Equal(t, 0.0, pgCosineSimilarity([]float32{1}, []float32{1, 2}))
}
