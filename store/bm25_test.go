package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/document"
)

func TestBM25Index_SearchRanksExactTermHigher(t *testing.T) {
	idx := NewBM25Index()
	idx.Add(document.Document{Content: "해고 예고 수당은 근로기준법에 규정되어 있습니다"})
	idx.Add(document.Document{Content: "부가가치세 신고 기한은 분기별로 다릅니다"})
	idx.Add(document.Document{Content: "창업 지원금 신청 절차 안내"})

	results := idx.Search("해고 예고 수당 규정", 2)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Document.Content, "해고")
}

func TestBM25Index_SearchEmptyIndex(t *testing.T) {
	idx := NewBM25Index()
	assert.Nil(t, idx.Search("해고", 5))
	assert.Equal(t, 0, idx.Len())
}

func TestBM25Index_SearchNoMatchingTerms(t *testing.T) {
	idx := NewBM25Index()
	idx.Add(document.Document{Content: "창업 지원금 신청 절차"})
	assert.Empty(t, idx.Search("xyz123", 5))
}

func TestBM25Index_Len(t *testing.T) {
	idx := NewBM25Index()
	idx.Add(document.Document{Content: "해고 통지"})
	idx.Add(document.Document{Content: "법인세 신고"})
	assert.Equal(t, 2, idx.Len())
}
