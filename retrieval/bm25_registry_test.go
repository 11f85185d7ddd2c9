package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/advisor-rag/document"
)

func TestBM25Registry_WarmsAndBecomesReady(t *testing.T) {
	coll := document.Collection("hr_labor")
	reg, err := NewBM25Registry(func(c document.Collection) ([]document.Document, error) {
		return []document.Document{makeDoc("해고 예고 수당 규정")}, nil
	}, 2)
	require.NoError(t, err)
	defer reg.Close()

	_, ready := reg.Index(coll)
	assert.False(t, ready)

	reg.Warm(coll)

	require.Eventually(t, func() bool {
		_, ready := reg.Index(coll)
		return ready
	}, time.Second, 10*time.Millisecond)
}

func TestBM25Registry_DeduplicatesConcurrentWarmRequests(t *testing.T) {
	coll := document.Collection("finance_tax")
	calls := 0
	reg, err := NewBM25Registry(func(c document.Collection) ([]document.Document, error) {
		calls++
		time.Sleep(20 * time.Millisecond)
		return nil, nil
	}, 2)
	require.NoError(t, err)
	defer reg.Close()

	reg.Warm(coll)
	reg.Warm(coll)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, calls)
}
