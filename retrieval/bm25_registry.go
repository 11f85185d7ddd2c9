package retrieval

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/store"
)

// IndexBuilder fetches every document in a collection to build its BM25
// index. In production this reads from the same backing store as the
// vector store; indexing/ingestion itself stays out of this module's scope.
type IndexBuilder func(collection document.Collection) ([]document.Document, error)

// BM25Registry is the process-wide, lazily-initialized BM25 index cache
// spec §4.12 calls for ("BM25 index caches are process-wide singletons...
// built on first use and re-warmed in the background if load failed").
// Warm-up runs on a bounded worker pool, grounded on the Tangerg-lynx/future
// worker-pool module's use of github.com/panjf2000/ants/v2.
type BM25Registry struct {
	mu      sync.RWMutex
	indices map[document.Collection]*store.BM25Index
	warming map[document.Collection]bool

	build IndexBuilder
	pool  *ants.Pool
}

// NewBM25Registry builds a registry with up to poolSize concurrent warm-ups.
func NewBM25Registry(build IndexBuilder, poolSize int) (*BM25Registry, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &BM25Registry{
		indices: make(map[document.Collection]*store.BM25Index),
		warming: make(map[document.Collection]bool),
		build:   build,
		pool:    pool,
	}, nil
}

// Index implements retrieval.BM25Provider.
func (r *BM25Registry) Index(collection document.Collection) (*store.BM25Index, bool) {
	r.mu.RLock()
	idx, ok := r.indices[collection]
	r.mu.RUnlock()
	return idx, ok
}

// Warm implements retrieval.BM25Provider: builds collection's index in the
// background, deduplicating concurrent warm requests for the same
// collection.
func (r *BM25Registry) Warm(collection document.Collection) {
	r.mu.Lock()
	if r.warming[collection] {
		r.mu.Unlock()
		return
	}
	r.warming[collection] = true
	r.mu.Unlock()

	_ = r.pool.Submit(func() {
		defer func() {
			r.mu.Lock()
			r.warming[collection] = false
			r.mu.Unlock()
		}()

		docs, err := r.build(collection)
		if err != nil {
			return // re-warmed on next miss, per spec §4.12
		}
		idx := store.NewBM25Index()
		for _, d := range docs {
			idx.Add(d)
		}
		r.mu.Lock()
		r.indices[collection] = idx
		r.mu.Unlock()
	})
}

// Close releases the worker pool.
func (r *BM25Registry) Close() { r.pool.Release() }

var _ BM25Provider = (*BM25Registry)(nil)
