package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hanbit-ai/advisor-rag/capability"
)

const expanderSystemPrompt = "You generate diversified paraphrases of a search query for a Korean " +
	"small-business advisory system. Produce exactly %d alternative phrasings of the query, one per " +
	"line, no numbering. Use three diversification strategies across the alternatives: substitute " +
	"key terms with synonyms, shift the scope (broader or narrower), and where applicable map the " +
	"question to the name of a concrete relevant statute."

type expansionCacheEntry struct {
	queries   []string
	expiresAt time.Time
}

// MultiQueryExpander implements spec §4.3: LLM-paraphrased query variants,
// TTL-cached by hash(query) so repeated calls across retry levels within a
// request don't re-spend LLM budget.
type MultiQueryExpander struct {
	llm capability.LLM
	ttl time.Duration

	mu    sync.Mutex
	cache *lru.Cache[string, expansionCacheEntry]
}

// NewMultiQueryExpander builds an expander with an LRU+TTL cache of the
// given capacity.
func NewMultiQueryExpander(llm capability.LLM, cacheSize int, ttl time.Duration) (*MultiQueryExpander, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, err := lru.New[string, expansionCacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create multi-query expansion cache: %w", err)
	}
	return &MultiQueryExpander{llm: llm, ttl: ttl, cache: c}, nil
}

func cacheKey(query string, n int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", n, query)))
	return hex.EncodeToString(sum[:])
}

// Expand returns up to n+1 queries (the original plus n paraphrases),
// falling back to [query] on LLM failure (spec §4.3).
func (e *MultiQueryExpander) Expand(ctx context.Context, query string, n int) []string {
	if n <= 0 {
		return []string{query}
	}
	key := cacheKey(query, n)

	e.mu.Lock()
	if entry, ok := e.cache.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			e.mu.Unlock()
			return append([]string{query}, entry.queries...)
		}
		e.cache.Remove(key)
	}
	e.mu.Unlock()

	resp, err := e.llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: fmt.Sprintf(expanderSystemPrompt, n)},
		{Role: "user", Content: query},
	}, 512, 0.7)
	if err != nil {
		return []string{query}
	}

	variants := parseExpansionLines(resp.Content, n)
	if len(variants) == 0 {
		return []string{query}
	}

	e.mu.Lock()
	e.cache.Add(key, expansionCacheEntry{queries: variants, expiresAt: time.Now().Add(e.ttl)})
	e.mu.Unlock()

	return append([]string{query}, variants...)
}

func parseExpansionLines(content string, n int) []string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	out := make([]string, 0, n)
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimLeft(l, "-0123456789.) ")
		if l == "" {
			continue
		}
		out = append(out, l)
		if len(out) == n {
			break
		}
	}
	return out
}
