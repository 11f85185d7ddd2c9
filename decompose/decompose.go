// Package decompose implements QuestionDecomposer (spec §4.5): splitting a
// multi-domain question into one self-contained sub-question per domain.
package decompose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
)

// SubQuery is one domain-scoped self-contained question.
type SubQuery struct {
	Domain domainlabel.Label
	Query  string
}

// maxSubQueryLen bounds a decomposed sub-question's length (spec §4.5
// validation step); an LLM output exceeding this is treated as malformed.
const maxSubQueryLen = 500

const decomposerSystemPrompt = "Given a user question covering multiple advisory domains (%s) and the " +
	"recent conversation history, produce exactly one self-contained sub-question per domain, resolving " +
	"any pronouns or elided subjects using the history. Reply with exactly one line per domain in the " +
	"form \"domain: question\", in the same order as the domains listed above."

// QuestionDecomposer implements spec §4.5.
type QuestionDecomposer struct {
	llm capability.LLM

	mu    sync.Mutex
	cache *lru.Cache[string, []SubQuery]
}

// NewQuestionDecomposer builds a decomposer with an LRU cache of the given
// capacity.
func NewQuestionDecomposer(llm capability.LLM, cacheSize int) (*QuestionDecomposer, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, err := lru.New[string, []SubQuery](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create decomposition cache: %w", err)
	}
	return &QuestionDecomposer{llm: llm, cache: c}, nil
}

// Decompose implements spec §4.5: single-domain passthrough, multi-domain
// LLM decomposition with validation and fallback, LRU-cached by
// (query, domains in the given order, history fingerprint). The domain list
// is not sorted for the key, so the same domains in a different order are
// cached as separate entries.
func (d *QuestionDecomposer) Decompose(ctx context.Context, query string, domains []domainlabel.Label, history []capability.Message) []SubQuery {
	if len(domains) == 0 {
		return nil
	}
	if len(domains) == 1 {
		return []SubQuery{{Domain: domains[0], Query: query}}
	}

	key := cacheKey(query, domains, history)
	d.mu.Lock()
	if cached, ok := d.cache.Get(key); ok {
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	result := d.decomposeWithLLM(ctx, query, domains, history)

	d.mu.Lock()
	d.cache.Add(key, result)
	d.mu.Unlock()
	return result
}

func (d *QuestionDecomposer) decomposeWithLLM(ctx context.Context, query string, domains []domainlabel.Label, history []capability.Message) []SubQuery {
	names := make([]string, len(domains))
	for i, dm := range domains {
		names[i] = string(dm)
	}

	messages := make([]capability.Message, 0, len(history)+2)
	messages = append(messages, capability.Message{
		Role:    "system",
		Content: fmt.Sprintf(decomposerSystemPrompt, strings.Join(names, ", ")),
	})
	messages = append(messages, history...)
	messages = append(messages, capability.Message{Role: "user", Content: query})

	resp, err := d.llm.Complete(ctx, messages, 1024, 0.0)
	if err != nil {
		return fallback(query, domains)
	}

	parsed := parseSubQueries(resp.Content, domains)
	if parsed == nil {
		return fallback(query, domains)
	}
	return parsed
}

// parseSubQueries validates the LLM output: one entry per domain,
// non-empty, under the length cap, in the listed domain order. Returns nil
// on any validation failure so the caller falls back.
func parseSubQueries(content string, domains []domainlabel.Label) []SubQuery {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	byDomain := make(map[domainlabel.Label]string, len(domains))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		label, err := domainlabel.Resolve(strings.TrimSpace(line[:idx]))
		if err != nil {
			continue
		}
		q := strings.TrimSpace(line[idx+1:])
		if q == "" || len([]rune(q)) > maxSubQueryLen {
			continue
		}
		byDomain[label] = q
	}

	if len(byDomain) != len(domains) {
		return nil
	}

	out := make([]SubQuery, len(domains))
	for i, d := range domains {
		q, ok := byDomain[d]
		if !ok {
			return nil
		}
		out[i] = SubQuery{Domain: d, Query: q}
	}
	return out
}

func fallback(query string, domains []domainlabel.Label) []SubQuery {
	out := make([]SubQuery, len(domains))
	for i, d := range domains {
		out[i] = SubQuery{Domain: d, Query: query}
	}
	return out
}

func cacheKey(query string, domains []domainlabel.Label, history []capability.Message) string {
	sorted := make([]string, len(domains))
	for i, d := range domains {
		sorted[i] = string(d)
	}
	// domains arrive already in classifier-union order, which is the order
	// that determines sub-query assignment, so the cache key preserves it
	// rather than re-sorting.
	var histFingerprint strings.Builder
	for _, m := range history {
		histFingerprint.WriteString(m.Role)
		histFingerprint.WriteByte(':')
		histFingerprint.WriteString(m.Content)
		histFingerprint.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(query + "|" + strings.Join(sorted, ",") + "|" + histFingerprint.String()))
	return hex.EncodeToString(sum[:])
}
